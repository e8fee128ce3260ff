package guard

import "strings"

// ExtractTargets pulls candidate path arguments out of a shell command:
// words after splitting on whitespace, quotes, command separators and
// redirections, minus flags and variable assignments. Over-collection is
// harmless because only words that resolve to protected files matter.
func ExtractTargets(command string) []string {
	var (
		words   []string
		current strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)
	flush := func() {
		if inWord {
			words = append(words, current.String())
		}
		current.Reset()
		inWord = false
	}
	for _, r := range command {
		switch {
		case escaped:
			current.WriteRune(r)
			inWord = true
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '#' && !inWord:
			// Comment to end of input; markers placed there are still seen by
			// the bypass check, which looks at the raw command.
			flush()
			return filterWords(words)
		case strings.ContainsRune(" \t\n;&|()<>`", r):
			flush()
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	flush()
	return filterWords(words)
}

func filterWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		switch {
		case w == "":
		case strings.HasPrefix(w, "-"):
		case isAssignment(w):
		default:
			out = append(out, w)
		}
	}
	return out
}

func isAssignment(word string) bool {
	eq := strings.IndexByte(word, '=')
	if eq <= 0 {
		return false
	}
	for _, r := range word[:eq] {
		if !(r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
