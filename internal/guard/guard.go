// Package guard decides whether a proposed tool invocation may run while a
// loop is active. Evaluate is a pure function of the config, the command and
// its target paths.
package guard

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/terrylica/ralph-universal/internal/config"
)

// Verdict is the outcome of an evaluation.
type Verdict string

const (
	Allow Verdict = "allow"
	Deny  Verdict = "deny"
)

// Decision carries the verdict and, for denials, what triggered it.
type Decision struct {
	Verdict Verdict `json:"decision"`
	Reason  string  `json:"reason,omitempty"`
	File    string  `json:"file,omitempty"`
	Pattern string  `json:"pattern,omitempty"`
}

// Denied reports whether the decision rejects the command.
func (d Decision) Denied() bool {
	return d.Verdict == Deny
}

func allow() Decision {
	return Decision{Verdict: Allow}
}

// Evaluate applies, in order: no protection unless running; any bypass marker
// allows; a deletion pattern match that touches a protected file denies;
// everything else is allowed. Relative paths resolve against projectDir.
func Evaluate(cfg config.LoopConfig, projectDir, command string, targets []string) Decision {
	if cfg.State != config.StateRunning {
		return allow()
	}
	for _, marker := range cfg.Protection.Markers() {
		if marker != "" && strings.Contains(command, marker) {
			return allow()
		}
	}
	for _, pattern := range cfg.Protection.DeletionPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil || !re.MatchString(command) {
			continue
		}
		for _, target := range targets {
			if file, ok := Intersects(projectDir, target, cfg.Protection.ProtectedFiles); ok {
				return Decision{
					Verdict: Deny,
					File:    file,
					Pattern: pattern,
					Reason: fmt.Sprintf("loop is running: command matches deletion pattern %s and targets protected file %s",
						pattern, file),
				}
			}
		}
	}
	return allow()
}

// EvaluateLoaded evaluates against a load result. When the config exists but
// cannot be read the guard fails closed: it assumes a running loop with the
// default protection, so destructive commands on loop files are denied.
func EvaluateLoaded(loaded config.Loaded, projectDir, command string, targets []string) Decision {
	if !errors.Is(loaded.Err, config.ErrUnreadable) {
		return Evaluate(loaded.Config, projectDir, command, targets)
	}
	cfg := config.Default()
	cfg.State = config.StateRunning
	d := Evaluate(cfg, projectDir, command, targets)
	if d.Denied() {
		d.Reason = "loop config unreadable, failing closed: " + d.Reason
	}
	return d
}

// Intersects reports whether target names a protected file, a directory that
// contains one, or a glob that matches one. It returns the protected entry.
func Intersects(projectDir, target string, protected []string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	resolved := resolve(projectDir, target)
	dirPrefix := resolved
	if !strings.HasSuffix(dirPrefix, string(filepath.Separator)) {
		dirPrefix += string(filepath.Separator)
	}
	glob := strings.ContainsAny(target, "*?[")
	for _, p := range protected {
		pp := resolve(projectDir, p)
		if resolved == pp || strings.HasPrefix(pp, dirPrefix) {
			return p, true
		}
		if glob {
			if ok, err := filepath.Match(resolved, pp); err == nil && ok {
				return p, true
			}
		}
	}
	return "", false
}

func resolve(projectDir, path string) string {
	path = filepath.FromSlash(path)
	if !filepath.IsAbs(path) && projectDir != "" {
		path = filepath.Join(projectDir, path)
	}
	return filepath.Clean(path)
}
