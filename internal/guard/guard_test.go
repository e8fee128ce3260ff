package guard

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrylica/ralph-universal/internal/config"
)

const projectDir = "/work/project"

func runningConfig() config.LoopConfig {
	cfg := config.Default()
	cfg.State = config.StateRunning
	return cfg
}

func TestDeniesDeletingConfigWhileRunning(t *testing.T) {
	cmd := "rm .claude/ru-config.json"

	d := Evaluate(runningConfig(), projectDir, cmd, ExtractTargets(cmd))

	require.True(t, d.Denied())
	assert.Equal(t, ".claude/ru-config.json", d.File)
	assert.Equal(t, `\brm\b`, d.Pattern)
	assert.Contains(t, d.Reason, ".claude/ru-config.json")
	assert.Contains(t, d.Reason, `\brm\b`)
}

func TestBypassMarkerAllows(t *testing.T) {
	cfg := runningConfig()
	for _, cmd := range []string{
		"rm .claude/ru-config.json # RU_LIFECYCLE_BYPASS",
		"RU_STOP_SCRIPT=1 rm -f .claude/ru-state.json",
	} {
		d := Evaluate(cfg, projectDir, cmd, ExtractTargets(cmd))
		assert.False(t, d.Denied(), cmd)
	}
	// Markers are checked against the raw command, not the extracted paths.
	d := Evaluate(cfg, projectDir, "rm x RU_LIFECYCLE_BYPASS", []string{".claude/ru-config.json"})
	assert.False(t, d.Denied())
}

func TestNotRunningAllows(t *testing.T) {
	for _, state := range []config.State{config.StateStopped, config.StateDraining} {
		cfg := config.Default()
		cfg.State = state
		d := Evaluate(cfg, projectDir, "rm -rf .claude", []string{".claude"})
		assert.Equal(t, Allow, d.Verdict, state)
	}
}

func TestNonDestructiveOrUnprotectedAllows(t *testing.T) {
	cfg := runningConfig()
	cases := []struct {
		cmd     string
		targets []string
	}{
		{"cat .claude/ru-config.json", []string{".claude/ru-config.json"}},
		{"rm build/output.o", []string{"build/output.o"}},
		{"rm .claude/settings.json", []string{".claude/settings.json"}},
		{"rm .claude/ru-config.json", nil},
		{"echo farm", []string{".claude/ru-config.json"}},
	}
	for _, tc := range cases {
		d := Evaluate(cfg, projectDir, tc.cmd, tc.targets)
		assert.Equal(t, Allow, d.Verdict, tc.cmd)
	}
}

func TestDirectoriesGlobsAndAbsolutePaths(t *testing.T) {
	cfg := runningConfig()
	cases := []string{
		"rm -rf .claude",
		"rm -rf .",
		"rm -rf /",
		"rm .claude/*.json",
		"rm " + filepath.Join(projectDir, ".claude", "ru-state.json"),
		"find . -name '*.json' -delete",
		"git clean -fdx .claude",
		"mv .claude/ru-config.json /tmp/",
		`rm ".claude/ru-config.json"`,
	}
	for _, cmd := range cases {
		t.Run(cmd, func(t *testing.T) {
			d := Evaluate(cfg, projectDir, cmd, ExtractTargets(cmd))
			assert.True(t, d.Denied(), "expected deny for %q", cmd)
		})
	}
}

func TestDenyRequiresAllConditions(t *testing.T) {
	// deny iff running AND pattern matches AND a target is protected AND no marker.
	for _, running := range []bool{false, true} {
		for _, matches := range []bool{false, true} {
			for _, protected := range []bool{false, true} {
				for _, marker := range []bool{false, true} {
					cfg := config.Default()
					if running {
						cfg.State = config.StateRunning
					}
					cmd := "cat"
					if matches {
						cmd = "rm"
					}
					target := "notes.txt"
					if protected {
						target = ".claude/ru-config.json"
					}
					cmd += " " + target
					if marker {
						cmd += " RU_LIFECYCLE_BYPASS"
					}
					want := running && matches && protected && !marker
					d := Evaluate(cfg, projectDir, cmd, []string{target})
					assert.Equal(t, want, d.Denied(), fmt.Sprintf("running=%v matches=%v protected=%v marker=%v", running, matches, protected, marker))
				}
			}
		}
	}
}

func TestInvalidPatternIsSkipped(t *testing.T) {
	cfg := runningConfig()
	cfg.Protection.DeletionPatterns = []string{"(unclosed", `\bdel\b`}

	d := Evaluate(cfg, projectDir, "del .claude/ru-state.json", []string{".claude/ru-state.json"})

	assert.True(t, d.Denied())
	assert.Equal(t, `\bdel\b`, d.Pattern)
}

func TestEvaluateLoadedFailsClosedWhenUnreadable(t *testing.T) {
	loaded := config.Loaded{
		Config: config.Default(),
		Source: config.SourceProject,
		Err:    fmt.Errorf("%w: permission denied", config.ErrUnreadable),
	}
	cmd := "rm .claude/ru-config.json"

	d := EvaluateLoaded(loaded, projectDir, cmd, ExtractTargets(cmd))

	require.True(t, d.Denied())
	assert.Contains(t, d.Reason, "failing closed")
	assert.False(t, EvaluateLoaded(loaded, projectDir, "ls", nil).Denied())
}

func TestEvaluateLoadedParseErrorUsesDefaults(t *testing.T) {
	loaded := config.Loaded{
		Config: config.Default(),
		Source: config.SourceProject,
		Err:    &config.ParseError{Path: "x", Cause: errors.New("bad json")},
	}
	d := EvaluateLoaded(loaded, projectDir, "rm .claude/ru-config.json", []string{".claude/ru-config.json"})
	assert.False(t, d.Denied(), "a parse error recovers to stopped defaults")
}

func TestExtractTargets(t *testing.T) {
	cases := map[string][]string{
		"rm -rf .claude":                           {"rm", ".claude"},
		`rm "a b.txt" 'c d' e\ f`:                  {"rm", "a b.txt", "c d", "e f"},
		"rm x;rm y && echo z | tee w > out 2>&1":   {"rm", "x", "rm", "y", "echo", "z", "tee", "w", "out", "2", "1"},
		"FOO=1 rm file # RU_LIFECYCLE_BYPASS":      {"rm", "file"},
		"rm $(ls .claude)":                         {"rm", "$", "ls", ".claude"},
		"":                                         {},
	}
	for cmd, want := range cases {
		assert.Equal(t, want, ExtractTargets(cmd), cmd)
	}
}
