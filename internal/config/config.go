// internal/config/config.go
//
// This package owns the loop control configuration. Every project that runs a
// loop gets a .claude/ru-config.json; when it is missing the user-global
// ~/.claude/ralph-defaults.json is used, and when that is missing too the
// built-in defaults below apply.

package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// SchemaVersion is stamped into every config written by this package.
const SchemaVersion = "1.0.0"

// State is the persisted lifecycle state of the loop.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateDraining State = "draining"
)

// Mode selects which loop_limits preset applies.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeTrial      Mode = "trial"
)

// Protection lists the files an active loop may not destroy and how
// destructive commands are recognised.
type Protection struct {
	ProtectedFiles   []string `json:"protected_files" validate:"dive,required"`
	DeletionPatterns []string `json:"deletion_patterns" validate:"dive,required,regexp"`
	BypassMarkers    []string `json:"bypass_markers" validate:"dive,required"`
	StopScriptMarker string   `json:"stop_script_marker"`
}

// Guidance holds operator steering for the running loop. Order matters: later
// entries are more recent.
type Guidance struct {
	Forbidden  StringList `json:"forbidden"`
	Encouraged StringList `json:"encouraged"`
	Timestamp  string     `json:"timestamp,omitempty"`
}

// MaxHours caps every hour bound at one year; larger values would overflow
// when converted to seconds.
const MaxHours = 8760

// LoopLimits bounds a run. Hours are fractional so trial presets can be a few
// minutes long.
type LoopLimits struct {
	MinHours           float64 `json:"min_hours" validate:"gte=0,ltefield=MaxHours"`
	MaxHours           float64 `json:"max_hours" validate:"gt=0,lte=8760"`
	MinIterations      int     `json:"min_iterations" validate:"gte=0,ltefield=MaxIterations"`
	MaxIterations      int     `json:"max_iterations" validate:"gt=0"`
	TrialMinHours      float64 `json:"trial_min_hours" validate:"gte=0,ltefield=TrialMaxHours"`
	TrialMaxHours      float64 `json:"trial_max_hours" validate:"gt=0,lte=8760"`
	TrialMinIterations int     `json:"trial_min_iterations" validate:"gte=0,ltefield=TrialMaxIterations"`
	TrialMaxIterations int     `json:"trial_max_iterations" validate:"gt=0"`
	StallGapSeconds    int     `json:"stall_gap_seconds" validate:"gt=0"`
}

// LoopConfig models .claude/ru-config.json.
type LoopConfig struct {
	Version    string     `json:"version" validate:"required"`
	State      State      `json:"state" validate:"oneof=stopped running draining"`
	Mode       Mode       `json:"mode" validate:"oneof=production trial"`
	Protection Protection `json:"protection"`
	Guidance   Guidance   `json:"guidance"`
	LoopLimits LoopLimits `json:"loop_limits"`
	TargetFile string     `json:"target_file,omitempty"`
	TaskPrompt string     `json:"task_prompt,omitempty"`
}

// Default returns the built-in configuration. Each call returns fresh slices.
func Default() LoopConfig {
	return LoopConfig{
		Version: SchemaVersion,
		State:   StateStopped,
		Mode:    ModeProduction,
		Protection: Protection{
			ProtectedFiles:   defaultProtectedFiles(),
			DeletionPatterns: defaultDeletionPatterns(),
			BypassMarkers:    []string{"RU_LIFECYCLE_BYPASS"},
			StopScriptMarker: "RU_STOP_SCRIPT",
		},
		Guidance: Guidance{
			Forbidden:  StringList{},
			Encouraged: StringList{},
		},
		LoopLimits: LoopLimits{
			MinHours:           4,
			MaxHours:           9,
			MinIterations:      50,
			MaxIterations:      99,
			TrialMinHours:      0.083,
			TrialMaxHours:      0.167,
			TrialMinIterations: 10,
			TrialMaxIterations: 20,
			StallGapSeconds:    300,
		},
	}
}

func defaultProtectedFiles() []string {
	return []string{
		RelConfigFile,
		RelStateFile,
		filepath.ToSlash(filepath.Join(ClaudeDir, StartMarkerFileName)),
		filepath.ToSlash(filepath.Join(ClaudeDir, HeartbeatFileName)),
		filepath.ToSlash(filepath.Join(ClaudeDir, KillSwitchFileName)),
	}
}

func defaultDeletionPatterns() []string {
	return []string{
		`\brm\b`,
		`\bunlink\b`,
		`\bshred\b`,
		`\btruncate\b`,
		`\bmv\b`,
		`\bgit\s+clean\b`,
		`\bfind\b.*\s-delete\b`,
	}
}

// Decode parses raw JSON on top of the defaults, so absent fields keep their
// default values, then normalizes and validates the result.
func Decode(data []byte) (LoopConfig, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return LoopConfig{}, fmt.Errorf("decode: %w", err)
	}
	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return LoopConfig{}, err
	}
	return cfg, nil
}

// Encode renders the config the way it is stored on disk.
func Encode(cfg LoopConfig) ([]byte, error) {
	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Clone returns a deep copy so callers can mutate slices freely.
func (c LoopConfig) Clone() LoopConfig {
	out := c
	out.Protection.ProtectedFiles = append([]string(nil), c.Protection.ProtectedFiles...)
	out.Protection.DeletionPatterns = append([]string(nil), c.Protection.DeletionPatterns...)
	out.Protection.BypassMarkers = append([]string(nil), c.Protection.BypassMarkers...)
	out.Guidance.Forbidden = append(StringList{}, c.Guidance.Forbidden...)
	out.Guidance.Encouraged = append(StringList{}, c.Guidance.Encouraged...)
	return out
}

// Trial reports whether the trial preset applies.
func (c LoopConfig) Trial() bool {
	return c.Mode == ModeTrial
}

// Markers returns every literal token that exempts a command from protection:
// the bypass markers plus the stop script marker.
func (p Protection) Markers() []string {
	out := make([]string, 0, len(p.BypassMarkers)+1)
	out = append(out, p.BypassMarkers...)
	if p.StopScriptMarker != "" {
		out = append(out, p.StopScriptMarker)
	}
	return out
}

func (c *LoopConfig) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.Version) == "" {
		c.Version = SchemaVersion
	}
	if strings.TrimSpace(string(c.State)) == "" {
		c.State = StateStopped
	}
	if strings.TrimSpace(string(c.Mode)) == "" {
		c.Mode = ModeProduction
	}
	if c.Protection.DeletionPatterns == nil {
		c.Protection.DeletionPatterns = defaults.Protection.DeletionPatterns
	}
	if c.Protection.BypassMarkers == nil {
		c.Protection.BypassMarkers = defaults.Protection.BypassMarkers
	}
	if c.Protection.ProtectedFiles == nil {
		c.Protection.ProtectedFiles = defaults.Protection.ProtectedFiles
	}
	if c.Guidance.Forbidden == nil {
		c.Guidance.Forbidden = StringList{}
	}
	if c.Guidance.Encouraged == nil {
		c.Guidance.Encouraged = StringList{}
	}
}

func (c *LoopConfig) normalize() {
	c.Version = strings.TrimSpace(c.Version)
	c.State = State(strings.ToLower(strings.TrimSpace(string(c.State))))
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.TargetFile = strings.TrimSpace(c.TargetFile)
	c.TaskPrompt = strings.TrimSpace(c.TaskPrompt)

	c.Protection.ProtectedFiles = ensureProtected(compact(c.Protection.ProtectedFiles))
	c.Protection.DeletionPatterns = compact(c.Protection.DeletionPatterns)
	c.Protection.BypassMarkers = compact(c.Protection.BypassMarkers)
	c.Protection.StopScriptMarker = strings.TrimSpace(c.Protection.StopScriptMarker)

	c.Guidance.Timestamp = strings.TrimSpace(c.Guidance.Timestamp)
}

// ensureProtected guarantees the loop can never erase its own config or state
// file, and drops duplicates while keeping the first occurrence.
func ensureProtected(files []string) []string {
	seen := make(map[string]struct{}, len(files)+2)
	out := make([]string, 0, len(files)+2)
	for _, f := range append(files, RelConfigFile, RelStateFile) {
		key := filepath.ToSlash(filepath.Clean(f))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
