// Package limits turns the loop_limits block of the config into concrete,
// second-based bounds for the active preset.
package limits

import (
	"fmt"
	"math"
	"strings"

	"github.com/terrylica/ralph-universal/internal/config"
)

// Preset names one of the two parameter sets stored in loop_limits.
type Preset string

const (
	Production Preset = "production"
	Trial      Preset = "trial"
)

// Bounds are the floors, ceilings and stall threshold that govern one run.
// Time is kept in whole seconds so comparisons never depend on how a
// fractional hour rounds.
type Bounds struct {
	Preset          Preset `json:"preset" yaml:"preset"`
	MinSeconds      int64  `json:"min_seconds" yaml:"min_seconds"`
	MaxSeconds      int64  `json:"max_seconds" yaml:"max_seconds"`
	MinIterations   int    `json:"min_iterations" yaml:"min_iterations"`
	MaxIterations   int    `json:"max_iterations" yaml:"max_iterations"`
	StallGapSeconds int64  `json:"stall_gap_seconds" yaml:"stall_gap_seconds"`
}

// ParsePreset accepts "production"/"prod" and "trial" in any case.
func ParsePreset(value string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "production", "prod":
		return Production, nil
	case "trial":
		return Trial, nil
	default:
		return "", fmt.Errorf("limits: unknown preset %q (want production or trial)", value)
	}
}

// ForMode maps the config mode onto its preset.
func ForMode(mode config.Mode) Preset {
	if mode == config.ModeTrial {
		return Trial
	}
	return Production
}

// Mode maps a preset back onto the config mode.
func (p Preset) Mode() config.Mode {
	if p == Trial {
		return config.ModeTrial
	}
	return config.ModeProduction
}

// Resolve selects the preset's fields out of ll.
func Resolve(ll config.LoopLimits, preset Preset) Bounds {
	b := Bounds{
		Preset:          preset,
		StallGapSeconds: int64(ll.StallGapSeconds),
	}
	if preset == Trial {
		b.MinSeconds = HoursToSeconds(ll.TrialMinHours)
		b.MaxSeconds = HoursToSeconds(ll.TrialMaxHours)
		b.MinIterations = ll.TrialMinIterations
		b.MaxIterations = ll.TrialMaxIterations
		return b
	}
	b.MinSeconds = HoursToSeconds(ll.MinHours)
	b.MaxSeconds = HoursToSeconds(ll.MaxHours)
	b.MinIterations = ll.MinIterations
	b.MaxIterations = ll.MaxIterations
	return b
}

// ForConfig resolves bounds for the mode recorded in cfg.
func ForConfig(cfg config.LoopConfig) Bounds {
	return Resolve(cfg.LoopLimits, ForMode(cfg.Mode))
}

// HoursToSeconds converts fractional hours to the nearest whole second,
// clamped to config.MaxHours.
func HoursToSeconds(hours float64) int64 {
	if hours <= 0 || math.IsNaN(hours) {
		return 0
	}
	if hours > config.MaxHours {
		hours = config.MaxHours
	}
	return int64(math.Round(hours * 3600))
}

// String renders bounds for logs and status output.
func (b Bounds) String() string {
	return fmt.Sprintf("%s: %s-%s, %d-%d iterations, stall gap %ds",
		b.Preset, formatSeconds(b.MinSeconds), formatSeconds(b.MaxSeconds),
		b.MinIterations, b.MaxIterations, b.StallGapSeconds)
}

func formatSeconds(s int64) string {
	switch {
	case s%3600 == 0 && s > 0:
		return fmt.Sprintf("%dh", s/3600)
	case s >= 3600:
		return fmt.Sprintf("%.1fh", float64(s)/3600)
	case s%60 == 0:
		return fmt.Sprintf("%dm", s/60)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
