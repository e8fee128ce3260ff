package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrylica/ralph-universal/internal/config"
)

func TestResolveTrialPreset(t *testing.T) {
	ll := config.Default().LoopLimits
	ll.TrialMinHours = 0.083
	ll.TrialMaxIterations = 20

	b := Resolve(ll, Trial)

	assert.Equal(t, Trial, b.Preset)
	assert.Equal(t, int64(299), b.MinSeconds) // 0.083h rounds to 298.8s
	assert.Equal(t, 20, b.MaxIterations)
	assert.Equal(t, int64(300), b.StallGapSeconds)
}

func TestResolveProductionPreset(t *testing.T) {
	b := Resolve(config.Default().LoopLimits, Production)

	assert.Equal(t, int64(4*3600), b.MinSeconds)
	assert.Equal(t, int64(9*3600), b.MaxSeconds)
	assert.Equal(t, 50, b.MinIterations)
	assert.Equal(t, 99, b.MaxIterations)
	assert.Equal(t, "production: 4h-9h, 50-99 iterations, stall gap 300s", b.String())
}

func TestForConfigFollowsMode(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeTrial
	assert.Equal(t, Trial, ForConfig(cfg).Preset)

	cfg.Mode = config.ModeProduction
	assert.Equal(t, Production, ForConfig(cfg).Preset)
}

func TestParsePreset(t *testing.T) {
	for in, want := range map[string]Preset{"": Production, "prod": Production, "Trial": Trial, " production ": Production} {
		got, err := ParsePreset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePreset("staging")
	assert.Error(t, err)
}

func TestHoursToSeconds(t *testing.T) {
	assert.Equal(t, int64(0), HoursToSeconds(-1))
	assert.Equal(t, int64(600), HoursToSeconds(0.1666667))
	assert.Equal(t, int64(3600), HoursToSeconds(1))
	assert.Equal(t, int64(config.MaxHours*3600), HoursToSeconds(1e20), "huge hours clamp instead of overflowing")
}
