package guidance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrylica/ralph-universal/internal/config"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestEncourageListClear(t *testing.T) {
	reg := New(config.NewMemoryStore(nil)).WithClock(fixedClock)

	require.NoError(t, reg.AddEncouraged("improve test coverage"))
	assert.Equal(t, []string{"improve test coverage"}, reg.Items(Encouraged))

	require.NoError(t, reg.ClearEncouraged())
	assert.Equal(t, []string{}, reg.Items(Encouraged))
}

func TestInsertionOrderKeptWithoutDedup(t *testing.T) {
	reg := New(config.NewMemoryStore(nil)).WithClock(fixedClock)

	for _, item := range []string{"no new deps", "no schema changes", "no new deps"} {
		require.NoError(t, reg.AddForbidden(item))
	}

	g := reg.List()
	assert.Equal(t, config.StringList{"no new deps", "no schema changes", "no new deps"}, g.Forbidden)
	assert.Empty(t, g.Encouraged)
	assert.Equal(t, "2026-03-01T12:00:00Z", g.Timestamp)
	assert.Equal(t, []string{"c", "b", "a"}, Latest([]string{"a", "b", "c"}))
}

func TestClearLeavesOtherList(t *testing.T) {
	reg := New(config.NewMemoryStore(nil))
	require.NoError(t, reg.AddForbidden("touch prod"))
	require.NoError(t, reg.AddEncouraged("write docs"))

	require.NoError(t, reg.ClearForbidden())

	assert.Empty(t, reg.Items(Forbidden))
	assert.Equal(t, []string{"write docs"}, reg.Items(Encouraged))
}

func TestRejectsBlankItem(t *testing.T) {
	reg := New(config.NewMemoryStore(nil))
	assert.ErrorIs(t, reg.AddForbidden("   "), ErrEmptyItem)
}

func TestMutationOnCorruptConfigFails(t *testing.T) {
	store := config.NewMemoryStore(nil)
	corrupt := &config.ParseError{Path: "ru-config.json", Cause: errors.New("unexpected EOF")}
	store.FailLoads(corrupt)
	reg := New(store)

	err := reg.AddForbidden("anything")

	require.Error(t, err)
	var parseErr *config.ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 0, store.Saves())
	// Reads still degrade to defaults.
	assert.Empty(t, reg.List().Forbidden)
}

func TestPreservesOtherConfigFields(t *testing.T) {
	seed := config.Default()
	seed.State = config.StateRunning
	seed.TargetFile = "PLAN.md"
	store := config.NewMemoryStore(&seed)

	require.NoError(t, New(store).AddEncouraged("refactor parser"))

	cfg := store.Load().Config
	assert.Equal(t, config.StateRunning, cfg.State)
	assert.Equal(t, "PLAN.md", cfg.TargetFile)
}
