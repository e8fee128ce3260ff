package loopstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/limits"
	"github.com/terrylica/ralph-universal/internal/logbook"
)

type harness struct {
	paths     config.Paths
	store     *config.FileStore
	markers   *Markers
	machine   *Machine
	now       time.Time
	finalized []Record
	journal   *logbook.Logbook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		paths: config.NewPaths(t.TempDir(), ""),
		now:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	h.store = config.NewFileStore(h.paths, zerolog.Nop())
	h.markers = NewMarkers(h.paths)
	journal, err := logbook.New(h.paths.JournalFile())
	require.NoError(t, err)
	h.journal = journal
	h.machine = New(h.store, h.markers, NewFileRuntime(h.paths),
		WithClock(func() time.Time { return h.now }),
		WithJournal(journal),
		WithSessionIDs(func() string { return "session-1" }),
		WithFinalizer(FinalizerFunc(func(r Record) error {
			h.finalized = append(h.finalized, r)
			return nil
		})),
	)
	return h
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(config.StateStopped, config.StateRunning))
	assert.True(t, CanTransition(config.StateRunning, config.StateDraining))
	assert.True(t, CanTransition(config.StateDraining, config.StateStopped))
	assert.True(t, CanTransition(config.StateRunning, config.StateStopped))
	assert.False(t, CanTransition(config.StateStopped, config.StateDraining))
	assert.False(t, CanTransition(config.StateDraining, config.StateRunning))
	assert.False(t, CanTransition(config.StateStopped, config.StateStopped))
}

func TestStartWritesMarkersAndRuntime(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.markers.CreateKillSwitch())

	rt, err := h.machine.Start(StartOptions{Preset: limits.Trial, TargetFile: "PLAN.md", TaskPrompt: "finish the parser"})
	require.NoError(t, err)

	assert.Equal(t, "session-1", rt.SessionID)
	assert.Equal(t, 0, rt.Iteration)
	assert.Equal(t, config.StateRunning, h.machine.State())
	assert.False(t, h.markers.KillSwitchPresent(), "stale kill switch is cleared on start")

	cfg := h.store.Load().Config
	assert.Equal(t, config.ModeTrial, cfg.Mode)
	assert.Equal(t, "PLAN.md", cfg.TargetFile)
	assert.Equal(t, "finish the parser", cfg.TaskPrompt)

	started, ok := h.markers.ReadStart()
	require.True(t, ok)
	assert.Equal(t, h.now.Unix(), started.Unix())
	data, err := os.ReadFile(h.paths.StartMarker())
	require.NoError(t, err)
	assert.Equal(t, "1777626000\n", string(data))
}

func TestStartTwiceIsInvalid(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Start(StartOptions{})
	require.NoError(t, err)

	_, err = h.machine.Start(StartOptions{})

	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, config.StateRunning, invalid.From)
	assert.Equal(t, config.StateRunning, invalid.To)
}

func TestDrainThenFinish(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Start(StartOptions{Preset: limits.Production})
	require.NoError(t, err)
	_, err = h.machine.RecordIteration("continue")
	require.NoError(t, err)

	require.NoError(t, h.machine.RequestStop("operator stop"))
	assert.Equal(t, config.StateDraining, h.machine.State())
	assert.Empty(t, h.finalized)

	h.now = h.now.Add(30 * time.Minute)
	require.NoError(t, h.machine.Finish("iteration complete"))

	assert.Equal(t, config.StateStopped, h.machine.State())
	require.Len(t, h.finalized, 1)
	rec := h.finalized[0]
	assert.Equal(t, "session-1", rec.SessionID)
	assert.Equal(t, config.StateDraining, rec.From)
	assert.Equal(t, 1, rec.Iterations)
	assert.Equal(t, 30*time.Minute, rec.StoppedAt.Sub(rec.StartedAt))

	_, err = os.Stat(h.paths.ConfigFile())
	assert.NoError(t, err, "stop preserves the config file")

	lines, _ := h.journal.Tail(10)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "stopped from draining after 1 iterations")
}

func TestInvalidTransitionsDoNotMutate(t *testing.T) {
	h := newHarness(t)

	err := h.machine.RequestStop("nothing running")
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, config.StateStopped, invalid.From)
	assert.Equal(t, config.StateDraining, invalid.To)

	err = h.machine.Finish("nothing draining")
	require.True(t, errors.As(err, &invalid))

	_, statErr := os.Stat(h.paths.ConfigFile())
	assert.True(t, os.IsNotExist(statErr), "rejected transitions write nothing")

	_, err = h.machine.Start(StartOptions{})
	require.NoError(t, err)
	err = h.machine.Finish("running cannot finish without draining")
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, config.StateRunning, h.machine.State())
}

func TestKillSwitchHaltsRunningLoop(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Start(StartOptions{})
	require.NoError(t, err)

	halted, err := h.machine.CheckKillSwitch()
	require.NoError(t, err)
	assert.False(t, halted)

	require.NoError(t, h.markers.CreateKillSwitch())
	halted, err = h.machine.CheckKillSwitch()
	require.NoError(t, err)
	assert.True(t, halted)
	assert.Equal(t, config.StateStopped, h.machine.State())
	require.Len(t, h.finalized, 1)
	assert.Equal(t, config.StateRunning, h.finalized[0].From)
	assert.Equal(t, "kill switch", h.finalized[0].Reason)

	halted, err = h.machine.CheckKillSwitch()
	require.NoError(t, err)
	assert.False(t, halted, "a stopped loop is not halted twice")
}

func TestKillSwitchFinishesDrainingLoop(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Start(StartOptions{})
	require.NoError(t, err)
	require.NoError(t, h.machine.RequestStop("operator"))

	require.NoError(t, h.machine.Kill())

	assert.Equal(t, config.StateStopped, h.machine.State())
	assert.True(t, h.markers.KillSwitchPresent())
}

func TestKillOnStoppedLoopIsInvalid(t *testing.T) {
	h := newHarness(t)
	var invalid *InvalidTransitionError
	assert.True(t, errors.As(h.machine.Kill(), &invalid))
	assert.False(t, h.markers.KillSwitchPresent(), "a rejected kill leaves no sentinel behind")
}

func TestKillSwitchHaltsOverUnusableConfig(t *testing.T) {
	store := config.NewMemoryStore(nil)
	store.FailLoads(errors.Join(config.ErrUnreadable, errors.New("permission denied")))
	paths := config.NewPaths(t.TempDir(), "")
	markers := NewMarkers(paths)
	machine := New(store, markers, &MemoryRuntime{})
	require.NoError(t, markers.CreateKillSwitch())

	halted, err := machine.CheckKillSwitch()

	require.NoError(t, err)
	assert.True(t, halted)
	assert.Equal(t, 0, store.Saves(), "an unusable config is never overwritten")
	assert.True(t, markers.KillSwitchPresent())
}

func TestProgressMeasuresElapsedAndSilence(t *testing.T) {
	h := newHarness(t)
	_, err := h.machine.Start(StartOptions{})
	require.NoError(t, err)

	h.now = h.now.Add(10 * time.Minute)
	require.NoError(t, h.machine.Touch())
	h.now = h.now.Add(400 * time.Second)
	for i := 0; i < 3; i++ {
		_, err = h.machine.RecordIteration("continue")
		require.NoError(t, err)
	}

	p := h.machine.Progress()
	assert.Equal(t, int64(600+400), p.ElapsedSeconds)
	assert.Equal(t, int64(400), p.SecondsSinceLastInvocation)
	assert.Equal(t, 3, p.Iteration)
}

func TestProgressWithoutMarkers(t *testing.T) {
	h := newHarness(t)
	p := h.machine.Progress()
	assert.Equal(t, Progress{}, p)
}

func TestMarkersIgnoreGarbage(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), "")
	m := NewMarkers(paths)
	require.NoError(t, paths.EnsureClaudeDir())
	require.NoError(t, os.WriteFile(filepath.Join(paths.ClaudeDir(), config.HeartbeatFileName), []byte("soon"), 0o644))

	_, ok := m.ReadHeartbeat()
	assert.False(t, ok)

	require.NoError(t, m.CreateKillSwitch())
	info, err := os.Stat(paths.KillSwitch())
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	require.NoError(t, m.ClearKillSwitch())
	require.NoError(t, m.ClearKillSwitch())
}

func TestStartRefusesUnreadableConfig(t *testing.T) {
	store := config.NewMemoryStore(nil)
	store.FailLoads(errors.Join(config.ErrUnreadable, errors.New("permission denied")))
	paths := config.NewPaths(t.TempDir(), "")
	machine := New(store, NewMarkers(paths), &MemoryRuntime{})

	_, err := machine.Start(StartOptions{})

	assert.ErrorIs(t, err, config.ErrUnreadable)
	assert.Equal(t, 0, store.Saves())
}

func TestStartRefusesMalformedConfig(t *testing.T) {
	store := config.NewMemoryStore(nil)
	store.FailLoads(&config.ParseError{Path: "ru-config.json", Cause: errors.New("unexpected end of JSON input")})
	paths := config.NewPaths(t.TempDir(), "")
	markers := NewMarkers(paths)
	machine := New(store, markers, &MemoryRuntime{})

	_, err := machine.Start(StartOptions{})

	var parseErr *config.ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 0, store.Saves())
	_, started := markers.ReadStart()
	assert.False(t, started)
}
