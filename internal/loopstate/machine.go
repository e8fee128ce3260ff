// Package loopstate implements the loop lifecycle: stopped, running and
// draining, persisted in the config's state field plus marker files. Every
// call re-reads disk; a Machine holds no state between invocations.
package loopstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/limits"
	"github.com/terrylica/ralph-universal/internal/logbook"
)

// InvalidTransitionError rejects a transition the lifecycle does not allow.
// Nothing is written when it is returned.
type InvalidTransitionError struct {
	From config.State
	To   config.State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("loopstate: cannot go from %s to %s", e.From, e.To)
}

var transitions = map[config.State][]config.State{
	config.StateStopped:  {config.StateRunning},
	config.StateRunning:  {config.StateDraining, config.StateStopped},
	config.StateDraining: {config.StateStopped},
}

// CanTransition reports whether from -> to is part of the lifecycle.
// running -> stopped is only taken when the kill switch is seen.
func CanTransition(from, to config.State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record summarises a finished run for the Finalizer.
type Record struct {
	SessionID  string          `yaml:"session_id"`
	Mode       string          `yaml:"mode"`
	From       config.State    `yaml:"final_transition_from"`
	Reason     string          `yaml:"reason"`
	StartedAt  time.Time       `yaml:"started_at"`
	StoppedAt  time.Time       `yaml:"stopped_at"`
	Iterations int             `yaml:"iterations"`
	TargetFile string          `yaml:"target_file,omitempty"`
	Guidance   config.Guidance `yaml:"guidance"`
}

// Finalizer runs once a loop reaches stopped, e.g. to archive the session.
type Finalizer interface {
	Finalize(Record) error
}

// FinalizerFunc adapts a function into a Finalizer.
type FinalizerFunc func(Record) error

// Finalize executes f(r).
func (f FinalizerFunc) Finalize(r Record) error {
	if f == nil {
		return nil
	}
	return f(r)
}

// StartOptions describe a new run.
type StartOptions struct {
	Preset     limits.Preset
	TargetFile string
	TaskPrompt string
}

// Progress is what the convergence check needs to know about a run, in
// whole seconds.
type Progress struct {
	ElapsedSeconds             int64
	Iteration                  int
	SecondsSinceLastInvocation int64
}

// Machine applies lifecycle transitions.
type Machine struct {
	store     config.Store
	markers   *Markers
	runtime   RuntimeStore
	clock     func() time.Time
	finalizer Finalizer
	journal   *logbook.Logbook
	log       zerolog.Logger
	newID     func() string
}

// Option customizes Machine construction.
type Option func(*Machine)

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithFinalizer sets the step run on every transition into stopped.
func WithFinalizer(f Finalizer) Option {
	return func(m *Machine) {
		if f != nil {
			m.finalizer = f
		}
	}
}

// WithJournal records transitions in the loop journal.
func WithJournal(j *logbook.Logbook) Option {
	return func(m *Machine) {
		m.journal = j
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(gen func() string) Option {
	return func(m *Machine) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// New creates a machine over the given stores.
func New(store config.Store, markers *Markers, runtime RuntimeStore, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		markers:   markers,
		runtime:   runtime,
		clock:     func() time.Time { return time.Now().UTC() },
		finalizer: FinalizerFunc(func(Record) error { return nil }),
		log:       zerolog.Nop(),
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns the persisted state, read fresh from the store.
func (m *Machine) State() config.State {
	return m.store.Load().Config.State
}

// Start moves stopped -> running. It mints a session id, writes the start and
// heartbeat markers, resets the iteration counter and clears a stale kill
// switch before the config flips to running.
func (m *Machine) Start(opts StartOptions) (Runtime, error) {
	loaded := m.store.Load()
	if loaded.Err != nil {
		return Runtime{}, fmt.Errorf("loopstate: refusing to start over unusable config: %w", loaded.Err)
	}
	cfg := loaded.Config
	if cfg.State != config.StateStopped {
		return Runtime{}, &InvalidTransitionError{From: cfg.State, To: config.StateRunning}
	}
	if opts.Preset == "" {
		opts.Preset = limits.ForMode(cfg.Mode)
	}

	now := m.clock().UTC()
	if err := m.markers.ClearKillSwitch(); err != nil {
		return Runtime{}, err
	}
	if err := m.markers.WriteStart(now); err != nil {
		return Runtime{}, err
	}
	if err := m.markers.Touch(now); err != nil {
		return Runtime{}, err
	}
	rt := Runtime{
		SessionID: m.newID(),
		Mode:      string(opts.Preset),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := m.runtime.Save(rt); err != nil {
		return Runtime{}, fmt.Errorf("loopstate: save runtime: %w", err)
	}

	cfg.State = config.StateRunning
	cfg.Mode = opts.Preset.Mode()
	if opts.TargetFile != "" {
		cfg.TargetFile = opts.TargetFile
	}
	if opts.TaskPrompt != "" {
		cfg.TaskPrompt = opts.TaskPrompt
	}
	if err := m.store.Save(cfg); err != nil {
		return Runtime{}, err
	}
	bounds := limits.ForConfig(cfg)
	m.journal.Info("start session=%s %s", rt.SessionID, bounds)
	m.log.Info().Str("session", rt.SessionID).Str("preset", string(bounds.Preset)).Msg("loop started")
	return rt, nil
}

// RequestStop moves running -> draining so the in-flight iteration can finish.
func (m *Machine) RequestStop(reason string) error {
	cfg, err := m.loadFor(config.StateDraining, config.StateRunning)
	if err != nil {
		return err
	}
	cfg.State = config.StateDraining
	if err := m.store.Save(cfg); err != nil {
		return err
	}
	m.updateRuntime(func(rt *Runtime) { rt.StopReason = reason })
	m.journal.Info("drain requested: %s", reason)
	m.log.Info().Str("reason", reason).Msg("loop draining")
	return nil
}

// Finish moves draining -> stopped and runs the finalizer.
func (m *Machine) Finish(reason string) error {
	cfg, err := m.loadFor(config.StateStopped, config.StateDraining)
	if err != nil {
		return err
	}
	return m.halt(cfg, reason)
}

// CheckKillSwitch halts an active loop when the sentinel exists. It returns
// true when a halt was applied. A running loop goes straight to stopped; a
// draining one finishes. When the config cannot be read the sentinel still
// wins: the caller must halt, but nothing is written over the broken file.
func (m *Machine) CheckKillSwitch() (bool, error) {
	if !m.markers.KillSwitchPresent() {
		return false, nil
	}
	loaded := m.store.Load()
	cfg := loaded.Config
	if loaded.Err != nil {
		m.journal.Warn("kill switch present, config unusable: %v", loaded.Err)
		m.log.Warn().Err(loaded.Err).Msg("kill switch present over unusable config")
		return true, nil
	}
	if cfg.State == config.StateStopped {
		return false, nil
	}
	m.journal.Warn("kill switch detected while %s", cfg.State)
	m.log.Warn().Str("state", string(cfg.State)).Msg("kill switch detected")
	if err := m.halt(cfg, "kill switch"); err != nil {
		return false, err
	}
	return true, nil
}

// Kill creates the sentinel and applies it immediately. A loop that is
// already stopped is rejected before the sentinel is written.
func (m *Machine) Kill() error {
	if loaded := m.store.Load(); loaded.Err == nil && loaded.Config.State == config.StateStopped {
		return &InvalidTransitionError{From: config.StateStopped, To: config.StateStopped}
	}
	if err := m.markers.CreateKillSwitch(); err != nil {
		return err
	}
	halted, err := m.CheckKillSwitch()
	if err != nil {
		return err
	}
	if !halted {
		return &InvalidTransitionError{From: m.State(), To: config.StateStopped}
	}
	return nil
}

// Touch records a hook invocation for stall detection.
func (m *Machine) Touch() error {
	return m.markers.Touch(m.clock())
}

// RecordIteration increments the iteration counter and stores the verdict
// that closed it.
func (m *Machine) RecordIteration(verdict string) (Runtime, error) {
	rt, err := m.runtime.Load()
	if err != nil && !errors.Is(err, ErrRuntimeNotFound) {
		return Runtime{}, err
	}
	rt.Iteration++
	rt.LastVerdict = verdict
	rt.UpdatedAt = m.clock().UTC()
	if err := m.runtime.Save(rt); err != nil {
		return Runtime{}, fmt.Errorf("loopstate: save runtime: %w", err)
	}
	return rt, nil
}

// Runtime returns the current runtime record; a missing or unreadable record
// reads as zero.
func (m *Machine) Runtime() Runtime {
	rt, err := m.runtime.Load()
	if err != nil && !errors.Is(err, ErrRuntimeNotFound) {
		m.log.Warn().Err(err).Msg("runtime record unreadable")
	}
	return rt
}

// Progress measures the run against now. Elapsed time comes from the start
// marker, falling back to the runtime record; a missing heartbeat counts as
// no silence at all.
func (m *Machine) Progress() Progress {
	now := m.clock()
	rt := m.Runtime()
	p := Progress{Iteration: rt.Iteration}
	started, ok := m.markers.ReadStart()
	if !ok {
		started, ok = rt.StartedAt, !rt.StartedAt.IsZero()
	}
	if ok {
		p.ElapsedSeconds = nonNegative(now.Unix() - started.Unix())
	}
	if last, ok := m.markers.ReadHeartbeat(); ok {
		p.SecondsSinceLastInvocation = nonNegative(now.Unix() - last.Unix())
	}
	return p
}

func (m *Machine) loadFor(to, want config.State) (config.LoopConfig, error) {
	loaded := m.store.Load()
	if errors.Is(loaded.Err, config.ErrUnreadable) {
		return config.LoopConfig{}, loaded.Err
	}
	cfg := loaded.Config
	if cfg.State != want || !CanTransition(cfg.State, to) {
		return config.LoopConfig{}, &InvalidTransitionError{From: cfg.State, To: to}
	}
	return cfg, nil
}

func (m *Machine) halt(cfg config.LoopConfig, reason string) error {
	from := cfg.State
	cfg.State = config.StateStopped
	if err := m.store.Save(cfg); err != nil {
		return err
	}
	now := m.clock().UTC()
	rt := m.updateRuntime(func(rt *Runtime) {
		rt.StopReason = reason
		rt.UpdatedAt = now
	})
	record := Record{
		SessionID:  rt.SessionID,
		Mode:       rt.Mode,
		From:       from,
		Reason:     reason,
		StartedAt:  rt.StartedAt,
		StoppedAt:  now,
		Iterations: rt.Iteration,
		TargetFile: cfg.TargetFile,
		Guidance:   cfg.Guidance,
	}
	if err := m.finalizer.Finalize(record); err != nil {
		m.log.Warn().Err(err).Msg("finalize failed")
		m.journal.Warn("finalize failed: %v", err)
	}
	m.journal.Info("stopped from %s after %d iterations: %s", from, rt.Iteration, reason)
	m.log.Info().Str("from", string(from)).Str("reason", reason).Int("iterations", rt.Iteration).Msg("loop stopped")
	return nil
}

// updateRuntime applies fn to the stored record; failures are logged because
// the config is the authoritative state.
func (m *Machine) updateRuntime(fn func(*Runtime)) Runtime {
	rt := m.Runtime()
	fn(&rt)
	if err := m.runtime.Save(rt); err != nil {
		m.log.Warn().Err(err).Msg("runtime record not saved")
	}
	return rt
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
