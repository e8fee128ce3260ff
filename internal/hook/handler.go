package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/convergence"
	"github.com/terrylica/ralph-universal/internal/guard"
	"github.com/terrylica/ralph-universal/internal/guidance"
	"github.com/terrylica/ralph-universal/internal/limits"
	"github.com/terrylica/ralph-universal/internal/logbook"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

const killedReason = "loop halted by kill switch"

// Handler answers hook events for one project.
type Handler struct {
	paths   config.Paths
	store   config.Store
	machine *loopstate.Machine
	oracle  func(config.LoopConfig) convergence.Oracle
	log     zerolog.Logger
	journal *logbook.Logbook
}

// Option customizes Handler construction.
type Option func(*Handler)

// WithOracle replaces the completion oracle.
func WithOracle(fn func(config.LoopConfig) convergence.Oracle) Option {
	return func(h *Handler) {
		if fn != nil {
			h.oracle = fn
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// WithJournal records denials and verdicts in the loop journal.
func WithJournal(j *logbook.Logbook) Option {
	return func(h *Handler) {
		h.journal = j
	}
}

// NewHandler wires a handler over the loop's stores.
func NewHandler(paths config.Paths, store config.Store, machine *loopstate.Machine, opts ...Option) *Handler {
	h := &Handler{
		paths:   paths,
		store:   store,
		machine: machine,
		log:     zerolog.Nop(),
	}
	h.oracle = func(cfg config.LoopConfig) convergence.Oracle {
		return convergence.OracleFor(cfg, h.paths)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Serve decodes one event from r, handles it and writes the decision to w.
// Undecodable input is logged and treated as an empty event; only a failure
// to write the answer is returned.
func (h *Handler) Serve(event string, r io.Reader, w io.Writer) error {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		h.log.Warn().Err(err).Str("event", event).Msg("hook input undecodable")
		in = Input{}
	}
	in.Normalize()
	if err := in.Validate(event); err != nil {
		h.log.Warn().Err(err).Msg("hook input mismatched")
	}

	var out Output
	switch event {
	case EventPreToolUse:
		out = h.PreToolUse(in)
	case EventStop:
		out = h.Stop(in)
	default:
		return fmt.Errorf("hook: unknown event %q", event)
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("hook: write decision: %w", err)
	}
	return nil
}

// PreToolUse vets a proposed tool call.
func (h *Handler) PreToolUse(in Input) Output {
	if h.killed() {
		return Halt(killedReason)
	}
	loaded := h.store.Load()
	if loaded.Err == nil && loaded.Config.State == config.StateRunning {
		if reason, stale := h.stale(loaded.Config); stale {
			h.log.Info().Str("reason", reason).Msg("stale loop")
			h.journal.Warn("force stop before tool call: %s", reason)
			h.stop(reason)
			return Halt("ralph loop: " + reason)
		}
		if err := h.machine.Touch(); err != nil {
			h.log.Warn().Err(err).Msg("heartbeat not written")
		}
	}

	d := guard.EvaluateLoaded(loaded, h.paths.ProjectDir, in.Command, in.Targets())
	if !d.Denied() {
		return Allow()
	}
	h.log.Info().
		Str("tool", in.ToolName).
		Str("file", d.File).
		Str("pattern", d.Pattern).
		Msg("tool call denied")
	h.journal.Warn("denied %s: %s", in.ToolName, d.Reason)
	return Deny(d.Reason)
}

// Stop runs at the end of each agent turn, which closes one iteration.
func (h *Handler) Stop(in Input) Output {
	if h.killed() {
		return Halt(killedReason)
	}
	loaded := h.store.Load()
	if errors.Is(loaded.Err, config.ErrUnreadable) {
		h.log.Warn().Err(loaded.Err).Msg("loop config unreadable, releasing agent")
		return Release("ralph loop: config unreadable, not continuing")
	}
	cfg := loaded.Config

	switch cfg.State {
	case config.StateDraining:
		if err := h.machine.Finish("drained"); err != nil {
			h.log.Error().Err(err).Msg("finish failed")
			return Release("ralph loop: " + err.Error())
		}
		return Release("ralph loop stopped after draining")
	case config.StateRunning:
	default:
		return Release("")
	}

	progress := h.machine.Progress()
	done, err := h.oracle(cfg).Done()
	if err != nil {
		h.log.Warn().Err(err).Msg("completion oracle failed, treating as not done")
	}
	bounds := limits.ForConfig(cfg)
	obs := convergence.Observation{
		ElapsedSeconds:             progress.ElapsedSeconds,
		Iteration:                  progress.Iteration + 1,
		SecondsSinceLastInvocation: progress.SecondsSinceLastInvocation,
		Done:                       done,
	}
	verdict, reason := convergence.Explain(bounds, obs)
	if _, err := h.machine.RecordIteration(string(verdict)); err != nil {
		h.log.Warn().Err(err).Msg("iteration not recorded")
	}
	if err := h.machine.Touch(); err != nil {
		h.log.Warn().Err(err).Msg("heartbeat not written")
	}
	h.journal.Info("iteration %d: %s (%s)", obs.Iteration, verdict, reason)
	h.log.Debug().
		Int("iteration", obs.Iteration).
		Int64("elapsed", obs.ElapsedSeconds).
		Bool("done", done).
		Bool("stop_hook_active", in.StopHookActive).
		Str("verdict", string(verdict)).
		Msg("convergence checked")

	switch verdict {
	case convergence.Continue:
		return Block(Instructions(cfg, bounds, obs.Iteration, reason))
	case convergence.ForceStop:
		h.log.Info().Str("reason", reason).Msg("stale loop")
		h.stop(reason)
		return Halt("ralph loop: " + reason)
	default:
		h.stop(reason)
		return Release("ralph loop stopped: " + reason)
	}
}

// stale reports whether the heartbeat is older than the stall gap. It must
// run before the heartbeat is touched.
func (h *Handler) stale(cfg config.LoopConfig) (string, bool) {
	p := h.machine.Progress()
	verdict, reason := convergence.Explain(limits.ForConfig(cfg), convergence.Observation{
		ElapsedSeconds:             p.ElapsedSeconds,
		Iteration:                  p.Iteration,
		SecondsSinceLastInvocation: p.SecondsSinceLastInvocation,
	})
	return reason, verdict == convergence.ForceStop
}

func (h *Handler) stop(reason string) {
	if err := h.machine.RequestStop(reason); err != nil {
		h.log.Error().Err(err).Msg("drain failed")
		h.journal.Error("drain failed: %v", err)
		return
	}
	if err := h.machine.Finish(reason); err != nil {
		h.log.Error().Err(err).Msg("finish failed")
		h.journal.Error("finish failed: %v", err)
	}
}

func (h *Handler) killed() bool {
	halted, err := h.machine.CheckKillSwitch()
	if err != nil {
		h.log.Error().Err(err).Msg("kill switch halt failed")
	}
	return halted
}

// Instructions is the note handed back to the agent when the loop continues.
// Guidance is listed most recent first.
func Instructions(cfg config.LoopConfig, b limits.Bounds, iteration int, reason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ralph loop iteration %d complete (%s). Keep working: %s.", iteration, b, reason)
	if cfg.TaskPrompt != "" {
		fmt.Fprintf(&sb, "\nTask: %s", cfg.TaskPrompt)
	}
	if cfg.TargetFile != "" {
		fmt.Fprintf(&sb, "\nTarget file: %s", cfg.TargetFile)
	}
	writeList(&sb, "Forbidden", cfg.Guidance.Forbidden)
	writeList(&sb, "Encouraged", cfg.Guidance.Encouraged)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:", title)
	for _, item := range guidance.Latest(items) {
		fmt.Fprintf(sb, "\n- %s", item)
	}
}
