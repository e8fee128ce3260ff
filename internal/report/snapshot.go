// Package report assembles and renders the loop status shown by `ru status`.
package report

import (
	"time"

	"github.com/terrylica/ralph-universal/internal/archive"
	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/limits"
	"github.com/terrylica/ralph-universal/internal/logbook"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

const defaultJournalLines = 8

// Snapshot is a point-in-time view of one project's loop.
type Snapshot struct {
	ProjectDir                 string        `json:"project_dir" yaml:"project_dir"`
	ConfigPath                 string        `json:"config_path" yaml:"config_path"`
	Source                     config.Source `json:"source" yaml:"source"`
	ConfigError                string        `json:"config_error,omitempty" yaml:"config_error,omitempty"`
	State                      config.State  `json:"state" yaml:"state"`
	Mode                       config.Mode   `json:"mode" yaml:"mode"`
	Bounds                     limits.Bounds `json:"bounds" yaml:"bounds"`
	SessionID                  string        `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Iteration                  int           `json:"iteration" yaml:"iteration"`
	LastVerdict                string        `json:"last_verdict,omitempty" yaml:"last_verdict,omitempty"`
	StopReason                 string        `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	StartedAt                  *time.Time    `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	LastActivity               *time.Time    `json:"last_activity,omitempty" yaml:"last_activity,omitempty"`
	ElapsedSeconds             int64         `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	SecondsSinceLastInvocation int64         `json:"seconds_since_last_invocation" yaml:"seconds_since_last_invocation"`
	Stale                      bool          `json:"stale" yaml:"stale"`
	KillSwitch                 bool          `json:"kill_switch" yaml:"kill_switch"`
	TargetFile                 string        `json:"target_file,omitempty" yaml:"target_file,omitempty"`
	TaskPrompt                 string        `json:"task_prompt,omitempty" yaml:"task_prompt,omitempty"`
	Forbidden                  []string      `json:"forbidden" yaml:"forbidden"`
	Encouraged                 []string      `json:"encouraged" yaml:"encouraged"`
	Journal                    []string      `json:"journal,omitempty" yaml:"journal,omitempty"`
	JournalTotal               int           `json:"journal_total" yaml:"journal_total"`
	LastSession                *Session      `json:"last_session,omitempty" yaml:"last_session,omitempty"`
}

// Session is the summary of the most recently archived run.
type Session struct {
	ID         string       `json:"id" yaml:"id"`
	From       config.State `json:"from" yaml:"from"`
	Reason     string       `json:"reason" yaml:"reason"`
	StoppedAt  time.Time    `json:"stopped_at" yaml:"stopped_at"`
	Iterations int          `json:"iterations" yaml:"iterations"`
}

// Sources are the stores a snapshot reads. Journal may be nil.
type Sources struct {
	Paths        config.Paths
	Store        config.Store
	Machine      *loopstate.Machine
	Markers      *loopstate.Markers
	Journal      *logbook.Logbook
	JournalLines int
}

// Collect reads everything fresh from disk.
func Collect(src Sources) Snapshot {
	loaded := src.Store.Load()
	cfg := loaded.Config
	rt := src.Machine.Runtime()
	progress := src.Machine.Progress()

	s := Snapshot{
		ProjectDir:  src.Paths.ProjectDir,
		ConfigPath:  loaded.Path,
		Source:      loaded.Source,
		State:       cfg.State,
		Mode:        cfg.Mode,
		Bounds:      limits.ForConfig(cfg),
		SessionID:   rt.SessionID,
		Iteration:   rt.Iteration,
		LastVerdict: rt.LastVerdict,
		StopReason:  rt.StopReason,
		KillSwitch:  src.Markers.KillSwitchPresent(),
		TargetFile:  cfg.TargetFile,
		TaskPrompt:  cfg.TaskPrompt,
		Forbidden:   append([]string{}, cfg.Guidance.Forbidden...),
		Encouraged:  append([]string{}, cfg.Guidance.Encouraged...),
	}
	if loaded.Err != nil {
		s.ConfigError = loaded.Err.Error()
	}
	if started, ok := src.Markers.ReadStart(); ok {
		s.StartedAt = &started
	}
	if beat, ok := src.Markers.ReadHeartbeat(); ok {
		s.LastActivity = &beat
	}
	if cfg.State != config.StateStopped {
		s.ElapsedSeconds = progress.ElapsedSeconds
		s.SecondsSinceLastInvocation = progress.SecondsSinceLastInvocation
		s.Stale = s.LastActivity != nil && progress.SecondsSinceLastInvocation > s.Bounds.StallGapSeconds
	}

	lines := src.JournalLines
	if lines <= 0 {
		lines = defaultJournalLines
	}
	s.Journal, s.JournalTotal = src.Journal.Tail(lines)
	s.LastSession = lastSession(src.Paths)
	return s
}

func lastSession(paths config.Paths) *Session {
	records, err := archive.NewWriter(paths).List()
	if err != nil || len(records) == 0 {
		return nil
	}
	r := records[len(records)-1]
	return &Session{
		ID:         r.SessionID,
		From:       r.From,
		Reason:     r.Reason,
		StoppedAt:  r.StoppedAt,
		Iterations: r.Iterations,
	}
}
