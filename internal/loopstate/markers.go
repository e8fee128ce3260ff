package loopstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/terrylica/ralph-universal/internal/config"
)

// Markers manages the small files that sit beside the config: the kill switch
// sentinel, the start timestamp and the heartbeat. Timestamps are stored as
// Unix epoch seconds.
type Markers struct {
	paths config.Paths
}

// NewMarkers returns markers for paths.
func NewMarkers(paths config.Paths) *Markers {
	return &Markers{paths: paths}
}

// KillSwitchPresent reports whether the emergency stop sentinel exists.
func (m *Markers) KillSwitchPresent() bool {
	_, err := os.Stat(m.paths.KillSwitch())
	return err == nil
}

// CreateKillSwitch writes the zero-byte sentinel.
func (m *Markers) CreateKillSwitch() error {
	if err := m.paths.EnsureClaudeDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(m.paths.KillSwitch(), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("loopstate: create kill switch: %w", err)
	}
	return f.Close()
}

// ClearKillSwitch removes a stale sentinel.
func (m *Markers) ClearKillSwitch() error {
	if err := os.Remove(m.paths.KillSwitch()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loopstate: clear kill switch: %w", err)
	}
	return nil
}

// WriteStart records the run's start time.
func (m *Markers) WriteStart(t time.Time) error {
	return m.writeEpoch(m.paths.StartMarker(), t)
}

// ReadStart returns the recorded start time, if any.
func (m *Markers) ReadStart() (time.Time, bool) {
	return readEpoch(m.paths.StartMarker())
}

// Touch records a hook invocation.
func (m *Markers) Touch(t time.Time) error {
	return m.writeEpoch(m.paths.Heartbeat(), t)
}

// ReadHeartbeat returns the last recorded hook invocation, if any.
func (m *Markers) ReadHeartbeat() (time.Time, bool) {
	return readEpoch(m.paths.Heartbeat())
}

func (m *Markers) writeEpoch(path string, t time.Time) error {
	if err := m.paths.EnsureClaudeDir(); err != nil {
		return err
	}
	data := []byte(strconv.FormatInt(t.Unix(), 10) + "\n")
	if err := config.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("loopstate: write %s: %w", path, err)
	}
	return nil
}

func readEpoch(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}
