package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ClaudeDir is the per-project (and per-user) directory holding loop files.
	ClaudeDir = ".claude"

	ConfigFileName         = "ru-config.json"
	StateFileName          = "ru-state.json"
	GlobalDefaultsFileName = "ralph-defaults.json"
	KillSwitchFileName     = "STOP_LOOP"
	StartMarkerFileName    = "ru-start-timestamp"
	HeartbeatFileName      = "ru-heartbeat"
	DoneMarkerFileName     = "LOOP_COMPLETE"
	LogFileName            = "ru-loop.log"
	JournalFileName        = "ru-journal.log"
	ArchiveDirName         = "ru-archive"
)

// Project-relative forms used in protected_files.
var (
	RelConfigFile = ClaudeDir + "/" + ConfigFileName
	RelStateFile  = ClaudeDir + "/" + StateFileName
)

// Paths resolves every on-disk location for one project. HomeDir may be empty,
// in which case no global fallback is consulted.
type Paths struct {
	ProjectDir string
	HomeDir    string
}

// NewPaths builds Paths, resolving the project directory to an absolute path.
func NewPaths(projectDir, homeDir string) Paths {
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}
	return Paths{ProjectDir: projectDir, HomeDir: homeDir}
}

// ClaudeDir returns ProjectDir/.claude.
func (p Paths) ClaudeDir() string {
	return filepath.Join(p.ProjectDir, ClaudeDir)
}

// ConfigFile returns the project-level config path.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.ClaudeDir(), ConfigFileName)
}

// GlobalDefaults returns the user-global fallback path, or "" without a home.
func (p Paths) GlobalDefaults() string {
	if p.HomeDir == "" {
		return ""
	}
	return filepath.Join(p.HomeDir, ClaudeDir, GlobalDefaultsFileName)
}

// StateFile returns the runtime counters file.
func (p Paths) StateFile() string {
	return filepath.Join(p.ClaudeDir(), StateFileName)
}

// KillSwitch returns the emergency stop sentinel.
func (p Paths) KillSwitch() string {
	return filepath.Join(p.ClaudeDir(), KillSwitchFileName)
}

// StartMarker returns the file holding the run's start epoch seconds.
func (p Paths) StartMarker() string {
	return filepath.Join(p.ClaudeDir(), StartMarkerFileName)
}

// Heartbeat returns the file holding the last hook invocation epoch seconds.
func (p Paths) Heartbeat() string {
	return filepath.Join(p.ClaudeDir(), HeartbeatFileName)
}

// DoneMarker returns the file an agent creates to report completion.
func (p Paths) DoneMarker() string {
	return filepath.Join(p.ClaudeDir(), DoneMarkerFileName)
}

// LogFile returns the structured diagnostics log.
func (p Paths) LogFile() string {
	return filepath.Join(p.ClaudeDir(), LogFileName)
}

// JournalFile returns the human-readable loop journal.
func (p Paths) JournalFile() string {
	return filepath.Join(p.ClaudeDir(), JournalFileName)
}

// ArchiveDir returns the directory holding finished session records.
func (p Paths) ArchiveDir() string {
	return filepath.Join(p.ClaudeDir(), ArchiveDirName)
}

// EnsureClaudeDir creates ProjectDir/.claude if needed.
func (p Paths) EnsureClaudeDir() error {
	if err := os.MkdirAll(p.ClaudeDir(), 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", ClaudeDir, err)
	}
	return nil
}
