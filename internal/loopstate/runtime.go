package loopstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/terrylica/ralph-universal/internal/config"
)

// ErrRuntimeNotFound is returned when no runtime record exists yet.
var ErrRuntimeNotFound = errors.New("loopstate: runtime record not found")

// Runtime holds the per-run counters kept in .claude/ru-state.json.
type Runtime struct {
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	Iteration   int       `json:"iteration"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastVerdict string    `json:"last_verdict,omitempty"`
	StopReason  string    `json:"stop_reason,omitempty"`
}

// RuntimeStore persists runtime records.
type RuntimeStore interface {
	Load() (Runtime, error)
	Save(Runtime) error
}

// FileRuntime stores the runtime record in the project's state file.
type FileRuntime struct {
	path string
}

// NewFileRuntime creates a store at paths.StateFile().
func NewFileRuntime(paths config.Paths) *FileRuntime {
	return &FileRuntime{path: paths.StateFile()}
}

// Load reads the record.
func (r *FileRuntime) Load() (Runtime, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, ErrRuntimeNotFound
		}
		return Runtime{}, fmt.Errorf("loopstate: read %s: %w", r.path, err)
	}
	var rt Runtime
	if err := json.Unmarshal(data, &rt); err != nil {
		return Runtime{}, fmt.Errorf("loopstate: parse %s: %w", r.path, err)
	}
	return rt, nil
}

// Save writes the record atomically.
func (r *FileRuntime) Save(rt Runtime) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(rt, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(r.path, append(encoded, '\n'), 0o644)
}

// MemoryRuntime is an in-memory RuntimeStore for tests.
type MemoryRuntime struct {
	mu sync.Mutex
	rt *Runtime
}

// Load implements RuntimeStore.
func (m *MemoryRuntime) Load() (Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rt == nil {
		return Runtime{}, ErrRuntimeNotFound
	}
	return *m.rt, nil
}

// Save implements RuntimeStore.
func (m *MemoryRuntime) Save(rt Runtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rt = &rt
	return nil
}
