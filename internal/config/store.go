package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnreadable marks a config file that exists but could not be read, as
// opposed to one that is missing or malformed.
var ErrUnreadable = errors.New("config: file unreadable")

// ParseError reports a config file that could not be decoded or failed schema
// validation. Stores recover from it by substituting defaults.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Source identifies where a loaded config came from.
type Source string

const (
	SourceProject  Source = "project"
	SourceGlobal   Source = "global"
	SourceDefaults Source = "defaults"
)

// Loaded is the result of a load. Config is always usable; Err is set when the
// file was unreadable or malformed and defaults were substituted.
type Loaded struct {
	Config LoopConfig
	Path   string
	Source Source
	Err    error
}

// Degraded reports whether defaults replaced an unusable file.
func (l Loaded) Degraded() bool {
	return l.Err != nil
}

// Store loads and saves the loop config. Load never fails.
type Store interface {
	Load() Loaded
	Save(LoopConfig) error
}

// ResolvePath prefers the project config, then the global defaults file, and
// otherwise reports SourceDefaults with the project path as the save target.
func ResolvePath(paths Paths) (string, Source) {
	project := paths.ConfigFile()
	if _, err := os.Stat(project); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return project, SourceProject
	}
	if global := paths.GlobalDefaults(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return global, SourceGlobal
		}
	}
	return project, SourceDefaults
}

// FileStore reads and writes the config on disk.
type FileStore struct {
	paths Paths
	log   zerolog.Logger
}

// NewFileStore creates a store for paths. Warnings go to log.
func NewFileStore(paths Paths, log zerolog.Logger) *FileStore {
	return &FileStore{paths: paths, log: log}
}

// Paths returns the locations this store works against.
func (s *FileStore) Paths() Paths {
	return s.paths
}

// Load resolves and parses the config. Bad files produce a warning and
// defaults, never an error return.
func (s *FileStore) Load() Loaded {
	path, source := ResolvePath(s.paths)
	if source == SourceDefaults {
		return Loaded{Config: Default(), Path: path, Source: source}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Loaded{Config: Default(), Path: s.paths.ConfigFile(), Source: SourceDefaults}
		}
		s.log.Warn().Err(err).Str("path", path).Msg("config unreadable, using defaults")
		return Loaded{
			Config: Default(),
			Path:   path,
			Source: source,
			Err:    fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err),
		}
	}
	cfg, err := Decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("config invalid, using defaults")
		return Loaded{Config: Default(), Path: path, Source: source, Err: &ParseError{Path: path, Cause: err}}
	}
	if source == SourceGlobal {
		// The global file only seeds defaults; it never carries a live run.
		cfg.State = StateStopped
	}
	return Loaded{Config: cfg, Path: path, Source: source}
}

// Save validates cfg and writes it atomically to the project config path.
func (s *FileStore) Save(cfg LoopConfig) error {
	data, err := Encode(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := s.paths.EnsureClaudeDir(); err != nil {
		return err
	}
	if err := WriteFileAtomic(s.paths.ConfigFile(), data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", s.paths.ConfigFile(), err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	success = true
	return nil
}

// MemoryStore keeps the config in memory. Tests use it in place of FileStore.
type MemoryStore struct {
	mu      sync.Mutex
	cfg     *LoopConfig
	loadErr error
	saves   int
}

// NewMemoryStore returns a store seeded with cfg, or empty when cfg is nil.
func NewMemoryStore(cfg *LoopConfig) *MemoryStore {
	s := &MemoryStore{}
	if cfg != nil {
		c := cfg.Clone()
		s.cfg = &c
	}
	return s
}

// FailLoads makes subsequent loads report err with defaults, simulating a
// corrupt or unreadable file.
func (s *MemoryStore) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Load implements Store.
func (s *MemoryStore) Load() Loaded {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Loaded{Config: Default(), Source: SourceProject, Err: s.loadErr}
	}
	if s.cfg == nil {
		return Loaded{Config: Default(), Source: SourceDefaults}
	}
	return Loaded{Config: s.cfg.Clone(), Source: SourceProject}
}

// Save implements Store.
func (s *MemoryStore) Save(cfg LoopConfig) error {
	data, err := Encode(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &decoded
	s.loadErr = nil
	s.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
