// Package archive keeps a YAML record of every finished loop session.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

const stampLayout = "20060102T150405Z"

// Writer stores session records under Dir. It is a loopstate.Finalizer.
type Writer struct {
	Dir string
}

// NewWriter archives into the project's archive directory.
func NewWriter(paths config.Paths) *Writer {
	return &Writer{Dir: paths.ArchiveDir()}
}

// Finalize writes r to <Dir>/<stopped stamp>-<session>.yaml.
func (w *Writer) Finalize(r loopstate.Record) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("archive: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("archive: encode: %w", err)
	}
	path := filepath.Join(w.Dir, FileName(r))
	if err := config.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

// FileName names the archive entry for r.
func FileName(r loopstate.Record) string {
	session := strings.TrimSpace(r.SessionID)
	if session == "" {
		session = "unknown"
	}
	return r.StoppedAt.UTC().Format(stampLayout) + "-" + session + ".yaml"
}

// List returns archived records, oldest first. Unparseable entries are
// skipped.
func (w *Writer) List() ([]loopstate.Record, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	records := make([]loopstate.Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(w.Dir, name))
		if err != nil {
			continue
		}
		var r loopstate.Record
		if err := yaml.Unmarshal(data, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
