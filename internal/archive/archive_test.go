package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrylica/ralph-universal/internal/config"
	"github.com/terrylica/ralph-universal/internal/loopstate"
)

func TestFinalizeWritesYAMLRecord(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), "")
	w := NewWriter(paths)
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rec := loopstate.Record{
		SessionID:  "5f0c",
		Mode:       "trial",
		From:       config.StateDraining,
		Reason:     "task reported complete",
		StartedAt:  started,
		StoppedAt:  started.Add(7 * time.Minute),
		Iterations: 12,
		TargetFile: "PLAN.md",
		Guidance:   config.Guidance{Forbidden: config.StringList{"no new deps"}, Encouraged: config.StringList{}},
	}

	require.NoError(t, w.Finalize(rec))

	path := filepath.Join(paths.ArchiveDir(), "20260501T090700Z-5f0c.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_id: 5f0c")
	assert.Contains(t, string(data), "final_transition_from: draining")
	assert.Contains(t, string(data), "iterations: 12")
	assert.Contains(t, string(data), "- no new deps")

	records, err := w.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.Reason, records[0].Reason)
	assert.True(t, rec.StoppedAt.Equal(records[0].StoppedAt))
}

func TestListWithoutArchive(t *testing.T) {
	w := &Writer{Dir: filepath.Join(t.TempDir(), "missing")}
	records, err := w.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileNameWithoutSession(t *testing.T) {
	name := FileName(loopstate.Record{StoppedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	assert.Equal(t, "20260102T030405Z-unknown.yaml", name)
}
