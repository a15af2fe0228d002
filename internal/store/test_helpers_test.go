package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a successful run with minimal required fields.
func createTestRun(id string, seq int64) Run {
	return Run{
		ID:                id,
		Module:            "m",
		InputFingerprint:  "in-" + id,
		OutputFingerprint: "out-" + id,
		Status:            StatusOK,
		Rewrites:          2,
		Iterations:        2,
		Seq:               seq,
		ToolVersion:       ir.ToolVersion,
		IRVersion:         ir.IRVersion,
	}
}

// createTestEvent creates a rewrite event for a runtime call.
func createTestEvent(runID string, seq int64, target string) rewrite.Event {
	return rewrite.Event{
		RunID:   runID,
		Seq:     seq,
		Pattern: "test-pattern",
		Op:      "lmhlo.infeed",
		Func:    "main",
		Target:  target,
		Attrs:   ir.IRObject{},
	}
}
