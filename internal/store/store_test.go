package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/queryir"
	"github.com/roach88/cpurt/internal/rewrite"
)

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpurt.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i, err)
		}
		if i == 0 {
			if err := s.RecordRun(context.Background(), createTestRun("run-1", 1), nil, nil); err != nil {
				t.Fatalf("RecordRun() failed: %v", err)
			}
		}
		s.Close()
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	runs, err := s.ReadRuns(context.Background())
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("runs after reopen = %+v, want run-1 only", runs)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/cpurt.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_InMemoryIsPrivate(t *testing.T) {
	ctx := context.Background()

	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer a.Close()
	b, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close()

	if err := a.RecordRun(ctx, createTestRun("run-1", 1), nil, nil); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	runs, err := b.ReadRuns(ctx)
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("second in-memory log sees %d runs", len(runs))
	}
}

func TestClose(t *testing.T) {
	if err := (&Store{}).Close(); err != nil {
		t.Errorf("Close() on nil db: %v", err)
	}

	s := createTestStore(t)
	if err := s.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	_ = s.Close()
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range pragmas {
		t.Run(p.name, func(t *testing.T) {
			var got string
			if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
				t.Fatalf("query %s: %v", p.name, err)
			}
			if got != p.want {
				t.Errorf("%s = %q, want %q", p.name, got, p.want)
			}
		})
	}
}

// The queryable table description must follow schema.sql.
func TestSchema_MatchesQueryTables(t *testing.T) {
	s := createTestStore(t)

	for name, table := range queryir.Tables {
		t.Run(name, func(t *testing.T) {
			columns := getTableColumns(t, s.db, name)
			if !slices.Equal(columns, table.Columns) {
				t.Errorf("columns = %v, want %v", columns, table.Columns)
			}
		})
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	if indexes := getTableIndexes(t, s.db, "runs"); !slices.Contains(indexes, "idx_runs_seq") {
		t.Errorf("runs indexes = %v, want idx_runs_seq", indexes)
	}
	if indexes := getTableIndexes(t, s.db, "rewrites"); !slices.Contains(indexes, "idx_rewrites_target") {
		t.Errorf("rewrites indexes = %v, want idx_rewrites_target", indexes)
	}
}

func TestConstraints(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		sql  string
	}{
		{"unknown status", `
			INSERT INTO runs (id, module, input_fingerprint, output_fingerprint, status,
				rewrites, iterations, seq, tool_version, ir_version)
			VALUES ('r1', 'm', 'a', 'b', 'pending', 0, 1, 1, '0.1.0', '1')`},
		{"rewrite without run", `
			INSERT INTO rewrites (run_id, seq, pattern, op, func)
			VALUES ('missing', 1, 'p', 'lmhlo.infeed', 'main')`},
		{"declaration without run", `
			INSERT INTO declarations (run_id, ordinal, symbol, target, signature)
			VALUES ('missing', 0, 'xla.cpu.infeed', 'xla.cpu.infeed', '() -> ()')`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.db.Exec(tt.sql); err == nil {
				t.Error("expected constraint failure")
			}
		})
	}
}

func TestSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	events := []rewrite.Event{
		createTestEvent("run-1", 1, "xla.cpu.infeed"),
		createTestEvent("run-1", 2, "xla.cpu.outfeed"),
	}
	if err := s.RecordRun(ctx, createTestRun("run-1", 3), events, nil); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	rows, err := s.Select(ctx, queryir.Select{
		From:    "rewrites",
		Columns: []string{"seq", "target"},
		Filter:  queryir.Equals{Field: "run_id", Value: ir.IRString("run-1")},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var seq int64
		var target string
		if err := rows.Scan(&seq, &target); err != nil {
			t.Fatalf("scan: %v", err)
		}
		targets = append(targets, target)
	}
	if want := []string{"xla.cpu.infeed", "xla.cpu.outfeed"}; !slices.Equal(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}

	if _, err := s.Select(ctx, queryir.Select{From: "sqlite_master"}); !errors.Is(err, queryir.ErrInvalidQuery) {
		t.Errorf("Select(sqlite_master) error = %v, want ErrInvalidQuery", err)
	}
}

func TestMigration_Version(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpurt.db")

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i, err)
		}
		if v := userVersion(t, s.db); v != currentSchemaVersion {
			t.Errorf("open #%d: user_version = %d, want %d", i, v, currentSchemaVersion)
		}
		s.Close()
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpurt.db")

	// A v0 log: base schema, no migrations.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := db.Exec("DROP INDEX IF EXISTS idx_rewrites_target; PRAGMA user_version = 0"); err != nil {
		t.Fatalf("reset to v0: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if v := userVersion(t, s.db); v != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", v, currentSchemaVersion)
	}
	if indexes := getTableIndexes(t, s.db, "rewrites"); !slices.Contains(indexes, "idx_rewrites_target") {
		t.Errorf("rewrites indexes after migration = %v", indexes)
	}
}

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	return v
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	if err != nil {
		t.Fatalf("indexes of %s: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
