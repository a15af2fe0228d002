package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by ReadRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, module, input_fingerprint, output_fingerprint, status, error_code, error,
	rewrites, iterations, seq, tool_version, ir_version`

// ReadRuns returns every recorded run, ordered by seq ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// ReadRewrites returns the rewrites of a run in seq order. A non-empty
// target restricts the result to calls of that runtime target.
func (s *Store) ReadRewrites(ctx context.Context, runID, target string) ([]Rewrite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, pattern, op, func, target, attrs
		FROM rewrites
		WHERE run_id = ? AND (? = '' OR target = ?)
		ORDER BY seq ASC, run_id COLLATE BINARY ASC
	`, runID, target, target)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rows.Close()

	out := []Rewrite{}
	for rows.Next() {
		var rw Rewrite
		if err := rows.Scan(&rw.RunID, &rw.Seq, &rw.Pattern, &rw.Op, &rw.Func, &rw.Target, &rw.Attrs); err != nil {
			return nil, fmt.Errorf("scan rewrite: %w", err)
		}
		out = append(out, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrites: %w", err)
	}
	return out, nil
}

// ReadDeclarations returns the declarations of a run in module order.
func (s *Store) ReadDeclarations(ctx context.Context, runID string) ([]Declaration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, symbol, target, signature
		FROM declarations
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query declarations: %w", err)
	}
	defer rows.Close()

	out := []Declaration{}
	for rows.Next() {
		var d Declaration
		if err := rows.Scan(&d.RunID, &d.Symbol, &d.Target, &d.Signature); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate declarations: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest seq recorded by any run or rewrite, or 0.
// Callers continue the logical clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM runs), 0),
			COALESCE((SELECT MAX(seq) FROM rewrites), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID,
		&r.Module,
		&r.InputFingerprint,
		&r.OutputFingerprint,
		&r.Status,
		&r.ErrorCode,
		&r.Error,
		&r.Rewrites,
		&r.Iterations,
		&r.Seq,
		&r.ToolVersion,
		&r.IRVersion,
	)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}
