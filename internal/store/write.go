package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// WriteRun inserts a run summary.
// Uses ON CONFLICT(id) DO NOTHING; rewriting a known run ID is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	return s.inTx(ctx, "write run", func(tx *sql.Tx) error {
		return writeRun(ctx, tx, run)
	})
}

// WriteRewrites inserts rewrite events in one transaction. Call
// attributes are stored as canonical JSON.
//
// The run referenced by each event must exist (foreign key constraint).
func (s *Store) WriteRewrites(ctx context.Context, events []rewrite.Event) error {
	return s.inTx(ctx, "write rewrites", func(tx *sql.Tx) error {
		return writeRewrites(ctx, tx, events)
	})
}

// WriteDeclarations inserts the declarations of a run, preserving order.
func (s *Store) WriteDeclarations(ctx context.Context, decls []Declaration) error {
	return s.inTx(ctx, "write declarations", func(tx *sql.Tx) error {
		return writeDeclarations(ctx, tx, decls)
	})
}

// RecordRun writes a run and everything it produced in one transaction.
// On error nothing is persisted.
func (s *Store) RecordRun(ctx context.Context, run Run, events []rewrite.Event, decls []Declaration) error {
	return s.inTx(ctx, "record run "+run.ID, func(tx *sql.Tx) error {
		if err := writeRun(ctx, tx, run); err != nil {
			return err
		}
		if err := writeRewrites(ctx, tx, events); err != nil {
			return fmt.Errorf("rewrites: %w", err)
		}
		if err := writeDeclarations(ctx, tx, decls); err != nil {
			return fmt.Errorf("declarations: %w", err)
		}
		return nil
	})
}

func writeRun(ctx context.Context, tx *sql.Tx, run Run) error {
	if run.Status != StatusOK && run.Status != StatusFailed {
		return fmt.Errorf("invalid status %q", run.Status)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, module, input_fingerprint, output_fingerprint, status, error_code, error,
		 rewrites, iterations, seq, tool_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Module,
		run.InputFingerprint,
		run.OutputFingerprint,
		run.Status,
		run.ErrorCode,
		run.Error,
		run.Rewrites,
		run.Iterations,
		run.Seq,
		run.ToolVersion,
		run.IRVersion,
	)
	return err
}

func writeRewrites(ctx context.Context, tx *sql.Tx, events []rewrite.Event) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rewrites (run_id, seq, pattern, op, func, target, attrs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		attrs, err := marshalAttrs(ev.Attrs)
		if err != nil {
			return fmt.Errorf("seq %d: %w", ev.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx, ev.RunID, ev.Seq, ev.Pattern, ev.Op, ev.Func, ev.Target, attrs); err != nil {
			return fmt.Errorf("seq %d: %w", ev.Seq, err)
		}
	}
	return nil
}

func writeDeclarations(ctx context.Context, tx *sql.Tx, decls []Declaration) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO declarations (run_id, ordinal, symbol, target, signature)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, target) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range decls {
		if _, err := stmt.ExecContext(ctx, d.RunID, i, d.Symbol, d.Target, d.Signature); err != nil {
			return fmt.Errorf("declaration %s: %w", d.Target, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, what string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", what, err)
	}
	return nil
}

// marshalAttrs converts call attributes to canonical JSON TEXT.
// Unit attributes are recorded as true.
func marshalAttrs(attrs ir.IRObject) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(ir.CanonicalAttrs(attrs))
	if err != nil {
		return "", fmt.Errorf("marshal attrs: %w", err)
	}
	return string(data), nil
}
