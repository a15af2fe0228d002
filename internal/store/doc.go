// Package store persists lowering runs in SQLite.
//
// Each run of the lowering pass is recorded with:
//   - Runs: module name, fingerprints, outcome and counters
//   - Rewrites: one row per applied pattern, keyed by (run_id, seq)
//   - Declarations: runtime entry points present after the run
//
// Writes are idempotent (ON CONFLICT DO NOTHING), so re-recording a run
// with the same ID is a no-op. All reads order by the logical seq and
// then by id with binary collation, which keeps trace output identical
// across machines.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
