// Package rewrite applies pattern-based rewrites to an ir.Module until no
// pattern matches any remaining op.
//
// # Model
//
// A Pattern declares the single op kind it accepts (Root) and either
// rewrites a matching op or declines. Patterns are grouped in a PatternSet,
// keyed by op kind; for each op the driver tries the patterns registered
// for its kind in registration order until one accepts.
//
// # Driver
//
// ApplyGreedily seeds a worklist with every op in module order. Ops created
// by a successful rewrite are pushed onto the worklist so later patterns can
// see them. A sweep that performs no rewrite ends the run; if the sweep
// limit (WithMaxIterations) is reached while rewrites still happen the run
// fails with NOT_CONVERGED.
//
// Termination is guarded twice:
//   - Cycle guard: a pattern may not fire on an op that it (transitively)
//     produced, which catches A -> B -> A style loops
//   - Rewrite quota: the total number of rewrites per run is bounded
//     (WithMaxRewrites), which catches long linear chains
//
// A pattern returning an error aborts the run with PATTERN_FAILED. No
// partial-success state is reported: callers treat any error as a failed
// stage.
//
// # Ordering
//
// Every rewrite is stamped with a strictly increasing sequence number from
// a logical clock and reported to the optional Listener. The relative order
// of independent rewrites is deterministic for a given module but patterns
// must not depend on it.
package rewrite
