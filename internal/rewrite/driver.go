package rewrite

import (
	"context"
	"io"
	"log/slog"
	"maps"

	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
)

const (
	// DefaultMaxIterations bounds the number of sweeps over the module.
	// A run that rewrites anything needs at least two: one to rewrite and
	// one to observe that nothing matches any more.
	DefaultMaxIterations = 10

	// DefaultMaxRewrites bounds the number of rewrites in one run.
	DefaultMaxRewrites = 100000
)

// Option configures ApplyGreedily.
type Option func(*config)

type config struct {
	maxIterations int
	maxRewrites   int
	logger        *slog.Logger
	listener      Listener
	runIDs        RunIDGenerator
	clock         Sequencer
}

// WithMaxIterations sets the sweep limit.
//
// Default: 10 (DefaultMaxIterations).
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithMaxRewrites sets the rewrite quota for one run. A value <= 0
// disables the quota.
//
// Default: 100000 (DefaultMaxRewrites).
func WithMaxRewrites(n int) Option {
	return func(c *config) {
		c.maxRewrites = n
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithListener registers a listener notified after every rewrite.
func WithListener(l Listener) Option {
	return func(c *config) {
		c.listener = l
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *config) {
		c.runIDs = g
	}
}

// WithClock sets the logical clock stamping rewrites. Sharing a clock
// across runs keeps sequence numbers increasing across them.
func WithClock(clk Sequencer) Option {
	return func(c *config) {
		c.clock = clk
	}
}

// DiscardLogger returns a logger that drops everything. Used by tests and
// the conformance harness.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Result summarizes a run.
type Result struct {
	RunID      string `json:"run_id"`
	Rewrites   int    `json:"rewrites"`
	Iterations int    `json:"iterations"`
	Changed    bool   `json:"changed"`
	LastSeq    int64  `json:"last_seq"`
}

// ApplyGreedily applies the patterns in set to m until no pattern matches
// any op.
//
// Returns a *RewriteError when the run does not converge, exceeds its
// quota, trips the cycle guard or a pattern fails, and ctx.Err() when the
// context is cancelled between rewrites. The Result is non-nil in every
// case and reports what happened before the failure.
func ApplyGreedily(ctx context.Context, m *ir.Module, set *PatternSet, opts ...Option) (*Result, error) {
	cfg := config{
		maxIterations: DefaultMaxIterations,
		maxRewrites:   DefaultMaxRewrites,
		logger:        slog.Default(),
		runIDs:        UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}

	d := &driver{
		cfg:    cfg,
		set:    set,
		runID:  cfg.runIDs.Generate(),
		quota:  NewQuotaEnforcer(cfg.maxRewrites),
		cycles: NewCycleDetector(),
	}
	d.log = cfg.logger.With("run_id", d.runID, "module", m.Name)
	d.rw = newRewriter(func(op *ir.Op) {
		if d.wl != nil {
			d.wl.Push(op)
		}
	})
	res := &Result{RunID: d.runID}

	d.log.Info("rewrite starting", "patterns", set.Len(), "max_iterations", cfg.maxIterations)

	for iter := 1; ; iter++ {
		if iter > cfg.maxIterations {
			err := newConvergenceError(d.runID, cfg.maxIterations)
			d.log.Error("rewrite did not converge", "iterations", cfg.maxIterations, "rewrites", res.Rewrites)
			return res, err
		}
		res.Iterations = iter

		changed, err := d.sweep(ctx, m, res)
		res.LastSeq = cfg.clock.Current()
		if err != nil {
			d.log.Error("rewrite failed", "error", err, "rewrites", res.Rewrites)
			return res, err
		}
		if !changed {
			break
		}
		res.Changed = true
	}

	d.log.Info("rewrite finished",
		"rewrites", res.Rewrites,
		"iterations", res.Iterations,
		"changed", res.Changed,
	)
	return res, nil
}

type driver struct {
	cfg    config
	set    *PatternSet
	runID  string
	log    *slog.Logger
	rw     *Rewriter
	wl     *worklist
	quota  *QuotaEnforcer
	cycles *CycleDetector
}

// sweep visits every op of the module, plus every op created during the
// sweep, once. Ops modified in place are revisited by the next sweep.
func (d *driver) sweep(ctx context.Context, m *ir.Module, res *Result) (bool, error) {
	d.wl = newWorklist()
	defer func() { d.wl = nil }()
	m.Walk(d.wl.Push)

	changed := false
	for op := d.wl.Pop(); op != nil; op = d.wl.Pop() {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		if op.IsErased() || op.Block() == nil {
			continue
		}
		ok, err := d.apply(op)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = true
			res.Rewrites++
		}
	}
	return changed, nil
}

// apply tries the patterns registered for op's kind until one accepts.
func (d *driver) apply(op *ir.Op) (bool, error) {
	for _, p := range d.set.ForOp(op.Name) {
		kind := string(op.Name)
		if d.cycles.WouldCycle(op, p.Name()) {
			return false, NewCycleError(d.runID, p.Name(), kind)
		}

		var funcName string
		if f := op.ParentFunc(); f != nil {
			funcName = f.Name
		}

		d.rw.reset()
		ok, err := p.MatchAndRewrite(op, d.rw)
		if err != nil {
			return false, newPatternError(d.runID, p.Name(), kind, err)
		}
		if !ok {
			continue
		}
		if err := d.quota.Check(d.runID); err != nil {
			return false, err
		}

		created := d.rw.Created()
		d.cycles.Record(op, created, p.Name())

		call := firstCustomCall(created)
		ev := Event{
			RunID:   d.runID,
			Seq:     d.cfg.clock.Next(),
			Pattern: p.Name(),
			Op:      kind,
			Func:    funcName,
		}
		if call != nil {
			ev.Target = customcall.TargetOf(call)
			ev.Attrs = maps.Clone(call.Attrs)
		}
		d.log.Debug("rewrite applied",
			"seq", ev.Seq,
			"pattern", ev.Pattern,
			"op", ev.Op,
			"func", ev.Func,
			"target", ev.Target,
		)
		if d.cfg.listener != nil {
			d.cfg.listener.OnRewrite(ev)
		}
		return true, nil
	}
	return false, nil
}

// firstCustomCall returns the first created call to a runtime target.
func firstCustomCall(created []*ir.Op) *ir.Op {
	for _, op := range created {
		if customcall.TargetOf(op) != "" {
			return op
		}
	}
	return nil
}
