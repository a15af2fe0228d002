package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cpurt/internal/compiler"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/lowering"
	"github.com/roach88/cpurt/internal/rewrite"
	"github.com/roach88/cpurt/internal/store"
	"github.com/roach88/cpurt/internal/testutil"
)

// Harness lowers scenario modules with a deterministic clock and run ID,
// recording every run in its store.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory run log. A returned error
// means the scenario could not be executed at all (unreadable module,
// store failure); lowering failures and failed assertions are reported in
// the Result.
func Run(scenario *Scenario) (*Result, error) {
	m, err := compiler.Load(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: rewrite.DiscardLogger(),
	}

	ctx := context.Background()
	result := NewResult()

	rec := store.NewRecorder()
	res, lowerErr := h.lower(ctx, scenario, m, rec)
	if err := h.record(ctx, m.Name, res, lowerErr, rec); err != nil {
		return nil, err
	}

	if res.Result != nil {
		result.RunID = res.RunID
	}
	result.Declarations = append(result.Declarations, res.Declarations...)
	for _, ev := range rec.Events() {
		result.AddTrace(ev)
	}
	result.ErrorCode = lowering.ErrorCodeOf(lowerErr)

	switch {
	case lowerErr != nil && scenario.ExpectError == "":
		result.AddError(fmt.Sprintf("lowering failed: %v", lowerErr))
	case lowerErr != nil && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected error %s, got %s: %v", scenario.ExpectError, result.ErrorCode, lowerErr))
	case lowerErr == nil && scenario.ExpectError != "":
		result.AddError(fmt.Sprintf("expected error %s, lowering succeeded", scenario.ExpectError))
	}

	if scenario.RunTwice && lowerErr == nil {
		h.checkIdempotent(ctx, scenario, m, res, result)
	}

	result.Output = ir.Print(m)

	actx := &AssertionContext{
		Store:  st,
		Ctx:    ctx,
		Module: m,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"run_id", result.RunID,
		"rewrites", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) lower(ctx context.Context, scenario *Scenario, m *ir.Module, l rewrite.Listener) (*lowering.Result, error) {
	opts := []rewrite.Option{
		rewrite.WithClock(h.clock),
		rewrite.WithRunIDGenerator(h.runIDs),
		rewrite.WithLogger(h.logger),
		rewrite.WithListener(l),
	}
	if scenario.MaxIterations > 0 {
		opts = append(opts, rewrite.WithMaxIterations(scenario.MaxIterations))
	}
	return lowering.Run(ctx, m,
		lowering.WithVerify(scenario.Verify),
		lowering.WithRewriteOptions(opts...),
	)
}

// record writes the run to the harness store. Runs stopped by input
// verification have no run ID and are not recorded.
func (h *Harness) record(ctx context.Context, module string, res *lowering.Result, lowerErr error, rec *store.Recorder) error {
	run, decls, ok := store.RunRecord(module, res, lowerErr, h.clock.Next())
	if !ok {
		return nil
	}
	if err := h.store.RecordRun(ctx, run, rec.Events(), decls); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// checkIdempotent lowers the already-lowered module again. Nothing may
// match, so the module and its fingerprint must not change.
func (h *Harness) checkIdempotent(ctx context.Context, scenario *Scenario, m *ir.Module, first *lowering.Result, result *Result) {
	rec := store.NewRecorder()
	again, err := h.lower(ctx, scenario, m, rec)
	if err != nil {
		result.AddError(fmt.Sprintf("second lowering failed: %v", err))
		return
	}
	if n := len(rec.Events()); n != 0 {
		result.AddError(fmt.Sprintf("second lowering applied %d rewrites, want 0", n))
	}
	if again.OutputFingerprint != first.OutputFingerprint {
		result.AddError("second lowering changed the module fingerprint")
	}
}
