package store

import (
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/lowering"
)

// RunRecord builds the rows describing one lowering run. ok is false when
// the run never reached the rewrite driver (input verification failed),
// in which case there is no run ID to record under.
func RunRecord(module string, res *lowering.Result, runErr error, seq int64) (run Run, decls []Declaration, ok bool) {
	if res == nil || res.Result == nil {
		return Run{}, nil, false
	}
	run = Run{
		ID:                res.RunID,
		Module:            module,
		InputFingerprint:  res.InputFingerprint,
		OutputFingerprint: res.OutputFingerprint,
		Status:            StatusOK,
		Rewrites:          res.Rewrites,
		Iterations:        res.Iterations,
		Seq:               seq,
		ToolVersion:       ir.ToolVersion,
		IRVersion:         ir.IRVersion,
	}
	if runErr != nil {
		run.Status = StatusFailed
		run.ErrorCode = lowering.ErrorCodeOf(runErr)
		run.Error = runErr.Error()
	}
	decls = make([]Declaration, len(res.Declarations))
	for i, d := range res.Declarations {
		decls[i] = Declaration{RunID: res.RunID, Symbol: d.Symbol, Target: d.Target, Signature: d.Signature}
	}
	return run, decls, true
}
