package harness

import (
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/lowering"
	"github.com/roach88/cpurt/internal/rewrite"
)

// TraceEvent is one applied rewrite.
type TraceEvent struct {
	Seq     int64       `json:"seq"`
	Pattern string      `json:"pattern"`
	Op      string      `json:"op"`
	Func    string      `json:"func"`
	Target  string      `json:"target,omitempty"`
	Attrs   ir.IRObject `json:"attrs"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when lowering behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// Trace contains the rewrites of the first lowering, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Declarations lists the runtime entry points after lowering.
	Declarations []lowering.Declaration `json:"declarations"`

	// Output is the printed module after lowering.
	Output string `json:"output"`

	// ErrorCode classifies a lowering failure; empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Declarations: []lowering.Declaration{},
		Errors:       []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a rewrite event to the trace.
func (r *Result) AddTrace(ev rewrite.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     ev.Seq,
		Pattern: ev.Pattern,
		Op:      ev.Op,
		Func:    ev.Func,
		Target:  ev.Target,
		Attrs:   ev.Attrs,
	})
}
