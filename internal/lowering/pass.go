package lowering

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cpurt/internal/compiler"
	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// Option configures Run.
type Option func(*options)

type options struct {
	verify      bool
	rewriteOpts []rewrite.Option
}

// WithVerify runs structural validation on the module before and after
// lowering. The rewrite itself never validates its input.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithRewriteOptions passes options through to the rewrite driver
// (logger, listener, limits, run IDs).
func WithRewriteOptions(opts ...rewrite.Option) Option {
	return func(o *options) {
		o.rewriteOpts = append(o.rewriteOpts, opts...)
	}
}

// Declaration describes a runtime entry point present after lowering.
type Declaration struct {
	Symbol    string `json:"symbol"`
	Target    string `json:"target"`
	Signature string `json:"signature"`
}

// Result reports one run of the pass.
type Result struct {
	*rewrite.Result

	InputFingerprint  string        `json:"input_fingerprint"`
	OutputFingerprint string        `json:"output_fingerprint"`
	Declarations      []Declaration `json:"declarations"`
}

// VerifyError reports structural errors found by WithVerify.
type VerifyError struct {
	Stage  string // "input" or "output"
	Errors []compiler.ValidationError
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%s module failed verification: %s", e.Stage, strings.Join(msgs, "; "))
}

// ErrCodeVerifyFailed is reported by ErrorCodeOf for a *VerifyError.
const ErrCodeVerifyFailed = "VERIFY_FAILED"

// ErrorCodeOf classifies an error returned by Run: the rewrite error code,
// ErrCodeVerifyFailed, "CANCELLED" for context errors, or "ERROR".
// Returns "" for a nil error.
func ErrorCodeOf(err error) string {
	if err == nil {
		return ""
	}
	if code := rewrite.CodeOf(err); code != "" {
		return string(code)
	}
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ErrCodeVerifyFailed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return "ERROR"
}

// Patterns returns the six lowering patterns sharing decls.
func Patterns(decls *customcall.Declarations) *rewrite.PatternSet {
	return rewrite.NewPatternSet(
		NewInfeedLowering(decls),
		NewOutfeedLowering(decls),
		NewCustomCallLowering(decls),
		NewAllReduceLowering(decls),
		NewIDOpLowering(ir.OpPartitionID, TargetPartitionID, decls),
		NewIDOpLowering(ir.OpReplicaID, TargetReplicaID, decls),
	)
}

// Run lowers every supported op in m to runtime calls, in place.
//
// Any error fails the whole stage; m may have been partially rewritten
// and must be discarded.
func Run(ctx context.Context, m *ir.Module, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{InputFingerprint: ir.Fingerprint(m)}
	if o.verify {
		if errs := compiler.ValidateModule(m); len(errs) > 0 {
			return res, &VerifyError{Stage: "input", Errors: errs}
		}
	}

	decls := customcall.NewDeclarations(m)
	rr, err := rewrite.ApplyGreedily(ctx, m, Patterns(decls), o.rewriteOpts...)
	res.Result = rr
	res.OutputFingerprint = ir.Fingerprint(m)
	res.Declarations = declarationsOf(decls)
	if err != nil {
		return res, fmt.Errorf("lower module @%s: %w", m.Name, err)
	}

	if o.verify {
		if errs := compiler.ValidateModule(m); len(errs) > 0 {
			return res, &VerifyError{Stage: "output", Errors: errs}
		}
	}
	return res, nil
}

func declarationsOf(decls *customcall.Declarations) []Declaration {
	var out []Declaration
	for _, target := range decls.Targets() {
		f, _ := decls.Lookup(target)
		out = append(out, Declaration{
			Symbol:    f.Name,
			Target:    target,
			Signature: ir.FormatSignature(f.Params, f.Results),
		})
	}
	return out
}
