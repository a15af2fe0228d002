package lowering

import (
	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// XfeedLowering lowers lmhlo.infeed and lmhlo.outfeed. The operands are
// passed through unchanged to a target with no results.
type XfeedLowering struct {
	root   ir.OpName
	target string
	decls  *customcall.Declarations
}

// NewInfeedLowering lowers lmhlo.infeed to xla.cpu.infeed.
func NewInfeedLowering(decls *customcall.Declarations) *XfeedLowering {
	return &XfeedLowering{root: ir.OpInfeed, target: TargetInfeed, decls: decls}
}

// NewOutfeedLowering lowers lmhlo.outfeed to xla.cpu.outfeed.
func NewOutfeedLowering(decls *customcall.Declarations) *XfeedLowering {
	return &XfeedLowering{root: ir.OpOutfeed, target: TargetOutfeed, decls: decls}
}

func (p *XfeedLowering) Name() string    { return string(p.root) + "-lowering" }
func (p *XfeedLowering) Root() ir.OpName { return p.root }

func (p *XfeedLowering) MatchAndRewrite(op *ir.Op, rw *rewrite.Rewriter) (bool, error) {
	operands := op.Operands()
	callee := p.decls.GetOrCreate(p.target, ir.ValueTypes(operands), nil)
	if _, err := rw.ReplaceOpWithCall(op, callee, operands); err != nil {
		return false, err
	}
	return true, nil
}
