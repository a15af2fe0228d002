package lowering

import (
	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// IDOpLowering lowers a topology query (partition or replica id) to a
// runtime call taking no operands and returning one i32. Uses of the
// query's result are redirected to the call's result.
type IDOpLowering struct {
	root   ir.OpName
	target string
	decls  *customcall.Declarations
}

// NewIDOpLowering creates a lowering of root to target.
func NewIDOpLowering(root ir.OpName, target string, decls *customcall.Declarations) *IDOpLowering {
	return &IDOpLowering{root: root, target: target, decls: decls}
}

func (p *IDOpLowering) Name() string    { return string(p.root) + "-lowering" }
func (p *IDOpLowering) Root() ir.OpName { return p.root }

func (p *IDOpLowering) MatchAndRewrite(op *ir.Op, rw *rewrite.Rewriter) (bool, error) {
	callee := p.decls.GetOrCreate(p.target, nil, []ir.Type{ir.I32})
	if _, err := rw.ReplaceOpWithCall(op, callee, nil); err != nil {
		return false, err
	}
	return true, nil
}
