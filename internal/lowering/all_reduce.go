package lowering

import (
	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// Default attributes of the all-reduce call. Same-named attributes of the
// original op override them.
const (
	AttrUseGlobalDeviceIDs = "use_global_device_ids"
	AttrOpID               = "op_id"
)

// AllReduceLowering lowers xla_cpu.all_reduce to xla.cpu.all_reduce.
//
// The runtime only accepts buffers in the canonical layout. Every operand
// with a strided layout is copied into a freshly allocated canonical
// buffer first, and the call receives the copy. Ops whose first operand is
// not a buffer are declined.
type AllReduceLowering struct {
	decls *customcall.Declarations
}

// NewAllReduceLowering creates the pattern.
func NewAllReduceLowering(decls *customcall.Declarations) *AllReduceLowering {
	return &AllReduceLowering{decls: decls}
}

func (p *AllReduceLowering) Name() string    { return "all-reduce-lowering" }
func (p *AllReduceLowering) Root() ir.OpName { return ir.OpAllReduce }

func (p *AllReduceLowering) MatchAndRewrite(op *ir.Op, rw *rewrite.Rewriter) (bool, error) {
	if op.NumOperands() == 0 || !ir.IsBuffer(op.Operand(0).Type()) {
		return false, nil
	}

	defer rw.InsertionGuard()()
	rw.SetInsertionPoint(op)

	operands := make([]*ir.Value, 0, op.NumOperands())
	for _, operand := range op.Operands() {
		operands = append(operands, normalizeLayout(operand, rw))
	}

	callee := p.decls.GetOrCreate(TargetAllReduce, ir.ValueTypes(operands), nil)
	call := rw.CreateCall(callee.Name, operands, nil)

	call.SetAttr(AttrUseGlobalDeviceIDs, ir.IRInt32(0))
	call.SetAttr(AttrOpID, ir.IRInt(0))
	customcall.AppendAttrs(call, op.Attrs)

	if err := rw.EraseOp(op); err != nil {
		return false, err
	}
	return true, nil
}

// normalizeLayout returns v when it already has the canonical layout,
// otherwise a canonical copy of it created at the insertion point.
func normalizeLayout(v *ir.Value, rw *rewrite.Rewriter) *ir.Value {
	buf, ok := v.Type().(ir.BufferType)
	if !ok || buf.Layout.IsIdentity() {
		return v
	}
	alloc := rw.Create(ir.OpAlloc, nil, []ir.Type{buf.Canonical()}, nil).Result(0)
	rw.Create(ir.OpCopy, []*ir.Value{v, alloc}, nil, nil)
	return alloc
}
