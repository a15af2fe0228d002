package rewrite

import (
	"fmt"

	"github.com/roach88/cpurt/internal/ir"
)

// Rewriter is the mutation API handed to patterns. It embeds an
// ir.Builder, so patterns create ops with Create/CreateCall at the
// insertion point, and adds helpers that replace or erase ops while
// keeping use lists consistent.
//
// Every op created through the Rewriter is reported to the driver, which
// pushes it onto the worklist.
type Rewriter struct {
	*ir.Builder

	created []*ir.Op
	erased  []*ir.Op
}

// newRewriter creates a rewriter whose builder reports created ops.
func newRewriter(onCreate func(*ir.Op)) *Rewriter {
	rw := &Rewriter{Builder: ir.NewBuilder()}
	rw.OnCreate = func(op *ir.Op) {
		rw.created = append(rw.created, op)
		if onCreate != nil {
			onCreate(op)
		}
	}
	return rw
}

// NewRewriter creates a standalone rewriter. Used to call patterns directly
// in tests and tools; the driver creates its own.
func NewRewriter() *Rewriter {
	return newRewriter(nil)
}

// ReplaceOp redirects the uses of op's results to vals and erases op.
func (rw *Rewriter) ReplaceOp(op *ir.Op, vals []*ir.Value) error {
	if err := op.ReplaceAllUsesWith(vals); err != nil {
		return err
	}
	return rw.EraseOp(op)
}

// ReplaceOpWithCall creates a call to callee immediately before op, passing
// operands and producing callee's result types, then replaces op with it.
// The number of op results must match the callee's result count.
func (rw *Rewriter) ReplaceOpWithCall(op *ir.Op, callee *ir.Func, operands []*ir.Value) (*ir.Op, error) {
	if op.NumResults() != len(callee.Results) {
		return nil, fmt.Errorf("replace %s with call @%s: %d results, callee returns %d",
			op.Name, callee.Name, op.NumResults(), len(callee.Results))
	}
	restore := rw.InsertionGuard()
	defer restore()

	rw.SetInsertionPoint(op)
	call := rw.CreateCall(callee.Name, operands, callee.Results)
	if err := rw.ReplaceOp(op, call.Results()); err != nil {
		return nil, err
	}
	return call, nil
}

// EraseOp removes op from its block. Fails if any result still has uses.
func (rw *Rewriter) EraseOp(op *ir.Op) error {
	if err := op.Erase(); err != nil {
		return err
	}
	rw.erased = append(rw.erased, op)
	return nil
}

// Created returns the ops created since the rewriter was made, in order.
func (rw *Rewriter) Created() []*ir.Op {
	out := make([]*ir.Op, len(rw.created))
	copy(out, rw.created)
	return out
}

// reset clears bookkeeping between pattern applications.
func (rw *Rewriter) reset() {
	rw.created = rw.created[:0]
	rw.erased = rw.erased[:0]
}
