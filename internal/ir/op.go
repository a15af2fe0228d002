package ir

import (
	"errors"
	"fmt"
	"slices"
)

// OpName is the kind tag of an op, e.g. "lmhlo.infeed".
type OpName string

// Op kinds understood by this module. Any other name is a valid opaque op.
const (
	OpCustomCall  OpName = "lmhlo.custom_call"
	OpInfeed      OpName = "lmhlo.infeed"
	OpOutfeed     OpName = "lmhlo.outfeed"
	OpPartitionID OpName = "xla_cpu.partition_id"
	OpReplicaID   OpName = "xla_cpu.replica_id"
	OpAllReduce   OpName = "xla_cpu.all_reduce"

	OpCall   OpName = "func.call"
	OpReturn OpName = "func.return"
	OpAlloc  OpName = "memref.alloc"
	OpAlloca OpName = "memref.alloca"
	OpCopy   OpName = "memref.copy"
)

// ErrLiveUses is returned when erasing an op whose results are still used.
var ErrLiveUses = errors.New("op results still have uses")

// Value is an SSA value: either a block argument or an op result.
// Values track their users so that erasure never leaves a dangling operand.
type Value struct {
	typ   Type
	owner *Op    // defining op; nil for block arguments
	block *Block // owning block for block arguments
	index int    // result or argument index
	uses  []*Op  // one entry per operand slot referencing this value
}

// Type returns the value's type.
func (v *Value) Type() Type {
	return v.typ
}

// DefiningOp returns the op producing this value, or nil for arguments.
func (v *Value) DefiningOp() *Op {
	return v.owner
}

// IsBlockArgument reports whether the value is a block argument.
func (v *Value) IsBlockArgument() bool {
	return v.owner == nil
}

// Index returns the result or argument position of the value.
func (v *Value) Index() int {
	return v.index
}

// Uses returns the ops using this value, one entry per operand slot.
func (v *Value) Uses() []*Op {
	return slices.Clone(v.uses)
}

// HasUses reports whether any op uses the value.
func (v *Value) HasUses() bool {
	return len(v.uses) > 0
}

// ReplaceAllUsesWith redirects every use of v to nv.
func (v *Value) ReplaceAllUsesWith(nv *Value) {
	if v == nv {
		return
	}
	for _, user := range slices.Clone(v.uses) {
		for i, operand := range user.operands {
			if operand == v {
				user.SetOperand(i, nv)
			}
		}
	}
}

func (v *Value) addUse(op *Op) {
	v.uses = append(v.uses, op)
}

func (v *Value) dropUse(op *Op) {
	if i := slices.Index(v.uses, op); i >= 0 {
		v.uses = slices.Delete(v.uses, i, i+1)
	}
}

// Op is one node of the graph. Ops are owned by a block; a detached op
// (block == nil) is either under construction or erased.
type Op struct {
	Name OpName

	// Callee is the referenced symbol for func.call ops.
	Callee string

	// Attrs holds the op's named attributes.
	Attrs IRObject

	operands []*Value
	results  []*Value
	block    *Block
	erased   bool
}

// NewOp creates a detached op. Operand uses are registered immediately.
func NewOp(name OpName, operands []*Value, resultTypes []Type, attrs IRObject) *Op {
	op := &Op{Name: name, Attrs: attrs}
	if op.Attrs == nil {
		op.Attrs = IRObject{}
	}
	op.operands = make([]*Value, len(operands))
	for i, v := range operands {
		op.operands[i] = v
		v.addUse(op)
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{typ: t, owner: op, index: i}
	}
	return op
}

// Operands returns a copy of the operand list.
func (op *Op) Operands() []*Value {
	return slices.Clone(op.operands)
}

// Operand returns the i-th operand.
func (op *Op) Operand(i int) *Value {
	return op.operands[i]
}

// NumOperands returns the number of operands.
func (op *Op) NumOperands() int {
	return len(op.operands)
}

// OperandTypes returns the operand types in order.
func (op *Op) OperandTypes() []Type {
	return valueTypes(op.operands)
}

// SetOperand replaces the i-th operand, keeping use lists consistent.
func (op *Op) SetOperand(i int, v *Value) {
	op.operands[i].dropUse(op)
	op.operands[i] = v
	v.addUse(op)
}

// Results returns a copy of the result list.
func (op *Op) Results() []*Value {
	return slices.Clone(op.results)
}

// Result returns the i-th result.
func (op *Op) Result(i int) *Value {
	return op.results[i]
}

// NumResults returns the number of results.
func (op *Op) NumResults() int {
	return len(op.results)
}

// ResultTypes returns the result types in order.
func (op *Op) ResultTypes() []Type {
	return valueTypes(op.results)
}

// Block returns the block holding the op, or nil when detached.
func (op *Op) Block() *Block {
	return op.block
}

// ParentFunc returns the function enclosing the op, or nil when detached.
func (op *Op) ParentFunc() *Func {
	if op.block == nil {
		return nil
	}
	return op.block.parent
}

// IsErased reports whether the op has been removed from its block.
func (op *Op) IsErased() bool {
	return op.erased
}

// Attr returns a named attribute.
func (op *Op) Attr(name string) (IRValue, bool) {
	v, ok := op.Attrs[name]
	return v, ok
}

// SetAttr sets (or overwrites) a named attribute.
func (op *Op) SetAttr(name string, v IRValue) {
	if op.Attrs == nil {
		op.Attrs = IRObject{}
	}
	op.Attrs[name] = v
}

// ReplaceAllUsesWith redirects uses of op's results to vals, pairwise.
func (op *Op) ReplaceAllUsesWith(vals []*Value) error {
	if len(vals) != len(op.results) {
		return fmt.Errorf("replace %s: %d replacement values for %d results", op.Name, len(vals), len(op.results))
	}
	for i, r := range op.results {
		r.ReplaceAllUsesWith(vals[i])
	}
	return nil
}

// Erase removes the op from its block and drops its operand uses.
// Fails with ErrLiveUses if any result is still used.
func (op *Op) Erase() error {
	if op.erased {
		return nil
	}
	for _, r := range op.results {
		if r.HasUses() {
			return fmt.Errorf("erase %s: %w", op.Name, ErrLiveUses)
		}
	}
	if op.block != nil {
		op.block.remove(op)
	}
	for _, v := range op.operands {
		v.dropUse(op)
	}
	op.operands = nil
	op.erased = true
	return nil
}

func valueTypes(vals []*Value) []Type {
	types := make([]Type, len(vals))
	for i, v := range vals {
		types[i] = v.typ
	}
	return types
}

// ValueTypes returns the types of a value list, in order.
func ValueTypes(vals []*Value) []Type {
	return valueTypes(vals)
}
