package lowering

import (
	"fmt"

	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/rewrite"
)

// Runtime targets.
const (
	TargetCustomCall  = "xla.cpu.custom_call"
	TargetInfeed      = "xla.cpu.infeed"
	TargetOutfeed     = "xla.cpu.outfeed"
	TargetPartitionID = "xla.cpu.partition_id"
	TargetReplicaID   = "xla.cpu.replica_id"
	TargetAllReduce   = "xla.cpu.all_reduce"
)

// Attribute names read from lmhlo.custom_call and set on the emitted call.
const (
	AttrOperandSegmentSizes = "operand_segment_sizes"
	AttrTargetArgMapping    = "target_arg_mapping"
	AttrCallTargetName      = "call_target_name"
	AttrAPIVersion          = "api_version"
	AttrNumResults          = "num_results"
)

// defaultAPIVersion is used when the custom call carries no api_version.
const defaultAPIVersion = ir.IRInt32(1)

// CustomCallLowering lowers lmhlo.custom_call to xla.cpu.custom_call.
//
// Operands of lmhlo.custom_call are the call arguments followed by the
// output buffers; operand_segment_sizes gives the size of each group.
// Without a target_arg_mapping the operands are passed through as is.
// With one, they are scattered into NumArgs+NumResults physical slots and
// the remaining slots are filled with a zero-size memref<0xi8> hole.
//
// One hole is allocated per function, at the start of its entry block,
// and reused by every custom call lowered in that function.
type CustomCallLowering struct {
	decls *customcall.Declarations
	holes map[*ir.Func]*ir.Value
}

// NewCustomCallLowering creates the pattern.
func NewCustomCallLowering(decls *customcall.Declarations) *CustomCallLowering {
	return &CustomCallLowering{
		decls: decls,
		holes: make(map[*ir.Func]*ir.Value),
	}
}

// Name implements rewrite.Pattern.
func (p *CustomCallLowering) Name() string { return "custom-call-lowering" }

// Root implements rewrite.Pattern.
func (p *CustomCallLowering) Root() ir.OpName { return ir.OpCustomCall }

// MatchAndRewrite implements rewrite.Pattern.
func (p *CustomCallLowering) MatchAndRewrite(op *ir.Op, rw *rewrite.Rewriter) (bool, error) {
	args, outputs, err := splitSegments(op)
	if err != nil {
		return false, err
	}
	targetName, ok := op.Attrs[AttrCallTargetName]
	if !ok {
		return false, fmt.Errorf("%s: missing %s attribute", op.Name, AttrCallTargetName)
	}
	apiVersion, ok := op.Attrs[AttrAPIVersion]
	if !ok {
		apiVersion = defaultAPIVersion
	}

	operands := op.Operands()
	numResults := int64(len(outputs))

	if raw, ok := op.Attrs[AttrTargetArgMapping]; ok {
		mapping, ok := raw.(ir.ArgMapping)
		if !ok {
			return false, fmt.Errorf("%s: %s is %T, want ArgMapping", op.Name, AttrTargetArgMapping, raw)
		}
		operands, err = fillHoles(mapping, args, outputs, func() *ir.Value { return p.hole(op, rw) })
		if err != nil {
			return false, fmt.Errorf("%s: %w", op.Name, err)
		}
		// Bounded by CheckArity, so the i32 conversion below is exact.
		numResults = mapping.NumResults
	}

	callee := p.decls.GetOrCreate(TargetCustomCall, ir.ValueTypes(operands), nil)
	call, err := rw.ReplaceOpWithCall(op, callee, operands)
	if err != nil {
		return false, err
	}
	customcall.AppendAttrs(call, ir.IRObject{
		AttrNumResults:     ir.IRInt32(numResults),
		AttrAPIVersion:     apiVersion,
		AttrCallTargetName: targetName,
	})
	return true, nil
}

// hole returns the placeholder buffer of op's function, creating it at the
// start of the entry block on first use.
func (p *CustomCallLowering) hole(op *ir.Op, rw *rewrite.Rewriter) *ir.Value {
	f := op.ParentFunc()
	if h, ok := p.holes[f]; ok {
		return h
	}
	defer rw.InsertionGuard()()
	rw.SetInsertionPointToStart(f.Entry())
	h := rw.Create(ir.OpAlloca, nil, []ir.Type{ir.HoleType}, nil).Result(0)
	p.holes[f] = h
	return h
}

// splitSegments returns the argument and output operand groups of a custom
// call. Without operand_segment_sizes every operand is an argument.
func splitSegments(op *ir.Op) (args, outputs []*ir.Value, err error) {
	operands := op.Operands()
	raw, ok := op.Attrs[AttrOperandSegmentSizes]
	if !ok {
		return operands, nil, nil
	}
	sizes, ok := raw.(ir.IRArray)
	if !ok || len(sizes) != 2 {
		return nil, nil, fmt.Errorf("%s: %s must be a pair of integers", op.Name, AttrOperandSegmentSizes)
	}
	numArgs, ok1 := ir.AsInt(sizes[0])
	numOutputs, ok2 := ir.AsInt(sizes[1])
	if !ok1 || !ok2 || numArgs < 0 || numOutputs < 0 || numArgs+numOutputs != int64(len(operands)) {
		return nil, nil, fmt.Errorf("%s: %s %s does not match %d operands",
			op.Name, AttrOperandSegmentSizes, ir.FormatAttr(raw), len(operands))
	}
	return operands[:numArgs], operands[numArgs:], nil
}

// fillHoles builds the physical operand list for a mapped custom call.
//
// Logical argument i goes to slot ArgsToTargetArgs[i], anywhere in the
// physical list; logical output i goes to slot NumArgs+ResultsToTargetResults[i].
// Every other slot holds the value returned by hole, which is only called
// when a slot is left unmapped. Out-of-range or shared slots are errors.
func fillHoles(mapping ir.ArgMapping, args, outputs []*ir.Value, hole func() *ir.Value) ([]*ir.Value, error) {
	if err := mapping.CheckArity(); err != nil {
		return nil, fmt.Errorf("target_arg_mapping: %w", err)
	}
	slots := make([]*ir.Value, mapping.Slots())

	for i, slot := range mapping.ArgsToTargetArgs {
		if i >= len(args) {
			return nil, fmt.Errorf("target_arg_mapping maps argument %d, call has %d", i, len(args))
		}
		if slot < 0 || slot >= mapping.Slots() {
			return nil, fmt.Errorf("argument %d mapped to slot %d, outside [0, %d)", i, slot, mapping.Slots())
		}
		if slots[slot] != nil {
			return nil, fmt.Errorf("argument %d mapped to slot %d, which is already taken", i, slot)
		}
		slots[slot] = args[i]
	}
	for i, slot := range mapping.ResultsToTargetResults {
		if i >= len(outputs) {
			return nil, fmt.Errorf("target_arg_mapping maps result %d, call has %d", i, len(outputs))
		}
		if slot < 0 || slot >= mapping.NumResults {
			return nil, fmt.Errorf("result %d mapped to slot %d, outside [0, %d)", i, slot, mapping.NumResults)
		}
		phys := mapping.NumArgs + slot
		if slots[phys] != nil {
			return nil, fmt.Errorf("result %d mapped to slot %d, which is already taken", i, phys)
		}
		slots[phys] = outputs[i]
	}
	for i := range slots {
		if slots[i] == nil {
			slots[i] = hole()
		}
	}
	return slots, nil
}
