package compiler

import (
	"fmt"

	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUndefinedValue      = "E201" // operand not defined before use in its function
	ErrUnknownCallee       = "E202" // func.call to a symbol not in the module
	ErrCallSignature       = "E203" // call operand/result types differ from callee
	ErrDuplicateTarget     = "E204" // two declarations for one runtime target
	ErrMalformedCustomCall = "E205" // custom call missing call_target_name or bad segments
	ErrMalformedArgMapping = "E206" // target_arg_mapping out of range or overlapping
)

const attrCallTargetName = "call_target_name"

// ValidationError represents a structural validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateModule checks the structural rules the lowering relies on but
// never checks itself. Returns all errors found (does not fail-fast).
//
// Calls to runtime entry points (declarations carrying rt.custom_call) are
// exempt from the signature check: one declaration serves every call to
// its target and records only the first signature requested.
func ValidateModule(m *ir.Module) []ValidationError {
	var errs []ValidationError

	targets := make(map[string]string)
	for _, f := range m.Funcs() {
		if target, ok := f.Attrs[customcall.AttrCustomCall].(ir.IRString); ok && f.IsDeclaration() {
			// E204: one declaration per runtime target
			if prev, dup := targets[string(target)]; dup {
				errs = append(errs, ValidationError{
					Field:   "@" + f.Name,
					Message: fmt.Sprintf("runtime target %q already declared by @%s", target, prev),
					Code:    ErrDuplicateTarget,
				})
				continue
			}
			targets[string(target)] = f.Name
		}
	}

	for _, f := range m.Funcs() {
		errs = append(errs, validateFunc(m, f)...)
	}
	return errs
}

func validateFunc(m *ir.Module, f *ir.Func) []ValidationError {
	if f.IsDeclaration() {
		return nil
	}
	var errs []ValidationError

	defined := make(map[*ir.Value]bool)
	for _, arg := range f.Entry().Args() {
		defined[arg] = true
	}

	for i, op := range f.Entry().Ops() {
		field := fmt.Sprintf("@%s.ops[%d]", f.Name, i)

		// E201: operands must be defined earlier in the same function
		for j, operand := range op.Operands() {
			if !defined[operand] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.operands[%d]", field, j),
					Message: fmt.Sprintf("%s uses a value not defined before it in @%s", op.Name, f.Name),
					Code:    ErrUndefinedValue,
				})
			}
		}
		for _, r := range op.Results() {
			defined[r] = true
		}

		switch op.Name {
		case ir.OpCall:
			errs = append(errs, validateCall(m, op, field)...)
		case ir.OpCustomCall:
			errs = append(errs, validateCustomCall(op, field)...)
		}
	}
	return errs
}

func validateCall(m *ir.Module, op *ir.Op, field string) []ValidationError {
	callee := m.Lookup(op.Callee)
	// E202: unknown callee
	if callee == nil {
		return []ValidationError{{
			Field:   field + ".callee",
			Message: fmt.Sprintf("call to unknown symbol @%s", op.Callee),
			Code:    ErrUnknownCallee,
		}}
	}
	if _, runtime := callee.Attrs[customcall.AttrCustomCall]; runtime {
		return nil
	}

	// E203: signature mismatch
	var errs []ValidationError
	if !ir.TypeListsEqual(op.OperandTypes(), callee.Params) {
		errs = append(errs, ValidationError{
			Field: field + ".operands",
			Message: fmt.Sprintf("call to @%s passes %s, callee expects %s",
				callee.Name,
				ir.FormatSignature(op.OperandTypes(), nil),
				ir.FormatSignature(callee.Params, nil)),
			Code: ErrCallSignature,
		})
	}
	if !ir.TypeListsEqual(op.ResultTypes(), callee.Results) {
		errs = append(errs, ValidationError{
			Field: field + ".results",
			Message: fmt.Sprintf("call to @%s produces %s, callee returns %s",
				callee.Name,
				ir.FormatSignature(nil, op.ResultTypes()),
				ir.FormatSignature(nil, callee.Results)),
			Code: ErrCallSignature,
		})
	}
	return errs
}

func validateCustomCall(op *ir.Op, field string) []ValidationError {
	var errs []ValidationError

	// E205: call_target_name is required
	if _, ok := op.Attrs[attrCallTargetName].(ir.IRString); !ok {
		errs = append(errs, ValidationError{
			Field:   field + ".attrs." + attrCallTargetName,
			Message: "custom call requires a string call_target_name",
			Code:    ErrMalformedCustomCall,
		})
	}

	numArgs, numOutputs := int64(op.NumOperands()), int64(0)
	if raw, ok := op.Attrs[attrOperandSegmentSizes]; ok {
		sizes, ok := raw.(ir.IRArray)
		var a, o int64
		var okA, okO bool
		if ok && len(sizes) == 2 {
			a, okA = ir.AsInt(sizes[0])
			o, okO = ir.AsInt(sizes[1])
		}
		// E205: segments must partition the operands
		if !okA || !okO || a < 0 || o < 0 || a+o != int64(op.NumOperands()) {
			errs = append(errs, ValidationError{
				Field:   field + ".attrs." + attrOperandSegmentSizes,
				Message: fmt.Sprintf("segments %s do not partition %d operands", ir.FormatAttr(raw), op.NumOperands()),
				Code:    ErrMalformedCustomCall,
			})
			return errs
		}
		numArgs, numOutputs = a, o
	}

	raw, ok := op.Attrs[attrTargetArgMapping]
	if !ok {
		return errs
	}
	mapping, ok := raw.(ir.ArgMapping)
	if !ok {
		return append(errs, ValidationError{
			Field:   field + ".attrs." + attrTargetArgMapping,
			Message: fmt.Sprintf("expected an argument mapping, got %s", ir.FormatAttr(raw)),
			Code:    ErrMalformedArgMapping,
		})
	}
	return append(errs, validateArgMapping(mapping, numArgs, numOutputs, field+".attrs."+attrTargetArgMapping)...)
}

// validateArgMapping checks that every mapped slot lies in its region and
// no two logical values share a physical slot. Arguments may land anywhere
// in the NumArgs+NumResults physical slots; results only in their own region.
func validateArgMapping(mapping ir.ArgMapping, numArgs, numOutputs int64, field string) []ValidationError {
	var errs []ValidationError
	bad := func(format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    ErrMalformedArgMapping,
		})
	}

	if err := mapping.CheckArity(); err != nil {
		bad("%s", err)
		return errs
	}
	if int64(len(mapping.ArgsToTargetArgs)) > numArgs {
		bad("maps %d arguments, call has %d", len(mapping.ArgsToTargetArgs), numArgs)
	}
	if int64(len(mapping.ResultsToTargetResults)) > numOutputs {
		bad("maps %d results, call has %d", len(mapping.ResultsToTargetResults), numOutputs)
	}

	taken := make(map[int64]string)
	check := func(kind string, slots []int64, base, limit int64) {
		for i, slot := range slots {
			if slot < 0 || slot >= limit {
				bad("%s %d mapped to slot %d, outside [0, %d)", kind, i, slot, limit)
				continue
			}
			who := fmt.Sprintf("%s %d", kind, i)
			phys := base + slot
			if prev, dup := taken[phys]; dup {
				bad("%s and %s both mapped to slot %d", prev, who, phys)
				continue
			}
			taken[phys] = who
		}
	}
	check("argument", mapping.ArgsToTargetArgs, 0, mapping.Slots())
	check("result", mapping.ResultsToTargetResults, mapping.NumArgs, mapping.NumResults)
	return errs
}
