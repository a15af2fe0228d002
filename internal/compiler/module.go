package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/cpurt/internal/ir"
)

// Attribute names given a typed conversion instead of the generic one.
const (
	attrOperandSegmentSizes = "operand_segment_sizes"
	attrAPIVersion          = "api_version"
	attrTargetArgMapping    = "target_arg_mapping"
)

// CompileModule builds an ir.Module from a CUE module description.
//
// v is either the module struct itself or a value with a top-level
// "module" field:
//
//	module: {
//		name: "m"
//		funcs: main: {
//			args: [{name: "a", type: {dtype: "f32", shape: [4]}}]
//			ops: [
//				{op: "lmhlo.infeed", operands: ["a"]},
//				{op: "xla_cpu.replica_id", results: [{name: "r", type: {dtype: "i32"}}]},
//			]
//		}
//	}
//
// Functions are added in declaration order. A function with
// declare: true has no body. Operand names refer to arguments or to results
// of earlier ops in the same function.
func CompileModule(v cue.Value) (*ir.Module, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if mv := v.LookupPath(cue.ParsePath("module")); mv.Exists() {
		v = mv
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "module name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m := ir.NewModule(name)

	funcsVal := v.LookupPath(cue.ParsePath("funcs"))
	if !funcsVal.Exists() {
		return m, nil
	}
	iter, err := funcsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileFunc(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if err := m.Add(f); err != nil {
			return nil, &CompileError{Field: "funcs", Message: err.Error(), Pos: iter.Value().Pos()}
		}
	}
	return m, nil
}

func compileFunc(name string, v cue.Value) (*ir.Func, error) {
	field := "funcs." + name

	var params []ir.Type
	var argNames []string
	if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
		argIter, err := argsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for argIter.Next() {
			argName, typ, err := compileNamedType(argIter.Value(), field+".args")
			if err != nil {
				return nil, err
			}
			argNames = append(argNames, argName)
			params = append(params, typ)
		}
	}

	var results []ir.Type
	if resVal := v.LookupPath(cue.ParsePath("results")); resVal.Exists() {
		resIter, err := resVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for resIter.Next() {
			typ, err := compileType(resIter.Value(), field+".results")
			if err != nil {
				return nil, err
			}
			results = append(results, typ)
		}
	}

	declare, err := optionalBool(v, "declare")
	if err != nil {
		return nil, err
	}
	if declare {
		f := ir.NewDeclaration(name, params, results)
		if err := compileFuncAttrs(f, v); err != nil {
			return nil, err
		}
		return f, nil
	}

	f := ir.NewFunc(name, params, results)
	f.Private, err = optionalBool(v, "private")
	if err != nil {
		return nil, err
	}
	if err := compileFuncAttrs(f, v); err != nil {
		return nil, err
	}

	scope := make(map[string]*ir.Value)
	for i, argName := range argNames {
		if _, dup := scope[argName]; dup {
			return nil, &CompileError{
				Field:   field + ".args",
				Message: fmt.Sprintf("duplicate value name %q", argName),
				Pos:     v.Pos(),
			}
		}
		scope[argName] = f.Entry().Arg(i)
	}

	opsVal := v.LookupPath(cue.ParsePath("ops"))
	if !opsVal.Exists() {
		return f, nil
	}
	opIter, err := opsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	idx := 0
	for opIter.Next() {
		op, err := compileOp(opIter.Value(), fmt.Sprintf("%s.ops[%d]", field, idx), scope)
		if err != nil {
			return nil, err
		}
		f.Entry().Append(op)
		idx++
	}
	return f, nil
}

func compileFuncAttrs(f *ir.Func, v cue.Value) error {
	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if !attrsVal.Exists() {
		return nil
	}
	attrs, err := compileAttrDict(attrsVal)
	if err != nil {
		return err
	}
	for k, a := range attrs {
		f.Attrs[k] = a
	}
	return nil
}

// compileOp builds a detached op, resolving operand names in scope and
// adding its named results to scope.
func compileOp(v cue.Value, field string, scope map[string]*ir.Value) (*ir.Op, error) {
	kindVal := v.LookupPath(cue.ParsePath("op"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: field + ".op", Message: "op kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var operands []*ir.Value
	if operandsVal := v.LookupPath(cue.ParsePath("operands")); operandsVal.Exists() {
		operandIter, err := operandsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for operandIter.Next() {
			ref, err := operandIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			val, ok := scope[ref]
			if !ok {
				return nil, &CompileError{
					Field:   field + ".operands",
					Message: fmt.Sprintf("undefined value %q", ref),
					Pos:     operandIter.Value().Pos(),
				}
			}
			operands = append(operands, val)
		}
	}

	var resultNames []string
	var resultTypes []ir.Type
	if resultsVal := v.LookupPath(cue.ParsePath("results")); resultsVal.Exists() {
		resIter, err := resultsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for resIter.Next() {
			name, typ, err := compileNamedType(resIter.Value(), field+".results")
			if err != nil {
				return nil, err
			}
			if _, dup := scope[name]; dup {
				return nil, &CompileError{
					Field:   field + ".results",
					Message: fmt.Sprintf("duplicate value name %q", name),
					Pos:     resIter.Value().Pos(),
				}
			}
			resultNames = append(resultNames, name)
			resultTypes = append(resultTypes, typ)
		}
	}

	var attrs ir.IRObject
	if attrsVal := v.LookupPath(cue.ParsePath("attrs")); attrsVal.Exists() {
		attrs, err = compileAttrDict(attrsVal)
		if err != nil {
			return nil, err
		}
	}

	op := ir.NewOp(ir.OpName(kind), operands, resultTypes, attrs)
	if calleeVal := v.LookupPath(cue.ParsePath("callee")); calleeVal.Exists() {
		op.Callee, err = calleeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}
	for i, name := range resultNames {
		scope[name] = op.Result(i)
	}
	return op, nil
}

// compileNamedType reads {name: string, type: {...}}.
func compileNamedType(v cue.Value, field string) (string, ir.Type, error) {
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return "", nil, formatCUEError(err)
	}
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return "", nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value %q has no type", name),
			Pos:     v.Pos(),
		}
	}
	typ, err := compileType(typeVal, field+"."+name)
	if err != nil {
		return "", nil, err
	}
	return name, typ, nil
}

// compileType reads {dtype, shape?, strides?, offset?}. A type with a shape
// is a buffer, otherwise a scalar.
func compileType(v cue.Value, field string) (ir.Type, error) {
	dtypeVal := v.LookupPath(cue.ParsePath("dtype"))
	dtypeName, err := dtypeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	dtype, err := ir.ParseDType(dtypeName)
	if err != nil {
		return nil, &CompileError{Field: field + ".dtype", Message: err.Error(), Pos: dtypeVal.Pos()}
	}

	shapeVal := v.LookupPath(cue.ParsePath("shape"))
	if !shapeVal.Exists() {
		return ir.Scalar(dtype), nil
	}
	dims64, err := intList(shapeVal)
	if err != nil {
		return nil, err
	}
	dims := make([]int, len(dims64))
	for i, d := range dims64 {
		if d < 0 {
			return nil, &CompileError{
				Field:   field + ".shape",
				Message: fmt.Sprintf("negative dimension %d", d),
				Pos:     shapeVal.Pos(),
			}
		}
		dims[i] = int(d)
	}

	var strides []int64
	if stridesVal := v.LookupPath(cue.ParsePath("strides")); stridesVal.Exists() {
		strides, err = intList(stridesVal)
		if err != nil {
			return nil, err
		}
		if len(strides) != len(dims) {
			return nil, &CompileError{
				Field:   field + ".strides",
				Message: fmt.Sprintf("%d strides for rank %d", len(strides), len(dims)),
				Pos:     stridesVal.Pos(),
			}
		}
	}
	var offset int64
	if offsetVal := v.LookupPath(cue.ParsePath("offset")); offsetVal.Exists() {
		offset, err = offsetVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}
	if strides == nil && offset == 0 {
		return ir.Buffer(dtype, dims...), nil
	}
	if strides == nil {
		strides = contiguousStrides(dims)
	}
	return ir.StridedBuffer(dtype, dims, strides, offset), nil
}

// contiguousStrides returns row-major strides for dims.
func contiguousStrides(dims []int) []int64 {
	strides := make([]int64, len(dims))
	acc := int64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= int64(dims[i])
	}
	return strides
}

// compileAttrDict converts a CUE struct to attributes.
func compileAttrDict(v cue.Value) (ir.IRObject, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	attrs := ir.IRObject{}
	for iter.Next() {
		name := iter.Label()
		var a ir.IRValue
		switch name {
		case attrOperandSegmentSizes:
			a, err = compileI32Array(iter.Value())
		case attrAPIVersion:
			a, err = compileI32(iter.Value())
		case attrTargetArgMapping:
			a, err = compileArgMapping(iter.Value())
		default:
			a, err = compileAttr(iter.Value())
		}
		if err != nil {
			return nil, err
		}
		attrs[name] = a
	}
	return attrs, nil
}

// compileAttr converts a CUE value to an attribute. Floats are rejected:
// attributes have no float representation. {i32: n} yields an i32.
func compileAttr(v cue.Value) (ir.IRValue, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := compileAttr(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		if i32 := v.LookupPath(cue.ParsePath("i32")); i32.Exists() {
			return compileI32(i32)
		}
		return compileAttrDict(v)
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "attrs",
			Message: "float attributes are not supported",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "attrs",
			Message: fmt.Sprintf("unsupported attribute kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func compileI32(v cue.Value) (ir.IRValue, error) {
	n, err := v.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if int64(int32(n)) != n {
		return nil, &CompileError{Field: "attrs", Message: fmt.Sprintf("%d overflows i32", n), Pos: v.Pos()}
	}
	return ir.IRInt32(n), nil
}

func compileI32Array(v cue.Value) (ir.IRValue, error) {
	vals, err := intList(v)
	if err != nil {
		return nil, err
	}
	arr := make(ir.IRArray, len(vals))
	for i, n := range vals {
		if int64(int32(n)) != n {
			return nil, &CompileError{Field: "attrs", Message: fmt.Sprintf("%d overflows i32", n), Pos: v.Pos()}
		}
		arr[i] = ir.IRInt32(n)
	}
	return arr, nil
}

// compileArgMapping reads
//
//	{num_args: 2, num_results: 1, args_to_target_args: [1], results_to_target_results: [0]}
func compileArgMapping(v cue.Value) (ir.IRValue, error) {
	var mapping ir.ArgMapping
	var err error
	if mapping.NumArgs, err = v.LookupPath(cue.ParsePath("num_args")).Int64(); err != nil {
		return nil, formatCUEError(err)
	}
	if mapping.NumResults, err = v.LookupPath(cue.ParsePath("num_results")).Int64(); err != nil {
		return nil, formatCUEError(err)
	}
	if args := v.LookupPath(cue.ParsePath("args_to_target_args")); args.Exists() {
		if mapping.ArgsToTargetArgs, err = intList(args); err != nil {
			return nil, err
		}
	}
	if res := v.LookupPath(cue.ParsePath("results_to_target_results")); res.Exists() {
		if mapping.ResultsToTargetResults, err = intList(res); err != nil {
			return nil, err
		}
	}
	return mapping, nil
}

func intList(v cue.Value) ([]int64, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []int64{}
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, n)
	}
	return out, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(name))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}
