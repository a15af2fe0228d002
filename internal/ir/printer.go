package ir

import (
	"fmt"
	"strings"
)

// Print renders the module in a deterministic textual form:
//
//	module @m {
//	  func.func @main(%arg0: memref<4xf32>) {
//	    %0 = memref.alloca() : () -> memref<0xi8>
//	    func.call @xla.cpu.custom_call(%arg0, %0) {num_results = 1 : i32} : (memref<4xf32>, memref<0xi8>) -> ()
//	  }
//	  func.func private @xla.cpu.custom_call(memref<4xf32>, memref<0xi8>) attributes {rt.custom_call = "xla.cpu.custom_call"}
//	}
//
// Values are numbered per function in definition order. Attributes are
// printed in sorted key order.
func Print(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module @%s {\n", m.Name)
	for _, f := range m.funcs {
		printFunc(&sb, f)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// PrintOp renders a single op using names local to its function.
func PrintOp(op *Op) string {
	names := map[*Value]string{}
	if f := op.ParentFunc(); f != nil {
		names = nameValues(f)
	}
	var sb strings.Builder
	printOp(&sb, op, names)
	return sb.String()
}

func printFunc(sb *strings.Builder, f *Func) {
	sb.WriteString("  func.func ")
	if f.Private {
		sb.WriteString("private ")
	}
	sb.WriteString("@" + f.Name + "(")
	if f.IsDeclaration() {
		sb.WriteString(joinTypes(f.Params))
	} else {
		for i, arg := range f.body.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%%arg%d: %s", i, arg.typ)
		}
	}
	sb.WriteByte(')')
	if len(f.Results) > 0 {
		sb.WriteString(" -> " + formatResultTypes(f.Results))
	}
	if len(f.Attrs) > 0 {
		sb.WriteString(" attributes ")
		writeAttrDict(sb, f.Attrs)
	}
	if f.IsDeclaration() {
		sb.WriteByte('\n')
		return
	}
	sb.WriteString(" {\n")
	names := nameValues(f)
	for _, op := range f.body.ops {
		sb.WriteString("    ")
		printOp(sb, op, names)
		sb.WriteByte('\n')
	}
	sb.WriteString("  }\n")
}

func printOp(sb *strings.Builder, op *Op, names map[*Value]string) {
	if len(op.results) > 0 {
		for i, r := range op.results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valueName(names, r))
		}
		sb.WriteString(" = ")
	}
	sb.WriteString(string(op.Name))
	if op.Callee != "" {
		sb.WriteString(" @" + op.Callee)
	}
	sb.WriteByte('(')
	for i, v := range op.operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valueName(names, v))
	}
	sb.WriteByte(')')
	if len(op.Attrs) > 0 {
		sb.WriteByte(' ')
		writeAttrDict(sb, op.Attrs)
	}
	fmt.Fprintf(sb, " : (%s) -> %s", joinTypes(op.OperandTypes()), formatResultTypes(op.ResultTypes()))
}

// ValueNames returns the printed name of every value defined in f.
func ValueNames(f *Func) map[*Value]string {
	return nameValues(f)
}

// nameValues assigns %argN to block arguments and %N to op results.
func nameValues(f *Func) map[*Value]string {
	names := make(map[*Value]string)
	if f.body == nil {
		return names
	}
	for i, arg := range f.body.args {
		names[arg] = fmt.Sprintf("%%arg%d", i)
	}
	n := 0
	for _, op := range f.body.ops {
		for _, r := range op.results {
			names[r] = fmt.Sprintf("%%%d", n)
			n++
		}
	}
	return names
}

func valueName(names map[*Value]string, v *Value) string {
	if name, ok := names[v]; ok {
		return name
	}
	return "%<undef>"
}

func joinTypes(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func formatResultTypes(types []Type) string {
	if len(types) == 1 {
		return types[0].String()
	}
	return "(" + joinTypes(types) + ")"
}

// FormatSignature renders a function type, e.g. "(memref<4xf32>) -> ()".
func FormatSignature(params, results []Type) string {
	return "(" + joinTypes(params) + ") -> " + formatResultTypes(results)
}
