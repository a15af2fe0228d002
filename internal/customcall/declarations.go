package customcall

import (
	"github.com/roach88/cpurt/internal/ir"
)

// AttrCustomCall marks a declaration as a runtime entry point. Its value is
// the target name.
const AttrCustomCall = "rt.custom_call"

// Declarations interns runtime entry points by target name within one
// module.
//
// Not safe for concurrent use. A lowering pass owns one instance for the
// duration of a single run.
type Declarations struct {
	module *ir.Module
	byName map[string]*ir.Func
}

// NewDeclarations creates a table scoped to m. Declarations already present
// in m (for example from an earlier run of the pass) are picked up, so
// running twice never adds a second declaration for the same target.
func NewDeclarations(m *ir.Module) *Declarations {
	d := &Declarations{
		module: m,
		byName: make(map[string]*ir.Func),
	}
	for _, f := range m.Funcs() {
		if !f.IsDeclaration() {
			continue
		}
		if target, ok := f.Attrs[AttrCustomCall].(ir.IRString); ok {
			if _, seen := d.byName[string(target)]; !seen {
				d.byName[string(target)] = f
			}
		}
	}
	return d
}

// GetOrCreate returns the declaration for target, inserting it into the
// module on first use with the given signature.
func (d *Declarations) GetOrCreate(target string, params, results []ir.Type) *ir.Func {
	if f, ok := d.byName[target]; ok {
		return f
	}
	f := ir.NewDeclaration(target, params, results)
	f.Attrs[AttrCustomCall] = ir.IRString(target)
	d.module.Insert(f)
	d.byName[target] = f
	return f
}

// Lookup returns the declaration for target, if any.
func (d *Declarations) Lookup(target string) (*ir.Func, bool) {
	f, ok := d.byName[target]
	return f, ok
}

// Targets returns the interned target names in module order.
func (d *Declarations) Targets() []string {
	var targets []string
	for _, f := range d.module.Funcs() {
		target, ok := f.Attrs[AttrCustomCall].(ir.IRString)
		if ok && d.byName[string(target)] == f {
			targets = append(targets, string(target))
		}
	}
	return targets
}

// Len returns the number of interned targets.
func (d *Declarations) Len() int {
	return len(d.byName)
}

// TargetOf returns the runtime target a call op invokes, or "" when the
// callee is not a custom-call declaration.
func TargetOf(call *ir.Op) string {
	if call.Name != ir.OpCall {
		return ""
	}
	f := call.ParentFunc()
	if f == nil || f.Module() == nil {
		return ""
	}
	callee := f.Module().Lookup(call.Callee)
	if callee == nil {
		return ""
	}
	if target, ok := callee.Attrs[AttrCustomCall].(ir.IRString); ok {
		return string(target)
	}
	return ""
}

// AppendAttrs copies attrs onto op, overwriting same-named attributes.
func AppendAttrs(op *ir.Op, attrs ir.IRObject) {
	for _, k := range attrs.SortedKeys() {
		op.SetAttr(k, attrs[k])
	}
}
