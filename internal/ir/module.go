package ir

import (
	"fmt"
	"slices"
)

// Block is an ordered list of ops with typed arguments.
type Block struct {
	args   []*Value
	ops    []*Op
	parent *Func
}

// Args returns the block arguments.
func (b *Block) Args() []*Value {
	return slices.Clone(b.args)
}

// Arg returns the i-th block argument.
func (b *Block) Arg(i int) *Value {
	return b.args[i]
}

// Ops returns a snapshot of the ops in order. Mutating the block while
// iterating the snapshot is safe.
func (b *Block) Ops() []*Op {
	return slices.Clone(b.ops)
}

// Parent returns the function owning the block.
func (b *Block) Parent() *Func {
	return b.parent
}

// Append adds a detached op at the end of the block.
func (b *Block) Append(op *Op) {
	b.insertAt(len(b.ops), op)
}

// InsertBefore inserts a detached op immediately before anchor.
// A nil anchor appends.
func (b *Block) InsertBefore(anchor, op *Op) error {
	if anchor == nil {
		b.Append(op)
		return nil
	}
	i := slices.Index(b.ops, anchor)
	if i < 0 {
		return fmt.Errorf("insert %s: anchor %s is not in this block", op.Name, anchor.Name)
	}
	b.insertAt(i, op)
	return nil
}

func (b *Block) insertAt(i int, op *Op) {
	b.ops = slices.Insert(b.ops, i, op)
	op.block = b
}

func (b *Block) remove(op *Op) {
	if i := slices.Index(b.ops, op); i >= 0 {
		b.ops = slices.Delete(b.ops, i, i+1)
	}
	op.block = nil
}

// Func is a function definition or an external declaration.
// Declarations have no body.
type Func struct {
	Name    string
	Params  []Type
	Results []Type
	Private bool
	Attrs   IRObject

	body   *Block
	module *Module
}

// NewFunc creates a function definition with an empty entry block whose
// arguments match params.
func NewFunc(name string, params, results []Type) *Func {
	f := &Func{
		Name:    name,
		Params:  slices.Clone(params),
		Results: slices.Clone(results),
		Attrs:   IRObject{},
	}
	f.body = &Block{parent: f}
	for i, t := range params {
		f.body.args = append(f.body.args, &Value{typ: t, block: f.body, index: i})
	}
	return f
}

// NewDeclaration creates a private external declaration.
func NewDeclaration(name string, params, results []Type) *Func {
	return &Func{
		Name:    name,
		Params:  slices.Clone(params),
		Results: slices.Clone(results),
		Private: true,
		Attrs:   IRObject{},
	}
}

// IsDeclaration reports whether the function has no body.
func (f *Func) IsDeclaration() bool {
	return f.body == nil
}

// Entry returns the entry block, or nil for declarations.
func (f *Func) Entry() *Block {
	return f.body
}

// Module returns the module the function was inserted into.
func (f *Func) Module() *Module {
	return f.module
}

// Walk visits every op of the function body in order. The visitor sees a
// snapshot, so it may erase or insert ops.
func (f *Func) Walk(visit func(*Op)) {
	if f.body == nil {
		return
	}
	for _, op := range f.body.Ops() {
		visit(op)
	}
}

// Module is the compilation unit: an ordered list of functions forming a
// single symbol namespace.
type Module struct {
	Name string

	funcs   []*Func
	symbols map[string]*Func
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, symbols: make(map[string]*Func)}
}

// Funcs returns the functions in module order.
func (m *Module) Funcs() []*Func {
	return slices.Clone(m.funcs)
}

// Lookup returns the function with the given symbol name.
func (m *Module) Lookup(name string) *Func {
	return m.symbols[name]
}

// Add inserts a function under its exact name. Fails on collision.
func (m *Module) Add(f *Func) error {
	if _, exists := m.symbols[f.Name]; exists {
		return fmt.Errorf("duplicate symbol @%s", f.Name)
	}
	m.link(f)
	return nil
}

// Insert inserts a function, renaming it with a numeric suffix when the
// name is taken. Returns the final symbol name.
func (m *Module) Insert(f *Func) string {
	if _, exists := m.symbols[f.Name]; exists {
		base := f.Name
		for i := 0; ; i++ {
			candidate := fmt.Sprintf("%s_%d", base, i)
			if _, taken := m.symbols[candidate]; !taken {
				f.Name = candidate
				break
			}
		}
	}
	m.link(f)
	return f.Name
}

func (m *Module) link(f *Func) {
	f.module = m
	m.funcs = append(m.funcs, f)
	m.symbols[f.Name] = f
}

// Walk visits every op of every function body in module order.
func (m *Module) Walk(visit func(*Op)) {
	for _, f := range m.Funcs() {
		f.Walk(visit)
	}
}

// CountOps returns the number of ops with the given name.
func (m *Module) CountOps(name OpName) int {
	n := 0
	m.Walk(func(op *Op) {
		if op.Name == name {
			n++
		}
	})
	return n
}
