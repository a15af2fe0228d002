package customcall

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/ir"
)

func TestGetOrCreate_FirstRegistrationWins(t *testing.T) {
	m := ir.NewModule("m")
	d := NewDeclarations(m)

	buf := ir.Buffer(dtypes.Float32, 4)
	first := d.GetOrCreate("xla.cpu.infeed", []ir.Type{buf}, nil)
	second := d.GetOrCreate("xla.cpu.infeed", []ir.Type{ir.I32, ir.I32}, []ir.Type{ir.I32})

	assert.Same(t, first, second)
	assert.Equal(t, []ir.Type{buf}, second.Params)
	assert.Empty(t, second.Results)
	assert.Len(t, m.Funcs(), 1)
	assert.Equal(t, 1, d.Len())
}

func TestGetOrCreate_DeclarationShape(t *testing.T) {
	m := ir.NewModule("m")
	d := NewDeclarations(m)

	f := d.GetOrCreate("xla.cpu.replica_id", nil, []ir.Type{ir.I32})

	assert.True(t, f.IsDeclaration())
	assert.True(t, f.Private)
	assert.Equal(t, ir.IRString("xla.cpu.replica_id"), f.Attrs[AttrCustomCall])
	assert.Same(t, f, m.Lookup("xla.cpu.replica_id"))
}

func TestGetOrCreate_RenamesOnSymbolCollision(t *testing.T) {
	m := ir.NewModule("m")
	require.NoError(t, m.Add(ir.NewFunc("xla.cpu.outfeed", nil, nil)))
	d := NewDeclarations(m)

	f := d.GetOrCreate("xla.cpu.outfeed", nil, nil)

	assert.Equal(t, "xla.cpu.outfeed_0", f.Name)
	assert.Equal(t, ir.IRString("xla.cpu.outfeed"), f.Attrs[AttrCustomCall])
	got, ok := d.Lookup("xla.cpu.outfeed")
	require.True(t, ok)
	assert.Same(t, f, got)
}

func TestNewDeclarations_AdoptsExisting(t *testing.T) {
	m := ir.NewModule("m")
	d1 := NewDeclarations(m)
	f := d1.GetOrCreate("xla.cpu.all_reduce", nil, nil)

	d2 := NewDeclarations(m)
	got := d2.GetOrCreate("xla.cpu.all_reduce", []ir.Type{ir.I32}, nil)

	assert.Same(t, f, got)
	assert.Len(t, m.Funcs(), 1)
}

func TestTargets_ModuleOrder(t *testing.T) {
	m := ir.NewModule("m")
	d := NewDeclarations(m)
	d.GetOrCreate("b", nil, nil)
	d.GetOrCreate("a", nil, nil)
	d.GetOrCreate("b", nil, nil)

	assert.Equal(t, []string{"b", "a"}, d.Targets())
}

func TestTargetOf(t *testing.T) {
	m := ir.NewModule("m")
	main := ir.NewFunc("main", nil, nil)
	require.NoError(t, m.Add(main))
	d := NewDeclarations(m)
	decl := d.GetOrCreate("xla.cpu.partition_id", nil, []ir.Type{ir.I32})

	b := ir.NewBuilder()
	b.SetInsertionPointToEnd(main.Entry())
	call := b.CreateCall(decl.Name, nil, []ir.Type{ir.I32})
	plain := b.CreateCall("main", nil, nil)
	other := b.Create(ir.OpReplicaID, nil, []ir.Type{ir.I32}, nil)

	assert.Equal(t, "xla.cpu.partition_id", TargetOf(call))
	assert.Equal(t, "", TargetOf(plain))
	assert.Equal(t, "", TargetOf(other))
}

func TestAppendAttrs_Overrides(t *testing.T) {
	op := ir.NewOp(ir.OpCall, nil, nil, ir.IRObject{
		"op_id":                 ir.IRInt(0),
		"use_global_device_ids": ir.IRInt32(0),
	})

	AppendAttrs(op, ir.IRObject{"op_id": ir.IRInt(7), "reduction_kind": ir.IRString("sum")})

	assert.Equal(t, ir.IRInt(7), op.Attrs["op_id"])
	assert.Equal(t, ir.IRInt32(0), op.Attrs["use_global_device_ids"])
	assert.Equal(t, ir.IRString("sum"), op.Attrs["reduction_kind"])
}
