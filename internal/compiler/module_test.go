package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/ir"
)

func compileString(t *testing.T, src string) (*ir.Module, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cuecontext.Filename("test.cue"))
	return CompileModule(v)
}

func TestCompileModuleBasic(t *testing.T) {
	m, err := compileString(t, `
		module: {
			name: "m"
			funcs: main: {
				args: [
					{name: "a", type: {dtype: "f32", shape: [4]}},
					{name: "s", type: {dtype: "f32", shape: [2, 2], strides: [4, 1], offset: 2}},
				]
				ops: [
					{op: "lmhlo.infeed", operands: ["a"]},
					{op: "xla_cpu.replica_id", results: [{name: "r", type: {dtype: "i32"}}]},
					{op: "test.use", operands: ["r", "s"]},
				]
			}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "m", m.Name)
	f := m.Lookup("main")
	require.NotNil(t, f)
	require.Len(t, f.Params, 2)
	assert.True(t, ir.TypesEqual(ir.Buffer(dtypes.Float32, 4), f.Params[0]))
	assert.True(t, ir.TypesEqual(ir.StridedBuffer(dtypes.Float32, []int{2, 2}, []int64{4, 1}, 2), f.Params[1]))

	ops := f.Entry().Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, ir.OpInfeed, ops[0].Name)
	assert.Same(t, f.Entry().Arg(0), ops[0].Operand(0))
	assert.True(t, ir.TypesEqual(ir.I32, ops[1].Result(0).Type()))
	assert.Same(t, ops[1].Result(0), ops[2].Operand(0))
	assert.Same(t, f.Entry().Arg(1), ops[2].Operand(1))
}

func TestCompileModuleRootIsModule(t *testing.T) {
	m, err := compileString(t, `name: "bare"`)
	require.NoError(t, err)
	assert.Equal(t, "bare", m.Name)
	assert.Empty(t, m.Funcs())
}

func TestCompileModuleAttributes(t *testing.T) {
	m, err := compileString(t, `
		module: {
			name: "m"
			funcs: main: {
				args: [{name: "a", type: {dtype: "f32", shape: [4]}}, {name: "o", type: {dtype: "f32", shape: [4]}}]
				ops: [{
					op: "lmhlo.custom_call"
					operands: ["a", "o"]
					attrs: {
						call_target_name: "foo"
						api_version: 2
						operand_segment_sizes: [1, 1]
						target_arg_mapping: {
							num_args: 2
							num_results: 1
							args_to_target_args: [1]
							results_to_target_results: [0]
						}
						backend_config: {level: 3, fast: true, tags: ["x", "y"], width: {i32: 8}}
						unit: null
					}
				}]
			}
		}
	`)
	require.NoError(t, err)

	op := m.Lookup("main").Entry().Ops()[0]
	assert.Equal(t, ir.IRObject{
		"call_target_name":      ir.IRString("foo"),
		"api_version":           ir.IRInt32(2),
		"operand_segment_sizes": ir.I32Array(1, 1),
		"target_arg_mapping": ir.ArgMapping{
			NumArgs:                2,
			NumResults:             1,
			ArgsToTargetArgs:       []int64{1},
			ResultsToTargetResults: []int64{0},
		},
		"backend_config": ir.IRObject{
			"level": ir.IRInt(3),
			"fast":  ir.IRBool(true),
			"tags":  ir.IRArray{ir.IRString("x"), ir.IRString("y")},
			"width": ir.IRInt32(8),
		},
		"unit": ir.IRNull{},
	}, op.Attrs)
}

func TestCompileModuleDeclarationsAndCalls(t *testing.T) {
	m, err := compileString(t, `
		module: {
			name: "m"
			funcs: {
				helper: {
					declare: true
					args: [{name: "x", type: {dtype: "i32"}}]
					results: [{dtype: "i32"}]
					attrs: {note: "external"}
				}
				main: {
					private: true
					args: [{name: "x", type: {dtype: "i32"}}]
					ops: [{op: "func.call", callee: "helper", operands: ["x"], results: [{name: "y", type: {dtype: "i32"}}]}]
				}
			}
		}
	`)
	require.NoError(t, err)

	funcs := m.Funcs()
	require.Len(t, funcs, 2)
	assert.Equal(t, "helper", funcs[0].Name)
	assert.True(t, funcs[0].IsDeclaration())
	assert.Equal(t, ir.IRString("external"), funcs[0].Attrs["note"])
	assert.True(t, funcs[1].Private)

	call := funcs[1].Entry().Ops()[0]
	assert.Equal(t, "helper", call.Callee)
}

func TestCompileModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "missing name",
			src:     `module: {funcs: {}}`,
			wantErr: "module name is required",
		},
		{
			name:    "undefined operand",
			src:     `module: {name: "m", funcs: main: ops: [{op: "lmhlo.infeed", operands: ["nope"]}]}`,
			wantErr: `undefined value "nope"`,
		},
		{
			name:    "unknown dtype",
			src:     `module: {name: "m", funcs: main: args: [{name: "a", type: {dtype: "f128"}}]}`,
			wantErr: `unknown element type "f128"`,
		},
		{
			name:    "float attribute",
			src:     `module: {name: "m", funcs: main: ops: [{op: "x.y", attrs: {scale: 1.5}}]}`,
			wantErr: "float attributes are not supported",
		},
		{
			name: "duplicate value",
			src: `module: {name: "m", funcs: main: {
				args: [{name: "a", type: {dtype: "i32"}}]
				ops: [{op: "x.y", results: [{name: "a", type: {dtype: "i32"}}]}]
			}}`,
			wantErr: `duplicate value name "a"`,
		},
		{
			name:    "stride rank mismatch",
			src:     `module: {name: "m", funcs: main: args: [{name: "a", type: {dtype: "f32", shape: [2, 2], strides: [1]}}]}`,
			wantErr: "1 strides for rank 2",
		},
		{
			name:    "i32 overflow",
			src:     `module: {name: "m", funcs: main: ops: [{op: "x.y", attrs: {api_version: 4294967296}}]}`,
			wantErr: "overflows i32",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := compileString(t, "module: {\n\tname: \"m\"\n\tfuncs: main: ops: [{op: \"lmhlo.infeed\", operands: [\"nope\"]}]\n}\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.cue:3:")
}

func TestCompileModuleOffsetOnlyGetsContiguousStrides(t *testing.T) {
	m, err := compileString(t, `module: {name: "m", funcs: main: args: [{name: "a", type: {dtype: "f32", shape: [2, 3], offset: 1}}]}`)
	require.NoError(t, err)

	buf, ok := m.Lookup("main").Params[0].(ir.BufferType)
	require.True(t, ok)
	assert.Equal(t, []int64{3, 1}, buf.Layout.Strides)
	assert.Equal(t, int64(1), buf.Layout.Offset)
	assert.False(t, buf.Layout.IsIdentity())
}
