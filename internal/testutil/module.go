package testutil

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/cpurt/internal/compiler"
	"github.com/roach88/cpurt/internal/ir"
)

// MustCompile compiles a CUE module description, failing the test on
// any error.
//
//	m := testutil.MustCompile(t, `module: {name: "m", funcs: main: {ops: []}}`)
func MustCompile(t testing.TB, src string) *ir.Module {
	t.Helper()
	v := cuecontext.New().CompileString(src, cuecontext.Filename("test.cue"))
	if err := v.Err(); err != nil {
		t.Fatalf("compile CUE: %v", err)
	}
	m, err := compiler.CompileModule(v)
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	return m
}
