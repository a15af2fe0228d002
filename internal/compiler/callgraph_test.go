package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/ir"
)

// callModule builds a module whose functions call each other per edges.
func callModule(t *testing.T, names []string, edges map[string][]string) *ir.Module {
	t.Helper()
	m := ir.NewModule("m")
	for _, name := range names {
		require.NoError(t, m.Add(ir.NewFunc(name, nil, nil)))
	}
	for _, name := range names {
		b := ir.NewBuilder()
		b.SetInsertionPointToEnd(m.Lookup(name).Entry())
		for _, callee := range edges[name] {
			b.CreateCall(callee, nil, nil)
		}
	}
	return m
}

func TestAnalyzeCalls_Acyclic(t *testing.T) {
	m := callModule(t, []string{"main", "a", "b"}, map[string][]string{
		"main": {"a", "b", "external"},
		"a":    {"b"},
	})
	assert.Empty(t, AnalyzeCalls(m))
}

func TestAnalyzeCalls_SelfCall(t *testing.T) {
	m := callModule(t, []string{"main", "loop"}, map[string][]string{
		"main": {"loop"},
		"loop": {"loop"},
	})

	warnings := AnalyzeCalls(m)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"loop", "loop"}, warnings[0].Path)
	assert.Equal(t, "function @loop calls itself", warnings[0].Message)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeCalls_MutualRecursion(t *testing.T) {
	m := callModule(t, []string{"f", "g", "h"}, map[string][]string{
		"f": {"g"},
		"g": {"h"},
		"h": {"f"},
	})

	warnings := AnalyzeCalls(m)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"f", "g", "h", "f"}, warnings[0].Path)
	assert.Equal(t, "recursive call cycle: f -> g -> h -> f", warnings[0].Message)
}
