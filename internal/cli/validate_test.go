package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recursiveModule = `package m

module: {
	name: "recursive"
	funcs: {
		even: {
			args: [{name: "n", type: {dtype: "i32"}}]
			ops: [{op: "func.call", callee: "odd", operands: ["n"]}]
		}
		odd: {
			args: [{name: "n", type: {dtype: "i32"}}]
			ops: [{op: "func.call", callee: "even", operands: ["n"]}]
		}
	}
}
`

func TestValidateValidModule(t *testing.T) {
	out, _, err := execute(t, "validate", fixture("custom_calls"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Module @custom_calls valid (2 function(s), 4 op(s))")
}

func TestValidateValidModuleJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", fixture("xfeed"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "xfeed", resp.Data.Module)
	assert.Equal(t, 3, resp.Data.Ops)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateInvalidModule(t *testing.T) {
	out, _, err := execute(t, "validate", fixture("unnamed_call"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E205")
}

func TestValidateInvalidModuleJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", fixture("unnamed_call"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E205", resp.Error.Code)
}

func TestValidateReportsRecursion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "recursive.cue", recursiveModule)

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Module @recursive valid")
	assert.Contains(t, out, "⚠")
}

func TestValidateLoadErrors(t *testing.T) {
	dir := t.TempDir()
	syntax := writeFile(t, dir, "syntax.cue", "package m\nmodule: {\n")
	conflict := writeFile(t, dir, "conflict.cue", "package m\nmodule: name: \"a\"\nmodule: name: \"b\"\n")

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "missing.cue"), ErrCodeNotFound},
		{"syntax", syntax, ErrCodeLoadFailed},
		{"conflict", conflict, ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestValidateRequiresArgument(t *testing.T) {
	_, _, err := execute(t, "validate")
	require.Error(t, err)
}
