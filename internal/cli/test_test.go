package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/harness"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

// scenarioDir writes a one-scenario suite around the topology module.
func scenarioDir(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	module, err := os.ReadFile(fixture("topology"))
	require.NoError(t, err)
	writeFile(t, dir, "topology.cue", string(module))
	writeFile(t, dir, "topology.yaml", yaml)
	return dir
}

const topologyScenario = `name: topology
module: topology.cue
assertions:
  - type: trace_count
    target: xla.cpu.replica_id
    count: %d
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	out, _, err = execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandSuite(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ xfeed")
	assert.Contains(t, out, "✓ bad_mapping")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "c*")
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, "collectives", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "custom_calls", resp.Data.Scenarios[1].Name)
}

func TestTestCommandFailure(t *testing.T) {
	dir := scenarioDir(t, fmt.Sprintf(topologyScenario, 2))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ topology")
	assert.Contains(t, out, "1 failed")

	out, _, err = execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := scenarioDir(t, fmt.Sprintf(topologyScenario, 1))

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ topology (golden updated)")

	ir, err := os.ReadFile(filepath.Join(dir, "topology"+harness.IRGoldenSuffix))
	require.NoError(t, err)
	assert.Contains(t, string(ir), "@xla.cpu.replica_id")

	// A stale golden fails the next run.
	writeFile(t, dir, "topology"+harness.IRGoldenSuffix, "module @stale {\n}\n")
	out, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match")
}

func TestTestHelpText(t *testing.T) {
	out, _, err := execute(t, "test", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "Exit codes")
}
