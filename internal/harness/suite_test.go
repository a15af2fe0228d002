package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copySuite copies one scenario and its module into a fresh directory.
func copySuite(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scenarios"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "modules"), 0755))

	for _, rel := range []string{
		filepath.Join("scenarios", name+".yaml"),
		filepath.Join("modules", name+".cue"),
	} {
		data, err := os.ReadFile(filepath.Join("testdata", rel))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), data, 0644))
	}
	return filepath.Join(dir, "scenarios")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := FindScenarioFiles(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	assert.Len(t, files, 6)

	files, err = FindScenarioFiles(filepath.Join("testdata", "scenarios"), "c*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "collectives.yaml"),
		filepath.Join("testdata", "scenarios", "custom_calls.yaml"),
	}, files)

	_, err = FindScenarioFiles(filepath.Join("testdata", "scenarios"), "[")
	require.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "xfeed.golden"), GoldenPath(filepath.Join("a", "b", "xfeed.yaml"), TraceGoldenSuffix))
	assert.Equal(t, filepath.Join("a", "xfeed.ir.golden"), GoldenPath(filepath.Join("a", "xfeed.yml"), IRGoldenSuffix))
}

func TestRunFile_UpdateThenCompare(t *testing.T) {
	dir := copySuite(t, "topology")
	path := filepath.Join(dir, "topology.yaml")

	// No golden files yet: comparison is skipped.
	outcome := RunFile(path, false)
	assert.True(t, outcome.Pass, "errors: %v", outcome.Errors)
	assert.False(t, outcome.GoldenUpdated)

	outcome = RunFile(path, true)
	assert.True(t, outcome.Pass, "errors: %v", outcome.Errors)
	assert.True(t, outcome.GoldenUpdated)

	want, err := os.ReadFile(filepath.Join("testdata", "golden", "topology.ir.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "topology.ir.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	outcome = RunFile(path, false)
	assert.True(t, outcome.Pass, "errors: %v", outcome.Errors)
}

func TestRunFile_GoldenMismatch(t *testing.T) {
	dir := copySuite(t, "xfeed")
	path := filepath.Join(dir, "xfeed.yaml")
	require.NoError(t, os.WriteFile(GoldenPath(path, TraceGoldenSuffix), []byte("{}"), 0644))

	outcome := RunFile(path, false)
	assert.False(t, outcome.Pass)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "xfeed.golden does not match")
}

func TestRunFile_BadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed"), 0644))

	outcome := RunFile(path, false)
	assert.False(t, outcome.Pass)
	assert.Equal(t, "broken.yaml", outcome.Name)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "failed to load scenario")
}

func TestRunSuite(t *testing.T) {
	result, err := RunSuite(filepath.Join("testdata", "scenarios"), "", false)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 6, result.Passed, "outcomes: %+v", result.Scenarios)
	assert.Zero(t, result.Failed)
}
