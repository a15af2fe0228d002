package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/rewrite"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, rewrite.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, rewrite.DefaultMaxRewrites, cfg.MaxRewrites)
	assert.False(t, cfg.Verify)
	assert.Empty(t, cfg.Database)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cpurt.yaml", "max_iterations: 3\nverify: true\ndb: runs.db\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, rewrite.DefaultMaxRewrites, cfg.MaxRewrites)
	assert.True(t, cfg.Verify)
	assert.Equal(t, "runs.db", cfg.Database)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cpurt.yaml", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "max_sweeps: 3\n", "max_sweeps"},
		{"bad type", "max_iterations: many\n", "parse config"},
		{"zero iterations", "max_iterations: 0\n", "max_iterations must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "cpurt.yaml", tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestRootLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "cpurt.yaml", "max_iterations: 1\n")

	// One sweep cannot confirm a fixpoint.
	_, _, err := execute(t, "--config", cfgPath, "lower", fixture("xfeed"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// An explicit flag wins over the file.
	out, _, err := execute(t, "--config", cfgPath, "lower", "--max-iterations", "5", fixture("xfeed"))
	require.NoError(t, err)
	assert.Contains(t, out, "@xla.cpu.infeed")
}

func TestRootRejectsBadConfig(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "cpurt.yaml", "bogus: true\n")

	_, _, err := execute(t, "--config", cfgPath, "validate", fixture("xfeed"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
