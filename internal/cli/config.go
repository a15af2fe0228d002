package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cpurt/internal/rewrite"
)

// Config holds defaults read from --config. Command-line flags that are
// set explicitly take precedence.
//
//	max_iterations: 10
//	max_rewrites: 100000
//	verify: true
//	db: ./cpurt.db
type Config struct {
	MaxIterations int    `yaml:"max_iterations"`
	MaxRewrites   int    `yaml:"max_rewrites"`
	Verify        bool   `yaml:"verify"`
	Database      string `yaml:"db"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations: rewrite.DefaultMaxIterations,
		MaxRewrites:   rewrite.DefaultMaxRewrites,
	}
}

// LoadConfig reads a YAML config file. Missing keys keep their defaults;
// unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("parse config %s: max_iterations must be positive", path)
	}
	return cfg, nil
}
