package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioOutcome is the result of running one scenario file.
type ScenarioOutcome struct {
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
}

// FindScenarioFiles returns the YAML files under dir, sorted by path. A
// non-empty filter is a glob matched against the base name without
// extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file of a scenario file for suffix. Golden
// files sit next to the scenario: checkout.yaml -> checkout.golden.
func GoldenPath(scenarioFile, suffix string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), name+suffix)
}

// RunFile loads and runs one scenario file. With update, the golden files
// are rewritten; otherwise any golden file present must match.
func RunFile(path string, update bool) ScenarioOutcome {
	out := ScenarioOutcome{Path: path, Name: filepath.Base(path)}

	scenario, err := LoadScenario(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Errors = append(out.Errors, result.Errors...)

	artifacts, err := GoldenArtifacts(scenario, result)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("render golden files: %v", err))
		return out
	}

	for _, suffix := range []string{TraceGoldenSuffix, IRGoldenSuffix} {
		goldenPath := GoldenPath(path, suffix)
		if update {
			if err := os.WriteFile(goldenPath, artifacts[suffix], 0o644); err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("failed to update golden file: %v", err))
				continue
			}
			out.GoldenUpdated = true
			continue
		}
		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("read golden file: %v", err))
			continue
		}
		if !bytes.Equal(want, artifacts[suffix]) {
			out.Errors = append(out.Errors, fmt.Sprintf("%s does not match (run with --update to regenerate)", filepath.Base(goldenPath)))
		}
	}

	out.Pass = len(out.Errors) == 0
	return out
}

// RunSuite runs every scenario under dir.
func RunSuite(dir, filter string, update bool) (*SuiteResult, error) {
	files, err := FindScenarioFiles(dir, filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: make([]ScenarioOutcome, 0, len(files))}
	for _, path := range files {
		outcome := RunFile(path, update)
		result.Scenarios = append(result.Scenarios, outcome)
		result.Total++
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}
