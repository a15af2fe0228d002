package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one module, lowered once
// (or twice), with assertions over the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the CUE module file or package directory to lower.
	Module string `yaml:"module"`

	// Verify runs structural validation before and after lowering.
	Verify bool `yaml:"verify,omitempty"`

	// RunTwice lowers the output a second time and requires that nothing
	// changes.
	RunTwice bool `yaml:"run_twice,omitempty"`

	// RunID fixes the run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// MaxIterations overrides the driver's sweep limit when positive.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// ExpectError is the error code lowering must fail with
	// (e.g. PATTERN_FAILED, VERIFY_FAILED). Empty means it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the lowered module, trace and run log.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a lowering run.
type Assertion struct {
	// Type specifies the assertion type; see the Assert* constants.
	Type string `yaml:"type"`

	// Target is a runtime target name (trace_count, call_operands, attr).
	Target string `yaml:"target,omitempty"`

	// Targets is the expected target order (trace_order).
	Targets []string `yaml:"targets,omitempty"`

	// Op is an op kind (op_count).
	Op string `yaml:"op,omitempty"`

	// Func restricts call_operands and attr to one function. By default
	// the first matching call in module order is used.
	Func string `yaml:"func,omitempty"`

	// Index selects the n-th matching call (call_operands, attr).
	Index int `yaml:"index,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`

	// Operands are the expected printed operand names (call_operands).
	Operands []string `yaml:"operands,omitempty"`

	// Name and Value give an attribute and its printed form (attr).
	// An empty Value asserts the attribute is absent.
	Name  string `yaml:"name,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Table is the run log table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount       = "trace_count"
	AssertTraceOrder       = "trace_order"
	AssertOpCount          = "op_count"
	AssertDeclarationCount = "declaration_count"
	AssertCallOperands     = "call_operands"
	AssertAttr             = "attr"
	AssertFinalState       = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving the module
// path relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the module path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so typos like "assertion:" fail loudly.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Module != "" && !filepath.IsAbs(scenario.Module) && basePath != "" {
		scenario.Module = filepath.Join(basePath, scenario.Module)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}

	if s.RunTwice && s.ExpectError != "" {
		return fmt.Errorf("run_twice cannot be combined with expect_error")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	if a.Index < 0 {
		return fmt.Errorf("assertions[%d]: index must be non-negative", index)
	}

	switch a.Type {
	case AssertTraceCount:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Targets) == 0 {
			return fmt.Errorf("assertions[%d]: targets list is required for trace_order", index)
		}
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for op_count", index)
		}
	case AssertDeclarationCount:
	case AssertCallOperands:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for call_operands", index)
		}
	case AssertAttr:
		if a.Target == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: target and name are required for attr", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
