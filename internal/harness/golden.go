package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cpurt/internal/ir"
)

// Golden file suffixes. The trace golden holds canonical JSON; the IR
// golden holds the printed module after lowering.
const (
	TraceGoldenSuffix = ".golden"
	IRGoldenSuffix    = ".ir.golden"
)

// TraceSnapshot captures the deterministic part of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	ErrorCode    string       `json:"error_code,omitempty"`
	Trace        []TraceEvent `json:"trace"`
	Result       *Result      `json:"-"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":     event.Seq,
			"pattern": event.Pattern,
			"op":      event.Op,
			"func":    event.Func,
			"attrs":   ir.CanonicalAttrs(event.Attrs),
		}
		if event.Target != "" {
			eventMap["target"] = event.Target
		}
		traceList[i] = eventMap
	}

	declList := []any{}
	if s.Result != nil {
		for _, d := range s.Result.Declarations {
			declList = append(declList, map[string]any{
				"symbol":    d.Symbol,
				"target":    d.Target,
				"signature": d.Signature,
			})
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"trace":         traceList,
		"declarations":  declList,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// GoldenArtifacts renders the golden files of a scenario run, keyed by
// suffix.
func GoldenArtifacts(scenario *Scenario, result *Result) (map[string][]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        result.RunID,
		ErrorCode:    result.ErrorCode,
		Trace:        result.Trace,
		Result:       result,
	}
	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		TraceGoldenSuffix: traceJSON,
		IRGoldenSuffix:    []byte(result.Output),
	}, nil
}

// RunWithGolden executes a scenario and compares its trace and lowered
// module against testdata/golden/{scenario.Name}.golden and
// testdata/golden/{scenario.Name}.ir.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if an artifact doesn't match its golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result against the golden files
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	artifacts, err := GoldenArtifacts(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(TraceGoldenSuffix),
	)
	g.Assert(t, scenario.Name, artifacts[TraceGoldenSuffix])
	g.Assert(t, scenario.Name+".ir", artifacts[IRGoldenSuffix])
	return nil
}
