package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/cpurt/internal/customcall"
	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/queryir"
	"github.com/roach88/cpurt/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s in @%s -> %s\n", event.Seq, event.Op, event.Func, event.Target)
		}
	}

	return buf.String()
}

// assertTraceCount checks that exactly Count rewrites emitted calls to Target.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Target == assertion.Target {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d rewrites to %s", assertion.Count, assertion.Target),
			Actual:   fmt.Sprintf("%d rewrites", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that targets were first rewritten to in the
// given order. Other rewrites may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Target]; !seen {
			positions[event.Target] = i + 1 // 1-indexed for readability
		}
	}

	for _, target := range assertion.Targets {
		if positions[target] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all targets present: %v", assertion.Targets),
				Actual:   fmt.Sprintf("missing target: %s", target),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Targets); i++ {
		prev := assertion.Targets[i-1]
		curr := assertion.Targets[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("targets in order: %v", assertion.Targets),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertOpCount checks the number of ops of one kind left in the module.
func assertOpCount(m *ir.Module, assertion Assertion) error {
	if n := m.CountOps(ir.OpName(assertion.Op)); n != assertion.Count {
		return &AssertionError{
			Type:     AssertOpCount,
			Expected: fmt.Sprintf("%d %s ops", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d ops", n),
		}
	}
	return nil
}

func assertDeclarationCount(result *Result, assertion Assertion) error {
	if n := len(result.Declarations); n != assertion.Count {
		targets := make([]string, n)
		for i, d := range result.Declarations {
			targets[i] = d.Target
		}
		return &AssertionError{
			Type:     AssertDeclarationCount,
			Expected: fmt.Sprintf("%d runtime declarations", assertion.Count),
			Actual:   fmt.Sprintf("%d declarations %v", n, targets),
		}
	}
	return nil
}

// findCall returns the Index-th call to Target, in module order,
// optionally restricted to one function.
func findCall(m *ir.Module, assertion Assertion) *ir.Op {
	var calls []*ir.Op
	m.Walk(func(op *ir.Op) {
		if assertion.Func != "" && op.ParentFunc().Name != assertion.Func {
			return
		}
		if customcall.TargetOf(op) == assertion.Target {
			calls = append(calls, op)
		}
	})
	if assertion.Index >= len(calls) {
		return nil
	}
	return calls[assertion.Index]
}

func callNotFound(typ string, assertion Assertion) error {
	where := "module"
	if assertion.Func != "" {
		where = "@" + assertion.Func
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("call #%d to %s in %s", assertion.Index, assertion.Target, where),
		Actual:   "call not found",
	}
}

// assertCallOperands compares a call's operands by printed value name.
func assertCallOperands(m *ir.Module, assertion Assertion) error {
	call := findCall(m, assertion)
	if call == nil {
		return callNotFound(AssertCallOperands, assertion)
	}
	names := ir.ValueNames(call.ParentFunc())
	actual := make([]string, call.NumOperands())
	for i, v := range call.Operands() {
		actual[i] = names[v]
	}
	expected := assertion.Operands
	if expected == nil {
		expected = []string{}
	}
	if !slices.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertCallOperands,
			Expected: fmt.Sprintf("operands %v", expected),
			Actual:   fmt.Sprintf("operands %v in %s", actual, ir.PrintOp(call)),
		}
	}
	return nil
}

// assertAttr compares a call attribute in printed form.
func assertAttr(m *ir.Module, assertion Assertion) error {
	call := findCall(m, assertion)
	if call == nil {
		return callNotFound(AssertAttr, assertion)
	}
	v, ok := call.Attr(assertion.Name)
	actual := ""
	if ok {
		actual = ir.FormatAttr(v)
	}
	if actual != assertion.Value {
		return &AssertionError{
			Type:     AssertAttr,
			Expected: fmt.Sprintf("%s = %q", assertion.Name, assertion.Value),
			Actual:   fmt.Sprintf("%s = %q", assertion.Name, actual),
		}
	}
	return nil
}

// assertFinalState checks that the run log contains expected values.
// The lookup goes through Store.Select, so table and column names are
// checked against the run-log schema and values are always bound.
// Expected values use subset semantics.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	filter, err := whereFilter(assertion.Where)
	if err != nil {
		return err
	}
	rows, err := st.Select(ctx, queryir.Select{From: assertion.Table, Filter: filter})
	if errors.Is(err, queryir.ErrInvalidQuery) {
		return fmt.Errorf("final_state: %w", err)
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// More than one match makes the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]interface{})
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// whereFilter converts YAML-decoded where values to an equality filter.
func whereFilter(where map[string]interface{}) (queryir.Predicate, error) {
	fields := make(map[string]ir.IRValue, len(where))
	for key, v := range where {
		switch val := v.(type) {
		case string:
			fields[key] = ir.IRString(val)
		case int:
			fields[key] = ir.IRInt(val)
		case int64:
			fields[key] = ir.IRInt(val)
		case bool:
			fields[key] = ir.IRBool(val)
		default:
			return nil, fmt.Errorf("final_state: where %q has unsupported value %v (%T)", key, v, v)
		}
	}
	return queryir.FromEqualities(fields), nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares expected and actual values from the run log.
// SQLite returns int64 for integers and []byte or string for text.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		actualStr, ok := actual.(string)
		return ok && exp == actualStr
	case int:
		actualInt, ok := actual.(int64)
		return ok && int64(exp) == actualInt
	case int64:
		actualInt, ok := actual.(int64)
		return ok && exp == actualInt
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		actualInt, ok := actual.(int64)
		return ok && exp == (actualInt != 0)
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store  *store.Store
	Ctx    context.Context
	Module *ir.Module
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertDeclarationCount:
			err = assertDeclarationCount(result, assertion)
		case AssertOpCount, AssertCallOperands, AssertAttr:
			if actx == nil || actx.Module == nil {
				err = fmt.Errorf("assertion[%d]: %s requires the lowered module", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertOpCount:
				err = assertOpCount(actx.Module, assertion)
			case AssertCallOperands:
				err = assertCallOperands(actx.Module, assertion)
			default:
				err = assertAttr(actx.Module, assertion)
			}
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
