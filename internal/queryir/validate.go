package queryir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/cpurt/internal/ir"
)

// ErrInvalidQuery is wrapped by every error Validate returns.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks that a query only references known tables and columns
// and compares columns with scalar values. All problems are reported,
// joined in traversal order.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...)))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		table, ok := v.table(query.From)
		if !ok {
			return
		}
		for _, col := range query.Columns {
			v.column(query.From, table, col)
		}
		v.validatePredicate(query.From, table, query.Filter)
	default:
		v.addError("unsupported query type %T", q)
	}
}

func (v *validator) table(name string) (Table, bool) {
	table, ok := Tables[name]
	if !ok {
		v.addError("unknown table %q", name)
	}
	return table, ok
}

func (v *validator) column(tableName string, table Table, col string) {
	if !slices.Contains(table.Columns, col) {
		v.addError("unknown column %q in %s", col, tableName)
	}
}

func (v *validator) validatePredicate(tableName string, table Table, p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.column(tableName, table, pred.Field)
		if !isScalar(pred.Value) {
			v.addError("column %q compared with non-scalar %T", pred.Field, pred.Value)
		}
	case And:
		for _, child := range pred.Predicates {
			v.validatePredicate(tableName, table, child)
		}
	default:
		v.addError("unsupported predicate type %T", p)
	}
}

func isScalar(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString, ir.IRInt, ir.IRInt32, ir.IRBool:
		return true
	}
	return false
}
