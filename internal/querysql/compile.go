// Package querysql compiles run-log queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/cpurt/internal/ir"
	"github.com/roach88/cpurt/internal/queryir"
)

// Compile converts a query to SQL and its parameters.
//
// The query is validated first, so every identifier in the output comes
// from queryir.Tables. Values are always bound, never interpolated. Every
// Select carries the table's stable ORDER BY with COLLATE BINARY on text
// keys, so results never depend on insertion order.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return compileSelect(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	table := queryir.Tables[q.From]

	columns := q.Columns
	if len(columns) == 0 {
		columns = table.Columns
	}

	where, params, err := compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(columns, ", "),
		q.From,
		where,
		orderBy(table))
	return sql, params, nil
}

func compileWhere(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return pred.Field + " = ?", []any{param}, nil

	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, child := range pred.Predicates {
			sql, childParams, err := compilePredicate(child)
			if err != nil {
				return "", nil, err
			}
			if _, nested := child.(queryir.And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, childParams...)
		}
		return strings.Join(parts, " AND "), params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// orderBy renders a table's stable order. Text keys compare bytewise.
func orderBy(table queryir.Table) string {
	parts := make([]string, len(table.OrderBy))
	for i, col := range table.OrderBy {
		if textKey(col) {
			parts[i] = col + " COLLATE BINARY ASC"
		} else {
			parts[i] = col + " ASC"
		}
	}
	return strings.Join(parts, ", ")
}

func textKey(col string) bool {
	return col != "seq" && col != "ordinal"
}

// irValueToParam converts a scalar IR value to a SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRInt32:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
