package queryir

import (
	"slices"

	"github.com/roach88/cpurt/internal/ir"
)

// Query is a sealed query node.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter node.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <table order>
//
// An empty Columns selects every column of the table in schema order.
type Select struct {
	From    string
	Filter  Predicate // nil = no filter
	Columns []string
}

func (Select) queryNode() {}

// Equals holds when a column equals a scalar value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And holds when every predicate holds. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Table describes a queryable run-log table.
type Table struct {
	Columns []string
	// OrderBy is the stable sort key, most significant first.
	OrderBy []string
}

// Tables lists the run-log tables with their columns in schema order.
var Tables = map[string]Table{
	"runs": {
		Columns: []string{"id", "module", "input_fingerprint", "output_fingerprint", "status",
			"error_code", "error", "rewrites", "iterations", "seq", "tool_version", "ir_version"},
		OrderBy: []string{"seq", "id"},
	},
	"rewrites": {
		Columns: []string{"run_id", "seq", "pattern", "op", "func", "target", "attrs"},
		OrderBy: []string{"run_id", "seq"},
	},
	"declarations": {
		Columns: []string{"run_id", "ordinal", "symbol", "target", "signature"},
		OrderBy: []string{"run_id", "ordinal"},
	},
}

// FromEqualities builds the conjunction of field = value for each entry,
// in key order. It returns nil for an empty map.
func FromEqualities(fields map[string]ir.IRValue) Predicate {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	and := And{Predicates: make([]Predicate, 0, len(keys))}
	for _, k := range keys {
		and.Predicates = append(and.Predicates, Equals{Field: k, Value: fields[k]})
	}
	return and
}
