package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cpurt/internal/ir"
)

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"select all", Select{From: "runs"}},
		{"select columns", Select{From: "rewrites", Columns: []string{"seq", "target"}}},
		{"filtered", Select{
			From: "rewrites",
			Filter: And{Predicates: []Predicate{
				Equals{Field: "run_id", Value: ir.IRString("run-1")},
				Equals{Field: "seq", Value: ir.IRInt(2)},
			}},
		}},
		{"empty and", Select{From: "declarations", Filter: And{}}},
		{"target", Select{From: "declarations", Filter: Equals{Field: "target", Value: ir.IRString("xla.cpu.infeed")}}},
		{"int32 and bool", Select{From: "runs", Filter: And{Predicates: []Predicate{
			Equals{Field: "rewrites", Value: ir.IRInt32(2)},
			Equals{Field: "status", Value: ir.IRBool(true)},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.query))
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"nil", nil, []string{"nil query"}},
		{"unknown table", Select{From: "runs; DROP TABLE runs"}, []string{`unknown table "runs; DROP TABLE runs"`}},
		{"unknown column", Select{From: "runs", Columns: []string{"flavor"}}, []string{`unknown column "flavor" in runs`}},
		{"unknown filter column", Select{From: "rewrites", Filter: Equals{Field: "id = 1 OR 1", Value: ir.IRInt(1)}},
			[]string{`unknown column "id = 1 OR 1" in rewrites`}},
		{"non-scalar", Select{From: "runs", Filter: Equals{Field: "id", Value: ir.IRArray{}}},
			[]string{`column "id" compared with non-scalar ir.IRArray`}},
		{"null", Select{From: "runs", Filter: Equals{Field: "id", Value: ir.IRNull{}}},
			[]string{"non-scalar ir.IRNull"}},
		{"every problem", Select{
			From:    "runs",
			Columns: []string{"a"},
			Filter:  And{Predicates: []Predicate{Equals{Field: "b", Value: ir.IRString("x")}}},
		}, []string{`unknown column "a"`, `unknown column "b"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestFromEqualities(t *testing.T) {
	assert.Nil(t, FromEqualities(nil))

	got := FromEqualities(map[string]ir.IRValue{
		"seq":    ir.IRInt(1),
		"run_id": ir.IRString("run-1"),
	})
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "run_id", Value: ir.IRString("run-1")},
		Equals{Field: "seq", Value: ir.IRInt(1)},
	}}, got)
}

func TestTablesOrderByKnownColumns(t *testing.T) {
	for name, table := range Tables {
		for _, col := range table.OrderBy {
			assert.Contains(t, table.Columns, col, "table %s", name)
		}
	}
}
