// Package queryir is a small query representation over the lowering run log.
//
// Queries name a run-log table, an optional conjunction of equality
// filters and the columns to return. They are validated against Tables,
// the fixed set of queryable tables, before a backend compiles them:
//
//	Select{
//	  From:   "rewrites",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "run_id", Value: ir.IRString("test-run-default")},
//	    Equals{Field: "seq", Value: ir.IRInt(2)},
//	  }},
//	}
//
// Query and Predicate are sealed; backends switch over them exhaustively.
// Values are restricted to scalar IR values so every filter compiles to a
// bound parameter.
package queryir
