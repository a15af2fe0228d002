package rewrite

import (
	"fmt"

	"github.com/roach88/cpurt/internal/ir"
)

// Pattern rewrites ops of a single kind.
//
// MatchAndRewrite returns (false, nil) to decline without touching the
// graph, (true, nil) after a successful rewrite, and a non-nil error for a
// failure that must abort the whole run. A pattern that declines must not
// have mutated anything.
type Pattern interface {
	// Name identifies the pattern in logs, errors and trace records.
	Name() string

	// Root is the op kind the pattern accepts.
	Root() ir.OpName

	// MatchAndRewrite inspects op and rewrites it through rw.
	MatchAndRewrite(op *ir.Op, rw *Rewriter) (bool, error)
}

// PatternSet is a table of patterns keyed by op kind.
//
// Registration order within one kind is preserved and is the order in
// which the driver tries patterns.
type PatternSet struct {
	byRoot map[ir.OpName][]Pattern
	names  map[string]bool
	order  []Pattern
}

// NewPatternSet creates a set holding the given patterns.
// Panics on duplicate pattern names (a programming error).
func NewPatternSet(patterns ...Pattern) *PatternSet {
	s := &PatternSet{
		byRoot: make(map[ir.OpName][]Pattern),
		names:  make(map[string]bool),
	}
	for _, p := range patterns {
		s.Add(p)
	}
	return s
}

// Add registers a pattern. Panics on duplicate pattern names.
func (s *PatternSet) Add(p Pattern) {
	if s.names[p.Name()] {
		panic(fmt.Sprintf("rewrite: duplicate pattern %q", p.Name()))
	}
	s.names[p.Name()] = true
	s.byRoot[p.Root()] = append(s.byRoot[p.Root()], p)
	s.order = append(s.order, p)
}

// ForOp returns the patterns accepting kind, in registration order.
func (s *PatternSet) ForOp(kind ir.OpName) []Pattern {
	return s.byRoot[kind]
}

// Patterns returns all patterns in registration order.
func (s *PatternSet) Patterns() []Pattern {
	out := make([]Pattern, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of registered patterns.
func (s *PatternSet) Len() int {
	return len(s.order)
}
