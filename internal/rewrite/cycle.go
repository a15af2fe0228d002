package rewrite

import "github.com/roach88/cpurt/internal/ir"

// CycleDetector tracks which patterns produced each op during one run.
//
// A cycle occurs when a pattern is about to fire on an op whose ancestry
// already includes that pattern:
//
//	lower-a rewrites test.a -> test.b
//	lower-b rewrites test.b -> test.a
//	lower-a would fire on the new test.a  <- CYCLE DETECTED
//
// Ops present before the run have no ancestry. The check runs before the
// pattern is tried, so a pattern that would have declined its own output
// still trips it.
type CycleDetector struct {
	origins map[*ir.Op]map[string]bool
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{origins: make(map[*ir.Op]map[string]bool)}
}

// WouldCycle reports whether pattern already contributed to producing op.
func (c *CycleDetector) WouldCycle(op *ir.Op, pattern string) bool {
	return c.origins[op][pattern]
}

// Record marks every created op as produced by pattern applied to root.
// Created ops inherit root's ancestry.
func (c *CycleDetector) Record(root *ir.Op, created []*ir.Op, pattern string) {
	if len(created) == 0 {
		return
	}
	ancestry := make(map[string]bool, len(c.origins[root])+1)
	for p := range c.origins[root] {
		ancestry[p] = true
	}
	ancestry[pattern] = true
	for _, op := range created {
		c.origins[op] = ancestry
	}
	if root.IsErased() {
		delete(c.origins, root)
	}
}

// Len returns the number of ops with recorded ancestry.
func (c *CycleDetector) Len() int {
	return len(c.origins)
}
