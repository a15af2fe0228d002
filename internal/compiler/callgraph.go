package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cpurt/internal/ir"
)

// CycleWarning reports recursion in a module's call graph.
//
// Recursion is a warning, not an error: the lowering is local to each op
// and terminates regardless. It is reported because the runtime executes
// functions without a call stack limit of its own.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["f", "g", "f"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCalls finds recursive function groups in m.
//
// The algorithm:
//  1. Build caller -> callee edges from func.call ops
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-call as a warning
//
// Calls to unknown symbols are ignored here; ValidateModule reports them.
func AnalyzeCalls(m *ir.Module) []CycleWarning {
	graph, order := buildCallGraph(m)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// callGraph maps a function name to the functions it calls, in call order.
type callGraph map[string][]string

func buildCallGraph(m *ir.Module) (callGraph, []string) {
	graph := make(callGraph)
	var order []string
	for _, f := range m.Funcs() {
		order = append(order, f.Name)
		graph[f.Name] = []string{}
		f.Walk(func(op *ir.Op) {
			if op.Name == ir.OpCall && m.Lookup(op.Callee) != nil {
				graph[f.Name] = append(graph[f.Name], op.Callee)
			}
		})
	}
	return graph, order
}

func hasSelfLoop(node string, graph callGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, visiting roots in order
// so the result is deterministic.
func tarjanSCC(graph callGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph callGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("function @%s calls itself", name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("recursive call cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its last-popped
// member back to the start.
func reconstructCyclePath(scc []string, graph callGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
