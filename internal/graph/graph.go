// Package graph builds the dependency graph of a decomposition and derives
// its leveled execution plan.
package graph

import (
	"fmt"
	"slices"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// DependencyGraph is a directed graph of subtask dependencies. Subtasks are
// nodes, and edges point from a subtask to the subtasks it depends on.
// It is immutable once built.
type DependencyGraph struct {
	// order holds subtask IDs in decomposition order.
	order []string
	// index maps a subtask ID to its position in order.
	index map[string]int
	// nodes maps subtask ID to the subtask itself.
	nodes map[string]models.Subtask
	// edges maps subtask ID to the IDs it depends on, deduplicated.
	edges map[string][]string
	// dependents is the reverse of edges.
	dependents map[string][]string
}

// Build constructs the dependency graph from subtasks.
// Returns a *MissingDependencyError if a dependency references an unknown
// subtask. Cycles are reported by Levels.
func Build(subtasks []models.Subtask) (*DependencyGraph, error) {
	g := &DependencyGraph{
		order:      make([]string, 0, len(subtasks)),
		index:      make(map[string]int, len(subtasks)),
		nodes:      make(map[string]models.Subtask, len(subtasks)),
		edges:      make(map[string][]string, len(subtasks)),
		dependents: make(map[string][]string, len(subtasks)),
	}

	// First pass: register all subtasks as nodes.
	for _, st := range subtasks {
		if _, dup := g.nodes[st.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, st.ID)
		}
		g.index[st.ID] = len(g.order)
		g.order = append(g.order, st.ID)
		g.nodes[st.ID] = st
	}

	// Second pass: build edges from DependsOn.
	for _, st := range subtasks {
		seen := make(map[string]bool, len(st.DependsOn))
		for _, depID := range st.DependsOn {
			if _, ok := g.nodes[depID]; !ok {
				return nil, &MissingDependencyError{TaskID: st.ID, DependencyID: depID}
			}
			if seen[depID] {
				continue
			}
			seen[depID] = true
			g.edges[st.ID] = append(g.edges[st.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], st.ID)
		}
	}

	return g, nil
}

// Levels groups subtasks into execution levels with Kahn's algorithm. Each
// removal round is one level, and members keep decomposition order.
// Returns a *CycleError naming the unremovable residue if the graph is cyclic.
func (g *DependencyGraph) Levels() ([][]string, error) {
	remaining := make(map[string]int, len(g.order))
	var current []string
	for _, id := range g.order {
		remaining[id] = len(g.edges[id])
		if remaining[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	placed := 0
	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)

		var next []string
		for _, id := range current {
			for _, dependent := range g.dependents[id] {
				remaining[dependent]--
				if remaining[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		slices.SortFunc(next, func(a, b string) int { return g.index[a] - g.index[b] })
		current = next
	}

	if placed < len(g.order) {
		var residual []string
		for id, n := range remaining {
			if n > 0 {
				residual = append(residual, id)
			}
		}
		slices.Sort(residual)
		return nil, &CycleError{Residual: residual, Path: g.cyclePath(residual)}
	}

	return levels, nil
}

// cyclePath walks dependency edges inside residual until an ID repeats.
// Every residual node has at least one dependency inside residual, so the
// walk always closes a cycle.
func (g *DependencyGraph) cyclePath(residual []string) []string {
	inResidual := make(map[string]bool, len(residual))
	for _, id := range residual {
		inResidual[id] = true
	}

	pos := make(map[string]int)
	var path []string
	id := residual[0]
	for {
		if at, ok := pos[id]; ok {
			return append(path[at:], id)
		}
		pos[id] = len(path)
		path = append(path, id)

		next := ""
		for _, dep := range g.edges[id] {
			if inResidual[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		id = next
	}
}

// TopologicalSort returns subtask IDs in an order where every subtask comes
// after its dependencies.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	return slices.Concat(levels...), nil
}

// GetTask returns a subtask by ID.
func (g *DependencyGraph) GetTask(id string) (models.Subtask, bool) {
	st, ok := g.nodes[id]
	return st, ok
}

// Size returns the number of subtasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.order)
}

// Order returns subtask IDs in decomposition order.
func (g *DependencyGraph) Order() []string {
	return slices.Clone(g.order)
}

// GetDependencies returns the IDs a subtask depends on.
func (g *DependencyGraph) GetDependencies(id string) []string {
	return slices.Clone(g.edges[id])
}

// GetDependents returns the IDs that depend on a subtask.
func (g *DependencyGraph) GetDependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Ancestors returns every subtask reachable through dependency edges.
func (g *DependencyGraph) Ancestors(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := slices.Clone(g.edges[id])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.edges[n]...)
	}
	return seen
}
