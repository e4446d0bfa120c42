// Package dag provides directed graph operations over table-level lineage.
// It supports cycle detection, topological sorting and depth-bounded
// upstream/downstream traversal.
package dag

import (
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// Errors returned by graph operations.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrSelfLoop     = errors.New("self-loop")
)

// Graph is a directed graph of tables. An edge parent -> child means the
// child reads from the parent.
type Graph struct {
	nodes    map[string]struct{}
	children map[string][]string // parent -> children (dependents)
	parents  map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// FromEdges builds a graph from lineage edges. Self loops are skipped and
// repeated edges collapse into one.
func FromEdges(edges []sqltrace.Edge) *Graph {
	g := NewGraph()
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		g.AddNode(e.From)
		g.AddNode(e.To)
		_ = g.AddEdge(e.From, e.To)
	}
	return g
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = struct{}{}
	g.children[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent %q: %w", parentID, ErrNodeNotFound)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child %q: %w", childID, ErrNodeNotFound)
	}
	if parentID == childID {
		return fmt.Errorf("%w: %s", ErrSelfLoop, parentID)
	}

	if !contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Parents returns the direct dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct dependents of a node.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Nodes returns all node IDs, sorted.
func (g *Graph) Nodes() []string {
	return g.sortedIDs()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.children {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
// Lineage built from INSERT ... SELECT round trips can legitimately be cyclic.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.children[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns node IDs with dependencies before dependents.
// Returns an error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range g.parents[id] {
			visit(parentID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return result, nil
}

// Hop is a node reached by a traversal and its distance from the start.
type Hop struct {
	ID    string `json:"id" yaml:"id"`
	Depth int    `json:"depth" yaml:"depth"`
}

// Upstream returns the tables id reads from, directly or transitively.
// depth <= 0 means unlimited. Hops are ordered by depth, then ID.
func (g *Graph) Upstream(id string, depth int) ([]Hop, error) {
	return g.walk(id, depth, g.parents)
}

// Downstream returns the tables that read from id, directly or transitively.
// depth <= 0 means unlimited. Hops are ordered by depth, then ID.
func (g *Graph) Downstream(id string, depth int) ([]Hop, error) {
	return g.walk(id, depth, g.children)
}

// walk is a breadth-first traversal; each node is reported at its
// shortest distance and the start node is never reported.
func (g *Graph) walk(id string, depth int, next map[string][]string) ([]Hop, error) {
	if !g.HasNode(id) {
		return nil, fmt.Errorf("%q: %w", id, ErrNodeNotFound)
	}

	seen := map[string]bool{id: true}
	frontier := []string{id}
	hops := []Hop{}

	for level := 1; len(frontier) > 0 && (depth <= 0 || level <= depth); level++ {
		var nextFrontier []string
		for _, n := range frontier {
			for _, m := range next[n] {
				if seen[m] {
					continue
				}
				seen[m] = true
				nextFrontier = append(nextFrontier, m)
				hops = append(hops, Hop{ID: m, Depth: level})
			}
		}
		frontier = nextFrontier
	}

	sort.SliceStable(hops, func(i, j int) bool {
		if hops[i].Depth != hops[j].Depth {
			return hops[i].Depth < hops[j].Depth
		}
		return hops[i].ID < hops[j].ID
	})
	return hops, nil
}

// Roots returns nodes with no parents (pure sources).
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.sortedIDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes with no children (final targets).
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.sortedIDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
