package sqltrace

import (
	"regexp"
	"sort"
)

// sourcePatterns find table references for table-level lineage. They run in
// this order, so every FROM source precedes every JOIN source, which
// precedes every USING source.
var sourcePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bFROM\s+([^\s,;]+)`),
	regexp.MustCompile(`(?i)\bJOIN\s+([^\s,;]+)`),
	regexp.MustCompile(`(?i)\bUSING\s+([^\s,;]+)`),
}

// lineageTarget reports whether statements of this action write into their
// first object.
func lineageTarget(a Action) bool {
	switch a {
	case ActionCreateView, ActionCreateTable, ActionInsert, ActionMerge, ActionUpdate:
		return true
	default:
		return false
	}
}

// LineageSources returns every token following FROM, JOIN or USING in a
// normalized statement, deduplicated in first-seen order. Parenthesized
// subqueries and their aliases are not distinguished from tables.
func LineageSources(normalized string) []string {
	var sources []string
	for _, re := range sourcePatterns {
		for _, m := range re.FindAllStringSubmatch(normalized, -1) {
			sources = append(sources, m[1])
		}
	}
	return dedupe(sources)
}

// StatementLineage returns the edges contributed by one statement.
// Statements without a target or without sources contribute nothing.
func StatementLineage(normalized string, action Action, objects []string) []Edge {
	if !lineageTarget(action) || len(objects) == 0 {
		return nil
	}
	target := objects[0]

	var edges []Edge
	for _, source := range LineageSources(normalized) {
		if source == target {
			continue
		}
		edges = append(edges, Edge{From: source, To: target, Relation: RelationLineage})
	}
	return edges
}

// graphBuilder accumulates edges for a batch. Nodes are derived from edge
// endpoints only.
type graphBuilder struct {
	nodes map[string]struct{}
	edges []Edge
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{nodes: make(map[string]struct{})}
}

func (b *graphBuilder) add(edges []Edge) {
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		b.nodes[e.From] = struct{}{}
		b.nodes[e.To] = struct{}{}
		b.edges = append(b.edges, e)
	}
}

func (b *graphBuilder) graph() LineageGraph {
	nodes := make([]string, 0, len(b.nodes))
	for n := range b.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)
	return LineageGraph{Nodes: nodes, Edges: edges}
}
