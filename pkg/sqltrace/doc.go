// Package sqltrace provides heuristic SQL text analysis.
//
// Given a batch of SQL statements as raw text, the analyzer classifies each
// statement by action and category, extracts the objects, clauses and
// function calls it references, builds a table-level lineage graph for the
// whole batch, and derives column-level traceability rows from
// SELECT-bearing statements.
//
// The analysis is deliberately approximate. There is no AST: every stage is a
// pattern scan over normalized or raw statement text, so string literals and
// comments are not understood and a semicolon inside a literal splits the
// statement.
//
// # Basic Usage
//
//	a := sqltrace.New()
//	result := a.Analyze("INSERT INTO sales (id) SELECT id FROM orders")
//
//	for _, edge := range result.Lineage.Edges {
//	    fmt.Printf("%s -> %s\n", edge.From, edge.To)
//	}
//
// All pattern and keyword tables are compiled once at package init and are
// never written afterwards, so a single Analyzer may be shared by any number
// of goroutines.
package sqltrace
