package sqltrace

// RelationLineage is the only relation carried by lineage edges.
const RelationLineage = "lineage"

// StatementRecord summarizes one input statement.
type StatementRecord struct {
	Statement string   `json:"statement" yaml:"statement"`
	Category  Category `json:"category" yaml:"category"`
	Action    string   `json:"action" yaml:"action"`
	Objects   []string `json:"objects" yaml:"objects"`
	Clauses   []string `json:"clauses" yaml:"clauses"`
	Functions []string `json:"functions" yaml:"functions"`
}

// Edge is a directed table-level dependency: To reads from From.
type Edge struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	Relation string `json:"relation" yaml:"relation"`
}

// LineageGraph is the table-level lineage of a batch.
// Nodes are sorted; edges keep discovery order.
type LineageGraph struct {
	Nodes []string `json:"nodes" yaml:"nodes"`
	Edges []Edge   `json:"edges" yaml:"edges"`
}

// TraceabilityRow maps one select item to its resolved source and destination.
// Nil fields mean the value could not be extracted.
type TraceabilityRow struct {
	SourceSchema      *string `json:"source_schema" yaml:"source_schema"`
	SourceTable       *string `json:"source_table" yaml:"source_table"`
	SourceField       *string `json:"source_field" yaml:"source_field"`
	DestinationSchema *string `json:"destination_schema" yaml:"destination_schema"`
	DestinationTable  *string `json:"destination_table" yaml:"destination_table"`
	DestinationField  *string `json:"destination_field" yaml:"destination_field"`
	Logic             string  `json:"logic" yaml:"logic"`
	Filter            *string `json:"filter" yaml:"filter"`
}

// Result is the analysis of a whole batch.
type Result struct {
	Traceability     []TraceabilityRow `json:"traceability" yaml:"traceability"`
	StatementSummary []StatementRecord `json:"statement_summary" yaml:"statement_summary"`
	Lineage          LineageGraph      `json:"lineage" yaml:"lineage"`
}

// newResult returns a Result whose collections are empty rather than nil,
// so they serialize as [] instead of null.
func newResult() *Result {
	return &Result{
		Traceability:     []TraceabilityRow{},
		StatementSummary: []StatementRecord{},
		Lineage: LineageGraph{
			Nodes: []string{},
			Edges: []Edge{},
		},
	}
}

// strPtr returns a pointer to s, or nil when s is empty.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
