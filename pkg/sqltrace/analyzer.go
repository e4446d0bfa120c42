package sqltrace

import (
	"log/slog"
)

// Analyzer runs the analysis pipeline. The zero value is not usable; call New.
// An Analyzer holds no per-call state and may be used concurrently.
type Analyzer struct {
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for debug tracing of each statement.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze analyzes a batch of ';'-separated statements. It never fails:
// empty or malformed input yields a Result with empty collections.
func (a *Analyzer) Analyze(text string) *Result {
	result := newResult()
	graph := newGraphBuilder()
	rows := newRowSet()

	for i, stmt := range SplitStatements(text) {
		record, edges := analyzeStatement(stmt)
		result.StatementSummary = append(result.StatementSummary, record)

		traced := ExtractTraceability(stmt)
		rows.add(traced)
		graph.add(edges)

		a.logger.Debug("analyzed statement",
			"index", i,
			"action", record.Action,
			"category", record.Category,
			"objects", len(record.Objects),
			"traceability_rows", len(traced),
			"edges", len(edges),
		)
	}

	result.Traceability = rows.rows
	result.Lineage = graph.graph()
	return result
}

// AnalyzeStatement summarizes a single statement without splitting.
func AnalyzeStatement(statement string) StatementRecord {
	record, _ := analyzeStatement(statement)
	return record
}

func analyzeStatement(stmt string) (StatementRecord, []Edge) {
	normalized := Normalize(stmt)
	class := Classify(normalized)
	objects := ExtractObjects(normalized, class.Action)

	record := StatementRecord{
		Statement: stmt,
		Category:  class.Category(),
		Action:    class.Keyword,
		Objects:   objects,
		Clauses:   DetectClauses(normalized),
		Functions: DetectFunctions(normalized),
	}
	return record, StatementLineage(normalized, class.Action, objects)
}

// rowSet keeps traceability rows in order and drops exact repeats.
type rowSet struct {
	seen map[rowKey]struct{}
	rows []TraceabilityRow
}

type rowKey struct {
	sourceSchema, sourceTable, sourceField string
	destSchema, destTable, destField       string
	logic, filter                          string
	nullMask                               uint8
}

func newRowSet() *rowSet {
	return &rowSet{seen: make(map[rowKey]struct{}), rows: []TraceabilityRow{}}
}

func (s *rowSet) add(rows []TraceabilityRow) {
	for _, r := range rows {
		k := keyOf(r)
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.rows = append(s.rows, r)
	}
}

// keyOf flattens a row; nullMask keeps nil distinct from "".
func keyOf(r TraceabilityRow) rowKey {
	fields := []*string{
		r.SourceSchema, r.SourceTable, r.SourceField,
		r.DestinationSchema, r.DestinationTable, r.DestinationField,
		r.Filter,
	}
	var mask uint8
	for i, f := range fields {
		if f == nil {
			mask |= 1 << i
		}
	}
	return rowKey{
		sourceSchema: Deref(r.SourceSchema),
		sourceTable:  Deref(r.SourceTable),
		sourceField:  Deref(r.SourceField),
		destSchema:   Deref(r.DestinationSchema),
		destTable:    Deref(r.DestinationTable),
		destField:    Deref(r.DestinationField),
		logic:        r.Logic,
		filter:       Deref(r.Filter),
		nullMask:     mask,
	}
}
