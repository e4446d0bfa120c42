package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/sqltrace/internal/dag"
	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// statementWidth caps the statement column in text mode; longer text wraps.
const statementWidth = 48

// RunOutput is the structured form of a stored run.
type RunOutput struct {
	Run    *state.Run       `json:"run" yaml:"run"`
	Result *sqltrace.Result `json:"result" yaml:"result"`
}

// HistoryOutput is the structured form of the run history.
type HistoryOutput struct {
	Runs  []*state.Run `json:"runs" yaml:"runs"`
	Stats *state.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// LineageOutput is the structured form of a lineage query. A nil direction
// was not requested.
type LineageOutput struct {
	Table      string    `json:"table" yaml:"table"`
	Upstream   []dag.Hop `json:"upstream" yaml:"upstream"`
	Downstream []dag.Hop `json:"downstream" yaml:"downstream"`
}

// table renders rows as a light box table in text mode or a pipe table in
// markdown mode.
func (r *Renderer) table(header table.Row, rows []table.Row, configs ...table.ColumnConfig) {
	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(rows)

	if r.EffectiveMode() == ModeMarkdown {
		r.Println(t.RenderMarkdown())
		r.Println()
		return
	}

	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs(configs)
	if r.isTTY {
		t.Style().Color.Header = text.Colors{text.Bold}
	}
	r.Println(t.Render())
}

// RenderResult writes a full analysis.
func (r *Renderer) RenderResult(res *sqltrace.Result) error {
	if ok, err := r.Structured(res); ok {
		return err
	}
	r.renderSummary(res.StatementSummary)
	r.renderLineage(res.Lineage)
	r.renderTraceability(res.Traceability)
	return nil
}

func (r *Renderer) renderSummary(records []sqltrace.StatementRecord) {
	r.Header(2, "Statement Summary")
	if len(records) == 0 {
		r.Muted("No statements.")
		r.Println()
		return
	}

	rows := make([]table.Row, 0, len(records))
	for i, rec := range records {
		rows = append(rows, table.Row{
			i + 1,
			rec.Statement,
			string(rec.Category),
			rec.Action,
			joinOrDash(rec.Objects),
			joinOrDash(rec.Clauses),
			joinOrDash(rec.Functions),
		})
	}
	r.table(
		table.Row{"#", "Statement", "Category", "Action", "Objects", "Clauses", "Functions"},
		rows,
		table.ColumnConfig{Number: 2, WidthMax: statementWidth},
	)
}

func (r *Renderer) renderLineage(g sqltrace.LineageGraph) {
	r.Header(2, "Lineage")
	if len(g.Edges) == 0 {
		r.Muted("No table lineage.")
		r.Println()
		return
	}

	if r.EffectiveMode() == ModeMarkdown {
		for _, e := range g.Edges {
			r.Printf("- `%s` → `%s`\n", e.From, e.To)
		}
		r.Println()
		return
	}
	for _, e := range g.Edges {
		r.Printf("  %s → %s\n", r.styles.TableName.Render(e.From), r.styles.TableName.Render(e.To))
	}
	r.Println()
}

func (r *Renderer) renderTraceability(rows []sqltrace.TraceabilityRow) {
	r.Header(2, "Traceability")
	if len(rows) == 0 {
		r.Muted("No column traceability.")
		r.Println()
		return
	}

	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, table.Row{
			qualified(row.SourceSchema, row.SourceTable, row.SourceField),
			qualified(row.DestinationSchema, row.DestinationTable, row.DestinationField),
			row.Logic,
			orDash(sqltrace.Deref(row.Filter)),
		})
	}
	r.table(table.Row{"Source", "Destination", "Logic", "Filter"}, out)
}

// qualified joins the non-nil parts of a dotted name.
func qualified(parts ...*string) string {
	var names []string
	for _, p := range parts {
		if v := sqltrace.Deref(p); v != "" {
			names = append(names, v)
		}
	}
	return orDash(strings.Join(names, "."))
}

// RenderRun writes one stored run and its analysis.
func (r *Renderer) RenderRun(run *state.Run, res *sqltrace.Result) error {
	if ok, err := r.Structured(RunOutput{Run: run, Result: res}); ok {
		return err
	}

	r.Header(1, "Run "+run.ID)
	r.keyValues([][2]string{
		{"Source", run.Source},
		{"Created", run.CreatedAt.Local().Format(time.DateTime)},
		{"Statements", fmt.Sprint(run.StatementCount)},
	})
	r.Println()
	return r.RenderResult(res)
}

// RenderHistory writes the run list and optional store totals.
func (r *Renderer) RenderHistory(runs []*state.Run, stats *state.Stats) error {
	if ok, err := r.Structured(HistoryOutput{Runs: runs, Stats: stats}); ok {
		return err
	}

	r.Header(1, "Runs")
	if len(runs) == 0 {
		r.Muted("No runs recorded yet. Use 'sqltrace analyze --save' to record one.")
		return nil
	}

	rows := make([]table.Row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, table.Row{
			run.ID,
			run.Source,
			run.CreatedAt.Local().Format(time.DateTime),
			run.StatementCount,
			run.EdgeCount,
			run.RowCount,
		})
	}
	r.table(table.Row{"ID", "Source", "Created", "Statements", "Edges", "Rows"}, rows)

	if stats != nil {
		r.renderStats(stats)
	}
	return nil
}

func (r *Renderer) renderStats(stats *state.Stats) {
	r.Header(2, "Totals")
	pairs := [][2]string{
		{"Runs", fmt.Sprint(stats.Runs)},
		{"Statements", fmt.Sprint(stats.Statements)},
		{"Edges", fmt.Sprint(stats.Edges)},
		{"Traceability Rows", fmt.Sprint(stats.TraceabilityRows)},
	}
	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		pairs = append(pairs, [2]string{c, fmt.Sprint(stats.ByCategory[c])})
	}
	r.keyValues(pairs)
}

// RenderLineage writes the result of an upstream/downstream query.
func (r *Renderer) RenderLineage(out LineageOutput) error {
	if ok, err := r.Structured(out); ok {
		return err
	}

	r.Header(1, "Lineage of "+out.Table)
	if out.Upstream != nil {
		r.renderHops("upstream", out.Upstream)
	}
	if out.Downstream != nil {
		r.renderHops("downstream", out.Downstream)
	}
	return nil
}

func (r *Renderer) renderHops(direction string, hops []dag.Hop) {
	r.Header(2, Title(direction))
	if len(hops) == 0 {
		r.Muted("None.")
		r.Println()
		return
	}
	rows := make([]table.Row, 0, len(hops))
	for _, h := range hops {
		rows = append(rows, table.Row{h.Depth, h.ID})
	}
	r.table(table.Row{"Depth", "Table"}, rows)
}

func (r *Renderer) keyValues(pairs [][2]string) {
	for _, kv := range pairs {
		if r.EffectiveMode() == ModeMarkdown {
			r.Println(FormatKeyValue(kv[0], kv[1]))
			continue
		}
		r.Printf("%s %s\n", r.styles.Muted.Render(kv[0]+":"), kv[1])
	}
}
