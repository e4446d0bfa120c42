package output_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqltrace/internal/cli/output"
	"github.com/leapstack-labs/sqltrace/internal/cli/testutil"
	"github.com/leapstack-labs/sqltrace/internal/dag"
	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    output.Mode
		wantErr bool
	}{
		{"", output.ModeAuto, false},
		{"auto", output.ModeAuto, false},
		{"TEXT", output.ModeText, false},
		{"md", output.ModeMarkdown, false},
		{"markdown", output.ModeMarkdown, false},
		{" json ", output.ModeJSON, false},
		{"yaml", output.ModeYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := output.ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	assert.Equal(t, output.ModeText, testutil.NewTestRenderer(output.ModeAuto, true).EffectiveMode())
	assert.Equal(t, output.ModeMarkdown, testutil.NewTestRenderer(output.ModeAuto, false).EffectiveMode())
	assert.Equal(t, output.ModeJSON, testutil.NewTestRenderer(output.ModeJSON, true).EffectiveMode())
	assert.Equal(t, output.ModeMarkdown, testutil.NewTestRenderer("", false).EffectiveMode())
}

func TestRenderer_Header(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	tr.Header(2, "Lineage")
	assert.Equal(t, "## Lineage\n\n", tr.Output())

	tr = testutil.NewTestRenderer(output.ModeText, false)
	tr.Header(1, "Lineage")
	assert.Equal(t, "Lineage\n", tr.Output())
}

func TestRenderer_Messages(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeText, false)
	tr.Success("saved")
	tr.Warning("careful")
	tr.Error("broken")
	tr.Muted("quiet")

	assert.Equal(t, "✓ saved\nquiet\n", tr.Output())
	assert.Equal(t, "! careful\n✗ broken\n", tr.ErrorOutput())
	testutil.AssertNoANSI(t, tr.Output()+tr.ErrorOutput())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Runs", output.FormatHeader(0, "Runs"))
	assert.Equal(t, "### Runs", output.FormatHeader(3, "Runs"))
	assert.Equal(t, "- **Source:** http", output.FormatKeyValue("Source", "http"))
	assert.Equal(t, "Source Table", output.Title("source_table"))
	assert.Equal(t, "Upstream", output.Title("upstream"))
}

func sampleResult() *sqltrace.Result {
	return sqltrace.New().Analyze("CREATE VIEW v1 AS SELECT x FROM t WHERE x > 1")
}

func TestRenderResult_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	res := sampleResult()
	require.NoError(t, tr.RenderResult(res))

	var decoded sqltrace.Result
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &decoded))
	assert.Equal(t, *res, decoded)
	testutil.AssertOutputMode(t, tr, output.ModeJSON)
}

func TestRenderResult_YAML(t *testing.T) {
	tr := testutil.NewTestRendererYAML()
	require.NoError(t, tr.RenderResult(sampleResult()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(tr.Out.Bytes(), &decoded))
	assert.Contains(t, decoded, "statement_summary")
	assert.Contains(t, decoded, "lineage")
	testutil.AssertContains(t, tr.Output(), "relation: lineage")
}

func TestRenderResult_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, tr.RenderResult(sampleResult()))

	out := tr.Output()
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "## Statement Summary")
	testutil.AssertContains(t, out, "## Lineage")
	testutil.AssertContains(t, out, "- `T` → `V1`")
	testutil.AssertContains(t, out, "## Traceability")
	testutil.AssertContains(t, out, "T.X")
	testutil.AssertContains(t, out, "V1.X")
	testutil.AssertContains(t, out, "x > 1")
}

func TestRenderResult_Text(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeText, false)
	require.NoError(t, tr.RenderResult(sampleResult()))

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertContains(t, out, "Statement Summary")
	testutil.AssertContains(t, out, "CREATE VIEW")
	testutil.AssertContains(t, out, "T → V1")
	testutil.AssertNotContains(t, out, "## ")
}

func TestRenderResult_Empty(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, tr.RenderResult(sqltrace.New().Analyze("")))

	out := tr.Output()
	testutil.AssertContains(t, out, "No statements.")
	testutil.AssertContains(t, out, "No table lineage.")
	testutil.AssertContains(t, out, "No column traceability.")
}

func TestRenderHistory(t *testing.T) {
	runs := []*state.Run{{
		ID:             "run-1",
		Source:         "stdin",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		StatementCount: 3,
		EdgeCount:      2,
		RowCount:       4,
	}}
	stats := &state.Stats{Runs: 1, Statements: 3, Edges: 2, TraceabilityRows: 4, ByCategory: map[string]int{"DML": 2, "DDL": 1}}

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, tr.RenderHistory(runs, stats))
		out := tr.Output()
		testutil.AssertContains(t, out, "# Runs")
		testutil.AssertContains(t, out, "run-1")
		testutil.AssertContains(t, out, "stdin")
		testutil.AssertContains(t, out, "- **DDL:** 1")
		testutil.AssertContains(t, out, "- **Traceability Rows:** 4")
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, tr.RenderHistory(runs, stats))
		var decoded output.HistoryOutput
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &decoded))
		require.Len(t, decoded.Runs, 1)
		assert.Equal(t, "run-1", decoded.Runs[0].ID)
		assert.Equal(t, 2, decoded.Stats.ByCategory["DML"])
	})

	t.Run("empty", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, tr.RenderHistory(nil, nil))
		testutil.AssertContains(t, tr.Output(), "No runs recorded yet")
	})
}

func TestRenderRun(t *testing.T) {
	run := &state.Run{ID: "abc", Source: "a.sql", CreatedAt: time.Now()}
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, tr.RenderRun(run, sampleResult()))

	out := tr.Output()
	testutil.AssertContains(t, out, "# Run abc")
	testutil.AssertContains(t, out, "- **Source:** a.sql")
	testutil.AssertContains(t, out, "## Statement Summary")
}

func TestRenderLineage(t *testing.T) {
	lineage := output.LineageOutput{
		Table:    "MART",
		Upstream: []dag.Hop{{ID: "STAGE", Depth: 1}, {ID: "RAW", Depth: 2}},
	}

	t.Run("markdown skips unrequested direction", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, tr.RenderLineage(lineage))
		out := tr.Output()
		testutil.AssertContains(t, out, "# Lineage of MART")
		testutil.AssertContains(t, out, "## Upstream")
		testutil.AssertContains(t, out, "STAGE")
		testutil.AssertNotContains(t, out, "Downstream")
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, tr.RenderLineage(lineage))
		assert.JSONEq(t,
			`{"table":"MART","upstream":[{"id":"STAGE","depth":1},{"id":"RAW","depth":2}],"downstream":null}`,
			tr.Output())
	})

	t.Run("empty direction", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, tr.RenderLineage(output.LineageOutput{Table: "RAW", Upstream: []dag.Hop{}}))
		testutil.AssertContains(t, tr.Output(), "None.")
	})
}
