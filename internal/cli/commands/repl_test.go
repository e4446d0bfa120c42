package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqltrace/internal/cli/output"
	"github.com/leapstack-labs/sqltrace/internal/cli/testutil"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

func newTestSession(mode output.Mode) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cc := &CommandContext{
		Analyzer: sqltrace.New(),
		Renderer: output.NewRendererWithTTY(out, errOut, false, mode),
	}
	return newREPLSession(cc, out, errOut), out, errOut
}

func TestREPL_AccumulatesUntilSemicolon(t *testing.T) {
	s, out, _ := newTestSession(output.ModeJSON)

	assert.False(t, s.handleLine("INSERT INTO sales (id)"))
	assert.Equal(t, replContinuePrompt, s.prompt())
	assert.Empty(t, out.String())

	assert.False(t, s.handleLine("  SELECT id FROM orders;  "))
	assert.Equal(t, replPrompt, s.prompt())

	var res sqltrace.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Len(t, res.StatementSummary, 1)
	assert.Equal(t, "INSERT INTO sales (id) SELECT id FROM orders", res.StatementSummary[0].Statement)
	assert.Equal(t, []sqltrace.Edge{{From: "ORDERS", To: "SALES", Relation: "lineage"}}, res.Lineage.Edges)
}

func TestREPL_DotCommands(t *testing.T) {
	s, out, errOut := newTestSession(output.ModeMarkdown)

	assert.False(t, s.handleLine(".help"))
	testutil.AssertContains(t, out.String(), ".mode [format]")

	out.Reset()
	assert.False(t, s.handleLine(".mode"))
	assert.Equal(t, "Current mode: markdown\n", out.String())

	out.Reset()
	assert.False(t, s.handleLine(".mode yaml"))
	assert.Equal(t, "Output mode set to yaml\n", out.String())
	assert.Equal(t, output.ModeYAML, s.cc.Renderer.EffectiveMode())

	assert.False(t, s.handleLine(".mode xml"))
	testutil.AssertContains(t, errOut.String(), "unknown output mode")

	assert.False(t, s.handleLine(".bogus"))
	testutil.AssertContains(t, errOut.String(), "Unknown command: .bogus")

	assert.True(t, s.handleLine(".quit"))
	assert.True(t, s.handleLine(".EXIT"))
}

func TestREPL_DotInsidePendingBatchIsSQL(t *testing.T) {
	s, out, _ := newTestSession(output.ModeJSON)

	s.handleLine("SELECT a")
	assert.False(t, s.handleLine(".quit"))
	assert.Equal(t, replContinuePrompt, s.prompt())

	s.reset()
	assert.Equal(t, replPrompt, s.prompt())
	assert.Empty(t, out.String())
	assert.False(t, s.handleLine("   "))
}

func TestREPLHistoryFile(t *testing.T) {
	assert.Empty(t, replHistoryFile(":memory:"))
	assert.Empty(t, replHistoryFile(""))

	dir := t.TempDir()
	got := replHistoryFile(filepath.Join(dir, "nested", "state.db"))
	assert.Equal(t, filepath.Join(dir, "nested", "repl_history"), got)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}
