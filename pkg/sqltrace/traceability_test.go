package sqltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row is a flattened TraceabilityRow for comparisons; "" stands for nil.
type row struct {
	srcSchema, srcTable, srcField    string
	destSchema, destTable, destField string
	logic, filter                    string
}

func flatten(rows []TraceabilityRow) []row {
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		out = append(out, row{
			srcSchema:  Deref(r.SourceSchema),
			srcTable:   Deref(r.SourceTable),
			srcField:   Deref(r.SourceField),
			destSchema: Deref(r.DestinationSchema),
			destTable:  Deref(r.DestinationTable),
			destField:  Deref(r.DestinationField),
			logic:      r.Logic,
			filter:     Deref(r.Filter),
		})
	}
	return out
}

func TestExtractTraceability(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []row
	}{
		{
			name: "plain select",
			sql:  "SELECT a FROM t1",
			want: []row{{srcTable: "T1", srcField: "A", destField: "A", logic: "a"}},
		},
		{
			name: "insert with column list",
			sql:  "INSERT INTO SALES (ID, TOTAL) SELECT ID, AMOUNT FROM ORDERS",
			want: []row{
				{srcTable: "ORDERS", srcField: "ID", destTable: "SALES", destField: "ID", logic: "ID"},
				{srcTable: "ORDERS", srcField: "AMOUNT", destTable: "SALES", destField: "TOTAL", logic: "AMOUNT"},
			},
		},
		{
			name: "insert with fewer columns than items",
			sql:  "INSERT INTO s (x) SELECT a, b FROM t",
			want: []row{
				{srcTable: "T", srcField: "A", destTable: "S", destField: "X", logic: "a"},
				{srcTable: "T", srcField: "B", destTable: "S", destField: "B", logic: "b"},
			},
		},
		{
			name: "aliases resolve through the from section",
			sql: "SELECT o.id AS order_id, c.name customer FROM sales.orders o " +
				"JOIN crm.customers AS c ON o.cust = c.id WHERE o.total > 10 ORDER BY 1",
			want: []row{
				{srcSchema: "SALES", srcTable: "ORDERS", srcField: "ID", destField: "ORDER_ID", logic: "o.id", filter: "o.total > 10"},
				{srcSchema: "CRM", srcTable: "CUSTOMERS", srcField: "NAME", destField: "CUSTOMER", logic: "c.name", filter: "o.total > 10"},
			},
		},
		{
			name: "create table as",
			sql: "CREATE TABLE dw.daily AS SELECT d.day, COUNT(*) AS n FROM raw.events d " +
				"WHERE d.kind = 'click' GROUP BY d.day",
			want: []row{
				{srcSchema: "RAW", srcTable: "EVENTS", srcField: "DAY", destSchema: "DW", destTable: "DAILY", destField: "DAY", logic: "d.day", filter: "d.kind = 'click'"},
				{srcSchema: "RAW", srcTable: "EVENTS", srcField: "COUNT", destSchema: "DW", destTable: "DAILY", destField: "N", logic: "COUNT(*)", filter: "d.kind = 'click'"},
			},
		},
		{
			name: "create view as",
			sql:  "CREATE VIEW V1 AS SELECT X FROM T",
			want: []row{{srcTable: "T", srcField: "X", destTable: "V1", destField: "X", logic: "X"}},
		},
		{
			name: "nested commas stay in one item",
			sql:  "SELECT COALESCE(a, b) AS x, SUM(c) FROM t GROUP BY x",
			want: []row{
				{srcTable: "T", srcField: "COALESCE", destField: "X", logic: "COALESCE(a, b)"},
				{srcTable: "T", srcField: "SUM", destField: "SUM", logic: "SUM(c)"},
			},
		},
		{
			name: "schema qualified column",
			sql:  "SELECT db1.orders.amount FROM db1.orders",
			want: []row{{srcSchema: "DB1", srcTable: "ORDERS", srcField: "AMOUNT", destField: "AMOUNT", logic: "db1.orders.amount"}},
		},
		{
			name: "unknown qualifier is taken literally",
			sql:  "SELECT x.a FROM t",
			want: []row{{srcTable: "X", srcField: "A", destField: "A", logic: "x.a"}},
		},
		{
			name: "cast is not split on AS",
			sql:  "SELECT CAST(a AS INT) FROM t",
			want: []row{{srcTable: "T", srcField: "CAST", destField: "CAST", logic: "CAST(a AS INT)"}},
		},
		{
			// A trailing bare word is read as an implicit alias.
			name: "implicit alias heuristic",
			sql:  "SELECT a + b FROM t",
			want: []row{{srcTable: "T", srcField: "A", destField: "B", logic: "a +"}},
		},
		{
			name: "where ends at limit",
			sql:  "SELECT a FROM t WHERE a > 1 LIMIT 5",
			want: []row{{srcTable: "T", srcField: "A", destField: "A", logic: "a", filter: "a > 1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flatten(ExtractTraceability(tt.sql)))
		})
	}
}

func TestExtractTraceability_NoSelect(t *testing.T) {
	for _, sql := range []string{
		"CREATE TABLE t (a INT)",
		"DELETE FROM t",
		"SELECT 1",
		"",
	} {
		assert.Empty(t, ExtractTraceability(sql), sql)
	}
}

func TestExtractTraceability_NullFields(t *testing.T) {
	rows := ExtractTraceability("SELECT a FROM t1")
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].SourceSchema)
	assert.Nil(t, rows[0].DestinationSchema)
	assert.Nil(t, rows[0].DestinationTable)
	assert.Nil(t, rows[0].Filter)
	require.NotNil(t, rows[0].SourceTable)
	assert.Equal(t, "T1", *rows[0].SourceTable)
}

func TestExtractSources(t *testing.T) {
	set := extractSources("a x JOIN b ON a.id = b.id LEFT JOIN c USING (id)")
	assert.Equal(t, []string{"a", "b", "c"}, set.tables)
	assert.Equal(t, map[string]string{"X": "a"}, set.aliases)
}

func TestSplitSelectItems(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a, f(b, c), (d), e", []string{"a", "f(b, c)", "(d)", "e"}},
		{"a), b", []string{"a)", "b"}},
		{" , a ,", []string{"a"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSelectItems(tt.in), tt.in)
	}
}

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		in, schema, table string
	}{
		{"", "", ""},
		{"t", "", "t"},
		{"s.t", "s", "t"},
		{"c.s.t", "s", "t"},
	}
	for _, tt := range tests {
		schema, table := splitIdentifier(tt.in)
		assert.Equal(t, tt.schema, schema, tt.in)
		assert.Equal(t, tt.table, table, tt.in)
	}
}
