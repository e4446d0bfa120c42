package sqltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		action   Action
		keyword  string
		category Category
	}{
		{"explain analyze beats explain", "EXPLAIN ANALYZE SELECT 1", ActionExplainAnalyze, "EXPLAIN ANALYZE", CategoryUtility},
		{"plain explain", "explain select 1", ActionExplain, "EXPLAIN", CategoryUtility},
		{"select", "select a from t", ActionSelect, "SELECT", CategoryDML},
		{"create table", "CREATE TABLE t (a int)", ActionCreateTable, "CREATE TABLE", CategoryDDL},
		{"create view", "create   view v as select 1", ActionCreateView, "CREATE VIEW", CategoryDDL},
		{"start transaction", "START TRANSACTION", ActionStartTransaction, "START TRANSACTION", CategoryTCL},
		{"set transaction", "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE", ActionSetTransaction, "SET TRANSACTION", CategoryTCL},
		{"grant", "GRANT SELECT ON orders TO analyst", ActionGrant, "GRANT", CategoryDCL},
		{"revoke", "REVOKE ALL ON orders FROM analyst", ActionRevoke, "REVOKE", CategoryDCL},
		{"merge", "MERGE INTO t USING s ON t.id = s.id", ActionMerge, "MERGE", CategoryDML},
		{"unknown keyword falls back to first token", "WITH x AS (SELECT 1) SELECT * FROM x", ActionOther, "WITH", CategoryUnknown},
		{"set without transaction", "SET search_path = public", ActionOther, "SET", CategoryUnknown},
		{"empty", "", ActionOther, "UNKNOWN", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(Normalize(tt.sql))
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.keyword, got.Keyword)
			assert.Equal(t, tt.category, got.Category())
		})
	}
}

func TestActionPriority_LongestFirstWithinSet(t *testing.T) {
	lastCategory := -1
	for i, a := range actionPriority {
		cat := actions[a].category
		pos := -1
		for j, c := range categoryPriority {
			if c == cat {
				pos = j
			}
		}
		assert.GreaterOrEqual(t, pos, lastCategory, "set order broken at %s", a)
		if pos == lastCategory && i > 0 {
			prev := actionPriority[i-1]
			assert.GreaterOrEqual(t, len(prev.String()), len(a.String()),
				"%s should not come before %s", prev, a)
		}
		lastCategory = pos
	}
	assert.Len(t, actionPriority, int(actionCount)-1)
}

func TestAction_CategoryIsPureFunctionOfKeyword(t *testing.T) {
	valid := map[Category]bool{
		CategoryDDL: true, CategoryDML: true, CategoryDCL: true,
		CategoryTCL: true, CategoryUtility: true, CategoryUnknown: true,
	}
	for a := ActionOther; a < actionCount; a++ {
		assert.True(t, valid[a.Category()], "action %d has category %q", a, a.Category())
		if a != ActionOther {
			assert.Equal(t, a, ParseAction(a.String()))
		}
	}
	assert.Equal(t, ActionOther, ParseAction("VACUUM"))
	assert.Equal(t, CategoryUnknown, Action(-1).Category())
	assert.Equal(t, CategoryUnknown, actionCount.Category())
}
