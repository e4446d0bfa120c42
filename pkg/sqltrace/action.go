package sqltrace

import (
	"sort"
	"strings"
)

// Category is the coarse grouping of an action.
type Category string

// Categories.
const (
	CategoryDDL     Category = "DDL"
	CategoryDML     Category = "DML"
	CategoryDCL     Category = "DCL"
	CategoryTCL     Category = "TCL"
	CategoryUtility Category = "UTILITY"
	CategoryUnknown Category = "UNKNOWN"
)

// Action is a classified statement verb.
// ActionOther covers any statement whose leading keyword is not in the
// known tables; its keyword text is carried separately by Classification.
type Action int

// Known actions.
const (
	ActionOther Action = iota

	// Utility
	ActionDescribe
	ActionExplain
	ActionExplainAnalyze
	ActionShow
	ActionUse

	// Transaction control
	ActionBegin
	ActionStartTransaction
	ActionCommit
	ActionRollback
	ActionSavepoint
	ActionSetTransaction

	// Definition
	ActionCreateDatabase
	ActionDropDatabase
	ActionCreateSchema
	ActionDropSchema
	ActionCreateTable
	ActionDropTable
	ActionTruncateTable
	ActionAlterTable
	ActionRenameTable
	ActionCreateView
	ActionDropView
	ActionCreateIndex
	ActionDropIndex
	ActionCreateSequence
	ActionDropSequence
	ActionCreateFunction
	ActionDropFunction
	ActionCreateProcedure
	ActionDropProcedure
	ActionCreateTrigger
	ActionDropTrigger

	// Manipulation
	ActionSelect
	ActionInsert
	ActionUpdate
	ActionDelete
	ActionMerge

	// Control
	ActionGrant
	ActionRevoke

	actionCount
)

// actionInfo is the static description of a known action.
type actionInfo struct {
	keyword  string
	category Category
}

// actions is indexed by Action; the array length ties it to the constant list.
var actions = [actionCount]actionInfo{
	ActionOther: {"", CategoryUnknown},

	ActionDescribe:       {"DESCRIBE", CategoryUtility},
	ActionExplain:        {"EXPLAIN", CategoryUtility},
	ActionExplainAnalyze: {"EXPLAIN ANALYZE", CategoryUtility},
	ActionShow:           {"SHOW", CategoryUtility},
	ActionUse:            {"USE", CategoryUtility},

	ActionBegin:            {"BEGIN", CategoryTCL},
	ActionStartTransaction: {"START TRANSACTION", CategoryTCL},
	ActionCommit:           {"COMMIT", CategoryTCL},
	ActionRollback:         {"ROLLBACK", CategoryTCL},
	ActionSavepoint:        {"SAVEPOINT", CategoryTCL},
	ActionSetTransaction:   {"SET TRANSACTION", CategoryTCL},

	ActionCreateDatabase:  {"CREATE DATABASE", CategoryDDL},
	ActionDropDatabase:    {"DROP DATABASE", CategoryDDL},
	ActionCreateSchema:    {"CREATE SCHEMA", CategoryDDL},
	ActionDropSchema:      {"DROP SCHEMA", CategoryDDL},
	ActionCreateTable:     {"CREATE TABLE", CategoryDDL},
	ActionDropTable:       {"DROP TABLE", CategoryDDL},
	ActionTruncateTable:   {"TRUNCATE TABLE", CategoryDDL},
	ActionAlterTable:      {"ALTER TABLE", CategoryDDL},
	ActionRenameTable:     {"RENAME TABLE", CategoryDDL},
	ActionCreateView:      {"CREATE VIEW", CategoryDDL},
	ActionDropView:        {"DROP VIEW", CategoryDDL},
	ActionCreateIndex:     {"CREATE INDEX", CategoryDDL},
	ActionDropIndex:       {"DROP INDEX", CategoryDDL},
	ActionCreateSequence:  {"CREATE SEQUENCE", CategoryDDL},
	ActionDropSequence:    {"DROP SEQUENCE", CategoryDDL},
	ActionCreateFunction:  {"CREATE FUNCTION", CategoryDDL},
	ActionDropFunction:    {"DROP FUNCTION", CategoryDDL},
	ActionCreateProcedure: {"CREATE PROCEDURE", CategoryDDL},
	ActionDropProcedure:   {"DROP PROCEDURE", CategoryDDL},
	ActionCreateTrigger:   {"CREATE TRIGGER", CategoryDDL},
	ActionDropTrigger:     {"DROP TRIGGER", CategoryDDL},

	ActionSelect: {"SELECT", CategoryDML},
	ActionInsert: {"INSERT", CategoryDML},
	ActionUpdate: {"UPDATE", CategoryDML},
	ActionDelete: {"DELETE", CategoryDML},
	ActionMerge:  {"MERGE", CategoryDML},

	ActionGrant:  {"GRANT", CategoryDCL},
	ActionRevoke: {"REVOKE", CategoryDCL},
}

// String returns the action keyword. ActionOther has no fixed keyword.
func (a Action) String() string {
	if a < 0 || a >= actionCount {
		return ""
	}
	return actions[a].keyword
}

// Category returns the category of a. Anything outside the known tables
// is UNKNOWN.
func (a Action) Category() Category {
	if a < 0 || a >= actionCount {
		return CategoryUnknown
	}
	return actions[a].category
}

// categoryPriority is the order in which keyword sets are tried.
var categoryPriority = []Category{
	CategoryUtility,
	CategoryTCL,
	CategoryDDL,
	CategoryDML,
	CategoryDCL,
}

// actionPriority is the prefix-match order: sets in categoryPriority order,
// longest keyword first within each set.
var actionPriority = buildActionPriority()

func buildActionPriority() []Action {
	out := make([]Action, 0, actionCount)
	for _, cat := range categoryPriority {
		var set []Action
		for a := ActionOther + 1; a < actionCount; a++ {
			if actions[a].category == cat {
				set = append(set, a)
			}
		}
		sort.SliceStable(set, func(i, j int) bool {
			ki, kj := actions[set[i]].keyword, actions[set[j]].keyword
			if len(ki) != len(kj) {
				return len(ki) > len(kj)
			}
			return ki < kj
		})
		out = append(out, set...)
	}
	return out
}

// actionByKeyword resolves a keyword back to its Action.
var actionByKeyword = func() map[string]Action {
	m := make(map[string]Action, actionCount)
	for a := ActionOther + 1; a < actionCount; a++ {
		m[actions[a].keyword] = a
	}
	return m
}()

// ParseAction returns the Action for a keyword, or ActionOther.
func ParseAction(keyword string) Action {
	if a, ok := actionByKeyword[keyword]; ok {
		return a
	}
	return ActionOther
}

// Classification is the outcome of classifying one statement.
type Classification struct {
	Action  Action
	Keyword string // Action keyword, or the statement's first token for ActionOther
}

// Category returns the category of the classified action.
func (c Classification) Category() Category {
	return c.Action.Category()
}

// unknownKeyword is reported for statements that are empty after normalization.
const unknownKeyword = "UNKNOWN"

// Classify detects the action of a normalized statement.
func Classify(normalized string) Classification {
	for _, a := range actionPriority {
		if strings.HasPrefix(normalized, actions[a].keyword) {
			return Classification{Action: a, Keyword: actions[a].keyword}
		}
	}
	if normalized == "" {
		return Classification{Action: ActionOther, Keyword: unknownKeyword}
	}
	first, _, _ := strings.Cut(normalized, " ")
	return Classification{Action: ActionOther, Keyword: first}
}
