package sqltrace

import (
	"regexp"
	"strings"
)

// objectRule extracts object identifiers for one action.
type objectRule struct {
	action  Action
	pattern *regexp.Regexp
}

// objectRules are tried in order; matches keep this order after dedupe.
// The SELECT rule also fires for any statement that contains SELECT, which
// is how INSERT ... SELECT and CREATE VIEW ... AS SELECT pick up their
// FROM tables.
var objectRules = []objectRule{
	{ActionCreateTable, regexp.MustCompile(`(?i)CREATE\s+TABLE\s+([^\s(]+)`)},
	{ActionDropTable, regexp.MustCompile(`(?i)DROP\s+TABLE\s+([^\s;]+)`)},
	{ActionTruncateTable, regexp.MustCompile(`(?i)TRUNCATE\s+TABLE\s+([^\s;]+)`)},
	{ActionAlterTable, regexp.MustCompile(`(?i)ALTER\s+TABLE\s+([^\s;]+)`)},
	{ActionRenameTable, regexp.MustCompile(`(?i)RENAME\s+TABLE\s+([^\s;]+)`)},
	{ActionCreateView, regexp.MustCompile(`(?i)CREATE\s+VIEW\s+([^\s;]+)`)},
	{ActionDropView, regexp.MustCompile(`(?i)DROP\s+VIEW\s+([^\s;]+)`)},
	{ActionCreateIndex, regexp.MustCompile(`(?i)CREATE\s+INDEX\s+([^\s;]+)`)},
	{ActionDropIndex, regexp.MustCompile(`(?i)DROP\s+INDEX\s+([^\s;]+)`)},
	{ActionCreateSequence, regexp.MustCompile(`(?i)CREATE\s+SEQUENCE\s+([^\s;]+)`)},
	{ActionDropSequence, regexp.MustCompile(`(?i)DROP\s+SEQUENCE\s+([^\s;]+)`)},
	{ActionCreateFunction, regexp.MustCompile(`(?i)CREATE\s+FUNCTION\s+([^\s(]+)`)},
	{ActionDropFunction, regexp.MustCompile(`(?i)DROP\s+FUNCTION\s+([^\s(]+)`)},
	{ActionCreateProcedure, regexp.MustCompile(`(?i)CREATE\s+PROCEDURE\s+([^\s(]+)`)},
	{ActionDropProcedure, regexp.MustCompile(`(?i)DROP\s+PROCEDURE\s+([^\s(]+)`)},
	{ActionCreateTrigger, regexp.MustCompile(`(?i)CREATE\s+TRIGGER\s+([^\s;]+)`)},
	{ActionDropTrigger, regexp.MustCompile(`(?i)DROP\s+TRIGGER\s+([^\s;]+)`)},
	{ActionCreateDatabase, regexp.MustCompile(`(?i)CREATE\s+DATABASE\s+([^\s;]+)`)},
	{ActionDropDatabase, regexp.MustCompile(`(?i)DROP\s+DATABASE\s+([^\s;]+)`)},
	{ActionCreateSchema, regexp.MustCompile(`(?i)CREATE\s+SCHEMA\s+([^\s;]+)`)},
	{ActionDropSchema, regexp.MustCompile(`(?i)DROP\s+SCHEMA\s+([^\s;]+)`)},
	{ActionInsert, regexp.MustCompile(`(?i)INSERT\s+INTO\s+([^\s(]+)`)},
	{ActionUpdate, regexp.MustCompile(`(?i)UPDATE\s+([^\s;]+)`)},
	{ActionDelete, regexp.MustCompile(`(?i)DELETE\s+FROM\s+([^\s;]+)`)},
	{ActionMerge, regexp.MustCompile(`(?i)MERGE\s+INTO\s+([^\s;]+)`)},
	{ActionSelect, regexp.MustCompile(`(?i)FROM\s+([^\s,;]+)`)},
	{ActionGrant, regexp.MustCompile(`(?i)GRANT\s+[^\s]+\s+ON\s+([^\s;]+)`)},
	{ActionRevoke, regexp.MustCompile(`(?i)REVOKE\s+[^\s]+\s+ON\s+([^\s;]+)`)},
	{ActionDescribe, regexp.MustCompile(`(?i)DESCRIBE\s+([^\s;]+)`)},
	{ActionExplain, regexp.MustCompile(`(?i)EXPLAIN\s+([^\s;]+)`)},
	{ActionExplainAnalyze, regexp.MustCompile(`(?i)EXPLAIN\s+ANALYZE\s+([^\s;]+)`)},
	{ActionShow, regexp.MustCompile(`(?i)SHOW\s+([^;]+)`)},
	{ActionUse, regexp.MustCompile(`(?i)USE\s+([^;]+)`)},
}

// ExtractObjects returns the identifiers referenced by a normalized
// statement for the given action, deduplicated in first-seen order.
func ExtractObjects(normalized string, action Action) []string {
	hasSelect := strings.Contains(normalized, "SELECT")

	var found []string
	for _, rule := range objectRules {
		if rule.action != action && (rule.action != ActionSelect || !hasSelect) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringSubmatch(normalized, -1) {
			found = append(found, m[1])
		}
	}
	return dedupe(found)
}
