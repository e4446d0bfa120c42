package sqltrace

import (
	"regexp"
	"strings"
)

var (
	// selectPattern captures the select list, the FROM section and an optional
	// WHERE clause, stopping at the first trailing clause or end of text.
	selectPattern = regexp.MustCompile(`(?is)SELECT\s+(?P<select>.+?)\s+FROM\s+(?P<from>.+?)` +
		`(?:\s+WHERE\s+(?P<where>.+?))?` +
		`(?:\s+GROUP\s+BY|\s+HAVING|\s+ORDER\s+BY|\s+LIMIT|\s+OFFSET|;|$)`)

	// destinationPatterns are tried in order; the first match wins.
	destinationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)INSERT\s+INTO\s+(?P<dest>[^\s(]+)\s*(?:\((?P<cols>[^)]*)\))?`),
		regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?P<dest>[^\s(]+).*?\s+AS`),
		regexp.MustCompile(`(?is)CREATE\s+VIEW\s+(?P<dest>[^\s(]+).*?\s+AS`),
	}

	tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([^\s,]+)`)
	aliasPattern    = regexp.MustCompile(`(?i)^\s+(?:AS\s+)?([^\s,]+)`)

	explicitAliasPattern = regexp.MustCompile(`(?i)\s+AS\s+([^\s()]+)$`)

	qualifiedColumnPattern = regexp.MustCompile(`([A-Za-z_]\w*)\.([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)
	tableColumnPattern     = regexp.MustCompile(`([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)
	bareIdentifierPattern  = regexp.MustCompile(`\b([A-Za-z_]\w*)\b`)
)

// aliasStopWords can follow a table reference without being its alias.
var aliasStopWords = map[string]struct{}{
	"JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "CROSS": {},
	"OUTER": {}, "NATURAL": {}, "SELF": {}, "LATERAL": {}, "ON": {}, "USING": {},
	"WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {}, "LIMIT": {}, "OFFSET": {},
	"UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "WINDOW": {}, "QUALIFY": {},
}

// selectParts is the decomposition of a SELECT ... FROM ... [WHERE ...].
type selectParts struct {
	list  string
	from  string
	where string
}

// sourceSet is the FROM/JOIN view of one statement.
type sourceSet struct {
	aliases map[string]string // upper-cased alias -> table reference
	tables  []string          // in appearance order; tables[0] is the fallback
}

// destination is where an INSERT or CREATE ... AS writes.
type destination struct {
	schema  string
	table   string
	columns []string
}

// ExtractTraceability derives column-level rows from one raw statement.
// Statements without a SELECT ... FROM produce no rows.
func ExtractTraceability(statement string) []TraceabilityRow {
	parts, ok := matchSelect(statement)
	if !ok {
		return nil
	}

	sources := extractSources(parts.from)
	dest := extractDestination(statement)
	filter := strPtr(parts.where)

	items := splitSelectItems(parts.list)
	rows := make([]TraceabilityRow, 0, len(items))
	for i, item := range items {
		expr, alias := splitAlias(item)
		srcSchema, srcTable, srcField := resolveSource(expr, sources)

		destField := srcField
		switch {
		case i < len(dest.columns):
			destField = dest.columns[i]
		case alias != "":
			destField = alias
		}

		rows = append(rows, TraceabilityRow{
			SourceSchema:      upperPtr(srcSchema),
			SourceTable:       upperPtr(srcTable),
			SourceField:       upperPtr(srcField),
			DestinationSchema: upperPtr(dest.schema),
			DestinationTable:  upperPtr(dest.table),
			DestinationField:  upperPtr(destField),
			Logic:             strings.TrimSpace(expr),
			Filter:            filter,
		})
	}
	return rows
}

func upperPtr(s string) *string {
	return strPtr(strings.ToUpper(s))
}

func matchSelect(statement string) (selectParts, bool) {
	m := selectPattern.FindStringSubmatch(statement)
	if m == nil {
		return selectParts{}, false
	}
	return selectParts{
		list:  strings.TrimSpace(m[selectPattern.SubexpIndex("select")]),
		from:  strings.TrimSpace(m[selectPattern.SubexpIndex("from")]),
		where: strings.TrimSpace(m[selectPattern.SubexpIndex("where")]),
	}, true
}

// extractSources scans the FROM section, including its leading table, for
// table references and their optional aliases.
func extractSources(fromSection string) sourceSet {
	set := sourceSet{aliases: make(map[string]string)}
	scan := "FROM " + fromSection

	for _, loc := range tableRefPattern.FindAllStringSubmatchIndex(scan, -1) {
		table := scan[loc[2]:loc[3]]
		set.tables = append(set.tables, table)

		am := aliasPattern.FindStringSubmatch(scan[loc[1]:])
		if am == nil {
			continue
		}
		alias := strings.ToUpper(am[1])
		if _, stop := aliasStopWords[alias]; stop {
			continue
		}
		set.aliases[alias] = table
	}
	return set
}

func extractDestination(statement string) destination {
	for _, re := range destinationPatterns {
		m := re.FindStringSubmatch(statement)
		if m == nil {
			continue
		}
		var d destination
		d.schema, d.table = splitIdentifier(m[re.SubexpIndex("dest")])
		if idx := re.SubexpIndex("cols"); idx >= 0 && m[idx] != "" {
			for _, col := range strings.Split(m[idx], ",") {
				if col = strings.TrimSpace(col); col != "" {
					d.columns = append(d.columns, col)
				}
			}
		}
		return d
	}
	return destination{}
}

// splitSelectItems splits on commas outside parentheses.
func splitSelectItems(list string) []string {
	var (
		items   []string
		current strings.Builder
		depth   int
	)
	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			items = append(items, item)
		}
		current.Reset()
	}

	for _, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
		if r == ',' && depth == 0 {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return items
}

// splitAlias separates a select item into expression and alias. A trailing
// bare word is taken as an implicit alias, so "a + b" yields expression
// "a +" and alias "b".
func splitAlias(item string) (expr, alias string) {
	if loc := explicitAliasPattern.FindStringSubmatchIndex(item); loc != nil {
		return strings.TrimSpace(item[:loc[0]]), item[loc[2]:loc[3]]
	}
	if i := strings.LastIndexAny(item, " \t"); i >= 0 {
		last := item[i+1:]
		if last != "" && !strings.ContainsAny(last, "()") {
			return strings.TrimSpace(item[:i]), last
		}
	}
	return item, ""
}

// resolveSource finds the schema, table and column an expression reads.
func resolveSource(expr string, sources sourceSet) (schema, table, column string) {
	if m := qualifiedColumnPattern.FindStringSubmatch(expr); m != nil {
		return m[1], m[2], m[3]
	}

	if m := tableColumnPattern.FindStringSubmatch(expr); m != nil {
		ref, ok := sources.aliases[strings.ToUpper(m[1])]
		if !ok {
			ref = m[1]
		}
		schema, table = splitIdentifier(ref)
		return schema, table, m[2]
	}

	if len(sources.tables) > 0 {
		schema, table = splitIdentifier(sources.tables[0])
		if m := bareIdentifierPattern.FindStringSubmatch(expr); m != nil {
			column = m[1]
		}
		return schema, table, column
	}

	return "", "", ""
}

// splitIdentifier splits "schema.table". Longer paths keep their last two
// parts; a bare name has no schema.
func splitIdentifier(ident string) (schema, table string) {
	if ident == "" {
		return "", ""
	}
	parts := strings.Split(ident, ".")
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
