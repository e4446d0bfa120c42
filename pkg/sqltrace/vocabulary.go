package sqltrace

import (
	"regexp"
	"sort"
	"strings"
)

// clauseVocabulary is matched by plain substring. Shorter entries also hit
// inside longer ones ("JOIN" inside "LEFT JOIN", "AS" inside "CAST"); both are
// reported.
var clauseVocabulary = []string{
	"FROM",
	"WHERE",
	"GROUP BY",
	"HAVING",
	"ORDER BY",
	"LIMIT",
	"OFFSET",
	"FETCH",
	"DISTINCT",
	"AS",
	"JOIN",
	"INNER JOIN",
	"LEFT JOIN",
	"RIGHT JOIN",
	"FULL JOIN",
	"CROSS JOIN",
	"SELF JOIN",
	"PARTITION BY",
}

// temporalKeywords are niladic and detected by substring presence.
var temporalKeywords = []string{
	"CURRENT_DATE",
	"CURRENT_TIME",
	"CURRENT_TIMESTAMP",
}

// callFunctions are detected only in call syntax: NAME(...).
var callFunctions = []string{
	"COUNT", "SUM", "AVG", "MIN", "MAX",
	"UPPER", "LOWER", "LENGTH", "SUBSTRING", "TRIM",
	"COALESCE", "NULLIF", "CAST", "CONVERT",
	"NOW", "DATEADD", "DATEDIFF", "EXTRACT",
	"OVER", "ROW_NUMBER", "RANK", "DENSE_RANK", "LAG", "LEAD",
}

type callPattern struct {
	name    string
	pattern *regexp.Regexp
}

var callPatterns = func() []callPattern {
	out := make([]callPattern, 0, len(callFunctions))
	for _, name := range callFunctions {
		out = append(out, callPattern{
			name:    name,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`),
		})
	}
	return out
}()

// DetectClauses returns the clause keywords present in a normalized
// statement, sorted.
func DetectClauses(normalized string) []string {
	found := []string{}
	for _, clause := range clauseVocabulary {
		if strings.Contains(normalized, clause) {
			found = append(found, clause)
		}
	}
	sort.Strings(found)
	return found
}

// DetectFunctions returns the known functions used by a normalized
// statement, sorted and deduplicated.
func DetectFunctions(normalized string) []string {
	found := []string{}
	for _, kw := range temporalKeywords {
		if strings.Contains(normalized, kw) {
			found = append(found, kw)
		}
	}
	for _, fn := range callPatterns {
		if fn.pattern.MatchString(normalized) {
			found = append(found, fn.name)
		}
	}
	sort.Strings(found)
	return dedupe(found)
}
