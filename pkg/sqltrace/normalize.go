package sqltrace

import (
	"strings"
)

// Normalize collapses every whitespace run to a single space, trims the
// result and upper-cases it. All keyword and pattern matching runs on
// normalized text.
func Normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// SplitStatements splits a batch on ';' and drops blank pieces.
// Newlines become spaces first. Semicolons inside string literals or
// comments are not recognized and will split the statement.
func SplitStatements(text string) []string {
	cleaned := strings.ReplaceAll(text, "\n", " ")

	var statements []string
	for _, segment := range strings.Split(cleaned, ";") {
		if stmt := strings.TrimSpace(segment); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// dedupe removes repeated values, keeping the first occurrence.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
