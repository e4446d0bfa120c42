package sqltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectClauses(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"from only", "SELECT a FROM t1", []string{"FROM"}},
		{
			name: "substring matches are kept",
			sql:  "SELECT COUNT(*), CAST(x AS INT) FROM t LEFT JOIN u ON 1=1 GROUP BY a ORDER BY b",
			want: []string{"AS", "FROM", "GROUP BY", "JOIN", "LEFT JOIN", "ORDER BY"},
		},
		{"none", "COMMIT", []string{}},
		{"window", "SELECT ROW_NUMBER() OVER (PARTITION BY a) FROM t LIMIT 1 OFFSET 2", []string{"FROM", "LIMIT", "OFFSET", "PARTITION BY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectClauses(Normalize(tt.sql)))
		})
	}
}

func TestDetectFunctions(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"none", "SELECT a FROM t1", []string{}},
		{"call syntax", "SELECT COUNT(*), CAST(x AS INT) FROM t", []string{"CAST", "COUNT"}},
		{"whitespace before paren", "select count (x) from t", []string{"COUNT"}},
		{"word boundary", "SELECT MYSUM(x) FROM t", []string{}},
		{"name without call", "SELECT sum FROM t", []string{}},
		{"underscore blocks boundary", "SELECT DENSE_RANK() OVER (ORDER BY a) FROM t", []string{"DENSE_RANK", "OVER"}},
		// CURRENT_TIME is a substring of CURRENT_TIMESTAMP.
		{"temporal substring", "SELECT CURRENT_TIMESTAMP", []string{"CURRENT_TIME", "CURRENT_TIMESTAMP"}},
		{"temporal date", "SELECT current_date, now()", []string{"CURRENT_DATE", "NOW"}},
		{"lag lead", "SELECT LAG(x), LEAD (y) FROM t", []string{"LAG", "LEAD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFunctions(Normalize(tt.sql)))
		})
	}
}
