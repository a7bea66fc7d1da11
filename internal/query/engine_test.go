package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithLimit(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		limit    int
		expected string
	}{
		{
			name:     "plain select gets a limit",
			sql:      "SELECT * FROM 'cache/messages/**/*.parquet'",
			limit:    100,
			expected: "SELECT * FROM 'cache/messages/**/*.parquet' LIMIT 100",
		},
		{
			name:     "trailing semicolon is replaced",
			sql:      "SELECT channel_name FROM msgs;",
			limit:    10,
			expected: "SELECT channel_name FROM msgs LIMIT 10",
		},
		{
			name:     "existing limit clause is kept",
			sql:      "SELECT * FROM msgs LIMIT 5",
			limit:    100,
			expected: "SELECT * FROM msgs LIMIT 5",
		},
		{
			name:     "existing limit with semicolon is kept",
			sql:      "select * from msgs limit 5;",
			limit:    100,
			expected: "select * from msgs limit 5;",
		},
		{
			name:     "column name containing limit still gets a clause",
			sql:      "SELECT rate_limit FROM events",
			limit:    10,
			expected: "SELECT rate_limit FROM events LIMIT 10",
		},
		{
			name:     "cte statement gets a limit",
			sql:      "WITH t AS (SELECT 1) SELECT * FROM t",
			limit:    10,
			expected: "WITH t AS (SELECT 1) SELECT * FROM t LIMIT 10",
		},
		{
			name:     "non-select statement is untouched",
			sql:      "CREATE TABLE snapshots AS SELECT * FROM msgs",
			limit:    10,
			expected: "CREATE TABLE snapshots AS SELECT * FROM msgs",
		},
		{
			name:     "zero limit is a no-op",
			sql:      "SELECT * FROM msgs",
			limit:    0,
			expected: "SELECT * FROM msgs",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, withLimit(tc.sql, tc.limit))
		})
	}
}
