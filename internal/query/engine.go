// Package query runs analytical SQL over the on-disk Parquet dataset
// through an embedded DuckDB. The SQL dialect and planner are DuckDB's;
// this package only shuttles rows in and out.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
)

// Result is a fully materialized query result with stringified cells.
type Result struct {
	Columns []string
	Rows    [][]string
}

// Engine is an in-memory DuckDB session. Parquet files are addressed
// directly in queries, e.g. SELECT * FROM 'cache/messages/**/*.parquet'.
type Engine struct {
	db *sql.DB
}

func Open() (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

// limitClauseRe matches a trailing LIMIT clause, optionally followed by a
// statement terminator.
var limitClauseRe = regexp.MustCompile(`(?is)\blimit\s+\d+\s*;?\s*$`)

// withLimit appends LIMIT n to row-returning statements that do not already
// end in a LIMIT clause. Non-SELECT statements and column names that merely
// contain "limit" are left untouched.
func withLimit(sqlText string, limit int) string {
	if limit <= 0 {
		return sqlText
	}
	trimmed := strings.TrimSpace(sqlText)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return sqlText
	}
	if limitClauseRe.MatchString(trimmed) {
		return sqlText
	}
	trimmed = strings.TrimRight(trimmed, "; \t\n")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// Run executes one statement. When limit > 0 and the statement is a query
// without a trailing LIMIT clause, one is appended.
func (e *Engine) Run(ctx context.Context, sqlText string, limit int) (*Result, error) {
	sqlText = withLimit(sqlText, limit)

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}

	res := &Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apierror.New(apierror.KindFatal, err)
		}
		out := make([]string, len(cols))
		for i, v := range vals {
			out[i] = cellString(v)
		}
		res.Rows = append(res.Rows, out)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}
	return res, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
