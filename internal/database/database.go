// Package database runs approved statements against the configured backend
// and introspects live schemas. Execution is strictly downstream of
// validation and approval; nothing here re-checks statement safety.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/schema"
)

// Result holds the rows returned by an executed statement. Values are
// rendered to strings at scan time so callers never touch driver types.
type Result struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of returned rows
func (r *Result) RowCount() int {
	return len(r.Rows)
}

// Executor runs a single read statement
type Executor interface {
	Run(ctx context.Context, query string) (*Result, error)
}

// Store combines execution, live-schema introspection, and lifecycle
type Store interface {
	Executor
	schema.MetadataProvider
	Close() error
}

// scanAll drains sql.Rows into a Result, stringifying every value
func scanAll(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &Result{Columns: columns}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

// renderValue converts a scanned driver value to display text
func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
