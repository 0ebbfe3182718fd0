package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	askerrors "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/schema"
)

// DuckDBStore is a file-backed embedded database
type DuckDBStore struct {
	db   *sql.DB
	path string
}

// NewDuckDBStore opens (creating if needed) the database file with
// connection pooling configured
func NewDuckDBStore(dbPath string) (*DuckDBStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeDatabase, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, askerrors.NewConnectivityError("failed to ping database", err)
	}

	return &DuckDBStore{db: db, path: dbPath}, nil
}

// Run executes a statement and returns the stringified rows
func (s *DuckDBStore) Run(ctx context.Context, query string) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeExecution, "query execution failed")
	}
	defer rows.Close()

	result, err := scanAll(rows)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeExecution, "failed to read query results")
	}

	return result, nil
}

// ListTables reads the live table and column catalog
func (s *DuckDBStore) ListTables(ctx context.Context) ([]schema.Table, error) {
	const catalogQuery = `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position`

	rows, err := s.db.QueryContext(ctx, catalogQuery)
	if err != nil {
		return nil, askerrors.NewConnectivityError("failed to query table catalog", err)
	}
	defer rows.Close()

	return collectCatalogRows(rows)
}

// Close releases the underlying connection pool
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// collectCatalogRows folds catalog rows ordered by table into Table values
func collectCatalogRows(rows *sql.Rows) ([]schema.Table, error) {
	var tables []schema.Table

	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}

		col := schema.Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: nullable == "YES",
		}

		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, schema.Table{Name: tableName})
		}

		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog rows: %w", err)
	}

	return tables, nil
}
