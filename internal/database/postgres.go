package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	askerrors "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/schema"
)

// PostgresStore targets a PostgreSQL server over a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the server described by the DSN
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeDatabase, "invalid connection string")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, askerrors.NewConnectivityError("failed to reach database server", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Run executes a statement and returns the stringified rows
func (s *PostgresStore) Run(ctx context.Context, query string) (*Result, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeExecution, "query execution failed")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	result := &Result{Columns: make([]string, len(fields))}
	for i, f := range fields {
		result.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, askerrors.Wrap(err, askerrors.ErrTypeExecution, "failed to read row")
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = renderValue(v)
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeExecution, "failed to iterate rows")
	}

	return result, nil
}

// ListTables reads the public-schema catalog via information_schema
func (s *PostgresStore) ListTables(ctx context.Context) ([]schema.Table, error) {
	const catalogQuery = `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := s.pool.Query(ctx, catalogQuery)
	if err != nil {
		return nil, askerrors.NewConnectivityError("failed to query table catalog", err)
	}
	defer rows.Close()

	var tables []schema.Table

	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}

		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, schema.Table{Name: tableName})
		}

		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, schema.Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: nullable == "YES",
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog rows: %w", err)
	}

	return tables, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
