package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	askerrors "github.com/askdb/askdb/internal/errors"
)

func TestNormalizeImport_FlatForm(t *testing.T) {
	rows := [][]string{
		{"table_name", "column_name", "data_type", "is_nullable"},
		{"client", "id", "int", "NO"},
		{"client", "name", "varchar(255)", "NO"},
		{"client", "state", "varchar(50)", "YES"},
		{"project", "id", "int", "NO"},
	}

	tables, err := NormalizeImport(rows)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "client", tables[0].Name)
	require.Len(t, tables[0].Columns, 3)
	assert.Equal(t, Column{Name: "state", Type: "varchar(50)", Nullable: true}, tables[0].Columns[2])
	assert.Equal(t, "project", tables[1].Name)
}

func TestNormalizeImport_FlatFormHeaderOrder(t *testing.T) {
	rows := [][]string{
		{"is_nullable", "data_type", "column_name", "table_name"},
		{"YES", "varchar(100)", "city", "client"},
	}

	tables, err := NormalizeImport(rows)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assert.Equal(t, Column{Name: "city", Type: "varchar(100)", Nullable: true}, tables[0].Columns[0])
}

func TestNormalizeImport_GroupedForm(t *testing.T) {
	rows := [][]string{
		{"Table: client"},
		{"column_name", "data_type", "is_nullable"},
		{"id", "int", "NO"},
		{"name", "varchar(255)", "NO"},
		{"Table: contacts"},
		{"id", "int", "NO"},
		{"email", "varchar(255)", "YES"},
	}

	tables, err := NormalizeImport(rows)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "client", tables[0].Name)
	assert.Len(t, tables[0].Columns, 2)
	assert.Equal(t, "contacts", tables[1].Name)
	assert.True(t, tables[1].Columns[1].Nullable)
}

func TestNormalizeImport_UnrecognizedLayout(t *testing.T) {
	rows := [][]string{
		{"name", "age"},
		{"alice", "30"},
	}

	_, err := NormalizeImport(rows)

	require.Error(t, err)
	assert.True(t, askerrors.IsType(err, askerrors.ErrTypeSchemaFormat))
}

func TestNormalizeImport_Empty(t *testing.T) {
	_, err := NormalizeImport(nil)

	require.Error(t, err)
	assert.True(t, askerrors.IsType(err, askerrors.ErrTypeSchemaFormat))
}

func TestReadImportCSV(t *testing.T) {
	input := "table_name,column_name,data_type,is_nullable\nclient,id,int,NO\n"

	rows, err := ReadImportCSV(strings.NewReader(input))
	require.NoError(t, err)

	tables, err := NormalizeImport(rows)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "client", tables[0].Name)
}

func TestLoadManualFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := `tables:
  - name: orders
    columns:
      - name: id
        type: int
      - name: total
        type: decimal(18,2)
        nullable: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	tables, err := LoadManualFile(path)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
	assert.True(t, tables[0].Columns[1].Nullable)
}
