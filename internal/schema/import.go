package schema

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/askdb/askdb/internal/errors"
)

// flat-sheet header fields, matched case-insensitively in any order
var flatHeaderFields = []string{"table_name", "column_name", "data_type", "is_nullable"}

// groupMarker starts a table group in the grouped import form
const groupMarker = "table:"

// ReadImportCSV reads raw tabular rows from CSV input. Ragged rows are
// allowed because the grouped form mixes marker rows with column rows.
func ReadImportCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSchemaFormat, "failed to read import rows")
	}

	return rows, nil
}

// NormalizeImport converts raw tabular rows in either supported layout into
// table definitions. Both the flat-sheet form (table_name, column_name,
// data_type, is_nullable columns) and the grouped form ("Table: <name>"
// marker rows) normalize to the same Table representation. Unrecognized
// layouts are rejected rather than guessed at.
func NormalizeImport(rows [][]string) ([]Table, error) {
	first := firstNonEmptyRow(rows)
	if first < 0 {
		return nil, errors.New(errors.ErrTypeSchemaFormat, "import contains no rows")
	}

	header := rows[first]

	switch {
	case isFlatHeader(header):
		return normalizeFlat(rows[first+1:], header)
	case isGroupMarker(header):
		return normalizeGrouped(rows[first:])
	default:
		return nil, errors.Newf(errors.ErrTypeSchemaFormat,
			"unrecognized import layout: expected a header with %s or a 'Table:' marker row",
			strings.Join(flatHeaderFields, ", "))
	}
}

func firstNonEmptyRow(rows [][]string) int {
	for i, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return i
			}
		}
	}

	return -1
}

func isFlatHeader(row []string) bool {
	seen := map[string]bool{}

	for _, cell := range row {
		seen[strings.ToLower(strings.TrimSpace(cell))] = true
	}

	for _, field := range flatHeaderFields {
		if !seen[field] {
			return false
		}
	}

	return true
}

func isGroupMarker(row []string) bool {
	return len(row) > 0 &&
		strings.HasPrefix(strings.ToLower(strings.TrimSpace(row[0])), groupMarker)
}

// normalizeFlat handles the flat-sheet form, resolving field positions from
// the header so column order in the sheet does not matter
func normalizeFlat(rows [][]string, header []string) ([]Table, error) {
	index := map[string]int{}

	for i, cell := range header {
		index[strings.ToLower(strings.TrimSpace(cell))] = i
	}

	var (
		order  []string
		tables = map[string]*Table{}
	)

	for _, row := range rows {
		if firstNonEmptyRow([][]string{row}) < 0 {
			continue
		}

		tableName := cellAt(row, index["table_name"])
		columnName := cellAt(row, index["column_name"])

		if tableName == "" || columnName == "" {
			return nil, errors.New(errors.ErrTypeSchemaFormat,
				"import row is missing table_name or column_name")
		}

		key := strings.ToLower(tableName)

		t, ok := tables[key]
		if !ok {
			t = &Table{Name: tableName}
			tables[key] = t
			order = append(order, key)
		}

		t.Columns = append(t.Columns, Column{
			Name:     columnName,
			Type:     cellAt(row, index["data_type"]),
			Nullable: parseNullable(cellAt(row, index["is_nullable"])),
		})
	}

	if len(order) == 0 {
		return nil, errors.New(errors.ErrTypeSchemaFormat, "import contains no column rows")
	}

	result := make([]Table, 0, len(order))
	for _, key := range order {
		result = append(result, *tables[key])
	}

	return result, nil
}

// normalizeGrouped handles the one-table-per-group form: a "Table: <name>"
// marker row followed by (column_name, data_type, is_nullable) rows
func normalizeGrouped(rows [][]string) ([]Table, error) {
	var (
		result  []Table
		current *Table
	)

	flush := func() error {
		if current == nil {
			return nil
		}

		if len(current.Columns) == 0 {
			return errors.Newf(errors.ErrTypeSchemaFormat,
				"table group %q has no columns", current.Name)
		}

		result = append(result, *current)
		current = nil

		return nil
	}

	for _, row := range rows {
		if firstNonEmptyRow([][]string{row}) < 0 {
			continue
		}

		if isGroupMarker(row) {
			if err := flush(); err != nil {
				return nil, err
			}

			name := strings.TrimSpace(strings.TrimSpace(row[0])[len(groupMarker):])
			if name == "" {
				return nil, errors.New(errors.ErrTypeSchemaFormat, "table marker has no name")
			}

			current = &Table{Name: name}

			continue
		}

		if current == nil {
			return nil, errors.New(errors.ErrTypeSchemaFormat,
				"column row appears before any table marker")
		}

		// Skip an optional per-group header row
		if strings.EqualFold(strings.TrimSpace(row[0]), "column_name") {
			continue
		}

		if len(row) < 2 {
			return nil, errors.Newf(errors.ErrTypeSchemaFormat,
				"column row for table %q needs at least a name and type", current.Name)
		}

		nullable := true
		if len(row) > 2 {
			nullable = parseNullable(row[2])
		}

		current.Columns = append(current.Columns, Column{
			Name:     strings.TrimSpace(row[0]),
			Type:     strings.TrimSpace(row[1]),
			Nullable: nullable,
		})
	}

	if err := flush(); err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, errors.New(errors.ErrTypeSchemaFormat, "import contains no table groups")
	}

	return result, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}

func parseNullable(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1", "null", "nullable":
		return true
	default:
		return false
	}
}
