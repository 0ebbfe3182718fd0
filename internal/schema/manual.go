package schema

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/askdb/askdb/internal/errors"
)

// ManualTables returns the built-in schema definitions used when neither
// introspection nor an import is available. Loading them always succeeds.
func ManualTables() []Table {
	return []Table{
		{
			Name: "client",
			Columns: []Column{
				{Name: "id", Type: "int", Nullable: false},
				{Name: "name", Type: "varchar(255)", Nullable: false},
				{Name: "industry", Type: "varchar(100)", Nullable: true},
				{Name: "state", Type: "varchar(50)", Nullable: true},
				{Name: "city", Type: "varchar(100)", Nullable: true},
				{Name: "created_at", Type: "datetime", Nullable: false},
			},
		},
		{
			Name: "contacts",
			Columns: []Column{
				{Name: "id", Type: "int", Nullable: false},
				{Name: "client_id", Type: "int", Nullable: false},
				{Name: "first_name", Type: "varchar(100)", Nullable: false},
				{Name: "last_name", Type: "varchar(100)", Nullable: false},
				{Name: "email", Type: "varchar(255)", Nullable: true},
				{Name: "phone", Type: "varchar(50)", Nullable: true},
			},
		},
		{
			Name: "project",
			Columns: []Column{
				{Name: "id", Type: "int", Nullable: false},
				{Name: "client_id", Type: "int", Nullable: false},
				{Name: "name", Type: "varchar(255)", Nullable: false},
				{Name: "status", Type: "varchar(50)", Nullable: true},
				{Name: "budget", Type: "decimal(18,2)", Nullable: true},
				{Name: "start_date", Type: "date", Nullable: true},
				{Name: "end_date", Type: "date", Nullable: true},
			},
		},
	}
}

type yamlSchemaFile struct {
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name    string       `yaml:"name"`
	Columns []yamlColumn `yaml:"columns"`
}

type yamlColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// LoadManualFile loads hand-authored table definitions from a YAML file
func LoadManualFile(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeSchemaFormat,
			"failed to read schema file %s", path)
	}

	var file yamlSchemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSchemaFormat, "failed to parse schema YAML")
	}

	if len(file.Tables) == 0 {
		return nil, errors.Newf(errors.ErrTypeSchemaFormat, "schema file %s defines no tables", path)
	}

	tables := make([]Table, 0, len(file.Tables))

	for _, t := range file.Tables {
		if t.Name == "" {
			return nil, errors.New(errors.ErrTypeSchemaFormat, "table definition is missing a name")
		}

		table := Table{Name: t.Name}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, Column{
				Name:     c.Name,
				Type:     c.Type,
				Nullable: c.Nullable,
			})
		}

		tables = append(tables, table)
	}

	return tables, nil
}
