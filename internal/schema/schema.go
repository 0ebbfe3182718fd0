// Package schema maintains the table metadata made visible to SQL
// generation: loading it from interchangeable providers, caching it with a
// TTL, and narrowing it to the subset relevant to one question.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Source identifies which provider populated a snapshot
type Source string

const (
	SourceIntrospection Source = "introspection"
	SourceImport        Source = "import"
	SourceManual        Source = "manual"
)

// Column represents a single column definition
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table represents a table with its ordered columns. Identity is the
// case-insensitive table name.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Snapshot is an immutable view of schema metadata at one point in time.
// Tables is keyed by the lowercased table name. A snapshot is either fully
// populated or never published; callers must not mutate it.
type Snapshot struct {
	Source    Source           `json:"source"`
	CreatedAt time.Time        `json:"created_at"`
	Tables    map[string]Table `json:"tables"`
}

// NewSnapshot builds a snapshot from table definitions. Later duplicates of
// the same case-insensitive name replace earlier ones wholesale; columns are
// never patched piecemeal.
func NewSnapshot(source Source, tables []Table) *Snapshot {
	s := &Snapshot{
		Source:    source,
		CreatedAt: time.Now(),
		Tables:    make(map[string]Table, len(tables)),
	}

	for _, t := range tables {
		s.Tables[strings.ToLower(t.Name)] = t
	}

	return s
}

// EmptySnapshot returns a snapshot with no tables, used before any load
func EmptySnapshot() *Snapshot {
	return &Snapshot{Tables: map[string]Table{}}
}

// Len returns the number of tables in the snapshot
func (s *Snapshot) Len() int {
	return len(s.Tables)
}

// Table looks up a table by case-insensitive name
func (s *Snapshot) Table(name string) (Table, bool) {
	t, ok := s.Tables[strings.ToLower(name)]
	return t, ok
}

// HasTable reports whether the snapshot contains the named table
func (s *Snapshot) HasTable(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// TableNames returns the sorted table names
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}

	sort.Strings(names)

	return names
}

// PromptContext renders the snapshot as schema text for the language model
func (s *Snapshot) PromptContext() string {
	var sb strings.Builder

	for _, name := range s.TableNames() {
		t, _ := s.Table(name)

		sb.WriteString(fmt.Sprintf("Table: %s\n", t.Name))
		sb.WriteString("Columns:\n")

		for _, col := range t.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}

			sb.WriteString(fmt.Sprintf("  - %s (%s) %s\n", col.Name, col.Type, nullable))
		}

		sb.WriteString("\n")
	}

	return sb.String()
}
