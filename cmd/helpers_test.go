package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlcheck"
)

func init() {
	// Deterministic output in assertions
	color.NoColor = true
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer

	renderResult(&buf, &database.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "Acme"}, {"2", "Initech"}},
	})

	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "2 row(s)")
}

func TestRenderResult_Empty(t *testing.T) {
	var buf bytes.Buffer

	renderResult(&buf, &database.Result{Columns: []string{"id"}})

	assert.Contains(t, buf.String(), "No rows returned.")
}

func TestRenderVerdict_Rejected(t *testing.T) {
	var buf bytes.Buffer

	renderVerdict(&buf, &sqlcheck.Verdict{
		Outcome: sqlcheck.OutcomeRejected,
		Violations: []sqlcheck.Violation{
			{Reason: sqlcheck.ReasonWriteOperation, Detail: "destructive keyword DROP is not allowed"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "DROP")
}

func TestRenderVerdict_Rewrite(t *testing.T) {
	var buf bytes.Buffer

	renderVerdict(&buf, &sqlcheck.Verdict{Outcome: sqlcheck.OutcomeAcceptedWithRewrite})

	assert.Contains(t, buf.String(), "row cap applied")
}

func TestRenderSnapshot_Verbose(t *testing.T) {
	var buf bytes.Buffer

	s := schema.NewSnapshot(schema.SourceManual, []schema.Table{
		{Name: "client", Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "state", Type: "varchar(50)", Nullable: true},
		}},
	})

	renderSnapshot(&buf, s, true)

	out := buf.String()
	assert.Contains(t, out, "client (2 columns)")
	assert.Contains(t, out, "NOT NULL")
	assert.Contains(t, out, "varchar(50)")
}

func promptWith(t *testing.T, input string) bool {
	t.Helper()

	c := &cobra.Command{}
	c.SetIn(strings.NewReader(input))
	c.SetOut(&bytes.Buffer{})

	approved, err := promptApproval(c)
	require.NoError(t, err)

	return approved
}

func TestPromptApproval(t *testing.T) {
	assert.True(t, promptWith(t, "y\n"))
	assert.True(t, promptWith(t, "YES\n"))

	// A final answer missing its newline still counts
	assert.True(t, promptWith(t, "y"))

	// Everything that is not an explicit yes denies, including silence
	assert.False(t, promptWith(t, "n\n"))
	assert.False(t, promptWith(t, "\n"))
	assert.False(t, promptWith(t, "sure\n"))
	assert.False(t, promptWith(t, ""))
}

// brokenReader fails mid-line to exercise the non-EOF read error path
type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	return copy(p, "y"), errors.New("tty gone")
}

func TestPromptApproval_ReadErrorIsSurfaced(t *testing.T) {
	c := &cobra.Command{}
	c.SetIn(brokenReader{})
	c.SetOut(&bytes.Buffer{})

	approved, err := promptApproval(c)

	require.Error(t, err)
	assert.False(t, approved)
	assert.Contains(t, err.Error(), "tty gone")
}
