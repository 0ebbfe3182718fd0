package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlcheck"
)

// newSchemaManager builds the manager over the persisted snapshot, restoring
// the last cache entry so generation works without a live database
func newSchemaManager(cfg *config.Config) *schema.Manager {
	manager := schema.NewManager(cfg.SchemaTTL(),
		schema.WithSnapshotFile(cfg.Schema.SnapshotFile))

	if err := manager.Restore(); err != nil {
		logging.GetLogger().WithError(err).Warn("could not restore schema snapshot, starting empty")
	}

	return manager
}

// renderResult prints rows as an aligned text table
func renderResult(w io.Writer, result *database.Result) {
	if result.RowCount() == 0 {
		fmt.Fprintln(w, "No rows returned.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))

	separators := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		separators[i] = strings.Repeat("-", len(col))
	}

	fmt.Fprintln(tw, strings.Join(separators, "\t"))

	for _, row := range result.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
	fmt.Fprintf(w, "\n%d row(s)\n", result.RowCount())
}

// renderVerdict prints the validation outcome with color cues
func renderVerdict(w io.Writer, verdict *sqlcheck.Verdict) {
	switch verdict.Outcome {
	case sqlcheck.OutcomeAccepted:
		fmt.Fprintln(w, color.GreenString("Validation: accepted"))
	case sqlcheck.OutcomeAcceptedWithRewrite:
		fmt.Fprintln(w, color.GreenString("Validation: accepted (row cap applied)"))
	case sqlcheck.OutcomeRejected:
		fmt.Fprintln(w, color.RedString("Validation: rejected"))

		for _, v := range verdict.Violations {
			fmt.Fprintf(w, "  %s %s\n", color.RedString("-"), v.Detail)
		}
	}
}

// renderSnapshot prints the tables of a snapshot, with columns when verbose
func renderSnapshot(w io.Writer, s *schema.Snapshot, verbose bool) {
	for _, name := range s.TableNames() {
		table, _ := s.Table(name)
		fmt.Fprintf(w, "%s (%d columns)\n", color.CyanString(table.Name), len(table.Columns))

		if !verbose {
			continue
		}

		for _, col := range table.Columns {
			nullability := "NOT NULL"
			if col.Nullable {
				nullability = "NULL"
			}

			fmt.Fprintf(w, "  %-24s %-16s %s\n", col.Name, col.Type, nullability)
		}
	}
}
