package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/schema"
)

var (
	schemaManualFile  string
	schemaShowVerbose bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the cached schema used for SQL generation",
}

var schemaRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Introspect the live database and replace the cached schema",
	RunE:  runSchemaRefresh,
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Load the schema from a tabular CSV export",
	Long: `Import accepts two layouts: a flat table with header columns
table_name, column_name, data_type, is_nullable, or grouped rows where each
table starts with a "Table: <name>" marker row.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemaImport,
}

var schemaManualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Use the built-in table definitions, or a YAML file",
	RunE:  runSchemaManual,
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached schema, its source, and staleness",
	RunE:  runSchemaShow,
}

func init() {
	schemaManualCmd.Flags().StringVar(&schemaManualFile, "file", "", "YAML file with table definitions")
	schemaShowCmd.Flags().BoolVar(&schemaShowVerbose, "verbose", false, "Include column details")

	schemaCmd.AddCommand(schemaRefreshCmd)
	schemaCmd.AddCommand(schemaImportCmd)
	schemaCmd.AddCommand(schemaManualCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := newSchemaManager(cfg)
	if err := manager.Refresh(ctx, schema.SourceIntrospection, store); err != nil {
		return err
	}

	snapshot := manager.ActiveSnapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Schema refreshed: %d table(s) from live introspection.\n",
		snapshot.Len())

	return nil
}

func runSchemaImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	rows, err := schema.ReadImportCSV(file)
	if err != nil {
		return err
	}

	manager := newSchemaManager(cfg)
	if err := manager.Refresh(cmd.Context(), schema.SourceImport, rows); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema imported: %d table(s) from %s.\n",
		manager.ActiveSnapshot().Len(), args[0])

	return nil
}

func runSchemaManual(cmd *cobra.Command, _ []string) error {
	var tables []schema.Table

	if schemaManualFile == "" && cfg.Schema.ManualFile != "" {
		schemaManualFile = cfg.Schema.ManualFile
	}

	if schemaManualFile != "" {
		loaded, err := schema.LoadManualFile(schemaManualFile)
		if err != nil {
			return err
		}

		tables = loaded
	}

	manager := newSchemaManager(cfg)
	if err := manager.Refresh(cmd.Context(), schema.SourceManual, tables); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema set: %d table(s) from manual definitions.\n",
		manager.ActiveSnapshot().Len())

	return nil
}

func runSchemaShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	manager := newSchemaManager(cfg)
	snapshot := manager.ActiveSnapshot()

	if snapshot.Len() == 0 {
		fmt.Fprintln(out, "No schema cached. Run 'askdb schema refresh' or 'askdb schema import'.")
		return nil
	}

	fmt.Fprintf(out, "Source: %s\n", snapshot.Source)

	if last := manager.LastRefresh(); !last.IsZero() {
		fmt.Fprintf(out, "Last refresh: %s\n", last.Format(time.RFC3339))
	}

	if manager.IsStale() {
		fmt.Fprintln(out, color.YellowString("Cache is stale; queries still work against it."))
	}

	fmt.Fprintln(out)
	renderSnapshot(out, snapshot, schemaShowVerbose)

	return nil
}
