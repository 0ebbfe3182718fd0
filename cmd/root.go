package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "Ask your database questions in plain language",
	Long: `askdb turns a natural-language question into a read-only SQL statement,
shows you exactly what it intends to run, and executes it only after you
explicitly approve. Nothing ever runs without a yes.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

// setup loads .env, configuration, and logging before any subcommand runs
func setup(_ *cobra.Command, _ []string) error {
	// Missing .env is the common case, not an error
	_ = godotenv.Load()

	loaded, err := config.LoadConfig()
	if err != nil {
		return err
	}

	loaded.ExpandAllPaths()

	if err := loaded.EnsureDirectories(); err != nil {
		return err
	}

	if err := logging.InitializeLogger(loaded.Logging); err != nil {
		return err
	}

	cfg = loaded

	return nil
}
