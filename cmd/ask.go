package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/workflow"
)

var askLimit int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and run the generated SQL after your approval",
	Long: `Ask converts the question into a single read-only SELECT statement,
validates it, and shows it to you. The statement runs only after you answer
yes at the prompt; anything else denies it.

Examples:
  askdb ask "show me all clients in Texas"
  askdb ask --limit 25 "which projects are over budget"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askLimit, "limit", 0, "Row cap applied to unbounded queries (default from config)")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	question := strings.TrimSpace(args[0])
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	model, err := llm.NewClient(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}, cfg.LLMTimeout())
	if err != nil {
		return err
	}

	manager := newSchemaManager(cfg)
	if manager.ActiveSnapshot().Len() == 0 {
		// No cached schema yet; introspect so generation has something to see
		if err := manager.Refresh(ctx, schema.SourceIntrospection, store); err != nil {
			return err
		}
	}

	limit := cfg.Query.RowLimit
	if askLimit > 0 {
		limit = askLimit
	}

	engine := workflow.NewEngine(model, manager, store, limit,
		workflow.WithIntrospection(store))

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(cmd.ErrOrStderr()))
	spin.Suffix = " thinking..."
	spin.Start()

	state, err := engine.Submit(ctx, question)
	spin.Stop()

	if err != nil {
		return err
	}

	printPipeline(cmd, state)

	if state.Stage != workflow.StageAwaitingApproval {
		return nil
	}

	approved, err := promptApproval(cmd)
	if err != nil {
		return err
	}

	if !approved {
		if _, err := engine.Deny(state.ID); err != nil {
			return err
		}

		fmt.Fprintln(out, color.YellowString("Denied. Nothing was executed."))

		return nil
	}

	spin.Suffix = " executing..."
	spin.Start()

	done, err := engine.Approve(ctx, state.ID)
	spin.Stop()

	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	renderResult(out, done.Result)

	if done.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", done.Summary)
	}

	return nil
}

// printPipeline shows what the workflow produced before the approval gate
func printPipeline(cmd *cobra.Command, state *workflow.State) {
	out := cmd.OutOrStdout()

	if state.Intent != nil && state.Intent.Goal != "" {
		fmt.Fprintf(out, "Understood as: %s\n", state.Intent.Goal)
	}

	if state.Context != nil && state.Context.Len() > 0 {
		fmt.Fprintf(out, "Tables considered: %s\n", strings.Join(state.Context.TableNames(), ", "))
	}

	if state.Verdict != nil {
		fmt.Fprintf(out, "\n%s\n  %s\n\n", color.New(color.Bold).Sprint("Generated SQL:"),
			color.CyanString(state.Verdict.SQL))
		renderVerdict(out, state.Verdict)
	}

	if state.Stage == workflow.StageCompleted && state.FailureReason != "" {
		fmt.Fprintf(out, "%s %s\n", color.RedString("Failed:"), state.LastError())
	}
}

// promptApproval asks for an explicit yes. Anything that is not y/yes is a
// denial; there is no way to skip this prompt.
func promptApproval(cmd *cobra.Command) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Execute this query? [y/N]: ")

	reader := bufio.NewReader(cmd.InOrStdin())

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read approval answer: %w", err)
	}

	// EOF counts as a denial; a final line missing its newline still counts
	// as an answer.
	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes", nil
}
