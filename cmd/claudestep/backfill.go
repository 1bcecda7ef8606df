package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/reconcile"
)

var backfillYes bool

var backfillCmd = &cobra.Command{
	Use:   "backfill <project>",
	Short: "Import historical pull requests that predate metadata tracking",
	Long: `Reconstructs execution records for pull requests created before metadata
tracking existed. This is a bulk import, so it asks for confirmation before
writing anything (pass --yes to skip the prompt in automation).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		e, err := buildEnv()
		if err != nil {
			return err
		}

		confirm := confirmPrompt
		if backfillYes {
			confirm = func(string) bool { return true }
		}

		summary, err := e.service.Backfill(ctx, args[0], confirm)
		if err != nil {
			return err
		}
		reconcile.RenderSummary(os.Stdout, summary)
		return nil
	},
}

// confirmPrompt asks the operator a yes/no question on the terminal.
func confirmPrompt(prompt string) bool {
	rl, err := readline.New(prompt + " [y/N] ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot prompt for confirmation: %v\n", err)
		return false
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(backfillCmd)
}
