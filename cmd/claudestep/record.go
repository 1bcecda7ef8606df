package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/taskid"
	"github.com/claudestep/claudestep/internal/types"
)

var (
	recordDescription string
	recordPRNumber    int
	recordPRState     string
)

var recordCmd = &cobra.Command{
	Use:   "record <project>",
	Short: "Record (upsert) an execution for a task",
	Long: `Upserts the execution record for a task, keyed by the identifier derived
from --description. Safe to re-run: the same invocation converges to the same
stored state, which is what makes it usable from retried workflow runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		project := args[0]

		if recordDescription == "" {
			return fmt.Errorf("--description is required")
		}
		state := types.PullRequestState(recordPRState)
		if !state.IsValid() {
			return fmt.Errorf("invalid --state %q (none, open, merged, closed)", recordPRState)
		}

		e, err := buildEnv()
		if err != nil {
			return err
		}

		id := taskid.IdentifierFor(recordDescription)
		record := types.ExecutionRecord{
			TaskID:           id,
			TaskDescription:  taskid.Normalize(recordDescription),
			BranchName:       taskid.BranchName(project, id),
			PullRequestState: state,
			CreatedAt:        time.Now().UTC(),
			Operations:       []types.AIOperation{},
		}
		if state != types.PRStateNone {
			if recordPRNumber <= 0 {
				return fmt.Errorf("--pr is required when --state is %s", state)
			}
			record.PullRequestNumber = &recordPRNumber
		}

		if err := e.store.RecordExecution(ctx, project, record); err != nil {
			return err
		}
		fmt.Printf("Recorded task %s in %s (state %s)\n", id, project, state)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordDescription, "description", "", "task description (identifier is derived from it)")
	recordCmd.Flags().IntVar(&recordPRNumber, "pr", 0, "pull request number")
	recordCmd.Flags().StringVar(&recordPRState, "state", "none", "pull request state: none, open, merged, closed")
	rootCmd.AddCommand(recordCmd)
}
