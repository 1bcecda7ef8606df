package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/orphan"
	"github.com/claudestep/claudestep/internal/selector"
	"github.com/claudestep/claudestep/internal/specfile"
)

var nextCmd = &cobra.Command{
	Use:   "next <project>",
	Short: "Pick the next task to execute for a project",
	Long: `Reads the project's spec and metadata document and picks the first task
with no merged pull request. Prints nothing to start when a pull request is
already in flight: at most one task runs per project at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		project := args[0]

		e, err := buildEnv()
		if err != nil {
			return err
		}
		manifest, err := specfile.LoadManifest(e.cfg.Manifest)
		if err != nil {
			return err
		}
		specPath, err := manifest.SpecFor(project)
		if err != nil {
			return err
		}
		tasks, err := specfile.Load(specPath)
		if err != nil {
			return err
		}

		doc, _, err := e.store.GetOrInit(ctx, project)
		if err != nil {
			return err
		}

		decision := selector.NextTask(project, doc, tasks)
		orphan.RenderWarnings(os.Stderr, project, decision.Orphans)

		green := color.New(color.FgGreen).SprintFunc()
		switch {
		case decision.InFlight != nil:
			pr := "?"
			if decision.InFlight.PullRequestNumber != nil {
				pr = fmt.Sprintf("#%d", *decision.InFlight.PullRequestNumber)
			}
			fmt.Printf("Waiting: task %s is in flight (PR %s). Merge or close it first.\n",
				decision.InFlight.TaskID, pr)
		case decision.Next == nil:
			fmt.Println("All tasks are done.")
		default:
			fmt.Printf("%s task %s (position %d)\n", green("Next:"), decision.Next.ID(), decision.Next.Position)
			fmt.Printf("  description: %s\n", decision.Next.Description)
			fmt.Printf("  branch:      %s\n", decision.BranchName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
