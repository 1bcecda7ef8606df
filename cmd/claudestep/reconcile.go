package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/reconcile"
	"github.com/claudestep/claudestep/internal/types"
)

var (
	reconcileApply bool
	reconcileAll   bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [project]",
	Short: "Detect and correct drift between stored metadata and live pull requests",
	Long: `Compares each project's metadata document against the pull requests on the
platform. By default only reports what it would change; pass --apply to write
corrections. Phantom records (claiming pull requests that no longer exist) are
flagged but never deleted automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		e, err := buildEnv()
		if err != nil {
			return err
		}

		mode := types.ModeDryRun
		if reconcileApply {
			mode = types.ModeApply
		}

		if reconcileAll {
			summaries, err := e.service.ReconcileAll(ctx, mode)
			if err != nil {
				return err
			}
			for _, summary := range summaries {
				reconcile.RenderSummary(os.Stdout, summary)
			}
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("specify a project or pass --all")
		}
		summary, err := e.service.ApplyCorrections(ctx, args[0], mode)
		if err != nil {
			return err
		}
		reconcile.RenderSummary(os.Stdout, summary)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileApply, "apply", false, "write corrections (default is dry run)")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "reconcile every tracked project")
	rootCmd.AddCommand(reconcileCmd)
}
