package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/cache"
	"github.com/claudestep/claudestep/internal/cost"
	"github.com/claudestep/claudestep/internal/platform"
)

var costOffline bool

var costCmd = &cobra.Command{
	Use:   "cost <project>",
	Short: "Show AI spend for a project's execution history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		project := args[0]

		e, err := buildEnv()
		if err != nil {
			return err
		}
		snapshots, err := cache.Open(e.cfg.CachePath)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		if costOffline {
			doc, _, fetchedAt, err := snapshots.Get(ctx, project)
			if err != nil {
				if errors.Is(err, cache.ErrMiss) {
					return fmt.Errorf("no cached snapshot for %s; run without --offline first", project)
				}
				return err
			}
			fmt.Printf("(from snapshot cached %s)\n", fetchedAt.Format(time.RFC3339))
			cost.Render(os.Stdout, cost.Summarize(doc))
			return nil
		}

		doc, revision, err := e.store.Get(ctx, project)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				return fmt.Errorf("no metadata for %s yet", project)
			}
			return err
		}
		if err := snapshots.Put(ctx, doc, revision, time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to refresh snapshot cache: %v\n", err)
		}
		cost.Render(os.Stdout, cost.Summarize(doc))
		return nil
	},
}

func init() {
	costCmd.Flags().BoolVar(&costOffline, "offline", false, "read from the local snapshot cache instead of the platform")
	rootCmd.AddCommand(costCmd)
}
