package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/cache"
	"github.com/claudestep/claudestep/internal/platform"
	"github.com/claudestep/claudestep/internal/types"
)

var statusOffline bool

var statusCmd = &cobra.Command{
	Use:   "status [project]",
	Short: "Show tracked projects and their execution records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		e, err := buildEnv()
		if err != nil {
			return err
		}

		snapshots, err := cache.Open(e.cfg.CachePath)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		var projects []string
		if len(args) == 1 {
			projects = args
		} else if statusOffline {
			projects, err = snapshots.Projects(ctx)
		} else {
			projects, err = e.store.ListProjects(ctx)
		}
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No tracked projects.")
			return nil
		}

		for _, project := range projects {
			doc, stale, err := loadDocument(ctx, e, snapshots, project)
			if err != nil {
				if errors.Is(err, platform.ErrNotFound) || errors.Is(err, cache.ErrMiss) {
					fmt.Printf("%s: no metadata yet\n", project)
					continue
				}
				return err
			}
			printProject(doc, stale)
		}
		return nil
	},
}

// loadDocument fetches a project document, refreshing the snapshot cache on
// success. In offline mode it reads the (possibly stale) snapshot instead.
func loadDocument(ctx context.Context, e *env, snapshots *cache.Cache, project string) (*types.ProjectDocument, string, error) {
	if statusOffline {
		doc, _, fetchedAt, err := snapshots.Get(ctx, project)
		if err != nil {
			return nil, "", err
		}
		return doc, fmt.Sprintf("cached %s", fetchedAt.Format(time.RFC3339)), nil
	}

	doc, revision, err := e.store.Get(ctx, project)
	if err != nil {
		return nil, "", err
	}
	if err := snapshots.Put(ctx, doc, revision, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to refresh snapshot cache: %v\n", err)
	}
	return doc, "", nil
}

func printProject(doc *types.ProjectDocument, staleNote string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	header := fmt.Sprintf("=== %s ===", doc.ProjectName)
	fmt.Printf("\n%s\n", cyan(header))
	if staleNote != "" {
		fmt.Printf("%s\n", gray(staleNote))
	}
	if len(doc.Records) == 0 {
		fmt.Println("  no execution records")
		return
	}
	for _, rec := range doc.Records {
		pr := "-"
		if rec.PullRequestNumber != nil {
			pr = fmt.Sprintf("#%d", *rec.PullRequestNumber)
		}
		marker := " "
		if rec.InFlight() {
			marker = "*"
		}
		fmt.Printf("  %s %s  %-6s %-7s $%.4f  %s\n",
			marker, rec.TaskID, pr, rec.PullRequestState, rec.TotalCostUSD(),
			gray(truncate(rec.TaskDescription, 60)))
	}
}

// truncate shortens s to at most n characters, counting runes so a multi-byte
// description is never cut mid-character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func init() {
	statusCmd.Flags().BoolVar(&statusOffline, "offline", false, "read from the local snapshot cache instead of the platform")
	rootCmd.AddCommand(statusCmd)
}
