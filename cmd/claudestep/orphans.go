package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/orphan"
	"github.com/claudestep/claudestep/internal/specfile"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans <project>",
	Short: "List in-flight work whose task no longer exists in the spec",
	Long: `Cross-references in-flight execution records against the identifiers of the
tasks currently in the spec. A record whose task text changed or disappeared
is orphaned: its open pull request implements a task that no longer exists.
Detection is read-only; close the stale pull request manually to resolve.`,
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

		orphans := orphan.Detect(doc, specfile.ValidIdentifiers(tasks), len(tasks))
		if len(orphans) == 0 {
			fmt.Printf("No orphaned work in %s.\n", project)
			return nil
		}
		orphan.RenderWarnings(os.Stdout, project, orphans)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(orphansCmd)
}
