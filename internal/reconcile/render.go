package reconcile

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/claudestep/claudestep/internal/types"
)

// RenderSummary writes a human-readable account of a reconciliation pass.
// Dry-run output reads as a diff of what apply mode would change.
func RenderSummary(w io.Writer, summary *types.CorrectionSummary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	verb := "Applied"
	if summary.Mode == types.ModeDryRun {
		verb = "Would apply"
	}
	fmt.Fprintf(w, "\n%s\n", cyan(fmt.Sprintf("=== Reconciliation: %s ===", summary.Project)))
	fmt.Fprintf(w, "%s\n\n", gray("run "+summary.RunID))

	if !summary.Changed() && len(summary.FlaggedForReview) == 0 {
		fmt.Fprintf(w, "%s\n", green("✓ Store and platform agree; nothing to do"))
		return
	}

	if len(summary.Inserted) > 0 {
		fmt.Fprintf(w, "%s %d record(s):\n", verb, len(summary.Inserted))
		for _, rec := range summary.Inserted {
			fmt.Fprintf(w, "  %s insert %s (PR #%d, %s) %s\n",
				green("+"), rec.TaskID, *rec.PullRequestNumber, rec.PullRequestState, gray(rec.BranchName))
		}
	}
	for _, stale := range summary.Updated {
		fmt.Fprintf(w, "  %s %s.%s: %s %s %s\n",
			yellow("~"), stale.TaskID, stale.Field,
			red(stale.StoredValue), gray("->"), green(stale.LiveValue))
	}
	for _, rec := range summary.FlaggedForReview {
		fmt.Fprintf(w, "  %s phantom %s claims PR #%d which no longer exists (manual review; not deleted)\n",
			red("!"), rec.TaskID, *rec.PullRequestNumber)
	}
}
