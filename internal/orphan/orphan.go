// Package orphan flags in-flight execution records whose task no longer
// exists in the spec, because the task's text changed (new identifier) or the
// task was deleted. Detection is a read-only diagnostic: resolving an orphan
// (closing its stale pull request) is an operator action.
package orphan

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/claudestep/claudestep/internal/taskid"
	"github.com/claudestep/claudestep/internal/types"
)

// Orphan pairs a flagged record with the reason it was flagged.
type Orphan struct {
	Record types.ExecutionRecord
	Reason string
}

// Detect returns the in-flight records whose task identifier is absent from
// the current valid set. taskCount is the number of tasks in the current
// spec, used to range-check legacy positional records.
//
// False positives are not tolerated: a record whose identifier is in the
// valid set is never flagged. False negatives are acceptable transiently
// until the next reconciliation pass.
func Detect(doc *types.ProjectDocument, validIDs map[string]struct{}, taskCount int) []Orphan {
	var orphans []Orphan
	for _, record := range doc.InFlightRecords() {
		if reason, orphaned := classify(record, validIDs, taskCount); orphaned {
			orphans = append(orphans, Orphan{Record: record, Reason: reason})
		}
	}
	return orphans
}

func classify(record types.ExecutionRecord, validIDs map[string]struct{}, taskCount int) (string, bool) {
	// Legacy positional records are identified by their branch token, since
	// they carry no content hash. Out-of-range index means the task is gone.
	if _, ref, err := taskid.ParseBranchName(record.BranchName); err == nil && ref.Form == taskid.RefIndex {
		if ref.Index >= taskCount {
			return fmt.Sprintf("legacy task index %d is out of range (spec has %d tasks)", ref.Index, taskCount), true
		}
		return "", false
	}

	if _, ok := validIDs[record.TaskID]; !ok {
		return "task text changed or was removed from the spec", true
	}
	return "", false
}

// RenderWarnings writes actionable orphan warnings: each names the
// identifier, the pull request, the reason, and the manual step that
// resolves it.
func RenderWarnings(w io.Writer, project string, orphans []Orphan) {
	if len(orphans) == 0 {
		return
	}
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s %d orphaned in-flight record(s) in %s:\n", yellow("Warning:"), len(orphans), project)
	for _, o := range orphans {
		pr := "no PR"
		if o.Record.PullRequestNumber != nil {
			pr = fmt.Sprintf("PR #%d", *o.Record.PullRequestNumber)
		}
		fmt.Fprintf(w, "  - %s (%s, %s): %s\n", o.Record.TaskID, pr, gray(o.Record.BranchName), o.Reason)
	}
	fmt.Fprintf(w, "Close the stale pull request(s) manually, or restore the original task text to resume.\n")
}
