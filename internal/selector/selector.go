// Package selector picks the next task to execute for a project. It is the
// consumer of the identifier engine, metadata store, and orphan detector:
// the "at most one open pull request per project" rule is enforced here, at
// the point of creation, not by the store. Two selectors racing past the
// check is an accepted anomaly that the next reconciliation pass resolves.
package selector

import (
	"github.com/claudestep/claudestep/internal/orphan"
	"github.com/claudestep/claudestep/internal/specfile"
	"github.com/claudestep/claudestep/internal/taskid"
	"github.com/claudestep/claudestep/internal/types"
)

// Decision is the outcome of selecting the next task for a project.
type Decision struct {
	// Next is the chosen task, nil when there is nothing to start.
	Next *specfile.Task

	// BranchName is the branch the chosen task's work should go to.
	BranchName string

	// InFlight is the record blocking new work, when one exists.
	InFlight *types.ExecutionRecord

	// Orphans are in-flight records whose task no longer exists; they are
	// surfaced as warnings alongside whatever decision is made.
	Orphans []orphan.Orphan
}

// NextTask chooses the first task that has not been completed and is not
// already in flight. When any record is in flight the decision is to wait,
// keeping at most one open pull request per project.
func NextTask(project string, doc *types.ProjectDocument, tasks []specfile.Task) Decision {
	validIDs := specfile.ValidIdentifiers(tasks)
	decision := Decision{
		Orphans: orphan.Detect(doc, validIDs, len(tasks)),
	}

	if inFlight := doc.InFlightRecords(); len(inFlight) > 0 {
		decision.InFlight = &inFlight[0]
		return decision
	}

	for i := range tasks {
		task := tasks[i]
		if task.Done {
			continue
		}
		record := doc.FindRecord(task.ID())
		if record != nil && record.PullRequestState == types.PRStateMerged {
			continue
		}
		decision.Next = &task
		decision.BranchName = taskid.BranchName(project, task.ID())
		return decision
	}
	return decision
}
