package cost

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/claudestep/claudestep/internal/types"
)

// TaskCost is the aggregated spend for one task.
type TaskCost struct {
	TaskID     string
	CostUSD    float64
	TokensIn   int64
	TokensOut  int64
	Operations int
}

// Summary aggregates AI spend across a project's execution history.
type Summary struct {
	Project   string
	CostUSD   float64
	TokensIn  int64
	TokensOut int64
	PerTask   []TaskCost
}

// Summarize totals the AI operations recorded in a project document.
// Task order follows the document's record order.
func Summarize(doc *types.ProjectDocument) Summary {
	summary := Summary{Project: doc.ProjectName}
	for _, record := range doc.Records {
		tc := TaskCost{TaskID: record.TaskID, Operations: len(record.Operations)}
		for _, op := range record.Operations {
			tc.CostUSD += op.CostUSD
			tc.TokensIn += op.TokensIn
			tc.TokensOut += op.TokensOut
		}
		summary.CostUSD += tc.CostUSD
		summary.TokensIn += tc.TokensIn
		summary.TokensOut += tc.TokensOut
		summary.PerTask = append(summary.PerTask, tc)
	}
	return summary
}

// Render writes a per-task cost breakdown.
func Render(w io.Writer, summary Summary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan(fmt.Sprintf("=== AI Cost: %s ===", summary.Project)))
	for _, tc := range summary.PerTask {
		fmt.Fprintf(w, "  %s  $%.4f  %s\n", tc.TaskID, tc.CostUSD,
			gray(fmt.Sprintf("(%d ops, %d in / %d out tokens)", tc.Operations, tc.TokensIn, tc.TokensOut)))
	}
	fmt.Fprintf(w, "\nTotal: $%.4f (%d in / %d out tokens)\n", summary.CostUSD, summary.TokensIn, summary.TokensOut)
}
