package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudestep/claudestep/internal/platform"
	"github.com/claudestep/claudestep/internal/store"
	"github.com/claudestep/claudestep/internal/types"
)

func testService(t *testing.T) (*Service, *store.Store, *platform.Fake) {
	t.Helper()
	fake := platform.NewFake()
	st := store.New(fake, "v1.0.0")
	return NewService(st, fake), st, fake
}

func livePull(number int, branch string, state types.PullRequestState) platform.PullRequest {
	return platform.PullRequest{
		Number:     number,
		Title:      "Add login form",
		BranchName: branch,
		State:      state,
		BaseRef:    "main",
		CreatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func storedOpen(taskID string, pr int) types.ExecutionRecord {
	return types.ExecutionRecord{
		TaskID:            taskID,
		TaskDescription:   "Add login form",
		BranchName:        "claude-step-auth-" + taskID,
		PullRequestNumber: &pr,
		PullRequestState:  types.PRStateOpen,
		CreatedAt:         time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Operations:        []types.AIOperation{},
	}
}

func TestComputeDrift_Agreement(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))
	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestComputeDrift_MissingInStore(t *testing.T) {
	svc, _, fake := testService(t)
	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))

	report, err := svc.ComputeDrift(context.Background(), "auth")
	require.NoError(t, err)
	require.Len(t, report.MissingInStore, 1)
	assert.Equal(t, 42, report.MissingInStore[0].Number)
	assert.Empty(t, report.PhantomInStore)
	assert.Empty(t, report.StaleFields)
}

func TestComputeDrift_StaleState(t *testing.T) {
	// Store says open, platform says merged: one stale_fields entry.
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateMerged))
	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, report.StaleFields, 1)
	stale := report.StaleFields[0]
	assert.Equal(t, "a3f2b891", stale.TaskID)
	assert.Equal(t, "pull_request_state", stale.Field)
	assert.Equal(t, "open", stale.StoredValue)
	assert.Equal(t, "merged", stale.LiveValue)
}

func TestComputeDrift_RecordWithoutPullRequestNumber(t *testing.T) {
	// A run that crashed between opening the pull request and recording it
	// leaves a record at state none with no number. The live open PR on that
	// record's branch is drift, not agreement.
	svc, st, fake := testService(t)
	ctx := context.Background()

	rec := storedOpen("a3f2b891", 0)
	rec.PullRequestNumber = nil
	rec.PullRequestState = types.PRStateNone
	require.NoError(t, st.RecordExecution(ctx, "auth", rec))
	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.False(t, report.Empty(), "stored state none vs live open is drift")
	assert.Empty(t, report.MissingInStore)
	require.Len(t, report.StaleFields, 2)
	assert.Equal(t, "pull_request_number", report.StaleFields[0].Field)
	assert.Equal(t, "42", report.StaleFields[0].LiveValue)
	assert.Equal(t, "pull_request_state", report.StaleFields[1].Field)
	assert.Equal(t, "open", report.StaleFields[1].LiveValue)
}

func TestApplyCorrections_FillsInPullRequestAndConverges(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	rec := storedOpen("a3f2b891", 0)
	rec.PullRequestNumber = nil
	rec.PullRequestState = types.PRStateNone
	require.NoError(t, st.RecordExecution(ctx, "auth", rec))
	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summary.Updated, 2)
	assert.Empty(t, summary.Inserted)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	require.NotNil(t, doc.Records[0].PullRequestNumber)
	assert.Equal(t, 42, *doc.Records[0].PullRequestNumber)
	assert.Equal(t, types.PRStateOpen, doc.Records[0].PullRequestState)

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestComputeDrift_PhantomRecord(t *testing.T) {
	svc, st, _ := testService(t)
	ctx := context.Background()

	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, report.PhantomInStore, 1)
	assert.Equal(t, "a3f2b891", report.PhantomInStore[0].TaskID)
}

func TestComputeDrift_IgnoresOtherProjects(t *testing.T) {
	// "auth" must not claim "auth-api" pull requests despite the shared
	// branch prefix.
	svc, _, fake := testService(t)
	fake.AddPullRequest(livePull(50, "claude-step-auth-api-deadbeef", types.PRStateOpen))

	report, err := svc.ComputeDrift(context.Background(), "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestApplyCorrections_DryRunWritesNothing(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeDryRun)
	require.NoError(t, err)
	require.Len(t, summary.Inserted, 1)
	assert.NotEmpty(t, summary.RunID)

	_, _, err = st.Get(ctx, "auth")
	assert.ErrorIs(t, err, platform.ErrNotFound, "dry run must not create the document")
}

func TestApplyCorrections_InsertsMissingAndConverges(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateOpen))

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summary.Inserted, 1)
	inserted := summary.Inserted[0]
	assert.Equal(t, "a3f2b891", inserted.TaskID)
	assert.Equal(t, "claude-step-auth-a3f2b891", inserted.BranchName)
	assert.Equal(t, "Add login form", inserted.TaskDescription)
	assert.Equal(t, types.PRStateOpen, inserted.PullRequestState)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)

	// Reconciliation converges: a second pass finds nothing.
	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestApplyCorrections_UpdatesStaleStateAndConverges(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateMerged))
	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summary.Updated, 1)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	assert.Equal(t, types.PRStateMerged, doc.Records[0].PullRequestState)

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestApplyCorrections_NeverDeletesPhantoms(t *testing.T) {
	svc, st, _ := testService(t)
	ctx := context.Background()

	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summary.FlaggedForReview, 1)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	assert.Len(t, doc.Records, 1, "phantom records are flagged, never deleted")
}

func TestApplyCorrections_LegacyIndexBranch(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	pr := livePull(7, "claude-step-auth-3", types.PRStateMerged)
	pr.Title = "Legacy third task"
	fake.AddPullRequest(pr)

	summary, err := svc.ApplyCorrections(ctx, "auth", types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summary.Inserted, 1)
	assert.Equal(t, "legacy-3", summary.Inserted[0].TaskID)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)

	report, err := svc.ComputeDrift(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, report.Empty(), "legacy records are matched by PR number on the next pass")
}

func TestBackfill_DeclinedWritesNothing(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateMerged))

	_, err := svc.Backfill(ctx, "auth", func(string) bool { return false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declined")

	_, _, err = st.Get(ctx, "auth")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestBackfill_ConfirmedImports(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	fake.AddPullRequest(livePull(41, "claude-step-auth-deadbeef", types.PRStateMerged))
	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateClosed))

	var prompted string
	summary, err := svc.Backfill(ctx, "auth", func(p string) bool {
		prompted = p
		return true
	})
	require.NoError(t, err)
	assert.Contains(t, prompted, "2 historical pull request(s)")
	assert.Len(t, summary.Inserted, 2)

	doc, _, err := st.Get(ctx, "auth")
	require.NoError(t, err)
	assert.Len(t, doc.Records, 2)
}

func TestBackfill_NothingToImportSkipsPrompt(t *testing.T) {
	svc, _, _ := testService(t)

	summary, err := svc.Backfill(context.Background(), "auth", func(string) bool {
		t.Fatal("confirm must not be called when there is nothing to import")
		return false
	})
	require.NoError(t, err)
	assert.Empty(t, summary.Inserted)
}

func TestReconcileAll(t *testing.T) {
	svc, st, fake := testService(t)
	ctx := context.Background()

	billingRec := storedOpen("deadbeef", 43)
	billingRec.BranchName = "claude-step-billing-deadbeef"
	require.NoError(t, st.RecordExecution(ctx, "auth", storedOpen("a3f2b891", 42)))
	require.NoError(t, st.RecordExecution(ctx, "billing", billingRec))
	fake.AddPullRequest(livePull(42, "claude-step-auth-a3f2b891", types.PRStateMerged))
	fake.AddPullRequest(livePull(43, "claude-step-billing-deadbeef", types.PRStateOpen))

	summaries, err := svc.ReconcileAll(ctx, types.ModeApply)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Len(t, summaries["auth"].Updated, 1)
	assert.Empty(t, summaries["billing"].Updated)
}
