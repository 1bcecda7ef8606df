// Package reconcile detects and corrects drift between the metadata store's
// view of a project and the live pull-request state on the platform.
// Reconciliation is a pure function of (store state, live state): re-running
// it with no intervening changes converges to an empty report.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claudestep/claudestep/internal/platform"
	"github.com/claudestep/claudestep/internal/store"
	"github.com/claudestep/claudestep/internal/taskid"
	"github.com/claudestep/claudestep/internal/types"
)

// Service reconciles one repository's projects.
type Service struct {
	store  *store.Store
	client platform.Client
	now    func() time.Time
}

// NewService creates a reconciliation service.
func NewService(st *store.Store, client platform.Client) *Service {
	return &Service{store: st, client: client, now: time.Now}
}

// livePulls fetches all pull requests belonging to a project, matched by
// branch-name prefix. Closed and merged pull requests are included: drift
// detection needs them to notice stale open records.
func (s *Service) livePulls(ctx context.Context, project string) ([]platform.PullRequest, error) {
	prs, err := s.client.ListPullRequests(ctx, platform.ListFilter{
		BranchPrefix:  taskid.BranchPrefix + "-" + project + "-",
		IncludeClosed: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", project, err)
	}

	// The prefix match can overreach for hyphenated project names
	// ("auth" vs "auth-api"), so confirm via the parsed project.
	var out []platform.PullRequest
	for _, pr := range prs {
		parsed, _, err := taskid.ParseBranchName(pr.BranchName)
		if err != nil || parsed != project {
			continue
		}
		out = append(out, pr)
	}
	return out, nil
}

// ComputeDrift compares stored records against live pull requests and
// collects disagreements into the three drift buckets.
func (s *Service) ComputeDrift(ctx context.Context, project string) (*types.DriftReport, error) {
	prs, err := s.livePulls(ctx, project)
	if err != nil {
		return nil, err
	}
	doc, _, err := s.store.GetOrInit(ctx, project)
	if err != nil {
		return nil, err
	}
	return computeDrift(project, doc, prs), nil
}

// computeDrift is the pure comparison core, shared with ApplyCorrections so
// a single fetch feeds both detection and correction.
func computeDrift(project string, doc *types.ProjectDocument, prs []platform.PullRequest) *types.DriftReport {
	report := &types.DriftReport{Project: project}

	liveByNumber := make(map[int]platform.PullRequest, len(prs))
	for _, pr := range prs {
		liveByNumber[pr.Number] = pr
	}

	// Pass 1: live pull requests the store doesn't know about, plus records
	// that never got around to recording their pull request.
	for _, pr := range prs {
		record := matchRecord(doc, pr)
		if record == nil {
			report.MissingInStore = append(report.MissingInStore, types.PullRequestRef{
				Number:     pr.Number,
				BranchName: pr.BranchName,
				State:      pr.State,
			})
			continue
		}
		if record.PullRequestNumber == nil {
			// The record predates its pull request (a run crashed between
			// opening the PR and recording it). Fill in number and state.
			report.StaleFields = append(report.StaleFields, types.StaleField{
				TaskID:      record.TaskID,
				Field:       "pull_request_number",
				StoredValue: "",
				LiveValue:   strconv.Itoa(pr.Number),
			})
			if pr.State != record.PullRequestState {
				report.StaleFields = append(report.StaleFields, types.StaleField{
					TaskID:      record.TaskID,
					Field:       "pull_request_state",
					StoredValue: string(record.PullRequestState),
					LiveValue:   string(pr.State),
				})
			}
		}
	}

	// Pass 2: stored records whose pull request disagrees or disappeared.
	for i := range doc.Records {
		record := &doc.Records[i]
		if record.PullRequestNumber == nil {
			continue
		}
		live, exists := liveByNumber[*record.PullRequestNumber]
		if !exists {
			report.PhantomInStore = append(report.PhantomInStore, *record)
			continue
		}
		if live.State != record.PullRequestState {
			report.StaleFields = append(report.StaleFields, types.StaleField{
				TaskID:      record.TaskID,
				Field:       "pull_request_state",
				StoredValue: string(record.PullRequestState),
				LiveValue:   string(live.State),
			})
		}
		if live.BranchName != record.BranchName {
			report.StaleFields = append(report.StaleFields, types.StaleField{
				TaskID:      record.TaskID,
				Field:       "branch_name",
				StoredValue: record.BranchName,
				LiveValue:   live.BranchName,
			})
		}
	}

	sort.Slice(report.MissingInStore, func(i, j int) bool {
		return report.MissingInStore[i].Number < report.MissingInStore[j].Number
	})
	return report
}

// matchRecord finds the stored record for a live pull request, matching by
// the task reference embedded in the branch name (or, for legacy branches,
// by pull request number).
func matchRecord(doc *types.ProjectDocument, pr platform.PullRequest) *types.ExecutionRecord {
	_, ref, err := taskid.ParseBranchName(pr.BranchName)
	if err != nil {
		return nil
	}
	switch ref.Form {
	case taskid.RefHash:
		if r := doc.FindRecord(ref.Hash); r != nil {
			return r
		}
	case taskid.RefIndex:
		// Legacy branches carry no content hash; the pull request number is
		// the only stable join key.
		if r := doc.FindRecordByPR(pr.Number); r != nil {
			return r
		}
	}
	return nil
}

// ApplyCorrections resolves a drift report. In dry-run mode it only describes
// the corrections; in apply mode it inserts missing records and refreshes
// stale fields in a single store write per project. Phantom records are never
// deleted - they are flagged for manual review, because deleting execution
// history is an explicit operator action.
func (s *Service) ApplyCorrections(ctx context.Context, project string, mode types.CorrectionMode) (*types.CorrectionSummary, error) {
	prs, err := s.livePulls(ctx, project)
	if err != nil {
		return nil, err
	}
	doc, _, err := s.store.GetOrInit(ctx, project)
	if err != nil {
		return nil, err
	}
	report := computeDrift(project, doc, prs)

	summary := &types.CorrectionSummary{
		RunID:   uuid.New().String(),
		Project: project,
		Mode:    mode,
	}

	liveByNumber := make(map[int]platform.PullRequest, len(prs))
	for _, pr := range prs {
		liveByNumber[pr.Number] = pr
	}

	for _, ref := range report.MissingInStore {
		record, err := recordFromPull(liveByNumber[ref.Number], s.now())
		if err != nil {
			log.Printf("reconcile: skipping PR #%d: %v", ref.Number, err)
			continue
		}
		summary.Inserted = append(summary.Inserted, record)
	}
	summary.Updated = append(summary.Updated, report.StaleFields...)
	summary.FlaggedForReview = append(summary.FlaggedForReview, report.PhantomInStore...)

	for _, rec := range summary.FlaggedForReview {
		log.Printf("reconcile: phantom record %s in %s claims PR #%d which no longer exists; "+
			"review manually and delete the record explicitly if the PR is truly gone",
			rec.TaskID, project, *rec.PullRequestNumber)
	}

	if mode == types.ModeDryRun || !summary.Changed() {
		return summary, nil
	}

	// One compare-and-swap write covers every correction for the project.
	_, err = s.store.Update(ctx, project, func(doc *types.ProjectDocument) error {
		return applyToDocument(doc, summary)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write corrections for %s: %w", project, err)
	}
	return summary, nil
}

// applyToDocument applies a summary's corrections to a freshly read document.
// It re-checks each correction against the document so the mutation stays
// idempotent under compare-and-swap retries.
func applyToDocument(doc *types.ProjectDocument, summary *types.CorrectionSummary) error {
	for _, rec := range summary.Inserted {
		if doc.FindRecord(rec.TaskID) != nil {
			continue
		}
		doc.Records = append(doc.Records, rec)
	}
	for _, stale := range summary.Updated {
		record := doc.FindRecord(stale.TaskID)
		if record == nil {
			continue
		}
		switch stale.Field {
		case "pull_request_number":
			n, err := strconv.Atoi(stale.LiveValue)
			if err != nil {
				return fmt.Errorf("correction for %s carries a bad pull request number %q: %w", stale.TaskID, stale.LiveValue, err)
			}
			record.PullRequestNumber = &n
		case "pull_request_state":
			record.PullRequestState = types.PullRequestState(stale.LiveValue)
		case "branch_name":
			record.BranchName = stale.LiveValue
		}
	}
	return nil
}

// recordFromPull reconstructs an execution record from a live pull request,
// deriving identifier and branch fields from the branch name and filling
// best-effort timestamps from platform data.
func recordFromPull(pr platform.PullRequest, now time.Time) (types.ExecutionRecord, error) {
	_, ref, err := taskid.ParseBranchName(pr.BranchName)
	if err != nil {
		return types.ExecutionRecord{}, err
	}

	taskID := ref.Hash
	if ref.Form == taskid.RefIndex {
		// Legacy branch: no content hash exists. Synthesize a stable
		// placeholder identifier so the record remains addressable.
		taskID = legacyTaskID(ref.Index)
	}

	createdAt := pr.CreatedAt
	if createdAt.IsZero() {
		createdAt = now.UTC()
	}

	number := pr.Number
	record := types.ExecutionRecord{
		TaskID:            taskID,
		TaskDescription:   strings.TrimSpace(pr.Title),
		BranchName:        pr.BranchName,
		PullRequestNumber: &number,
		PullRequestState:  pr.State,
		CreatedAt:         createdAt,
		Operations:        []types.AIOperation{},
	}
	if err := record.Validate(); err != nil {
		return types.ExecutionRecord{}, err
	}
	return record, nil
}

// legacyTaskID derives the placeholder identifier for a legacy positional
// branch. The "legacy-" prefix keeps it out of the 8-hex identifier space so
// it can never collide with a content hash.
func legacyTaskID(index int) string {
	return "legacy-" + strconv.Itoa(index)
}

// Backfill imports historical pull requests that predate metadata tracking.
// It is a bulk operation: confirm is consulted with a description of the
// import before anything is written, and a declined confirmation aborts with
// no changes.
func (s *Service) Backfill(ctx context.Context, project string, confirm func(prompt string) bool) (*types.CorrectionSummary, error) {
	dry, err := s.ApplyCorrections(ctx, project, types.ModeDryRun)
	if err != nil {
		return nil, err
	}
	if len(dry.Inserted) == 0 {
		return dry, nil
	}

	prompt := fmt.Sprintf("Backfill will import %d historical pull request(s) into %s. Proceed?",
		len(dry.Inserted), project)
	if !confirm(prompt) {
		return nil, fmt.Errorf("backfill of %s declined by operator", project)
	}
	return s.ApplyCorrections(ctx, project, types.ModeApply)
}

// ReconcileAll runs ApplyCorrections across every stored project, fanning out
// with bounded concurrency. Per-project failures are collected rather than
// aborting the whole pass.
func (s *Service) ReconcileAll(ctx context.Context, mode types.CorrectionMode) (map[string]*types.CorrectionSummary, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return s.reconcileProjects(ctx, projects, mode)
}
