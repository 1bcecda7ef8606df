package types

// DriftReport captures disagreement between the metadata store and live
// pull-request state. It is a transient computed value, never persisted.
type DriftReport struct {
	Project string `json:"project"`

	// MissingInStore lists live pull requests that have no matching record.
	MissingInStore []PullRequestRef `json:"missing_in_store"`

	// PhantomInStore lists records claiming pull requests that no longer
	// exist upstream. Phantoms are flagged for manual review, never deleted
	// automatically.
	PhantomInStore []ExecutionRecord `json:"phantom_in_store"`

	// StaleFields lists per-field disagreements for records whose pull
	// request still exists but whose stored state is out of date.
	StaleFields []StaleField `json:"stale_fields"`
}

// Empty reports whether the store and live state fully agree.
func (r *DriftReport) Empty() bool {
	return len(r.MissingInStore) == 0 && len(r.PhantomInStore) == 0 && len(r.StaleFields) == 0
}

// PullRequestRef identifies a live pull request found on the platform.
type PullRequestRef struct {
	Number     int              `json:"number"`
	BranchName string           `json:"branch_name"`
	State      PullRequestState `json:"state"`
}

// StaleField records one field whose stored value disagrees with the platform.
type StaleField struct {
	TaskID      string `json:"task_identifier"`
	Field       string `json:"field"`
	StoredValue string `json:"stored_value"`
	LiveValue   string `json:"live_value"`
}

// CorrectionMode selects between previewing and applying corrections.
type CorrectionMode string

const (
	// ModeDryRun computes and renders corrections without writing anything.
	ModeDryRun CorrectionMode = "dry_run"
	// ModeApply writes the corrections back to the metadata store.
	ModeApply CorrectionMode = "apply"
)

// CorrectionSummary describes what a reconciliation pass did (or would do).
type CorrectionSummary struct {
	// RunID uniquely identifies the reconciliation pass for log correlation.
	RunID   string         `json:"run_id"`
	Project string         `json:"project"`
	Mode    CorrectionMode `json:"mode"`

	// Inserted are records reconstructed for pull requests missing from the store.
	Inserted []ExecutionRecord `json:"inserted"`
	// Updated are stale fields that were (or would be) corrected.
	Updated []StaleField `json:"updated"`
	// FlaggedForReview are phantom records requiring an operator decision.
	FlaggedForReview []ExecutionRecord `json:"flagged_for_review"`
}

// Changed reports whether the pass found anything to correct.
func (s *CorrectionSummary) Changed() bool {
	return len(s.Inserted) > 0 || len(s.Updated) > 0
}
