package types

import (
	"fmt"
	"time"
)

// CurrentSchemaVersion is the version written into new project documents.
// Bump only on incompatible layout changes; readers refuse documents with a
// higher version than they understand.
const CurrentSchemaVersion = 1

// PullRequestState represents the lifecycle state of a task's pull request.
type PullRequestState string

const (
	// PRStateNone means no pull request has been opened for the task yet.
	PRStateNone PullRequestState = "none"
	// PRStateOpen means the pull request exists and is open (the record is in-flight).
	PRStateOpen PullRequestState = "open"
	// PRStateMerged means the pull request was merged.
	PRStateMerged PullRequestState = "merged"
	// PRStateClosed means the pull request was closed without merging.
	PRStateClosed PullRequestState = "closed"
)

// IsValid checks if the pull request state value is valid
func (s PullRequestState) IsValid() bool {
	switch s {
	case PRStateNone, PRStateOpen, PRStateMerged, PRStateClosed:
		return true
	}
	return false
}

// AIOperation records one AI invocation made while working on a task.
// Operations are append-only: once written they are never mutated.
type AIOperation struct {
	Kind            string    `json:"kind"`
	CostUSD         float64   `json:"cost_usd"`
	TokensIn        int64     `json:"tokens_in"`
	TokensOut       int64     `json:"tokens_out"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks if the operation has valid field values
func (o *AIOperation) Validate() error {
	if o.Kind == "" {
		return &ValidationError{Field: "kind", Reason: "kind is required"}
	}
	if o.CostUSD < 0 {
		return &ValidationError{Field: "cost_usd", Reason: fmt.Sprintf("cost cannot be negative (got %f)", o.CostUSD)}
	}
	if o.TokensIn < 0 {
		return &ValidationError{Field: "tokens_in", Reason: fmt.Sprintf("token count cannot be negative (got %d)", o.TokensIn)}
	}
	if o.TokensOut < 0 {
		return &ValidationError{Field: "tokens_out", Reason: fmt.Sprintf("token count cannot be negative (got %d)", o.TokensOut)}
	}
	if o.DurationSeconds < 0 {
		return &ValidationError{Field: "duration_seconds", Reason: fmt.Sprintf("duration cannot be negative (got %f)", o.DurationSeconds)}
	}
	return validateTimestamp("created_at", o.CreatedAt)
}

// ExecutionRecord tracks one attempted task: which pull request it produced,
// the state of that pull request, and the AI operations spent on it.
type ExecutionRecord struct {
	TaskID string `json:"task_identifier"`

	// TaskDescription is an audit snapshot of the task text at execution
	// time. It can go stale if the spec changes afterward; correctness
	// decisions must re-read the spec, never this copy.
	TaskDescription string `json:"task_description"`

	BranchName        string           `json:"branch_name"`
	PullRequestNumber *int             `json:"pull_request_number,omitempty"`
	PullRequestState  PullRequestState `json:"pull_request_state"`

	// Abandoned marks a record whose task text changed or disappeared while
	// its pull request was open, and whose pull request was then closed by
	// the operator. The record is retained for audit rather than deleted.
	Abandoned bool `json:"abandoned,omitempty"`

	CreatedAt  time.Time     `json:"created_at"`
	Operations []AIOperation `json:"operations"`
}

// InFlight reports whether the record's pull request is currently open.
func (r *ExecutionRecord) InFlight() bool {
	return r.PullRequestState == PRStateOpen
}

// TotalCostUSD sums the cost of all recorded AI operations.
func (r *ExecutionRecord) TotalCostUSD() float64 {
	var total float64
	for _, op := range r.Operations {
		total += op.CostUSD
	}
	return total
}

// Validate checks if the record has valid field values
func (r *ExecutionRecord) Validate() error {
	if r.TaskID == "" {
		return &ValidationError{Field: "task_identifier", Reason: "task identifier is required"}
	}
	if r.BranchName == "" {
		return &ValidationError{Field: "branch_name", Reason: "branch name is required"}
	}
	if !r.PullRequestState.IsValid() {
		return &ValidationError{Field: "pull_request_state", Reason: fmt.Sprintf("invalid state: %s", r.PullRequestState)}
	}
	// Invariant: state none <=> no pull request number.
	if r.PullRequestState == PRStateNone && r.PullRequestNumber != nil {
		return &ValidationError{Field: "pull_request_number", Reason: "number set but state is none"}
	}
	if r.PullRequestState != PRStateNone && r.PullRequestNumber == nil {
		return &ValidationError{Field: "pull_request_number", Reason: fmt.Sprintf("state is %s but number is missing", r.PullRequestState)}
	}
	if err := validateTimestamp("created_at", r.CreatedAt); err != nil {
		return err
	}
	for i := range r.Operations {
		if err := r.Operations[i].Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// ProjectDocument is the per-project metadata document persisted on the
// storage branch. SchemaVersion is deliberately the first field so it leads
// the serialized JSON, supporting forward migration.
type ProjectDocument struct {
	SchemaVersion int    `json:"schema_version"`
	ProjectName   string `json:"project_name"`

	// WriterVersion is the semver of the tool that last wrote the document.
	// Writers refuse to overwrite documents written by a newer major version.
	WriterVersion string `json:"writer_version,omitempty"`

	LastUpdated time.Time         `json:"last_updated"`
	Records     []ExecutionRecord `json:"records"`
}

// NewProjectDocument creates an empty document for a project.
func NewProjectDocument(project string) *ProjectDocument {
	return &ProjectDocument{
		SchemaVersion: CurrentSchemaVersion,
		ProjectName:   project,
		Records:       []ExecutionRecord{},
	}
}

// FindRecord returns the record for the given task identifier, or nil.
func (d *ProjectDocument) FindRecord(taskID string) *ExecutionRecord {
	for i := range d.Records {
		if d.Records[i].TaskID == taskID {
			return &d.Records[i]
		}
	}
	return nil
}

// FindRecordByPR returns the record claiming the given pull request number, or nil.
func (d *ProjectDocument) FindRecordByPR(number int) *ExecutionRecord {
	for i := range d.Records {
		if d.Records[i].PullRequestNumber != nil && *d.Records[i].PullRequestNumber == number {
			return &d.Records[i]
		}
	}
	return nil
}

// InFlightRecords returns all records whose pull request is currently open.
func (d *ProjectDocument) InFlightRecords() []ExecutionRecord {
	var out []ExecutionRecord
	for _, r := range d.Records {
		if r.InFlight() {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the document and every record it owns.
func (d *ProjectDocument) Validate() error {
	if d.SchemaVersion < 1 {
		return &ValidationError{Field: "schema_version", Reason: fmt.Sprintf("must be >= 1 (got %d)", d.SchemaVersion)}
	}
	if d.SchemaVersion > CurrentSchemaVersion {
		return &ValidationError{Field: "schema_version", Reason: fmt.Sprintf("version %d is newer than supported version %d", d.SchemaVersion, CurrentSchemaVersion)}
	}
	if d.ProjectName == "" {
		return &ValidationError{Field: "project_name", Reason: "project name is required"}
	}
	seen := make(map[string]bool, len(d.Records))
	for i := range d.Records {
		if err := d.Records[i].Validate(); err != nil {
			return fmt.Errorf("record %d (%s): %w", i, d.Records[i].TaskID, err)
		}
		if seen[d.Records[i].TaskID] {
			return &ValidationError{Field: "records", Reason: fmt.Sprintf("duplicate task identifier %s", d.Records[i].TaskID)}
		}
		seen[d.Records[i].TaskID] = true
	}
	return nil
}

// ValidationError indicates a field value that must never be persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// validateTimestamp rejects missing timestamps. Timestamps are persisted in
// RFC 3339 with an explicit offset, so a decoded document can never carry a
// timezone-less value; a zero time means the caller forgot to set one.
func validateTimestamp(field string, t time.Time) error {
	if t.IsZero() {
		return &ValidationError{Field: field, Reason: "timestamp is required"}
	}
	return nil
}
