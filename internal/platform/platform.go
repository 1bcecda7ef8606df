// Package platform abstracts the pull-request hosting platform. The metadata
// store and reconciliation service are written entirely against the Client
// interface; the production implementation drives the GitHub REST API through
// the gh CLI.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claudestep/claudestep/internal/types"
)

// ErrNotFound is returned when a file or ref does not exist on the platform.
var ErrNotFound = errors.New("not found")

// ConflictError is returned by PutFile when the expected revision no longer
// matches the stored revision. The write was not applied.
type ConflictError struct {
	Path             string
	ExpectedRevision string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("revision conflict writing %s (expected %s)", e.Path, e.ExpectedRevision)
}

// TransportError wraps a network-level failure (timeout, 5xx, connection
// reset). Transport errors are retryable with backoff; they never indicate a
// definitive success or failure of the underlying state change.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// PullRequest is the platform's view of one pull request.
type PullRequest struct {
	Number     int
	Title      string
	BranchName string
	State      types.PullRequestState
	BaseRef    string
	Labels     []string
	CreatedAt  time.Time
}

// ListFilter narrows a pull-request listing.
type ListFilter struct {
	// BranchPrefix keeps only pull requests whose head branch starts with it.
	BranchPrefix string
	// Label keeps only pull requests carrying the label, when non-empty.
	Label string
	// IncludeClosed also returns merged and closed pull requests.
	IncludeClosed bool
}

// Client is the complete platform surface this system consumes: a
// pull-request listing and two file primitives against a fixed branch.
type Client interface {
	// ListPullRequests returns pull requests matching the filter.
	ListPullRequests(ctx context.Context, filter ListFilter) ([]PullRequest, error)

	// GetFile fetches a file and its revision token from a branch.
	// Returns ErrNotFound if the file or branch does not exist.
	GetFile(ctx context.Context, branch, path string) (content []byte, revision string, err error)

	// PutFile writes a file if its stored revision still equals
	// expectedRevision (empty string = the file must not exist yet).
	// Returns the new revision, or a ConflictError without applying
	// any partial write.
	PutFile(ctx context.Context, branch, path string, content []byte, expectedRevision, message string) (newRevision string, err error)

	// ListDir lists the file names directly under dir on a branch.
	// Returns ErrNotFound if the directory does not exist.
	ListDir(ctx context.Context, branch, dir string) ([]string, error)
}
