// Package store persists one JSON metadata document per project on a
// dedicated storage branch, using the platform's file primitives with
// optimistic concurrency. There is no database and no lock: the revision
// token returned by the platform is the sole ordering mechanism across
// concurrent writers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/claudestep/claudestep/internal/platform"
	"github.com/claudestep/claudestep/internal/types"
)

const (
	// DefaultBranch is the storage branch holding metadata documents.
	DefaultBranch = "claude-step-metadata"

	projectsDir = "projects"

	// casAttempts bounds the read-mutate-put loop. Each attempt re-reads the
	// document and reapplies the semantic mutation, so losing a race is
	// recoverable as long as mutations are idempotent.
	casAttempts = 3
)

// ErrConflictExhausted is returned when every compare-and-swap attempt lost
// its race. The mutation was not applied; the caller may retry the whole
// operation.
var ErrConflictExhausted = errors.New("optimistic concurrency retries exhausted")

// Store reads and writes project metadata documents.
type Store struct {
	client platform.Client
	branch string
	retry  RetryConfig

	// toolVersion is stamped into documents as the writer version, e.g. "v1.4.0".
	toolVersion string

	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithBranch overrides the storage branch.
func WithBranch(branch string) Option {
	return func(s *Store) { s.branch = branch }
}

// WithRetryConfig overrides transport retry behavior.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Store) { s.retry = cfg }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store backed by the given platform client. toolVersion is the
// semver of this binary ("v1.2.3") recorded as the document writer version.
func New(client platform.Client, toolVersion string, opts ...Option) *Store {
	s := &Store{
		client:      client,
		branch:      DefaultBranch,
		retry:       DefaultRetryConfig(),
		toolVersion: toolVersion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentPath returns the storage path for a project's document.
func DocumentPath(project string) string {
	return fmt.Sprintf("%s/%s.json", projectsDir, project)
}

// Get fetches a project's document and revision token.
// Returns platform.ErrNotFound if the project has no document yet.
func (s *Store) Get(ctx context.Context, project string) (*types.ProjectDocument, string, error) {
	var content []byte
	var revision string
	err := withRetry(ctx, s.retry, func() error {
		var err error
		content, revision, err = s.client.GetFile(ctx, s.branch, DocumentPath(project))
		return err
	})
	if err != nil {
		return nil, "", err
	}

	doc, err := decodeDocument(project, content)
	if err != nil {
		return nil, "", err
	}
	return doc, revision, nil
}

// GetOrInit fetches a project's document, treating a missing document as an
// empty one with an empty revision token. First write for a new project is
// expected, never an error.
func (s *Store) GetOrInit(ctx context.Context, project string) (*types.ProjectDocument, string, error) {
	doc, revision, err := s.Get(ctx, project)
	if errors.Is(err, platform.ErrNotFound) {
		return types.NewProjectDocument(project), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return doc, revision, nil
}

// Put writes a document if the stored revision still matches
// expectedRevision (empty = create). The write is a whole-document replace:
// on conflict nothing is applied and a platform.ConflictError is returned.
func (s *Store) Put(ctx context.Context, project string, doc *types.ProjectDocument, expectedRevision string) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if err := s.checkWriterVersion(doc); err != nil {
		return "", err
	}

	doc.SchemaVersion = types.CurrentSchemaVersion
	doc.WriterVersion = s.toolVersion
	doc.LastUpdated = s.now().UTC()

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode document for %s: %w", project, err)
	}
	content = append(content, '\n')

	message := fmt.Sprintf("Update metadata for %s", project)
	var newRevision string
	err = withRetry(ctx, s.retry, func() error {
		var err error
		newRevision, err = s.client.PutFile(ctx, s.branch, DocumentPath(project), content, expectedRevision, message)
		return err
	})
	if err != nil {
		return "", err
	}
	return newRevision, nil
}

// Update applies a semantic mutation under optimistic concurrency: read,
// mutate in memory, put with the observed revision. On conflict the document
// is re-read and the mutation reapplied, up to casAttempts times. Mutations
// must therefore be idempotent - "ensure record X exists with these fields",
// never "append blindly".
func (s *Store) Update(ctx context.Context, project string, mutate func(*types.ProjectDocument) error) (*types.ProjectDocument, error) {
	var lastConflict error
	for attempt := 1; attempt <= casAttempts; attempt++ {
		doc, revision, err := s.GetOrInit(ctx, project)
		if err != nil {
			return nil, err
		}
		if err := mutate(doc); err != nil {
			return nil, err
		}
		_, err = s.Put(ctx, project, doc, revision)
		if err == nil {
			return doc, nil
		}
		var conflict *platform.ConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		lastConflict = err
	}
	return nil, fmt.Errorf("%w for %s after %d attempts: %v", ErrConflictExhausted, project, casAttempts, lastConflict)
}

// ListProjects returns the names of all projects with a stored document,
// from a single bulk listing call.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	var names []string
	err := withRetry(ctx, s.retry, func() error {
		var err error
		names, err = s.client.ListDir(ctx, s.branch, projectsDir)
		return err
	})
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var projects []string
	for _, name := range names {
		if proj, ok := strings.CutSuffix(name, ".json"); ok {
			projects = append(projects, proj)
		}
	}
	return projects, nil
}

// RecordExecution upserts an execution record by task identifier. Running it
// twice with the same record is a no-op, which makes it safe under
// conflict-triggered retries.
func (s *Store) RecordExecution(ctx context.Context, project string, record types.ExecutionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	_, err := s.Update(ctx, project, func(doc *types.ProjectDocument) error {
		if existing := doc.FindRecord(record.TaskID); existing != nil {
			ops := existing.Operations
			*existing = record
			if len(record.Operations) == 0 {
				existing.Operations = ops
			}
			return nil
		}
		doc.Records = append(doc.Records, record)
		return nil
	})
	return err
}

// AppendOperation appends an AI operation to a task's record. Idempotent by
// (kind, created_at): reapplying the same operation under a retry does not
// duplicate it.
func (s *Store) AppendOperation(ctx context.Context, project, taskID string, op types.AIOperation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	_, err := s.Update(ctx, project, func(doc *types.ProjectDocument) error {
		record := doc.FindRecord(taskID)
		if record == nil {
			return fmt.Errorf("no execution record for task %s in %s", taskID, project)
		}
		for _, existing := range record.Operations {
			if existing.Kind == op.Kind && existing.CreatedAt.Equal(op.CreatedAt) {
				return nil
			}
		}
		record.Operations = append(record.Operations, op)
		return nil
	})
	return err
}

// checkWriterVersion refuses to overwrite a document written by a newer
// major version of the tool, the forward-migration guard on top of
// schema_version.
func (s *Store) checkWriterVersion(doc *types.ProjectDocument) error {
	if doc.WriterVersion == "" || s.toolVersion == "" {
		return nil
	}
	if !semver.IsValid(doc.WriterVersion) || !semver.IsValid(s.toolVersion) {
		return nil
	}
	if semver.Compare(semver.Major(doc.WriterVersion), semver.Major(s.toolVersion)) > 0 {
		return fmt.Errorf("document for %s was written by %s; this tool is %s - upgrade before writing",
			doc.ProjectName, doc.WriterVersion, s.toolVersion)
	}
	return nil
}

// decodeDocument parses and validates a stored document. Malformed documents
// surface as parse errors; they are never auto-repaired here.
func decodeDocument(project string, content []byte) (*types.ProjectDocument, error) {
	var doc types.ProjectDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("malformed document for %s: %w", project, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document for %s: %w", project, err)
	}
	return &doc, nil
}
