package platform

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Fake is an in-memory Client for tests. File writes honor the same
// compare-and-swap contract as the real platform, so concurrency behavior can
// be exercised without a network.
type Fake struct {
	mu    sync.Mutex
	files map[string]fakeFile // key: branch + "\x00" + path
	pulls []PullRequest

	// FailNext, when > 0, makes that many upcoming calls fail with a
	// TransportError before normal behavior resumes.
	FailNext int
}

type fakeFile struct {
	content  []byte
	revision string
}

// NewFake creates an empty fake platform.
func NewFake() *Fake {
	return &Fake{files: make(map[string]fakeFile)}
}

// AddPullRequest registers a live pull request.
func (f *Fake) AddPullRequest(pr PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, pr)
}

// SetPullRequests replaces the live pull-request set.
func (f *Fake) SetPullRequests(prs []PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append([]PullRequest(nil), prs...)
}

func (f *Fake) key(branch, p string) string { return branch + "\x00" + p }

func (f *Fake) transientFailure(op string) error {
	if f.FailNext > 0 {
		f.FailNext--
		return &TransportError{Op: op, Err: fmt.Errorf("injected failure")}
	}
	return nil
}

// ListPullRequests returns registered pull requests matching the filter.
func (f *Fake) ListPullRequests(ctx context.Context, filter ListFilter) ([]PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientFailure("list pulls"); err != nil {
		return nil, err
	}
	var out []PullRequest
	for _, pr := range f.pulls {
		if !filter.IncludeClosed && pr.State != "open" {
			continue
		}
		if filter.BranchPrefix != "" && !strings.HasPrefix(pr.BranchName, filter.BranchPrefix) {
			continue
		}
		if filter.Label != "" && !hasLabel(pr.Labels, filter.Label) {
			continue
		}
		out = append(out, pr)
	}
	return out, nil
}

// GetFile returns a stored file and its revision.
func (f *Fake) GetFile(ctx context.Context, branch, p string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientFailure("get file"); err != nil {
		return nil, "", err
	}
	file, ok := f.files[f.key(branch, p)]
	if !ok {
		return nil, "", fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return append([]byte(nil), file.content...), file.revision, nil
}

// PutFile writes a file under the compare-and-swap contract.
func (f *Fake) PutFile(ctx context.Context, branch, p string, content []byte, expectedRevision, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientFailure("put file"); err != nil {
		return "", err
	}
	key := f.key(branch, p)
	current, exists := f.files[key]
	switch {
	case !exists && expectedRevision != "":
		return "", &ConflictError{Path: p, ExpectedRevision: expectedRevision}
	case exists && current.revision != expectedRevision:
		return "", &ConflictError{Path: p, ExpectedRevision: expectedRevision}
	}

	sum := sha1.Sum(content)
	rev := hex.EncodeToString(sum[:])
	if rev == current.revision {
		// Content-addressed revisions: rewriting identical bytes is a no-op.
		return rev, nil
	}
	f.files[key] = fakeFile{content: append([]byte(nil), content...), revision: rev}
	return rev, nil
}

// ListDir lists file names directly under dir.
func (f *Fake) ListDir(ctx context.Context, branch, dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientFailure("list dir"); err != nil {
		return nil, err
	}
	prefix := branch + "\x00" + strings.TrimSuffix(dir, "/") + "/"
	var names []string
	for key := range f.files {
		if strings.HasPrefix(key, prefix) {
			rel := strings.TrimPrefix(key, prefix)
			if !strings.Contains(rel, "/") {
				names = append(names, path.Base(rel))
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotFound)
	}
	sort.Strings(names)
	return names, nil
}

var _ Client = (*Fake)(nil)
var _ Client = (*GHClient)(nil)
