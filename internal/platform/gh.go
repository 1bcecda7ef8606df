package platform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/claudestep/claudestep/internal/types"
)

// GHClient implements Client by shelling out to the gh CLI, which handles
// authentication and API host selection. All calls carry a bounded deadline
// and are paced through a shared rate limiter so reconciliation passes don't
// trip secondary rate limits.
type GHClient struct {
	ghPath  string
	repo    string // "owner/name"
	timeout time.Duration
	limiter *rate.Limiter
}

// GHOption customizes a GHClient.
type GHOption func(*GHClient)

// WithTimeout sets the per-call deadline (default 30s).
func WithTimeout(d time.Duration) GHOption {
	return func(c *GHClient) { c.timeout = d }
}

// WithRateLimit caps API calls per second (default 5).
func WithRateLimit(perSecond float64) GHOption {
	return func(c *GHClient) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// NewGHClient creates a platform client for the given "owner/name" repository.
// It verifies that the gh CLI is available.
func NewGHClient(repo string, opts ...GHOption) (*GHClient, error) {
	if repo == "" || !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be in owner/name form (got %q)", repo)
	}
	ghPath, err := exec.LookPath("gh")
	if err != nil {
		return nil, fmt.Errorf("gh CLI not found: %w (install from https://cli.github.com/)", err)
	}
	c := &GHClient{
		ghPath:  ghPath,
		repo:    repo,
		timeout: 30 * time.Second,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// api runs one gh api call and returns stdout. Errors are classified into the
// NotFound / Conflict / Transport taxonomy based on the HTTP status gh reports.
func (c *GHClient) api(ctx context.Context, args ...string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "gh api", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, c.ghPath, append([]string{"api"}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if callCtx.Err() != nil {
		// Deadline expiry is never a definitive outcome of the state change.
		return nil, &TransportError{Op: "gh api " + args[0], Err: callCtx.Err()}
	}
	return nil, classifyAPIError(args[0], stderr.String(), err)
}

// classifyAPIError maps gh stderr output onto the error taxonomy.
func classifyAPIError(endpoint, stderr string, err error) error {
	switch {
	case strings.Contains(stderr, "HTTP 404"):
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	case strings.Contains(stderr, "HTTP 409"):
		return &ConflictError{Path: endpoint}
	case strings.Contains(stderr, "HTTP 422") && strings.Contains(stderr, "sha"):
		// The contents API reports a stale blob SHA as 422.
		return &ConflictError{Path: endpoint}
	case strings.Contains(stderr, "HTTP 5"),
		strings.Contains(stderr, "timeout"),
		strings.Contains(stderr, "connection"):
		return &TransportError{Op: endpoint, Err: fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr))}
	default:
		return fmt.Errorf("%s failed: %w: %s", endpoint, err, strings.TrimSpace(stderr))
	}
}

// ghPull mirrors the REST pull-request payload fields we consume.
type ghPull struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	State    string     `json:"state"`
	MergedAt *time.Time `json:"merged_at"`
	Head     struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
}

// ListPullRequests fetches pull requests for the repository and applies the
// filter client-side. Listing is paginated through gh.
func (c *GHClient) ListPullRequests(ctx context.Context, filter ListFilter) ([]PullRequest, error) {
	state := "open"
	if filter.IncludeClosed {
		state = "all"
	}
	endpoint := fmt.Sprintf("repos/%s/pulls?state=%s&per_page=100", c.repo, state)
	out, err := c.api(ctx, endpoint, "--paginate", "--slurp")
	if err != nil {
		return nil, err
	}

	// --slurp wraps each page's array in an outer array.
	var pages [][]ghPull
	if err := json.Unmarshal(out, &pages); err != nil {
		return nil, fmt.Errorf("failed to decode pull request listing: %w", err)
	}

	var result []PullRequest
	for _, page := range pages {
		for _, p := range page {
			pr := PullRequest{
				Number:     p.Number,
				Title:      p.Title,
				BranchName: p.Head.Ref,
				State:      mapPullState(p.State, p.MergedAt),
				BaseRef:    p.Base.Ref,
				CreatedAt:  p.CreatedAt,
			}
			for _, l := range p.Labels {
				pr.Labels = append(pr.Labels, l.Name)
			}
			if filter.BranchPrefix != "" && !strings.HasPrefix(pr.BranchName, filter.BranchPrefix) {
				continue
			}
			if filter.Label != "" && !hasLabel(pr.Labels, filter.Label) {
				continue
			}
			result = append(result, pr)
		}
	}
	return result, nil
}

func mapPullState(state string, mergedAt *time.Time) types.PullRequestState {
	switch {
	case state == "open":
		return types.PRStateOpen
	case mergedAt != nil:
		return types.PRStateMerged
	default:
		return types.PRStateClosed
	}
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// ghContent mirrors the REST contents payload fields we consume.
type ghContent struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// GetFile fetches one file from a branch. The returned revision is the
// content blob SHA, used as the compare-and-swap token for PutFile.
func (c *GHClient) GetFile(ctx context.Context, branch, path string) ([]byte, string, error) {
	endpoint := fmt.Sprintf("repos/%s/contents/%s?ref=%s", c.repo, escapePath(path), url.QueryEscape(branch))
	out, err := c.api(ctx, endpoint)
	if err != nil {
		return nil, "", err
	}

	var file ghContent
	if err := json.Unmarshal(out, &file); err != nil {
		return nil, "", fmt.Errorf("failed to decode contents of %s: %w", path, err)
	}
	// The API base64-encodes content with embedded newlines.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 content of %s: %w", path, err)
	}
	return raw, file.SHA, nil
}

// PutFile writes a file with compare-and-swap semantics. An empty
// expectedRevision creates the file; a stale revision yields ConflictError.
func (c *GHClient) PutFile(ctx context.Context, branch, path string, content []byte, expectedRevision, message string) (string, error) {
	args := []string{
		"--method", "PUT",
		fmt.Sprintf("repos/%s/contents/%s", c.repo, escapePath(path)),
		"-f", "message=" + message,
		"-f", "content=" + base64.StdEncoding.EncodeToString(content),
		"-f", "branch=" + branch,
	}
	if expectedRevision != "" {
		args = append(args, "-f", "sha="+expectedRevision)
	}
	out, err := c.api(ctx, args...)
	if err != nil {
		if errors.Is(err, ErrNotFound) && expectedRevision != "" {
			// Creating over a deleted file: the branch moved under us.
			return "", &ConflictError{Path: path, ExpectedRevision: expectedRevision}
		}
		var ce *ConflictError
		if errors.As(err, &ce) {
			return "", &ConflictError{Path: path, ExpectedRevision: expectedRevision}
		}
		return "", err
	}

	var resp struct {
		Content ghContent `json:"content"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("failed to decode put response for %s: %w", path, err)
	}
	return resp.Content.SHA, nil
}

// ListDir lists file names directly under dir on a branch.
func (c *GHClient) ListDir(ctx context.Context, branch, dir string) ([]string, error) {
	endpoint := fmt.Sprintf("repos/%s/contents/%s?ref=%s", c.repo, escapePath(dir), url.QueryEscape(branch))
	out, err := c.api(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var entries []ghContent
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory listing for %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type == "file" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// escapePath percent-escapes each path segment without touching separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
