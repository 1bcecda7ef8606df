package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudestep/claudestep/internal/types"
)

func TestFake_FileCompareAndSwap(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	// Creating an existing file with a stale expectation fails.
	rev1, err := fake.PutFile(ctx, "meta", "projects/auth.json", []byte(`{"a":1}`), "", "create")
	require.NoError(t, err)
	require.NotEmpty(t, rev1)

	_, err = fake.PutFile(ctx, "meta", "projects/auth.json", []byte(`{"a":2}`), "", "create again")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// Writing with the current revision succeeds and advances it.
	rev2, err := fake.PutFile(ctx, "meta", "projects/auth.json", []byte(`{"a":2}`), rev1, "update")
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev2)

	// The old revision is now stale.
	_, err = fake.PutFile(ctx, "meta", "projects/auth.json", []byte(`{"a":3}`), rev1, "stale update")
	require.ErrorAs(t, err, &conflict)

	content, revision, err := fake.GetFile(ctx, "meta", "projects/auth.json")
	require.NoError(t, err)
	assert.Equal(t, rev2, revision)
	assert.Equal(t, `{"a":2}`, string(content))
}

func TestFake_GetFileNotFound(t *testing.T) {
	fake := NewFake()
	_, _, err := fake.GetFile(context.Background(), "meta", "projects/nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFake_ListDir(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	_, err := fake.ListDir(ctx, "meta", "projects")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fake.PutFile(ctx, "meta", "projects/billing.json", []byte("{}"), "", "m")
	require.NoError(t, err)
	_, err = fake.PutFile(ctx, "meta", "projects/auth.json", []byte("{}"), "", "m")
	require.NoError(t, err)
	_, err = fake.PutFile(ctx, "other", "projects/ghost.json", []byte("{}"), "", "m")
	require.NoError(t, err)

	names, err := fake.ListDir(ctx, "meta", "projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"auth.json", "billing.json"}, names, "listing is per-branch and sorted")
}

func TestFake_TransientFailureInjection(t *testing.T) {
	fake := NewFake()
	fake.FailNext = 1

	_, _, err := fake.GetFile(context.Background(), "meta", "x")
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	// Failure budget consumed; next call behaves normally.
	_, _, err = fake.GetFile(context.Background(), "meta", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClassifyAPIError(t *testing.T) {
	base := errors.New("exit status 1")

	err := classifyAPIError("repos/acme/widgets/contents/projects/auth.json", "gh: Not Found (HTTP 404)", base)
	assert.ErrorIs(t, err, ErrNotFound)

	var conflict *ConflictError
	err = classifyAPIError("repos/acme/widgets/contents/projects/auth.json", "gh: Conflict (HTTP 409)", base)
	assert.ErrorAs(t, err, &conflict)

	err = classifyAPIError("endpoint", `gh: projects/auth.json does not match expected sha (HTTP 422)`, base)
	assert.ErrorAs(t, err, &conflict)

	err = classifyAPIError("endpoint", "gh: Internal Server Error (HTTP 500)", base)
	assert.True(t, IsTransient(err))

	err = classifyAPIError("endpoint", "gh: Bad Request (HTTP 400)", base)
	assert.False(t, IsTransient(err))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestMapPullState(t *testing.T) {
	now := time.Now()
	assert.Equal(t, types.PRStateOpen, mapPullState("open", nil))
	assert.Equal(t, types.PRStateMerged, mapPullState("closed", &now))
	assert.Equal(t, types.PRStateClosed, mapPullState("closed", nil))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "projects/auth.json", escapePath("projects/auth.json"))
	assert.Equal(t, "projects/my%20project.json", escapePath("projects/my project.json"))
}
