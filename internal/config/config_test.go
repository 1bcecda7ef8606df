package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "claude-step-metadata", cfg.StorageBranch)
	assert.Equal(t, "claudestep.yaml", cfg.Manifest)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 5.0, cfg.RateLimitPerSecond, 1e-9)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`repo: acme/widgets
storage_branch: metadata
request_timeout: 10s
rate_limit_per_second: 2
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", cfg.Repo)
	assert.Equal(t, "metadata", cfg.StorageBranch)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 2.0, cfg.RateLimitPerSecond, 1e-9)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CLAUDESTEP_REPO", "acme/widgets")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", cfg.Repo)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Repo: "not-owner-name-form", RequestTimeout: time.Second, RateLimitPerSecond: 1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Repo: "acme/widgets", RequestTimeout: 0, RateLimitPerSecond: 1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Repo: "acme/widgets", RequestTimeout: time.Second, RateLimitPerSecond: 0}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Repo: "acme/widgets", RequestTimeout: time.Second, RateLimitPerSecond: 1}
	assert.NoError(t, cfg.Validate())
}
