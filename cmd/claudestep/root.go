package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claudestep/claudestep/internal/config"
	"github.com/claudestep/claudestep/internal/platform"
	"github.com/claudestep/claudestep/internal/reconcile"
	"github.com/claudestep/claudestep/internal/store"
)

// toolVersion is stamped into metadata documents as the writer version.
const toolVersion = "v1.0.0"

var (
	cfgFile  string
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "claudestep",
	Short: "Turn a checklist spec into a chain of pull requests",
	Long: `claudestep tracks which checklist task produced which pull request,
persists per-project execution metadata on a storage branch, and reconciles
that metadata against live pull-request state.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .claudestep.yaml)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository in owner/name form (overrides config)")
}

// env bundles the wired collaborators most commands need.
type env struct {
	cfg     *config.Config
	client  platform.Client
	store   *store.Store
	service *reconcile.Service
}

// buildEnv loads config and wires the platform client, store, and
// reconciliation service.
func buildEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if repoFlag != "" {
		cfg.Repo = repoFlag
	}
	if cfg.Repo == "" {
		return nil, fmt.Errorf("no repository configured (set repo in config or pass --repo)")
	}

	client, err := platform.NewGHClient(cfg.Repo,
		platform.WithTimeout(cfg.RequestTimeout),
		platform.WithRateLimit(cfg.RateLimitPerSecond))
	if err != nil {
		return nil, err
	}

	st := store.New(client, toolVersion, store.WithBranch(cfg.StorageBranch))
	return &env{
		cfg:     cfg,
		client:  client,
		store:   st,
		service: reconcile.NewService(st, client),
	}, nil
}
