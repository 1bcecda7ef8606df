// Package config loads tool configuration from config file, environment, and
// flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tool settings.
type Config struct {
	// Repo is the "owner/name" repository holding both the pull requests
	// and the metadata storage branch.
	Repo string `mapstructure:"repo"`

	// StorageBranch is the branch holding project metadata documents.
	StorageBranch string `mapstructure:"storage_branch"`

	// Manifest is the path to the projects manifest (YAML).
	Manifest string `mapstructure:"manifest"`

	// CachePath is the local sqlite snapshot cache location.
	CachePath string `mapstructure:"cache_path"`

	// RequestTimeout bounds each platform API call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RateLimitPerSecond caps platform API calls.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
}

// Load reads configuration. cfgFile overrides the default search path
// (.claudestep.yaml in the working directory). Environment variables use the
// CLAUDESTEP_ prefix, e.g. CLAUDESTEP_REPO.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	// An explicit default makes the key visible to Unmarshal even when it is
	// only set through the environment.
	v.SetDefault("repo", "")
	v.SetDefault("storage_branch", "claude-step-metadata")
	v.SetDefault("manifest", "claudestep.yaml")
	v.SetDefault("cache_path", ".claudestep/cache.db")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("rate_limit_per_second", 5.0)

	v.SetEnvPrefix("CLAUDESTEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(".claudestep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for required and well-formed settings.
func (c *Config) Validate() error {
	if c.Repo != "" && !strings.Contains(c.Repo, "/") {
		return fmt.Errorf("repo must be in owner/name form (got %q)", c.Repo)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive (got %s)", c.RequestTimeout)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate_limit_per_second must be positive (got %f)", c.RateLimitPerSecond)
	}
	return nil
}
