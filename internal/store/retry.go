package store

import (
	"context"
	"time"

	"github.com/claudestep/claudestep/internal/platform"
)

// RetryConfig bounds retries for transient platform failures.
type RetryConfig struct {
	MaxAttempts       int           // Total attempts including the first (default: 3)
	InitialBackoff    time.Duration // Backoff before the second attempt (default: 500ms)
	BackoffMultiplier float64       // Backoff growth factor (default: 2.0)
	MaxBackoff        time.Duration // Backoff ceiling (default: 5s)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// withRetry runs fn, retrying only transport failures with exponential
// backoff. Conflicts, not-found, and parse errors pass through immediately:
// they have their own recovery paths.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !platform.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}
