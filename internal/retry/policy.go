// Package retry holds the backoff policy applied to opt-in status fetch retries.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/config"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // maximum retry attempts after the first failure
}

// DefaultPolicy returns the default policy: no retries, so a failed status
// fetch aborts the build like the remote build protocol expects.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 0}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig derives the status fetch policy from the poll retry settings.
func FromConfig(c config.RetryConfig) Policy {
	return NewPolicy(config.NormalizeRetryBackoff(c.Backoff), c.Initial.Duration(), c.Max.Duration(), c.Attempts)
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		// Doubling stops at Max, so large retry counts cannot overflow.
		d := p.Initial
		for i := 1; i < retryCount && d > 0 && d < p.Max; i++ {
			if d > p.Max/2 {
				d = p.Max
				break
			}
			d *= 2
		}
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		if p.Initial > 0 && time.Duration(retryCount) > p.Max/p.Initial {
			return p.Max
		}
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Allows reports whether another retry is permitted after retryCount retries have been made.
func (p Policy) Allows(retryCount int) bool {
	return retryCount < p.MaxRetries
}

// Wait blocks for Delay(retryCount) on clock or until ctx is done.
func (p Policy) Wait(ctx context.Context, clock clockwork.Clock, retryCount int) error {
	d := p.Delay(retryCount)
	if d <= 0 {
		return ctx.Err()
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
