package config

import "github.com/compulim/remotebuild/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffModes = normalization.NewEnum("retry backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
})

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	m, _ := retryBackoffModes.Parse(raw)
	return m
}

// RetryConfig configures retries of failed status fetches in the poll loop.
// Attempts defaults to 0: a failed status fetch aborts the build.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Backoff  string   `yaml:"backoff"` // fixed|linear|exponential
	Initial  Duration `yaml:"initial"`
	Max      Duration `yaml:"max"`
}
