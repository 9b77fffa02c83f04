package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/foundation/normalization"
)

var configurations = normalization.NewEnum("configuration", map[string]string{
	"debug":   "debug",
	"release": "release",
})

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Host, "/ ") {
		return invalid("host", c.Host, "host must not contain '/' or spaces")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return invalid("port", c.Port, "port must be between 1 and 65535")
	}
	if _, err := configurations.Validate(c.Configuration); err != nil {
		return invalid("configuration", c.Configuration, err.Error())
	}
	if c.BuildTimeout.Duration() <= 0 {
		return invalid("build_timeout", c.BuildTimeout, "build_timeout must be positive")
	}
	if c.PollInterval.Duration() <= 0 {
		return invalid("poll_interval", c.PollInterval, "poll_interval must be positive")
	}
	if c.PollRetry.Attempts < 0 {
		return invalid("poll_retry.attempts", c.PollRetry.Attempts, "poll_retry.attempts cannot be negative")
	}
	if _, err := retryBackoffModes.Validate(c.PollRetry.Backoff); err != nil {
		return invalid("poll_retry.backoff", c.PollRetry.Backoff, err.Error())
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			return invalid("proxy", c.Proxy, "proxy must be an absolute URL")
		}
	}
	if strings.Contains(c.Archive.RootFolder, "..") {
		return invalid("archive.root_folder", c.Archive.RootFolder, "archive.root_folder must not contain '..'")
	}
	for _, dir := range c.Archive.ExcludeDirs {
		if dir == "" || strings.Contains(dir, "/") {
			return invalid("archive.exclude_dirs", dir, "archive.exclude_dirs entries must be single path segments")
		}
	}
	if c.Output.LogFile == c.Output.ErrorLogFile {
		return invalid("output.error_log_file", c.Output.ErrorLogFile, "output.log_file and output.error_log_file must differ")
	}
	return nil
}

func invalid(field string, value any, message string) error {
	return errors.ValidationError(message).
		WithContext("field", field).
		WithContext("value", fmt.Sprint(value)).
		Build()
}
