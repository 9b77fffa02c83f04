package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REMOTEBUILD_"

// loadEnvFiles loads .env and .env.local when present. Existing process
// environment variables are never overwritten.
func loadEnvFiles() error {
	var loaded []string
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		loaded = append(loaded, envPath)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no .env file found")
	}
	return nil
}

type envSetter func(cfg *Config, value string) error

func stringSetter(field func(*Config) *string) envSetter {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func durationSetter(field func(*Config) *Duration) envSetter {
	return func(cfg *Config, value string) error {
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

func intSetter(field func(*Config) *int) envSetter {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		*field(cfg) = n
		return nil
	}
}

// envOverrides maps REMOTEBUILD_* suffixes to the field they override.
var envOverrides = map[string]envSetter{
	"HOST":            stringSetter(func(c *Config) *string { return &c.Host }),
	"PORT":            intSetter(func(c *Config) *int { return &c.Port }),
	"MOUNT":           stringSetter(func(c *Config) *string { return &c.Mount }),
	"CONFIGURATION":   stringSetter(func(c *Config) *string { return &c.Configuration }),
	"CORDOVA_VERSION": stringSetter(func(c *Config) *string { return &c.CordovaVersion }),
	"LOG_LEVEL":       stringSetter(func(c *Config) *string { return &c.LogLevel }),
	"OPTIONS":         stringSetter(func(c *Config) *string { return &c.Options }),
	"BUILD_TIMEOUT":   durationSetter(func(c *Config) *Duration { return &c.BuildTimeout }),
	"POLL_INTERVAL":   durationSetter(func(c *Config) *Duration { return &c.PollInterval }),
	"POLL_RETRIES":    intSetter(func(c *Config) *int { return &c.PollRetry.Attempts }),
	"PROXY":           stringSetter(func(c *Config) *string { return &c.Proxy }),
	"OUTPUT_DIR":      stringSetter(func(c *Config) *string { return &c.Output.Dir }),
	"HISTORY_PATH":    stringSetter(func(c *Config) *string { return &c.History.Path }),
	"NATS_URL":        stringSetter(func(c *Config) *string { return &c.Events.URL }),
	"METRICS_FILE":    stringSetter(func(c *Config) *string { return &c.Metrics.Textfile }),
}

// applyEnvOverrides applies REMOTEBUILD_* variables on top of the file values.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for suffix, set := range envOverrides {
		name := EnvPrefix + suffix
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := set(cfg, value); err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid value for %s", name)).
				WithCause(err).
				WithContext("variable", name).
				Build()
		}
	}
	return nil
}
