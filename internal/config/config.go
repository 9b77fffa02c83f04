package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when no --config flag is given.
const DefaultFile = "remotebuild.yaml"

// Config is the build configuration for one invocation. It is built once by Load
// and treated as read-only afterwards.
type Config struct {
	Host           string   `yaml:"host"`            // remote host, optionally host:port
	Port           int      `yaml:"port"`            // remote port
	Mount          string   `yaml:"mount"`           // mount path segment on the remote service
	Configuration  string   `yaml:"configuration"`   // debug|release
	CordovaVersion string   `yaml:"cordova_version"` // target platform version (taco.json wins when present)
	LogLevel       string   `yaml:"log_level"`       // remote build log verbosity
	Options        string   `yaml:"options"`         // CLI style build options forwarded to the service
	BuildTimeout   Duration `yaml:"build_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
	Proxy          string   `yaml:"proxy,omitempty"` // explicit proxy URL; empty means use the environment

	PollRetry RetryConfig    `yaml:"poll_retry"`
	Archive   ArchiveConfig  `yaml:"archive"`
	Output    OutputConfig   `yaml:"output"`
	Progress  ProgressConfig `yaml:"progress"`
	History   HistoryConfig  `yaml:"history"`
	Events    EventsConfig   `yaml:"events"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Watch     WatchConfig    `yaml:"watch"`
}

// ArchiveConfig controls which source entries are sent to the remote service.
type ArchiveConfig struct {
	RootFolder  string   `yaml:"root_folder"`  // folder every entry is placed under
	ExcludeDirs []string `yaml:"exclude_dirs"` // first path segments that are never archived
	Exclude     []string `yaml:"exclude"`      // additional gitignore-style patterns
}

// OutputConfig controls where build results are written.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	LogFile      string `yaml:"log_file"`
	ErrorLogFile string `yaml:"error_log_file"`
	Extract      *bool  `yaml:"extract,omitempty"` // unpack the downloaded artifact (default true)
	Clean        bool   `yaml:"clean"`             // remove the output directory before writing
}

// ExtractArtifact reports whether the downloaded artifact should be unpacked.
func (o OutputConfig) ExtractArtifact() bool { return o.Extract == nil || *o.Extract }

// ProgressConfig controls the compression progress reporter.
type ProgressConfig struct {
	Interval Duration `yaml:"interval"`
}

// HistoryConfig controls the local build history store. An empty Path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig controls status event publishing. An empty URL disables it.
type EventsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig controls Prometheus textfile export. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// Address returns host:port of the remote build service.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads the configuration file (when it exists), applies environment overrides,
// defaults and validation. A missing file is not an error when optional is true.
func Load(configPath string, optional bool) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.ConfigError("failed to parse configuration file").
				WithCause(err).
				WithContext("file", configPath).
				Build()
		}
	case os.IsNotExist(err) && optional:
		slog.Debug("Configuration file not found, using defaults", "file", configPath)
	case os.IsNotExist(err):
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("file", configPath).
			Build()
	default:
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("file", configPath).
			Build()
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("file", configPath).
			Build()
	}

	example := Default()
	example.Output.Dir = "out"
	example.History.Path = ".remotebuild/history.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.InternalError("failed to marshal example configuration").WithCause(err).Build()
	}
	header := "# remotebuild configuration\n# Values may reference environment variables as ${VAR}.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.FileSystemError("failed to write configuration file").
			WithCause(err).
			WithContext("file", configPath).
			Build()
	}
	return nil
}
