package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/compulim/remotebuild/internal/foundation/normalization"
)

// Default values of the remote build client.
const (
	DefaultHost           = "localhost"
	DefaultPort           = 3000
	DefaultMount          = "cordova"
	DefaultConfiguration  = "debug"
	DefaultCordovaVersion = "5.1.1"
	DefaultLogLevel       = "warn"
	DefaultOptions        = "--device"
	DefaultBuildTimeout   = 300000 * time.Millisecond
	DefaultPollInterval   = 1000 * time.Millisecond

	DefaultRootFolder       = "cordova-app"
	DefaultOutputDir        = "."
	DefaultLogFile          = "taco.log"
	DefaultErrorLogFile     = "taco-error.log"
	DefaultProgressInterval = 2 * time.Second
	DefaultEventsSubject    = "remotebuild.status"
	DefaultWatchDebounce    = 2 * time.Second
)

// DefaultExcludeDirs are build output folders that never leave the machine.
var DefaultExcludeDirs = []string{"bin", "bld", "platforms"}

// ApplyDefaults fills zero values with defaults. A host given as host:port
// supplies the port when Port is unset.
func ApplyDefaults(cfg *Config) {
	if h, p, err := net.SplitHostPort(cfg.Host); err == nil {
		cfg.Host = h
		if cfg.Port == 0 {
			if n, convErr := strconv.Atoi(p); convErr == nil {
				cfg.Port = n
			}
		}
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	cfg.Mount = strings.Trim(cfg.Mount, "/")
	if cfg.Mount == "" {
		cfg.Mount = DefaultMount
	}
	cfg.Configuration = normalization.Clean(cfg.Configuration)
	if cfg.Configuration == "" {
		cfg.Configuration = DefaultConfiguration
	}
	if cfg.CordovaVersion == "" {
		cfg.CordovaVersion = DefaultCordovaVersion
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Options == "" {
		cfg.Options = DefaultOptions
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = Duration(DefaultBuildTimeout)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(DefaultPollInterval)
	}

	if cfg.PollRetry.Backoff == "" {
		cfg.PollRetry.Backoff = string(RetryBackoffLinear)
	}
	if cfg.PollRetry.Initial == 0 {
		cfg.PollRetry.Initial = Duration(time.Second)
	}
	if cfg.PollRetry.Max == 0 {
		cfg.PollRetry.Max = Duration(30 * time.Second)
	}

	if cfg.Archive.RootFolder == "" {
		cfg.Archive.RootFolder = DefaultRootFolder
	}
	if cfg.Archive.ExcludeDirs == nil {
		cfg.Archive.ExcludeDirs = append([]string(nil), DefaultExcludeDirs...)
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Output.LogFile == "" {
		cfg.Output.LogFile = DefaultLogFile
	}
	if cfg.Output.ErrorLogFile == "" {
		cfg.Output.ErrorLogFile = DefaultErrorLogFile
	}
	if cfg.Progress.Interval == 0 {
		cfg.Progress.Interval = Duration(DefaultProgressInterval)
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(DefaultWatchDebounce)
	}
}
