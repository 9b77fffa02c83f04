package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/compulim/remotebuild/internal/config"
	"github.com/compulim/remotebuild/internal/metrics"
	"github.com/compulim/remotebuild/internal/transport"
	"github.com/compulim/remotebuild/internal/version"
)

// Global is shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default remotebuild.yaml, optional)"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Archive a project, build it remotely and write the results"`
	Status  StatusCmd  `cmd:"" help:"Show the status of a remote build"`
	Log     LogCmd     `cmd:"" help:"Print the log of a remote build"`
	History HistoryCmd `cmd:"" help:"List builds recorded in the local history"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever project files change"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// loadConfig reads the file named by --config. Without the flag the default
// file is optional.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.Config == "" {
		return config.Load(config.DefaultFile, true)
	}
	return config.Load(c.Config, false)
}

// RemoteFlags override the connection settings of the configuration file.
type RemoteFlags struct {
	Host string `help:"Remote build service as host or host:port"`
}

func (f RemoteFlags) apply(cfg *config.Config) error {
	if f.Host == "" {
		return nil
	}
	cfg.Host, cfg.Port = f.Host, 0
	config.ApplyDefaults(cfg)
	return cfg.Validate()
}

func newTransport(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*transport.Transport, error) {
	proxy := transport.ProxyFromEnvironment()
	if strings.TrimSpace(cfg.Proxy) != "" {
		p, err := transport.ProxyURL(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		proxy = p
	}
	return transport.New(transport.Options{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Mount:     cfg.Mount,
		Proxy:     proxy,
		UserAgent: version.UserAgent(),
		Logger:    logger,
		Recorder:  recorder,
	})
}
