package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/compulim/remotebuild/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	RemoteFlags
	Dir           string        `arg:"" optional:"" default:"." type:"existingdir" help:"Cordova project directory"`
	Output        string        `short:"o" help:"Output directory for the build log and artifact"`
	Configuration string        `help:"Build configuration (debug|release)"`
	Timeout       time.Duration `help:"Give up waiting for the remote build after this long"`
	Clean         bool          `help:"Remove the output directory before writing results"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if err := b.apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSession(cfg, b.Dir, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return s.build(ctx)
}

func (b *BuildCmd) apply(cfg *config.Config) error {
	if b.Output != "" {
		cfg.Output.Dir = b.Output
	}
	if b.Configuration != "" {
		cfg.Configuration = b.Configuration
	}
	if b.Timeout > 0 {
		cfg.BuildTimeout = config.Duration(b.Timeout)
	}
	if b.Clean {
		cfg.Output.Clean = true
	}
	if err := b.RemoteFlags.apply(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}
