package commands

import (
	"context"
	"fmt"

	"github.com/compulim/remotebuild/internal/metrics"
	"github.com/compulim/remotebuild/internal/remote"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	RemoteFlags
	Handle string `arg:"" help:"Build number returned at submission"`
}

func (c *StatusCmd) Run(g *Global, root *CLI) error {
	client, err := remoteClient(g, root, c.RemoteFlags)
	if err != nil {
		return err
	}
	info, err := client.Status(context.Background(), remote.Handle(c.Handle))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(g.stdout(), "%s\t%s\n", info.Status, info.Message)
	return err
}

// remoteClient builds a client for one-off requests against an existing build.
func remoteClient(g *Global, root *CLI, flags RemoteFlags) (*remote.Client, error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := flags.apply(cfg); err != nil {
		return nil, err
	}
	tr, err := newTransport(cfg, g.Logger, metrics.NoopRecorder{})
	if err != nil {
		return nil, err
	}
	return remote.NewClient(tr, remote.OptionsFromConfig(cfg), remote.WithLogger(g.Logger)), nil
}
