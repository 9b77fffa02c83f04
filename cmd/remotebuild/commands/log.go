package commands

import (
	"context"

	"github.com/compulim/remotebuild/internal/remote"
)

// LogCmd implements the 'log' command.
type LogCmd struct {
	RemoteFlags
	Handle string `arg:"" help:"Build number returned at submission"`
}

func (c *LogCmd) Run(g *Global, root *CLI) error {
	client, err := remoteClient(g, root, c.RemoteFlags)
	if err != nil {
		return err
	}
	log, err := client.Log(context.Background(), remote.Handle(c.Handle))
	if err != nil {
		return err
	}
	_, err = g.stdout().Write(log)
	return err
}
