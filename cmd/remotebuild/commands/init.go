package commands

import (
	"fmt"

	"github.com/compulim/remotebuild/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = config.DefaultFile
	}
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, err := fmt.Fprintf(g.stdout(), "Wrote %s\n", path)
	return err
}
