package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/compulim/remotebuild/cmd/remotebuild/commands"
	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default(), Stdout: os.Stdout}
	parser := kong.Parse(cli,
		kong.Name("remotebuild"),
		kong.Description("Submit Cordova projects to a remote build service and collect the results."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
		kong.Bind(global),
	)

	err := parser.Run(cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
