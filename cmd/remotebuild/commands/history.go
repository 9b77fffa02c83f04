package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" default:"20" help:"Number of runs to list"`
	RunID string `name:"run" help:"Show the status messages of one run"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.ConfigError("build history is disabled; set history.path").Build()
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if c.RunID != "" {
		run, err := store.Get(ctx, c.RunID)
		if err != nil {
			return err
		}
		evs, err := store.Events(ctx, run.ID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(tw, "RUN\t%s\nBUILD\t%s\nOUTCOME\t%s\nERROR\t%s\n\n", run.ID, run.Handle, outcomeText(*run), run.Error)
		for _, e := range evs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Status, e.Message)
		}
		return nil
	}

	runs, err := store.Recent(ctx, c.Limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(tw, "STARTED\tRUN\tBUILD\tCONFIG\tFILES\tSIZE\tOUTCOME\tELAPSED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			humanize.Time(r.StartedAt), r.ID, r.Handle, r.Configuration,
			r.ArchiveFiles, humanize.Bytes(uint64(r.ArchiveBytes)), outcomeText(r), r.Elapsed().Round(time.Second))
	}
	return nil
}

func outcomeText(r history.Run) string {
	if r.Outcome == "" {
		return "running"
	}
	return r.Outcome
}
