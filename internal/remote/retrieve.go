package remote

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Retrieve downloads the artifact and the build log of h concurrently. The
// outcome is produced only after both fetches complete; if either fails the
// other is cancelled and the first error is returned.
func (c *Client) Retrieve(ctx context.Context, h Handle) (*Outcome, error) {
	out := &Outcome{Handle: h}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		artifact, err := c.Download(gctx, h)
		if err != nil {
			return err
		}
		out.Artifact = artifact
		return nil
	})
	g.Go(func() error {
		log, err := c.Log(gctx, h)
		if err != nil {
			return err
		}
		out.Log = log
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Diagnose fetches only the build log of h after cause ended the build. It
// always returns a *DiagnosticError: the log is surfaced alongside cause and
// never turns the failure into a success.
func (c *Client) Diagnose(ctx context.Context, h Handle, cause error) error {
	log, err := c.Log(ctx, h)
	if err != nil {
		return &DiagnosticError{Handle: h, Cause: cause, LogErr: err}
	}
	return &DiagnosticError{Handle: h, Cause: cause, Log: log}
}
