package remote

import (
	"context"
	"errors"
	"io"

	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/metrics"
)

// Stage names used for metrics and logs.
const (
	StageSubmit   = "submit"
	StageAwait    = "await"
	StageRetrieve = "retrieve"
)

// Run submits archive, waits for the build and retrieves the outcome. When the
// build fails or times out the returned error is a *DiagnosticError holding the
// build log when it could be fetched.
func (c *Client) Run(ctx context.Context, archive io.Reader) (*Outcome, error) {
	start := c.clock.Now()
	out, err := c.run(ctx, archive)
	c.recorder.ObserveBuildDuration(c.clock.Since(start))
	c.recorder.IncBuildOutcome(OutcomeOf(err))
	return out, err
}

func (c *Client) run(ctx context.Context, archive io.Reader) (*Outcome, error) {
	stageStart := c.clock.Now()
	h, err := c.Submit(ctx, archive)
	c.recorder.ObserveStageDuration(StageSubmit, c.clock.Since(stageStart))
	if err != nil {
		c.observer.OnFailed("", err)
		return nil, err
	}
	c.observer.OnSubmitted(h)

	stageStart = c.clock.Now()
	err = c.AwaitCompletion(ctx, h)
	c.recorder.ObserveStageDuration(StageAwait, c.clock.Since(stageStart))
	if err != nil {
		if needsDiagnosis(err) {
			c.logger.Debug("Fetching build log after failure", logfields.BuildID(string(h)), logfields.Error(err))
			err = c.Diagnose(ctx, h, err)
		}
		c.observer.OnFailed(h, err)
		return nil, err
	}

	stageStart = c.clock.Now()
	out, err := c.Retrieve(ctx, h)
	c.recorder.ObserveStageDuration(StageRetrieve, c.clock.Since(stageStart))
	if err != nil {
		c.observer.OnFailed(h, err)
		return nil, err
	}
	c.observer.OnCompleted(h, out)
	return out, nil
}

// OutcomeOf maps the error returned by Run to an outcome label.
func OutcomeOf(err error) metrics.OutcomeLabel {
	var bf *BuildFailedError
	var te *TimeoutError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &te):
		return metrics.OutcomeTimeout
	case errors.As(err, &bf):
		return metrics.OutcomeFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
