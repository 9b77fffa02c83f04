package remote

import (
	"context"
	"time"

	ferrors "github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
)

// AwaitCompletion polls the status of h until it reaches a terminal status.
//
// The elapsed time is checked before every status fetch, so a slow endpoint
// cannot extend the deadline. The observer is notified for the first status
// observed and then each time the message changes by value. Complete returns
// nil; a failure terminal returns *BuildFailedError; exceeding the build
// timeout returns *TimeoutError. A
// failed status fetch is returned as is unless the error reports a retry
// strategy that permits it and the retry policy allows another attempt. Cancelling ctx stops the loop with ctx.Err().
func (c *Client) AwaitCompletion(ctx context.Context, h Handle) error {
	start := c.clock.Now()
	lastMessage, seen := "", false
	lastStatus := StatusUnknown
	retries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if elapsed := c.clock.Since(start); elapsed > c.opts.BuildTimeout {
			return &TimeoutError{Handle: h, Elapsed: elapsed, Timeout: c.opts.BuildTimeout, LastStatus: lastStatus}
		}

		c.recorder.IncPoll()
		info, err := c.Status(ctx, h)
		if err != nil {
			if ctx.Err() != nil || !ferrors.CanRetry(err) || !c.opts.PollRetry.Allows(retries) {
				return err
			}
			retries++
			c.recorder.IncPollRetry()
			c.logger.Warn("Status fetch failed, retrying",
				logfields.BuildID(string(h)),
				logfields.Attempt(retries),
				logfields.Error(err))
			if err := c.opts.PollRetry.Wait(ctx, c.clock, retries); err != nil {
				return err
			}
			continue
		}
		retries = 0
		lastStatus = info.Status

		if !seen || info.Message != lastMessage {
			lastMessage, seen = info.Message, true
			c.observer.OnStatus(h, *info)
		}

		switch {
		case info.Status.IsSuccess():
			return nil
		case info.Status.IsFailure():
			return &BuildFailedError{Handle: h, Status: info.Status, Message: info.Message}
		}

		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return err
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
