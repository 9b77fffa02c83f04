package history

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/remote"
)

// Observer records the lifecycle of one run. Store failures are logged and
// never fail the build.
type Observer struct {
	store  *Store
	runID  string
	ctx    context.Context
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewObserver returns a remote.Observer bound to runID, which must already exist.
func NewObserver(ctx context.Context, store *Store, runID string, clock clockwork.Clock, logger *slog.Logger) *Observer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, runID: runID, ctx: context.WithoutCancel(ctx), clock: clock, logger: logger}
}

func (o *Observer) OnSubmitted(h remote.Handle) {
	o.check("set handle", o.store.SetHandle(o.ctx, o.runID, string(h)))
}

func (o *Observer) OnStatus(_ remote.Handle, info remote.BuildInfo) {
	o.check("append status", o.store.AppendStatus(o.ctx, o.runID, string(info.Status), info.Message, o.clock.Now()))
}

func (o *Observer) OnCompleted(remote.Handle, *remote.Outcome) {
	o.check("finish run", o.store.FinishRun(o.ctx, o.runID, string(remote.OutcomeOf(nil)), "", o.clock.Now()))
}

func (o *Observer) OnFailed(_ remote.Handle, err error) {
	o.check("finish run", o.store.FinishRun(o.ctx, o.runID, string(remote.OutcomeOf(err)), err.Error(), o.clock.Now()))
}

func (o *Observer) check(op string, err error) {
	if err != nil {
		o.logger.Warn("Build history update failed", "op", op, "run_id", o.runID, logfields.Error(err))
	}
}

var _ remote.Observer = (*Observer)(nil)
