package watch

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// debouncer fires once after wait has passed without a trigger.
// It is owned by a single goroutine.
type debouncer struct {
	clock clockwork.Clock
	wait  time.Duration
	timer clockwork.Timer
}

func newDebouncer(clock clockwork.Clock, wait time.Duration) *debouncer {
	return &debouncer{clock: clock, wait: wait}
}

func (d *debouncer) trigger() {
	if d.timer == nil {
		d.timer = d.clock.NewTimer(d.wait)
		return
	}
	d.timer.Stop()
	d.timer.Reset(d.wait)
}

// fired returns nil (blocks forever in select) while nothing is pending.
func (d *debouncer) fired() <-chan time.Time {
	if d.timer == nil {
		return nil
	}
	return d.timer.Chan()
}

// reset must be called after fired delivers.
func (d *debouncer) reset() { d.timer = nil }

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
