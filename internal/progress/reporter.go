// Package progress runs periodic side-channel progress notifications.
package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = 2 * time.Second

// Reporter calls a report function on a fixed interval until stopped.
type Reporter struct {
	scheduler gocron.Scheduler
	report    func() bool
	job       atomic.Pointer[gocron.Job]
	disabled  atomic.Bool
	stopOnce  sync.Once
	stopErr   error
	logger    *slog.Logger
}

type settings struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

// Option customizes a Reporter.
type Option func(*settings)

// WithClock drives the schedule from clock instead of the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithLogger sets the logger used for scheduler errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Start schedules report every interval. When report returns false it is
// unscheduled; Stop still calls it one final time.
func Start(report func() bool, interval time.Duration, opts ...Option) (*Reporter, error) {
	cfg := settings{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	schedOpts := []gocron.SchedulerOption{}
	if cfg.clock != nil {
		schedOpts = append(schedOpts, gocron.WithClock(cfg.clock))
	}
	s, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	r := &Reporter{scheduler: s, report: report, logger: cfg.logger}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.tick),
		gocron.WithName("progress-report"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create progress job: %w", err)
	}

	r.job.Store(&job)
	r.scheduler.Start()
	return r, nil
}

func (r *Reporter) tick() {
	if r.disabled.Load() {
		return
	}
	if r.report() {
		return
	}
	r.disabled.Store(true)
	if job := r.job.Load(); job != nil {
		if err := r.scheduler.RemoveJob((*job).ID()); err != nil {
			r.logger.Debug("Failed to unschedule progress report", "error", err)
		}
	}
}

// Stop shuts the schedule down and reports one final time. It is safe to
// call more than once; later calls do nothing.
func (r *Reporter) Stop() error {
	r.stopOnce.Do(func() {
		r.disabled.Store(true)
		r.stopErr = r.scheduler.Shutdown()
		r.report()
	})
	return r.stopErr
}
