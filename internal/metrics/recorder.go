package metrics

import "time"

// OutcomeLabel enumerates final build outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"  // remote reported a failure terminal status
	OutcomeTimeout  OutcomeLabel = "timeout" // poll loop exceeded the build timeout
	OutcomeError    OutcomeLabel = "error"   // transport, protocol or local errors
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for remote builds. All methods must be
// safe to call on the zero value of an implementation.
type Recorder interface {
	ObserveRequest(endpoint string, statusCode int, d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome OutcomeLabel)
	IncPoll()
	IncPollRetry()
	ObserveArchive(files int64, bytes int64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequest(string, int, time.Duration)  {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(OutcomeLabel)               {}
func (NoopRecorder) IncPoll()                                   {}
func (NoopRecorder) IncPollRetry()                              {}
func (NoopRecorder) ObserveArchive(int64, int64)                {}
