package metrics

import (
	"sync"
	"time"
)

// testRecorder is a goroutine-safe in-memory Recorder used to assert hook calls.
type testRecorder struct {
	mu             sync.Mutex
	requests       map[string]int
	stageDurations map[string]int
	buildDurations int
	buildOutcomes  map[OutcomeLabel]int
	polls          int
	pollRetries    int
	archiveFiles   int64
}

func newTestRecorder() *testRecorder {
	return &testRecorder{requests: map[string]int{}, stageDurations: map[string]int{}, buildOutcomes: map[OutcomeLabel]int{}}
}

func (t *testRecorder) ObserveRequest(endpoint string, _ int, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests[endpoint]++
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stageDurations[stage]++
}

func (t *testRecorder) ObserveBuildDuration(_ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildDurations++
}

func (t *testRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildOutcomes[outcome]++
}

func (t *testRecorder) IncPoll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++
}

func (t *testRecorder) IncPollRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollRetries++
}

func (t *testRecorder) ObserveArchive(files int64, _ int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archiveFiles = files
}

var (
	_ Recorder = (*testRecorder)(nil)
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
