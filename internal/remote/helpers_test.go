package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/transport"
)

// fakeService answers requests by relative path. Status responses are
// consumed in order; the last one repeats.
type fakeService struct {
	mu        sync.Mutex
	calls     []string
	statuses  []statusReply
	submit    func() (*transport.Result, error)
	download  func(ctx context.Context) (*transport.Result, error)
	log       func(ctx context.Context) (*transport.Result, error)
	statusIdx int
}

type statusReply struct {
	info BuildInfo
	err  error
}

func (f *fakeService) Request(ctx context.Context, relPath string, _ url.Values, _ ...transport.RequestOption) (*transport.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, relPath)
	f.mu.Unlock()

	switch {
	case relPath == "build/tasks":
		if f.submit != nil {
			return f.submit()
		}
		return jsonResult(`{"buildNumber": 7}`), nil
	case strings.HasSuffix(relPath, "/download"):
		if f.download != nil {
			return f.download(ctx)
		}
		return &transport.Result{Kind: transport.KindBytes, Bytes: []byte("artifact")}, nil
	case strings.HasSuffix(relPath, "/log"):
		if f.log != nil {
			return f.log(ctx)
		}
		return &transport.Result{Kind: transport.KindText, Text: "build log"}, nil
	default:
		f.mu.Lock()
		reply := f.statuses[min(f.statusIdx, len(f.statuses)-1)]
		f.statusIdx++
		f.mu.Unlock()
		if reply.err != nil {
			return nil, reply.err
		}
		data, _ := json.Marshal(reply.info)
		return jsonResult(string(data)), nil
	}
}

func (f *fakeService) callsMatching(suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasSuffix(c, suffix) {
			n++
		}
	}
	return n
}

func (f *fakeService) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusIdx
}

func jsonResult(body string) *transport.Result {
	return &transport.Result{Kind: transport.KindJSON, StatusCode: 200, ContentType: "application/json", JSON: json.RawMessage(body)}
}

func working(msg string) statusReply  { return statusReply{info: BuildInfo{Status: StatusBuilding, Message: msg}} }
func complete(msg string) statusReply { return statusReply{info: BuildInfo{Status: StatusComplete, Message: msg}} }

// drive runs fn and advances clock by step every time fn blocks on it.
// It returns fn's error and the number of advances (sleeps).
func drive(t *testing.T, clock *clockwork.FakeClock, step time.Duration, fn func() error) (int, error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()

	sleeps := 0
	for {
		waitCtx, cancel := context.WithCancel(context.Background())
		blocked := make(chan error, 1)
		go func() { blocked <- clock.BlockUntilContext(waitCtx, 1) }()

		select {
		case err := <-done:
			cancel()
			return sleeps, err
		case err := <-blocked:
			cancel()
			if err != nil {
				t.Fatalf("waiting for sleeper: %v", err)
			}
			sleeps++
			clock.Advance(step)
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatalf("run neither finished nor slept after %d sleeps", sleeps)
		}
	}
}

// recordingObserver captures lifecycle notifications.
type recordingObserver struct {
	mu        sync.Mutex
	messages  []string
	submitted []Handle
	completed int
	failed    []error
}

func (r *recordingObserver) OnSubmitted(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, h)
}

func (r *recordingObserver) OnStatus(_ Handle, info BuildInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, info.Message)
}

func (r *recordingObserver) OnCompleted(Handle, *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recordingObserver) OnFailed(_ Handle, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}
