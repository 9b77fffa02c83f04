package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/compulim/remotebuild/internal/transport"
)

func TestRunFailureFetchesLogOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	obs := &recordingObserver{}
	svc := &fakeService{statuses: []statusReply{{info: BuildInfo{Status: StatusError, Message: "compile error"}}}}
	c := NewClient(svc, pollOptions(10*time.Millisecond, time.Second), WithClock(clock), WithObserver(obs))

	out, err := c.Run(context.Background(), strings.NewReader("gz"))
	require.Nil(t, out)

	var bf *BuildFailedError
	require.ErrorAs(t, err, &bf)
	require.Equal(t, StatusError, bf.Status)
	log, ok := DiagnosticLog(err)
	require.True(t, ok)
	require.Equal(t, "build log", string(log))

	require.Equal(t, 1, svc.callsMatching("/log"))
	require.Equal(t, 0, svc.callsMatching("/download"))
	require.Equal(t, []Handle{"7"}, obs.submitted)
	require.Len(t, obs.failed, 1)
	require.Equal(t, 0, obs.completed)
}

func TestRunSubmitFailureSkipsPolling(t *testing.T) {
	rse := &transport.RemoteServiceError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}
	svc := &fakeService{submit: func() (*transport.Result, error) { return nil, rse }}
	obs := &recordingObserver{}
	_, err := NewClient(svc, pollOptions(time.Millisecond, time.Second), WithObserver(obs)).Run(context.Background(), strings.NewReader("gz"))
	require.ErrorIs(t, err, rse)
	require.Equal(t, 0, svc.statusCalls())
	require.Empty(t, obs.submitted)
	require.Len(t, obs.failed, 1)
}

func TestRunTransportErrorDuringPollIsNotDiagnosed(t *testing.T) {
	netErr := &transport.NetworkError{Err: errors.New("reset")}
	svc := &fakeService{statuses: []statusReply{{err: netErr}}}
	_, err := NewClient(svc, pollOptions(time.Millisecond, time.Second)).Run(context.Background(), strings.NewReader("gz"))
	require.ErrorIs(t, err, netErr)
	var de *DiagnosticError
	require.False(t, errors.As(err, &de))
	require.Equal(t, 0, svc.callsMatching("/log"))
}

// buildService is an httptest stand-in for the remote build service.
type buildService struct {
	mu       sync.Mutex
	query    url.Values
	body     string
	ctype    string
	statuses []BuildInfo
	polls    int
}

func (b *buildService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/cordova/build/tasks":
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.query = r.URL.Query()
		b.body = string(data)
		b.ctype = r.Header.Get("Content-Type")
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"buildNumber": 101}`)
	case r.URL.Path == "/cordova/build/tasks/101":
		b.mu.Lock()
		info := b.statuses[min(b.polls, len(b.statuses)-1)]
		b.polls++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	case r.URL.Path == "/cordova/build/101/download":
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK-artifact")
	case r.URL.Path == "/cordova/build/tasks/101/log":
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "BUILD SUCCEEDED")
	default:
		http.NotFound(w, r)
	}
}

func TestRunEndToEnd(t *testing.T) {
	svc := &buildService{statuses: []BuildInfo{
		{Status: StatusUploaded, Message: "Uploaded"},
		{Status: StatusBuilding, Message: "Building"},
		{Status: StatusComplete, Message: "Build complete"},
	}}
	srv := httptest.NewServer(svc)
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	tr, err := transport.New(transport.Options{Host: host, Port: port, Mount: "cordova"})
	require.NoError(t, err)
	obs := &recordingObserver{}
	c := NewClient(tr, Options{
		Configuration:  "release",
		CordovaVersion: "6.0.0",
		LogLevel:       "warn",
		BuildOptions:   "--device",
		BuildTimeout:   5 * time.Second,
		PollInterval:   time.Millisecond,
	}, WithObserver(obs))

	out, err := c.Run(context.Background(), strings.NewReader("archive"))
	require.NoError(t, err)
	require.Equal(t, Handle("101"), out.Handle)
	require.Equal(t, "PK-artifact", string(out.Artifact))
	require.Equal(t, "BUILD SUCCEEDED", string(out.Log))

	require.Equal(t, "archive", svc.body)
	require.Equal(t, "application/x-gzip", svc.ctype)
	require.Equal(t, "release", svc.query.Get("cfg"))
	require.Equal(t, "build", svc.query.Get("command"))
	require.Equal(t, "warn", svc.query.Get("loglevel"))
	require.Equal(t, "--device", svc.query.Get("options"))
	require.Equal(t, "6.0.0", svc.query.Get("vcordova"))
	require.Equal(t, []string{"Uploaded", "Building", "Build complete"}, obs.messages)
	require.Equal(t, 1, obs.completed)
}
