package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/compulim/remotebuild/internal/config"
	"github.com/compulim/remotebuild/internal/metrics"
	"github.com/compulim/remotebuild/internal/retry"
	"github.com/compulim/remotebuild/internal/transport"
)

// Requester issues one classified request against the remote build service.
// *transport.Transport implements it.
type Requester interface {
	Request(ctx context.Context, relPath string, query url.Values, opts ...transport.RequestOption) (*transport.Result, error)
}

// Options are the build parameters sent to the service and the poll limits.
type Options struct {
	Configuration  string
	CordovaVersion string
	LogLevel       string
	BuildOptions   string
	BuildTimeout   time.Duration
	PollInterval   time.Duration
	// PollRetry governs retries of failed status fetches. The zero policy never retries.
	PollRetry retry.Policy
}

// OptionsFromConfig copies the fields a Client needs out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Configuration:  cfg.Configuration,
		CordovaVersion: cfg.CordovaVersion,
		LogLevel:       cfg.LogLevel,
		BuildOptions:   cfg.Options,
		BuildTimeout:   cfg.BuildTimeout.Duration(),
		PollInterval:   cfg.PollInterval.Duration(),
		PollRetry:      retry.FromConfig(cfg.PollRetry),
	}
}

// Client drives builds on one remote build service.
type Client struct {
	requester Requester
	opts      Options
	clock     clockwork.Clock
	observer  Observer
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClock replaces the real clock, typically with a clockwork.FakeClock.
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// WithObserver receives build lifecycle notifications.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// WithRecorder records poll and stage metrics.
func WithRecorder(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client. Options are copied and never modified afterwards.
func NewClient(r Requester, opts Options, options ...ClientOption) *Client {
	c := &Client{
		requester: r,
		opts:      opts,
		clock:     clockwork.NewRealClock(),
		observer:  NopObserver{},
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Options returns the options the client was built with.
func (c *Client) Options() Options { return c.opts }

// Submit uploads archive and returns the handle of the new build. archive is
// read exactly once. Submit is not idempotent and must never be retried with
// the same archive.
func (c *Client) Submit(ctx context.Context, archive io.Reader) (Handle, error) {
	query := url.Values{
		"cfg":      {c.opts.Configuration},
		"command":  {"build"},
		"loglevel": {c.opts.LogLevel},
		"options":  {c.opts.BuildOptions},
		"vcordova": {c.opts.CordovaVersion},
	}
	res, err := c.requester.Request(ctx, "build/tasks", query,
		transport.WithMethod(http.MethodPost),
		transport.WithBody(archive),
		transport.WithHeader("Content-Type", "application/x-gzip"),
		transport.WithEndpoint("submit"))
	if err != nil {
		var de *transport.DecodeError
		if errors.As(err, &de) {
			return "", &ProtocolError{Op: "submit", Reason: "malformed response", Err: err}
		}
		return "", err
	}
	if res.Kind != transport.KindJSON {
		return "", &ProtocolError{Op: "submit", Reason: "expected a JSON response, got " + res.Kind.String()}
	}
	var body struct {
		BuildNumber json.RawMessage `json:"buildNumber"`
	}
	if err := res.Decode(&body); err != nil {
		return "", &ProtocolError{Op: "submit", Reason: "malformed response", Err: err}
	}
	handle, err := parseHandle(body.BuildNumber)
	if err != nil {
		return "", &ProtocolError{Op: "submit", Reason: "missing build number", Err: err}
	}
	return handle, nil
}

// parseHandle accepts a JSON number or a non-empty JSON string.
func parseHandle(raw json.RawMessage) (Handle, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", errors.New("buildNumber is absent")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", errors.New("buildNumber is empty")
		}
		return Handle(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", errors.New("buildNumber is neither a number nor a string")
	}
	if i, err := n.Int64(); err == nil {
		return Handle(strconv.FormatInt(i, 10)), nil
	}
	return Handle(n.String()), nil
}

// Status fetches the current BuildInfo of h.
func (c *Client) Status(ctx context.Context, h Handle) (*BuildInfo, error) {
	res, err := c.requester.Request(ctx, "build/tasks/"+url.PathEscape(string(h)), nil, transport.WithEndpoint("status"))
	if err != nil {
		var de *transport.DecodeError
		if errors.As(err, &de) {
			return nil, &ProtocolError{Op: "status", Reason: "malformed response", Err: err}
		}
		return nil, err
	}
	var info BuildInfo
	if err := res.Decode(&info); err != nil {
		return nil, &ProtocolError{Op: "status", Reason: "undecodable build status", Err: err}
	}
	if info.Status == "" {
		info.Status = StatusUnknown
	}
	return &info, nil
}

// Download fetches the build artifact of h.
func (c *Client) Download(ctx context.Context, h Handle) ([]byte, error) {
	res, err := c.requester.Request(ctx, "build/"+url.PathEscape(string(h))+"/download", nil, transport.WithEndpoint("download"))
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// Log fetches the build log of h.
func (c *Client) Log(ctx context.Context, h Handle) ([]byte, error) {
	res, err := c.requester.Request(ctx, "build/tasks/"+url.PathEscape(string(h))+"/log", nil, transport.WithEndpoint("log"))
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}
