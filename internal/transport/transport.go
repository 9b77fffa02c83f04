package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpproxy"

	"github.com/compulim/remotebuild/internal/foundation/errors"
	"github.com/compulim/remotebuild/internal/logfields"
	"github.com/compulim/remotebuild/internal/metrics"
	"github.com/compulim/remotebuild/internal/version"
)

// maxErrorBody bounds how much of a failed response body is kept for diagnostics.
const maxErrorBody = 512

// ProxyFunc selects a proxy for a request, in the shape http.Transport expects.
type ProxyFunc func(*http.Request) (*url.URL, error)

// Options configures a Transport.
type Options struct {
	Host  string
	Port  int
	Mount string

	// Proxy is applied to the default HTTP client. Nil means direct connections.
	Proxy ProxyFunc
	// HTTPClient overrides the client; Proxy is ignored when set.
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger
	Recorder   metrics.Recorder
}

// Transport sends requests relative to the mount path of one remote build service.
type Transport struct {
	client    *http.Client
	base      url.URL
	userAgent string
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// New validates opts and builds a Transport.
func New(opts Options) (*Transport, error) {
	if opts.Host == "" {
		return nil, errors.ValidationError("remote host is required").Build()
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, errors.ValidationError("remote port out of range").
			WithContext("port", opts.Port).
			Build()
	}
	client := opts.HTTPClient
	if client == nil {
		base, _ := http.DefaultTransport.(*http.Transport)
		var rt *http.Transport
		if base != nil {
			rt = base.Clone()
		} else {
			rt = &http.Transport{}
		}
		rt.Proxy = opts.Proxy
		client = &http.Client{Transport: rt}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	mount := strings.Trim(opts.Mount, "/")
	return &Transport{
		client: client,
		base: url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
			Path:   "/" + mount,
		},
		userAgent: ua,
		logger:    logger,
		recorder:  rec,
	}, nil
}

// ProxyFromEnvironment reads http_proxy/HTTP_PROXY, https_proxy and no_proxy once.
// Later changes to the environment do not affect the returned function.
func ProxyFromEnvironment() ProxyFunc {
	proxy := httpproxy.FromEnvironment().ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// ProxyURL routes every request through the given proxy.
func ProxyURL(raw string) (ProxyFunc, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.ConfigError("invalid proxy URL").
			WithCause(err).
			WithContext("proxy", raw).
			Build()
	}
	return http.ProxyURL(u), nil
}

// URL returns the absolute URL for relPath and query.
func (t *Transport) URL(relPath string, query url.Values) *url.URL {
	u := t.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(relPath, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

type requestConfig struct {
	method   string
	body     io.Reader
	header   http.Header
	endpoint string
}

// RequestOption customizes a single request.
type RequestOption func(*requestConfig)

// WithMethod sets the HTTP method (default GET).
func WithMethod(method string) RequestOption {
	return func(c *requestConfig) { c.method = method }
}

// WithBody streams body as the request payload.
func WithBody(body io.Reader) RequestOption {
	return func(c *requestConfig) { c.body = body }
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) { c.header.Add(key, value) }
}

// WithEndpoint names the request for metrics; paths carry build numbers and are not used as labels.
func WithEndpoint(name string) RequestOption {
	return func(c *requestConfig) { c.endpoint = name }
}

// Request sends one request and classifies the response.
func (t *Transport) Request(ctx context.Context, relPath string, query url.Values, opts ...RequestOption) (*Result, error) {
	cfg := requestConfig{method: http.MethodGet, header: make(http.Header), endpoint: "other"}
	for _, opt := range opts {
		opt(&cfg)
	}

	target := t.URL(relPath, query)
	body := cfg.body
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, cfg.method, target.String(), body)
	if err != nil {
		return nil, errors.InternalError("failed to create request").
			WithCause(err).
			WithContext("method", cfg.method).
			WithContext("url", target.String()).
			Build()
	}
	for key, values := range cfg.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.recorder.ObserveRequest(cfg.endpoint, 0, time.Since(start))
		t.logger.Debug("Remote request failed",
			logfields.Method(cfg.method),
			logfields.URL(target.String()),
			logfields.RequestID(requestID),
			logfields.Error(err))
		return nil, &NetworkError{Method: cfg.method, URL: target.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	result, err := classify(resp, cfg.method, target.String())
	elapsed := time.Since(start)
	t.recorder.ObserveRequest(cfg.endpoint, resp.StatusCode, elapsed)
	t.logger.Debug("Remote request",
		logfields.Method(cfg.method),
		logfields.URL(target.String()),
		logfields.StatusCode(resp.StatusCode),
		logfields.RequestID(requestID),
		logfields.Duration(elapsed))
	return result, err
}

func classify(resp *http.Response, method, target string) (*Result, error) {
	switch {
	case resp.StatusCode == http.StatusCreated:
		return &Result{Kind: KindEmpty, StatusCode: resp.StatusCode}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// Read limited body for diagnostics
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteServiceError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     method,
			URL:        target,
			Body:       strings.ReplaceAll(string(limitedBody), "\n", " "),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	contentType := resp.Header.Get("Content-Type")
	lowered := strings.ToLower(contentType)
	result := &Result{StatusCode: resp.StatusCode, ContentType: contentType}
	switch {
	case strings.HasPrefix(lowered, "application/json"):
		trimmed := bytes.TrimSpace(data)
		if !json.Valid(trimmed) {
			return nil, &DecodeError{ContentType: contentType, URL: target, Err: fmt.Errorf("invalid JSON body (%d bytes)", len(data))}
		}
		result.Kind = KindJSON
		result.JSON = json.RawMessage(trimmed)
	case strings.HasPrefix(lowered, "text/plain"):
		result.Kind = KindText
		result.Text = string(data)
	default:
		result.Kind = KindBytes
		result.Bytes = data
	}
	return result, nil
}
