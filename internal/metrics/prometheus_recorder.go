package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "remotebuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	registry        *prom.Registry
	requestDuration *prom.HistogramVec
	stageDuration   *prom.HistogramVec
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	polls           prom.Counter
	pollRetries     prom.Counter
	archiveFiles    prom.Gauge
	archiveBytes    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.requestDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of requests to the remote build service",
			Buckets:   prom.DefBuckets,
		}, []string{"endpoint", "code"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of submit, await and retrieve stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total remote build duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.polls = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Status fetches issued by the poll loop",
		})
		pr.pollRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "status_poll_retries_total",
			Help:      "Failed status fetches that were retried",
		})
		pr.archiveFiles = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_files",
			Help:      "Files included in the last submitted archive",
		})
		pr.archiveBytes = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_bytes",
			Help:      "Compressed size of the last submitted archive",
		})
		reg.MustRegister(pr.requestDuration, pr.stageDuration, pr.buildDuration, pr.buildOutcome,
			pr.polls, pr.pollRetries, pr.archiveFiles, pr.archiveBytes)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRequest(endpoint string, statusCode int, d time.Duration) {
	if p == nil || p.requestDuration == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	p.requestDuration.WithLabelValues(endpoint, code).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncPoll() {
	if p == nil || p.polls == nil {
		return
	}
	p.polls.Inc()
}

func (p *PrometheusRecorder) IncPollRetry() {
	if p == nil || p.pollRetries == nil {
		return
	}
	p.pollRetries.Inc()
}

func (p *PrometheusRecorder) ObserveArchive(files int64, bytes int64) {
	if p == nil || p.archiveFiles == nil {
		return
	}
	p.archiveFiles.Set(float64(files))
	p.archiveBytes.Set(float64(bytes))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil || p.registry == nil {
		return nil
	}
	return prom.WriteToTextfile(path, p.registry)
}

// Handler serves the registry over HTTP.
func (p *PrometheusRecorder) Handler() http.Handler {
	reg := p.registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
