package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/playable-preview/internal/version"
)

type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	errorsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// playable metrics
	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
	extractDuration   prometheus.Histogram
	extractFailures   *prometheus.CounterVec
	serveDeniedTotal  *prometheus.CounterVec
	deletesTotal      prometheus.Counter
	loginsTotal       *prometheus.CounterVec
	mirrorErrorsTotal prometheus.Counter
	stored            prometheus.Gauge
}

// New builds a private registry with the Go and process collectors plus
// every series the server exports. Label values are bounded: methods,
// route patterns, status codes and fixed reason strings.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	m := &ServerMetrics{
		reg: reg,

		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playable_uploads_total",
			Help: "Uploads by kind (html, zip, unknown) and result (ok or a failure reason)",
		}, []string{"kind", "result"}),
		uploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "playable_upload_bytes",
			Help:    "Size of accepted upload bodies",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8), // 16KiB .. 256MiB
		}),
		extractDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "playable_extract_duration_seconds",
			Help:    "Time to stage and materialize one upload",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		extractFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playable_extract_failures_total",
			Help: "Archive extraction failures by reason",
		}, []string{"reason"}),
		serveDeniedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "playable_serve_denied_total",
			Help: "Playable file requests that did not resolve, by reason",
		}, []string{"reason"}),
		deletesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "playable_deletes_total",
			Help: "Successful delete requests",
		}),
		loginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_logins_total",
			Help: "Admin login attempts by result",
		}, []string{"result"}),
		mirrorErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "playable_mirror_errors_total",
			Help: "Uploads that could not be copied to the object store mirror",
		}),
		stored: f.NewGauge(prometheus.GaugeOpts{
			Name: "playable_stored",
			Help: "Number of playables currently stored",
		}),
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// ObserveUpload records one upload attempt. result is "ok" or a failure
// reason from content.Reason; bytes is only observed for accepted bodies.
func (m *ServerMetrics) ObserveUpload(kind, result string, bytes int64, seconds float64) {
	if kind == "" {
		kind = "unknown"
	}
	m.uploadsTotal.WithLabelValues(kind, result).Inc()
	if bytes > 0 {
		m.uploadBytes.Observe(float64(bytes))
	}
	if seconds > 0 {
		m.extractDuration.Observe(seconds)
	}
}

func (m *ServerMetrics) IncExtractFailure(reason string) {
	m.extractFailures.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncServeDenied(reason string) {
	m.serveDeniedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) IncDeletes() {
	m.deletesTotal.Inc()
}

func (m *ServerMetrics) IncLogin(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) IncMirrorError() {
	m.mirrorErrorsTotal.Inc()
}

func (m *ServerMetrics) SetStored(n int) {
	m.stored.Set(float64(n))
}
