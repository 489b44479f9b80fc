package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated *prometheus.CounterVec
	SessionsClosed  *prometheus.CounterVec
	SessionsReaped  prometheus.Counter

	// PTY allocation metrics
	AllocAttempts  prometheus.Counter
	AllocRetries   prometheus.Counter
	AllocFallbacks prometheus.Counter

	// Transport metrics
	WSConnections prometheus.Gauge
	BytesIn       prometheus.Counter
	BytesOut      prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates and registers all metrics on a dedicated registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termbridge_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_sessions_active",
				Help: "Currently active terminal sessions",
			},
		),
		SessionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_sessions_created_total",
				Help: "Terminal sessions created, by backing mode",
			},
			[]string{"mode"},
		),
		SessionsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termbridge_sessions_closed_total",
				Help: "Terminal sessions closed, by cause",
			},
			[]string{"cause"},
		),
		SessionsReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_sessions_reaped_total",
				Help: "Terminal sessions removed by the idle reaper",
			},
		),

		AllocAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_pty_alloc_attempts_total",
				Help: "PTY allocation attempts, including retries",
			},
		),
		AllocRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_pty_alloc_retries_total",
				Help: "PTY allocation retries after transient failure",
			},
		),
		AllocFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_pty_alloc_fallbacks_total",
				Help: "Sessions degraded to the scripted fallback terminal",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_ws_connections",
				Help: "Open streaming WebSocket connections",
			},
		),
		BytesIn: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_bytes_in_total",
				Help: "Bytes written to terminal sessions",
			},
		),
		BytesOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termbridge_bytes_out_total",
				Help: "Bytes delivered from terminal sessions to clients",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termbridge_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		startTime: time.Now(),
	}

	return m
}

// RecordHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
		h.ServeHTTP(c.Writer, c.Request)
	}
}
