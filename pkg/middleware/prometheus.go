package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spc-dev/spc/pkg/protocol"
	"github.com/spc-dev/spc/pkg/server"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "spc").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for HTTP request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "spc",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for the mirror. It implements
// server.Observer and provides an HTTP middleware for the API routes.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	messagesSent      *prometheus.CounterVec
	bytesSent         *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	writeErrors       *prometheus.CounterVec
	controls          *prometheus.CounterVec
	controlsDiscarded *prometheus.CounterVec
	framesCaptured    prometheus.Counter
	captureSkipped    prometheus.Counter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ server.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors and returns them.
//
// Metrics collected:
//   - spc_connections_active: Gauge of connected viewers
//   - spc_connections_total: Counter of accepted viewers
//   - spc_messages_sent_total: Counter of delivered messages by kind (text, binary)
//   - spc_bytes_sent_total: Counter of delivered bytes by kind
//   - spc_messages_dropped_total: Counter of pending messages superseded before a viewer received them
//   - spc_write_errors_total: Counter of transport write failures by category
//   - spc_controls_total: Counter of dispatched control messages by type
//   - spc_controls_discarded_total: Counter of discarded control messages by reason
//   - spc_frames_captured_total / spc_capture_skipped_total: frame pipeline
//   - spc_http_requests_total / spc_http_request_duration_seconds: API routes
//
// Registering twice against the same registry panics, so create one Metrics
// per registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of connected viewers",
			ConstLabels: config.ConstLabels,
		}),
		connectionsTotal: factory.NewCounter(counterOpts("connections_total",
			"Total number of accepted viewers")),
		messagesSent: factory.NewCounterVec(counterOpts("messages_sent_total",
			"Total messages delivered to viewers"), []string{"kind"}),
		bytesSent: factory.NewCounterVec(counterOpts("bytes_sent_total",
			"Total bytes delivered to viewers"), []string{"kind"}),
		messagesDropped: factory.NewCounterVec(counterOpts("messages_dropped_total",
			"Total pending frames and snapshots superseded by newer ones"), []string{"kind"}),
		writeErrors: factory.NewCounterVec(counterOpts("write_errors_total",
			"Total transport write failures by category"), []string{"type"}),
		controls: factory.NewCounterVec(counterOpts("controls_total",
			"Total control messages dispatched to the host"), []string{"type"}),
		controlsDiscarded: factory.NewCounterVec(counterOpts("controls_discarded_total",
			"Total inbound messages discarded"), []string{"reason"}),
		framesCaptured: factory.NewCounter(counterOpts("frames_captured_total",
			"Total frames captured and submitted to the relay")),
		captureSkipped: factory.NewCounter(counterOpts("capture_skipped_total",
			"Total capture ticks that produced no frame")),

		requestsTotal: factory.NewCounterVec(counterOpts("http_requests_total",
			"Total HTTP requests by route and status"), []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),
	}
}

func kind(binary bool) string {
	if binary {
		return "binary"
	}
	return "text"
}

// ConnectionOpened implements server.Observer.
func (m *Metrics) ConnectionOpened() {
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

// ConnectionClosed implements server.Observer.
func (m *Metrics) ConnectionClosed() {
	m.connectionsActive.Dec()
}

// MessageSent implements server.Observer.
func (m *Metrics) MessageSent(binary bool, bytes int) {
	m.messagesSent.WithLabelValues(kind(binary)).Inc()
	m.bytesSent.WithLabelValues(kind(binary)).Add(float64(bytes))
}

// MessageDropped implements server.Observer.
func (m *Metrics) MessageDropped(binary bool) {
	m.messagesDropped.WithLabelValues(kind(binary)).Inc()
}

// WriteFailed implements server.Observer.
func (m *Metrics) WriteFailed(err error) {
	m.writeErrors.WithLabelValues(categorizeError(err)).Inc()
}

// ControlDispatched implements server.Observer.
func (m *Metrics) ControlDispatched(t protocol.ControlType) {
	m.controls.WithLabelValues(string(t)).Inc()
}

// ControlDiscarded implements server.Observer.
func (m *Metrics) ControlDiscarded(reason string) {
	m.controlsDiscarded.WithLabelValues(reason).Inc()
}

// FrameCaptured records one frame handed to the relay.
func (m *Metrics) FrameCaptured() {
	m.framesCaptured.Inc()
}

// CaptureSkipped records a capture tick that produced no frame.
func (m *Metrics) CaptureSkipped() {
	m.captureSkipped.Inc()
}

// Handler returns an HTTP middleware recording request counts and durations
// by chi route pattern.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// routePattern returns the matched chi pattern, keeping label cardinality
// bounded for static paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection reset"):
		return "reset"
	case strings.Contains(msg, "close"):
		return "closed"
	default:
		return "internal"
	}
}
