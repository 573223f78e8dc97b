package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

const namespace = "wfd"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadTotal          *prometheus.CounterVec
	uploadDuration       prometheus.Histogram
	stepDuration         *prometheus.HistogramVec
	forwardWarningsTotal prometheus.Counter
	dashboardRefresh     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "upload_total",
			Help:        "Upload pipeline runs by final state.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	uploadDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "upload_duration_seconds",
			Help:        "End-to-end upload pipeline duration in seconds.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: constLabels,
		},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "upload_step_duration_seconds",
			Help:        "Duration of each upload pipeline step in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"step", "result"},
	)
	forwardWarningsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "forward_warnings_total",
			Help:        "Uploads whose automation forward ended with a warning.",
			ConstLabels: constLabels,
		},
	)
	dashboardRefresh := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "dashboard",
			Name:        "refresh_total",
			Help:        "Dashboard snapshot refreshes by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadTotal,
		uploadDuration,
		stepDuration,
		forwardWarningsTotal,
		dashboardRefresh,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		service:              service,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		uploadTotal:          uploadTotal,
		uploadDuration:       uploadDuration,
		stepDuration:         stepDuration,
		forwardWarningsTotal: forwardWarningsTotal,
		dashboardRefresh:     dashboardRefresh,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-file routes so ids do not become label values.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/files/") {
		return path
	}
	if strings.HasSuffix(path, "/status") {
		return "/v1/files/{id}/status"
	}
	return "/v1/files/{id}"
}

func (m *HTTPServerMetrics) ObserveStep(step domain.PipelineState, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stepDuration.WithLabelValues(string(step), result).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveUpload(outcome domain.PipelineState, duration time.Duration) {
	m.uploadTotal.WithLabelValues(string(outcome)).Inc()
	m.uploadDuration.Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveForwardWarning() {
	m.forwardWarningsTotal.Inc()
}

func (m *HTTPServerMetrics) ObserveDashboardRefresh(err error) {
	if err != nil {
		m.dashboardRefresh.WithLabelValues("error").Inc()
		return
	}
	m.dashboardRefresh.WithLabelValues("ok").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
