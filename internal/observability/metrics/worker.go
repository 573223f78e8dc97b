package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the status event consumer.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	eventTotal    *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	eventInFlight prometheus.Gauge
	eventLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "file_status_events_total",
			Help:      "Total consumed file status events by result.",
		},
		[]string{"service", "result"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "file_status_event_duration_seconds",
			Help:      "Time spent handling one file status event.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	eventInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "file_status_events_in_flight",
			Help:      "Number of file status events being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "file_status_event_lag_seconds",
			Help:      "Delay between a status change and its consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	registry.MustRegister(eventTotal, eventDuration, eventInFlight, eventLag)

	return &WorkerMetrics{
		registry:      registry,
		service:       service,
		eventTotal:    eventTotal,
		eventDuration: eventDuration,
		eventInFlight: eventInFlight,
		eventLag:      eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent(occurredAt time.Time) {
	m.eventInFlight.Inc()
	if occurredAt.IsZero() {
		return
	}
	if lag := time.Since(occurredAt); lag >= 0 {
		m.eventLag.WithLabelValues(m.service).Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) FinishEvent(duration time.Duration, err error) {
	m.eventInFlight.Dec()

	result := "success"
	if err != nil {
		result = "error"
	}
	m.eventTotal.WithLabelValues(m.service, result).Inc()
	m.eventDuration.WithLabelValues(m.service, result).Observe(duration.Seconds())
}
