package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching, orchestration and
// persistence.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	SourceRuns        *prometheus.CounterVec
	SourceDuration    *prometheus.HistogramVec
	ObservationsTotal *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_requests_total",
			Help: "Total HTTP requests issued per source.",
		},
		[]string{"source", "phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesignals_request_duration_seconds",
			Help:    "HTTP request latency per source.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_retries_total",
			Help: "Total number of retry attempts per source.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_errors_total",
			Help: "Total number of fetch errors by source and type.",
		},
		[]string{"source", "error_type"},
	)
	sourceRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_source_runs_total",
			Help: "Extractor runs by source and outcome.",
		},
		[]string{"source", "status"},
	)
	sourceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratesignals_source_duration_seconds",
			Help:    "Wall time of one extractor run.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)
	observations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_observations_total",
			Help: "Raw observations produced per source.",
		},
		[]string{"source"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratesignals_records_total",
			Help: "Normalized records by kind and write outcome.",
		},
		[]string{"kind", "outcome"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, sourceRuns, sourceDuration, observations, records)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		SourceRuns:        sourceRuns,
		SourceDuration:    sourceDuration,
		ObservationsTotal: observations,
		RecordsTotal:      records,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(source, phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(source, phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries(source string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(source).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// ObserveSource records the outcome of one extractor run.
func (m *Metrics) ObserveSource(source, status string, d time.Duration, observations int) {
	if m == nil {
		return
	}
	m.SourceRuns.WithLabelValues(source, status).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
	m.ObservationsTotal.WithLabelValues(source).Add(float64(observations))
}

// AddRecords counts normalized records by kind ("event", "price", "hotel")
// and outcome ("written", "failed", "duplicate", "invalid").
func (m *Metrics) AddRecords(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}
