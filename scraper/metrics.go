package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	SkipsTotal      *prometheus.CounterVec
	RecordsTotal    prometheus.Counter
	VolumesTotal    prometheus.Counter
	Handles         prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_attempts_total",
			Help: "Result handles visited, by outcome.",
		},
		[]string{"outcome"},
	)
	attemptDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_attempt_duration_seconds",
			Help:    "Time spent opening and extracting one result.",
			Buckets: prometheus.DefBuckets,
		},
	)
	skips := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_skips_total",
			Help: "Results abandoned without a record, by reason.",
		},
		[]string{"reason"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Distinct works captured.",
		},
	)
	volumes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_volumes_total",
			Help: "Successful extractions, including additional volumes of known works.",
		},
	)
	handles := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_result_handles",
			Help: "Result handles present on the last list render.",
		},
	)

	registry.MustRegister(attempts, attemptDuration, skips, records, volumes, handles)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		AttemptDuration: attemptDuration,
		SkipsTotal:      skips,
		RecordsTotal:    records,
		VolumesTotal:    volumes,
		Handles:         handles,
	}
}

// IncAttempt increments the attempts counter for an outcome label.
func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records how long one attempt took.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptDuration.Observe(d.Seconds())
}

// IncSkip increments the skips counter for a reason label.
func (m *Metrics) IncSkip(reason string) {
	if m == nil {
		return
	}
	m.SkipsTotal.WithLabelValues(reason).Inc()
}

// IncVolume counts a committed extraction; isNew also counts a new work.
func (m *Metrics) IncVolume(isNew bool) {
	if m == nil {
		return
	}
	m.VolumesTotal.Inc()
	if isNew {
		m.RecordsTotal.Inc()
	}
}

// SetHandles records the size of the latest result list.
func (m *Metrics) SetHandles(n int) {
	if m == nil {
		return
	}
	m.Handles.Set(float64(n))
}
