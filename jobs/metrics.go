package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the job metrics against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_jobs_total",
			Help: "Background job runs by task type.",
		}, []string{"task"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_jobs_failures_total",
			Help: "Background job failures by task type.",
		}, []string{"task"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_job_duration_seconds",
			Help:    "Background job duration by task type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration)
	return m
}

// Instrument wraps a task handler with run, failure, and duration metrics.
func (m *Metrics) Instrument(taskType string, next asynq.HandlerFunc) asynq.HandlerFunc {
	if m == nil {
		return next
	}
	return func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next(ctx, t)
		m.runs.WithLabelValues(taskType).Inc()
		m.duration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if err != nil {
			m.failures.WithLabelValues(taskType).Inc()
		}
		return err
	}
}
