package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchRunsTotal     *prometheus.CounterVec
	batchRunDuration   *prometheus.HistogramVec
	batchRunsInFlight  prometheus.Gauge
	chunkDuration      *prometheus.HistogramVec
	decisionsTotal     *prometheus.CounterVec
	credentialAttempts *prometheus.CounterVec
	quotaFailuresTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "batch_runs_total",
			Help:      "Total batch screening runs by stage and status.",
		},
		[]string{"service", "stage", "status"},
	)
	batchRunDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "batch_run_duration_seconds",
			Help:      "Batch screening run duration in seconds by stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "stage"},
	)
	batchRunsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "batch_runs_in_flight",
			Help:      "Number of in-flight batch screening runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "chunk_duration_seconds",
			Help:      "Classification duration per chunk in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "decisions_total",
			Help:      "Total classification decisions by stage and decision.",
		},
		[]string{"service", "stage", "decision"},
	)
	credentialAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "credential_attempts_total",
			Help:      "Total classification attempts by credential position.",
		},
		[]string{"service"},
	)
	quotaFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "worker",
			Name:      "quota_failures_total",
			Help:      "Total classification calls that exhausted every credential.",
		},
		[]string{"service", "stage"},
	)

	registry.MustRegister(
		batchRunsTotal,
		batchRunDuration,
		batchRunsInFlight,
		chunkDuration,
		decisionsTotal,
		credentialAttempts,
		quotaFailuresTotal,
	)

	return &WorkerMetrics{
		registry:           registry,
		batchRunsTotal:     batchRunsTotal,
		batchRunDuration:   batchRunDuration,
		batchRunsInFlight:  batchRunsInFlight,
		chunkDuration:      chunkDuration,
		decisionsTotal:     decisionsTotal,
		credentialAttempts: credentialAttempts,
		quotaFailuresTotal: quotaFailuresTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatchRun() {
	m.batchRunsInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatchRun(service, stage string, duration time.Duration, err error) {
	m.batchRunsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchRunsTotal.WithLabelValues(service, stage, status).Inc()
	m.batchRunDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunk(service, stage string, duration time.Duration) {
	m.chunkDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordDecision(service, stage, decision string) {
	if decision == "" {
		decision = "unknown"
	}
	m.decisionsTotal.WithLabelValues(service, stage, decision).Inc()
}

func (m *WorkerMetrics) RecordCredentialAttempt(service string) {
	m.credentialAttempts.WithLabelValues(service).Inc()
}

func (m *WorkerMetrics) RecordQuotaFailure(service, stage string) {
	m.quotaFailuresTotal.WithLabelValues(service, stage).Inc()
}
