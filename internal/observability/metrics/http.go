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
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	dedupeRunsTotal      *prometheus.CounterVec
	dedupeGroupsFound    *prometheus.HistogramVec
	exportsTotal         *prometheus.CounterVec
	manualDecisionsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarai",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scholarai",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	dedupeRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "dedupe",
			Name:      "runs_total",
			Help:      "Total duplicate-detection passes by status.",
		},
		[]string{"service", "status"},
	)
	dedupeGroupsFound := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarai",
			Subsystem: "dedupe",
			Name:      "groups_found",
			Help:      "Distribution of duplicate groups found per pass.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "export",
			Name:      "reports_total",
			Help:      "Total report exports by status.",
		},
		[]string{"service", "status"},
	)
	manualDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarai",
			Subsystem: "screening",
			Name:      "manual_decisions_total",
			Help:      "Total manual screening decisions by stage and status.",
		},
		[]string{"service", "stage", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		dedupeRunsTotal,
		dedupeGroupsFound,
		exportsTotal,
		manualDecisionsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		dedupeRunsTotal:      dedupeRunsTotal,
		dedupeGroupsFound:    dedupeGroupsFound,
		exportsTotal:         exportsTotal,
		manualDecisionsTotal: manualDecisionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses id-carrying paths to keep label cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/records/"):
		return "/v1/records/{record_id}"
	case strings.HasPrefix(path, "/v1/screening/"):
		rest := strings.TrimPrefix(path, "/v1/screening/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/v1/screening/{stage}/" + rest[idx+1:]
		}
		return "/v1/screening/{stage}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordDedupeRun(service string, groups int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dedupeRunsTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.dedupeGroupsFound.WithLabelValues(service).Observe(float64(groups))
	}
}

func (m *HTTPServerMetrics) RecordExport(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportsTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordManualDecision(service, stage, status string) {
	m.manualDecisionsTotal.WithLabelValues(service, stage, status).Inc()
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
