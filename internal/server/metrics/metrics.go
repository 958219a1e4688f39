// Package metrics exposes Prometheus collectors for the HTTP front end and
// the periodic consistency scan.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulsekeeper"

// Metrics owns a registry and the collectors registered in it.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reconcileRuns     *prometheus.CounterVec
	reconcileOrphans  prometheus.Gauge
	reconcileDangling prometheus.Gauge
	reconcileLastRun  prometheus.Gauge
}

// New builds a Metrics with its own registry, including the process and Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of consistency scans by outcome.",
		}, []string{"result"}),
		reconcileOrphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphaned_checks",
			Help:      "Checks not listed by their owning account at the last scan.",
		}),
		reconcileDangling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "dangling_references",
			Help:      "Account check-list entries without a matching check at the last scan.",
		}),
		reconcileLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed scan.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.reconcileRuns,
		m.reconcileOrphans,
		m.reconcileDangling,
		m.reconcileLastRun,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics collection.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordReconcile stores the outcome of a consistency scan.
func (m *Metrics) RecordReconcile(orphans, dangling int, at time.Time) {
	m.reconcileRuns.WithLabelValues("ok").Inc()
	m.reconcileOrphans.Set(float64(orphans))
	m.reconcileDangling.Set(float64(dangling))
	m.reconcileLastRun.Set(float64(at.Unix()))
}

// RecordReconcileFailure counts a scan that could not complete.
func (m *Metrics) RecordReconcileFailure() {
	m.reconcileRuns.WithLabelValues("error").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath maps a request path to a bounded label value.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	switch trimmed {
	case "":
		return "/"
	case "accounts", "tokens", "checks", "ping":
		return "/" + trimmed
	default:
		return "other"
	}
}
