package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/incentive-engine/incentive"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	evaluations    prometheus.Counter
	droppedSchemes *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	schemeReloads  *prometheus.CounterVec
	schemeVersion  prometheus.Gauge
	recordsLoaded  prometheus.Gauge
	logsPurged     prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)
	const ns = "incentive"

	return &Metrics{
		registry: reg,
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "http",
			Name: "requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "http",
			Name:    "request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		evaluations: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine",
			Name: "records_evaluated_total",
			Help: "Records evaluated against a scheme set",
		}),
		droppedSchemes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "engine",
			Name: "schemes_dropped_total",
			Help: "Schemes dropped from an evaluation",
		}, []string{"scheme_id"}),
		batchDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: "engine",
			Name:    "batch_duration_seconds",
			Help:    "Batch evaluation latency",
			Buckets: prometheus.DefBuckets,
		}),
		schemeReloads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "schemes",
			Name: "reloads_total",
			Help: "Scheme snapshot reloads by outcome",
		}, []string{"outcome"}),
		schemeVersion: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "schemes",
			Name: "snapshot_version",
			Help: "Version of the current scheme snapshot",
		}),
		recordsLoaded: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "records",
			Name: "loaded",
			Help: "Records in the current upload",
		}),
		logsPurged: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "logs",
			Name: "purged_total",
			Help: "Message log rows removed by retention",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// The observers below accept a nil receiver so handlers can run without
// metrics in tests.

func (m *Metrics) observeBatch(results []incentive.AggregateResult, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Add(float64(len(results)))
	m.batchDuration.Observe(d.Seconds())
	for _, agg := range results {
		m.observeDrops(agg)
	}
}

func (m *Metrics) observeEvaluation(agg incentive.AggregateResult) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	m.observeDrops(agg)
}

func (m *Metrics) observeDrops(agg incentive.AggregateResult) {
	for _, d := range agg.Dropped {
		m.droppedSchemes.WithLabelValues(string(d.SchemeID)).Inc()
	}
}

func (m *Metrics) observeReload(set *incentive.SchemeSet, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.schemeReloads.WithLabelValues("error").Inc()
		return
	}
	m.schemeReloads.WithLabelValues("ok").Inc()
	m.schemeVersion.Set(float64(set.Version()))
}

func (m *Metrics) observeRecords(n int) {
	if m == nil {
		return
	}
	m.recordsLoaded.Set(float64(n))
}

func (m *Metrics) observePurge(n int64) {
	if m == nil {
		return
	}
	m.logsPurged.Add(float64(n))
}

// ObserveReload can be installed as a factory.Watcher OnReload hook.
func (m *Metrics) ObserveReload(set *incentive.SchemeSet, err error) {
	m.observeReload(set, err)
}
