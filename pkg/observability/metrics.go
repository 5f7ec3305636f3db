package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the engine. Each instance owns its
// registry, so tests can build as many as they like. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Batch metrics
	Batches       *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	Operations    *prometheus.CounterVec
	Rollbacks     *prometheus.CounterVec

	// Router metrics
	Routes        *prometheus.CounterVec
	RouteDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the metric set under the given namespace
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of executed batches",
		},
		[]string{"domain", "outcome"},
	)

	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Batch execution time in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"domain"},
	)

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_operations_total",
			Help:      "Batch operations by phase and status",
		},
		[]string{"phase", "status"},
	)

	rollbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rollbacks_total",
			Help:      "Batches undone through the graph journal",
		},
		[]string{"domain"},
	)

	routes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Router calls by operation and result kind",
		},
		[]string{"operation", "kind"},
	)

	routeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_duration_seconds",
			Help:      "Router call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		batches,
		batchDuration,
		operations,
		rollbacks,
		routes,
		routeDuration,
		httpRequests,
		httpDuration,
	)

	return &Metrics{
		registry:      registry,
		Batches:       batches,
		BatchDuration: batchDuration,
		Operations:    operations,
		Rollbacks:     rollbacks,
		Routes:        routes,
		RouteDuration: routeDuration,
		HTTPRequests:  httpRequests,
		HTTPDuration:  httpDuration,
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBatch records one finished batch. outcome is success, failed,
// rolled_back or dry_run.
func (m *Metrics) ObserveBatch(domain, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(domain, outcome).Inc()
	m.BatchDuration.WithLabelValues(domain).Observe(elapsed.Seconds())
	if outcome == "rolled_back" {
		m.Rollbacks.WithLabelValues(domain).Inc()
	}
}

// ObserveOperation counts one batch operation
func (m *Metrics) ObserveOperation(phase string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Operations.WithLabelValues(phase, status).Inc()
}

// ObserveRoute records one router call. kind is empty on success.
func (m *Metrics) ObserveRoute(operation, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	m.Routes.WithLabelValues(operation, kind).Inc()
	m.RouteDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
