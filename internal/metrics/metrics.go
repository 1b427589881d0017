// Package metrics holds the Prometheus collectors exported on the metrics
// listener.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wishlister"

// Metrics groups every collector the service updates
type Metrics struct {
	registry *prometheus.Registry

	EnrichFetches  *prometheus.CounterVec
	EnrichDuration prometheus.Histogram
	ImportRows     *prometheus.CounterVec
	AccessDenied   prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	JobsSwept      prometheus.Counter
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EnrichFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_fetches_total",
			Help:      "Metadata fetches by outcome.",
		}, []string{"outcome"}),
		EnrichDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrich_fetch_duration_seconds",
			Help:      "Duration of metadata fetches.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10},
		}),
		ImportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported rows by source and result.",
		}, []string{"source", "result"}),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests refused by the access policy.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		JobsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_jobs_expired_total",
			Help:      "Import jobs removed after their TTL.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EnrichFetches,
		m.EnrichDuration,
		m.ImportRows,
		m.AccessDenied,
		m.HTTPRequests,
		m.HTTPDuration,
		m.JobsSwept,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one enrichment outcome. It is safe on a nil receiver.
func (m *Metrics) ObserveFetch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EnrichFetches.WithLabelValues(outcome).Inc()
	m.EnrichDuration.Observe(elapsed.Seconds())
}

// ObserveImport adds created and skipped row counts for source
func (m *Metrics) ObserveImport(source string, created, skipped int) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues(source, "created").Add(float64(created))
	m.ImportRows.WithLabelValues(source, "skipped").Add(float64(skipped))
}

// ObserveDenied counts a policy denial
func (m *Metrics) ObserveDenied() {
	if m == nil {
		return
	}
	m.AccessDenied.Inc()
}

// ObserveRequest records a served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSwept counts expired import jobs
func (m *Metrics) ObserveSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsSwept.Add(float64(n))
}
