// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the dashboard API.
type HTTPMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	cacheLookupsTotal   *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route template, e.g. /api/v1/trains
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_history_cache_lookups_total",
			Help: "History query cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
	m.collectors = []prometheus.Collector{m.httpRequestsTotal, m.httpRequestDuration, m.cacheLookupsTotal}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records one served request.
func (m *HTTPMetrics) RecordRequest(method, path, statusCode string, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordCacheLookup records a history cache hit or miss.
func (m *HTTPMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
