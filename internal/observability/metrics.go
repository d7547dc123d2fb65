// Package observability exposes the Prometheus metrics of the train spotter.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/train-spotter/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Analytics *metrics.AnalyticsMetrics
	EventBus  *metrics.EventBusMetrics
	Ingest    *metrics.IngestMetrics
	Processor *metrics.ProcessorMetrics
	Datastore *metrics.DatastoreMetrics
	MQTT      *metrics.MQTTMetrics
	HTTP      *metrics.HTTPMetrics
}

// NewMetrics creates a new instance of Metrics on its own registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	analyticsMetrics, err := metrics.NewAnalyticsMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics metrics: %w", err)
	}

	eventBusMetrics, err := metrics.NewEventBusMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus metrics: %w", err)
	}

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	processorMetrics, err := metrics.NewProcessorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Analytics: analyticsMetrics,
		EventBus:  eventBusMetrics,
		Ingest:    ingestMetrics,
		Processor: processorMetrics,
		Datastore: datastoreMetrics,
		MQTT:      mqttMetrics,
		HTTP:      httpMetrics,
	}, nil
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}
