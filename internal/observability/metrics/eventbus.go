package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventBusMetrics tracks event bus throughput and drop-oldest evictions.
type EventBusMetrics struct {
	Published   *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Subscribers prometheus.Gauge
	collectors  []prometheus.Collector
}

// NewEventBusMetrics creates and registers the event bus metrics.
func NewEventBusMetrics(registry *prometheus.Registry) (*EventBusMetrics, error) {
	m := &EventBusMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Events accepted by the event bus",
		}, []string{"type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_events_dropped_total",
			Help: "Events evicted from a full subscription queue",
		}, []string{"subscriber"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventbus_subscribers",
			Help: "Current number of event bus subscriptions",
		}),
	}
	m.collectors = []prometheus.Collector{m.Published, m.Dropped, m.Subscribers}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPublished counts a published event.
func (m *EventBusMetrics) RecordPublished(eventType string) {
	m.Published.WithLabelValues(eventType).Inc()
}

// RecordDropped counts an eviction on the named subscription.
func (m *EventBusMetrics) RecordDropped(subscriber string) {
	m.Dropped.WithLabelValues(subscriber).Inc()
}

// SetSubscribers records the subscription count.
func (m *EventBusMetrics) SetSubscribers(n int) {
	m.Subscribers.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *EventBusMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *EventBusMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
