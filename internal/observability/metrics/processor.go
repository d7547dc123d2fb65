package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProcessorMetrics tracks event processor action execution. It implements
// Recorder with the action description as the operation label.
type ProcessorMetrics struct {
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionErrors   *prometheus.CounterVec
	collectors     []prometheus.Collector
}

// NewProcessorMetrics creates and registers the processor metrics.
func NewProcessorMetrics(registry *prometheus.Registry) (*ProcessorMetrics, error) {
	m := &ProcessorMetrics{
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processor_actions_total",
			Help: "Actions executed for bus events",
		}, []string{"action", "status"}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "processor_action_duration_seconds",
			Help:    "Time taken to execute an action",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		}, []string{"action"}),
		ActionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processor_action_errors_total",
			Help: "Action failures by error category",
		}, []string{"action", "error_type"}),
	}
	m.collectors = []prometheus.Collector{m.ActionsTotal, m.ActionDuration, m.ActionErrors}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordOperation implements Recorder.
func (m *ProcessorMetrics) RecordOperation(operation, status string) {
	m.ActionsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *ProcessorMetrics) RecordDuration(operation string, seconds float64) {
	m.ActionDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *ProcessorMetrics) RecordError(operation, errorType string) {
	m.ActionErrors.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *ProcessorMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ProcessorMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
