package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains all Prometheus metrics related to MQTT operations.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesDelivered *prometheus.CounterVec
	MessagesReceived  prometheus.Counter
	Errors            *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	LastConnectTime   prometheus.Gauge
	MessageSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
	collectors        []prometheus.Collector
}

// NewMQTTMetrics creates a new instance of MQTTMetrics and registers it.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all metrics for MQTTMetrics.
func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.MessagesDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqtt_messages_delivered_total",
		Help: "Total number of MQTT messages successfully delivered",
	}, []string{"event_type"})

	m.MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_messages_received_total",
		Help: "Total number of MQTT messages received on subscribed topics",
	})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqtt_errors_total",
		Help: "Total number of MQTT errors encountered",
	}, []string{"operation"})

	m.ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts",
	})

	m.LastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection",
	})

	m.MessageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_message_size_bytes",
		Help:    "Size of MQTT messages in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})

	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	m.collectors = []prometheus.Collector{
		m.ConnectionStatus, m.MessagesDelivered, m.MessagesReceived, m.Errors,
		m.ReconnectAttempts, m.LastConnectTime, m.MessageSize, m.PublishLatency,
	}
}

// UpdateConnectionStatus updates the MQTT connection status and last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.SetToCurrentTime()
	} else {
		m.ConnectionStatus.Set(0)
	}
}

// IncrementMessagesDelivered counts a delivered message for an event type.
func (m *MQTTMetrics) IncrementMessagesDelivered(eventType string) {
	m.MessagesDelivered.WithLabelValues(eventType).Inc()
}

// IncrementMessagesReceived counts an inbound message.
func (m *MQTTMetrics) IncrementMessagesReceived() {
	m.MessagesReceived.Inc()
}

// IncrementErrors counts an error for operation (connect, publish, subscribe, unsubscribe).
func (m *MQTTMetrics) IncrementErrors(operation string) {
	m.Errors.WithLabelValues(operation).Inc()
}

// IncrementReconnectAttempts increments the count of MQTT reconnection attempts.
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.ReconnectAttempts.Inc()
}

// ObserveMessageSize records the size of an MQTT message.
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes int) {
	m.MessageSize.Observe(float64(sizeBytes))
}

// StartPublishTimer starts a timer for measuring publish latency.
func (m *MQTTMetrics) StartPublishTimer() *PublishTimer {
	return &PublishTimer{startTime: time.Now(), metrics: m}
}

// PublishTimer measures one publish.
type PublishTimer struct {
	startTime time.Time
	metrics   *MQTTMetrics
}

// ObserveDuration stops the timer and records the duration.
func (pt *PublishTimer) ObserveDuration() {
	pt.metrics.PublishLatency.Observe(time.Since(pt.startTime).Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
