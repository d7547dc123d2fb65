package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics tracks detection frames read from the input source.
type IngestMetrics struct {
	FramesReceived *prometheus.CounterVec
	DecodeErrors   *prometheus.CounterVec
	FrameBytes     prometheus.Histogram
	collectors     []prometheus.Collector
}

// NewIngestMetrics creates and registers the ingest metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_frames_received_total",
			Help: "Detection frames received from the input source",
		}, []string{"source"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_decode_errors_total",
			Help: "Input records that could not be decoded",
		}, []string{"source"}),
		FrameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_frame_size_bytes",
			Help:    "Size of encoded detection frames",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount12),
		}),
	}
	m.collectors = []prometheus.Collector{m.FramesReceived, m.DecodeErrors, m.FrameBytes}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordFrame counts a decoded frame.
func (m *IngestMetrics) RecordFrame(source string, size int) {
	m.FramesReceived.WithLabelValues(source).Inc()
	m.FrameBytes.Observe(float64(size))
}

// RecordDecodeError counts a malformed record.
func (m *IngestMetrics) RecordDecodeError(source string) {
	m.DecodeErrors.WithLabelValues(source).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
