package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalyticsMetrics tracks per-frame processing of the analytics orchestrator.
type AnalyticsMetrics struct {
	FramesProcessed prometheus.Counter
	DetectionsSeen  prometheus.Counter
	FrameDuration   prometheus.Histogram
	TrainCoverage   prometheus.Gauge
	TrainActive     prometheus.Gauge
	ActiveTracks    *prometheus.GaugeVec
	EventsEmitted   *prometheus.CounterVec
	collectors      []prometheus.Collector

	lanesMu sync.Mutex
	lanes   map[string]struct{} // lanes that have reported tracks
}

// NewAnalyticsMetrics creates and registers the analytics metrics.
func NewAnalyticsMetrics(registry *prometheus.Registry) (*AnalyticsMetrics, error) {
	m := &AnalyticsMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnalyticsMetrics) initMetrics() {
	m.FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_frames_processed_total",
		Help: "Total number of detection frames processed",
	})
	m.DetectionsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_detections_total",
		Help: "Total number of detections across all processed frames",
	})
	m.FrameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_frame_duration_seconds",
		Help:    "Time spent processing one frame",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})
	m.TrainCoverage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analytics_train_zone_coverage_ratio",
		Help: "Train zone coverage ratio of the last frame",
	})
	m.TrainActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analytics_train_active",
		Help: "1 while a train pass is in progress",
	})
	m.ActiveTracks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "analytics_active_vehicle_tracks",
		Help: "Number of vehicles currently tracked per road lane",
	}, []string{"lane"})
	m.lanes = make(map[string]struct{})
	m.EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_emitted_total",
		Help: "Events emitted by the analytics orchestrator",
	}, []string{"type"})

	m.collectors = []prometheus.Collector{
		m.FramesProcessed, m.DetectionsSeen, m.FrameDuration,
		m.TrainCoverage, m.TrainActive, m.ActiveTracks, m.EventsEmitted,
	}
}

// RecordFrame counts a processed frame and its detections.
func (m *AnalyticsMetrics) RecordFrame(elapsed time.Duration, detections int) {
	m.FramesProcessed.Inc()
	m.DetectionsSeen.Add(float64(detections))
	m.FrameDuration.Observe(elapsed.Seconds())
}

// SetCoverage records the last coverage ratio.
func (m *AnalyticsMetrics) SetCoverage(coverage float64) {
	m.TrainCoverage.Set(coverage)
}

// SetTrainActive records the detector state.
func (m *AnalyticsMetrics) SetTrainActive(active bool) {
	if active {
		m.TrainActive.Set(1)
		return
	}
	m.TrainActive.Set(0)
}

// SetActiveTracks records the active track count per lane. Lanes seen
// earlier but absent from byLane drop to zero.
func (m *AnalyticsMetrics) SetActiveTracks(byLane map[string]int) {
	m.lanesMu.Lock()
	defer m.lanesMu.Unlock()

	for lane := range m.lanes {
		if _, ok := byLane[lane]; !ok {
			m.ActiveTracks.WithLabelValues(lane).Set(0)
		}
	}
	for lane, n := range byLane {
		m.lanes[lane] = struct{}{}
		m.ActiveTracks.WithLabelValues(lane).Set(float64(n))
	}
}

// RecordEvent counts an emitted event by type.
func (m *AnalyticsMetrics) RecordEvent(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *AnalyticsMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *AnalyticsMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
