package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/geometry"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/roi"
	"github.com/tphakala/train-spotter/internal/train"
)

var t0 = time.Unix(1_718_000_000, 0)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) { p.events = append(p.events, ev) }

func (p *recordingPublisher) types() []events.EventType {
	out := make([]events.EventType, len(p.events))
	for i := range p.events {
		out[i] = p.events[i].Type
	}
	return out
}

type recordingMetrics struct {
	frames   int
	coverage float64
	active   bool
	tracks   map[string]int
	events   map[string]int
}

func (m *recordingMetrics) RecordFrame(time.Duration, int) { m.frames++ }
func (m *recordingMetrics) SetCoverage(c float64)          { m.coverage = c }
func (m *recordingMetrics) SetTrainActive(a bool)          { m.active = a }
func (m *recordingMetrics) SetActiveTracks(t map[string]int) { m.tracks = t }
func (m *recordingMetrics) RecordEvent(t string) {
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[t]++
}

func rect(x0, y0, x1, y1 float64) []geometry.Point {
	return []geometry.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// testModel has a train zone over the top half of the frame and one road
// lane over the bottom half.
func testModel(t *testing.T) *roi.Model {
	t.Helper()
	m, err := roi.NewModel(&roi.Config{
		CameraID: "test",
		TrainROI: &roi.Region{Label: "tracks", Points: rect(0, 0, 1, 0.5)},
		RoadLanes: []roi.Lane{
			{ID: "road", Polygon: roi.Region{Label: "road", Points: rect(0, 0.5, 1, 1)}},
		},
		ExclusionZones: []roi.Region{{Label: "sign", Points: rect(0.9, 0.5, 1, 1)}},
	})
	require.NoError(t, err)
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Train = train.Config{CoverageThreshold: 0.5, HitThreshold: 2, MissThreshold: 2, MinDuration: 2 * time.Second}
	cfg.StaleTimeout = time.Second
	return cfg
}

func newTestAnalytics(t *testing.T, cfg Config, opts ...Option) (*Analytics, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	opts = append([]Option{WithLogger(logger.NewSlogLogger(nil, logger.LogLevelError, nil))}, opts...)
	a, err := NewAnalytics(testModel(t), pub, cfg, opts...)
	require.NoError(t, err)
	return a, pub
}

// det builds a detection on a 1000x1000 frame from normalized corners.
func det(id int64, label string, x0, y0, x1, y1 float64) detection.Detection {
	return detection.New(id, label, 0.9,
		detection.BoundingBox{Left: x0 * 1000, Top: y0 * 1000, Width: (x1 - x0) * 1000, Height: (y1 - y0) * 1000},
		1000, 1000)
}

func frameAt(ts time.Time, dets ...detection.Detection) *detection.Frame {
	return &detection.Frame{Timestamp: ts, CameraID: "test", Detections: dets}
}

func TestCoverageRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dets []detection.Detection
		want float64
	}{
		{"no detections", nil, 0},
		{"half the zone", []detection.Detection{det(1, "train", 0, 0, 0.5, 0.5)}, 0.5},
		{"partially outside the zone", []detection.Detection{det(1, "train", 0, 0.25, 1, 0.75)}, 0.5},
		{"overlapping boxes cap at one", []detection.Detection{
			det(1, "train", 0, 0, 1, 0.5),
			det(2, "train", 0, 0, 1, 0.5),
		}, 1},
		{"vehicles do not count", []detection.Detection{det(1, "car", 0, 0, 1, 0.5)}, 0},
		{"unknown labels are ignored", []detection.Detection{det(1, "zeppelin", 0, 0, 1, 0.5)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _ := newTestAnalytics(t, testConfig())
			a.ProcessFrame(frameAt(t0, tt.dets...))
			assert.InDelta(t, tt.want, a.Coverage(), 1e-9)
		})
	}
}

func TestZeroAreaTrainZoneReportsNoCoverage(t *testing.T) {
	t.Parallel()

	m, err := roi.NewModel(&roi.Config{
		TrainROI: &roi.Region{Points: []geometry.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}}},
	})
	require.NoError(t, err)

	a, err := NewAnalytics(m, &recordingPublisher{}, testConfig(),
		WithLogger(logger.NewSlogLogger(nil, logger.LogLevelError, nil)))
	require.NoError(t, err)

	a.ProcessFrame(frameAt(t0, det(1, "train", 0, 0, 1, 1)))
	assert.Zero(t, a.Coverage())
}

func TestMinTrainBoxArea(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTrainBoxArea = 100_000
	a, _ := newTestAnalytics(t, cfg)

	// 200x200 px box is below the minimum
	a.ProcessFrame(frameAt(t0, det(1, "train", 0, 0, 0.2, 0.2)))
	assert.Zero(t, a.Coverage())

	// 1000x500 px box passes
	a.ProcessFrame(frameAt(t0.Add(time.Second), det(1, "train", 0, 0, 1, 0.5)))
	assert.InDelta(t, 1, a.Coverage(), 1e-9)
}

func TestTrainPassPublishesStartAndEnd(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	a, pub := newTestAnalytics(t, testConfig(), WithMetrics(metrics))
	full := det(1, "train", 0, 0, 1, 0.5)

	a.ProcessFrame(frameAt(t0, full))
	assert.Empty(t, pub.events)
	a.ProcessFrame(frameAt(t0.Add(time.Second), full))
	require.Len(t, pub.events, 1)
	assert.True(t, a.TrainActive())
	assert.True(t, metrics.active)

	a.ProcessFrame(frameAt(t0.Add(2*time.Second), full))
	a.ProcessFrame(frameAt(t0.Add(3 * time.Second)))
	a.ProcessFrame(frameAt(t0.Add(4 * time.Second)))

	assert.Equal(t, []events.EventType{events.TypeTrainStarted, events.TypeTrainEnded}, pub.types())
	ended, ok := pub.events[1].TrainEnded()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), ended.StartedAt)
	assert.Equal(t, t0.Add(4*time.Second), ended.EndedAt)
	assert.Equal(t, 3*time.Second, ended.Duration)
	assert.InDelta(t, 1, ended.CoverageRatio, 1e-9)

	assert.False(t, a.TrainActive())
	assert.Equal(t, 5, metrics.frames)
	assert.Equal(t, 1, metrics.events[string(events.TypeTrainEnded)])
	assert.Equal(t, uint64(5), a.Frames())
	assert.Equal(t, t0.Add(4*time.Second), a.LastFrameTime())
}

func TestVehicleDwellPublishesOneEvent(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	a, pub := newTestAnalytics(t, testConfig(), WithMetrics(metrics))
	car := det(7, "car", 0.4, 0.7, 0.5, 0.8)

	for i := range 4 {
		a.ProcessFrame(frameAt(t0.Add(time.Duration(i)*250*time.Millisecond), car))
	}
	assert.Equal(t, 1, a.ActiveTracks())
	assert.Equal(t, map[string]int{"road": 1}, metrics.tracks)
	assert.Empty(t, pub.events)

	last := t0.Add(750 * time.Millisecond)
	finalizedAt := last.Add(time.Second)
	a.ProcessFrame(frameAt(finalizedAt))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, events.TypeVehicleEvent, ev.Type)
	assert.Equal(t, finalizedAt, ev.Timestamp)

	v, ok := ev.Vehicle()
	require.True(t, ok)
	assert.Equal(t, int64(7), v.TrackID)
	assert.Equal(t, "road", v.LaneID)
	assert.Equal(t, "car", v.ClassLabel)
	assert.Equal(t, t0, v.EnteredAt)
	assert.Equal(t, last, v.ExitedAt)
	assert.Equal(t, 750*time.Millisecond, v.Duration)
	assert.Zero(t, a.ActiveTracks())
	assert.Empty(t, metrics.tracks)

	a.ProcessFrame(frameAt(finalizedAt.Add(time.Minute)))
	assert.Len(t, pub.events, 1)
}

func TestVehiclesOutsideLanesAreIgnored(t *testing.T) {
	t.Parallel()

	a, _ := newTestAnalytics(t, testConfig())
	a.ProcessFrame(frameAt(t0,
		det(1, "car", 0.4, 0.1, 0.5, 0.2),
		det(2, "person", 0.4, 0.7, 0.5, 0.8),
	))
	assert.Zero(t, a.ActiveTracks())
}

func TestUnknownPreassignedLaneProducesNoEvent(t *testing.T) {
	t.Parallel()

	a, pub := newTestAnalytics(t, testConfig())
	ghost := det(11, "car", 0.4, 0.7, 0.5, 0.8)
	ghost.LaneID = "ghost-lane"

	a.ProcessFrame(frameAt(t0, ghost))
	assert.Zero(t, a.ActiveTracks())

	a.ProcessFrame(frameAt(t0.Add(5 * time.Second)))
	assert.Empty(t, pub.events)
}

func TestExclusionZones(t *testing.T) {
	t.Parallel()

	inZone := det(3, "truck", 0.92, 0.7, 0.98, 0.8)

	a, _ := newTestAnalytics(t, testConfig())
	a.ProcessFrame(frameAt(t0, inZone))
	assert.Equal(t, 1, a.ActiveTracks(), "exclusion zones are off by default")

	cfg := testConfig()
	cfg.ApplyExclusionZones = true
	b, _ := newTestAnalytics(t, cfg)
	b.ProcessFrame(frameAt(t0, inZone))
	assert.Zero(t, b.ActiveTracks())
}

func TestNewAnalyticsValidation(t *testing.T) {
	t.Parallel()

	_, err := NewAnalytics(nil, &recordingPublisher{}, testConfig())
	require.Error(t, err)

	_, err = NewAnalytics(testModel(t), nil, testConfig())
	require.Error(t, err)

	cfg := testConfig()
	cfg.Train.HitThreshold = 0
	_, err = NewAnalytics(testModel(t), &recordingPublisher{}, cfg)
	require.Error(t, err)
}

func TestAnalyticsWithEventBus(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(events.WithLogger(logger.NewSlogLogger(nil, logger.LogLevelError, nil)))
	defer bus.Stop()
	sub := bus.Subscribe(8)

	a, err := NewAnalytics(testModel(t), bus, testConfig(),
		WithLogger(logger.NewSlogLogger(nil, logger.LogLevelError, nil)))
	require.NoError(t, err)

	full := det(1, "train", 0, 0, 1, 0.5)
	a.ProcessFrame(frameAt(t0, full))
	a.ProcessFrame(frameAt(t0.Add(time.Second), full))

	ev, ok := sub.Receive(time.Second)
	require.True(t, ok)
	started, ok := ev.TrainStarted()
	require.True(t, ok)
	assert.Equal(t, "train-1718000001", started.TrainID)
}
