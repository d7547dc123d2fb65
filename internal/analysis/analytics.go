package analysis

import (
	"time"

	"github.com/tphakala/train-spotter/internal/detection"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/geometry"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/roi"
	"github.com/tphakala/train-spotter/internal/tracking"
	"github.com/tphakala/train-spotter/internal/train"
)

// Publisher receives the events produced while processing frames.
type Publisher interface {
	Publish(ev events.Event)
}

// Metrics receives per-frame instrumentation.
type Metrics interface {
	RecordFrame(elapsed time.Duration, detections int)
	SetCoverage(coverage float64)
	SetTrainActive(active bool)
	SetActiveTracks(byLane map[string]int)
	RecordEvent(eventType string)
}

// Config controls frame analysis.
type Config struct {
	Train        train.Config
	StaleTimeout time.Duration

	// TrainLabels selects detections that contribute to train zone coverage.
	TrainLabels detection.LabelSet
	// VehicleLabels selects detections handed to the lane track registry.
	VehicleLabels detection.LabelSet

	// MinTrainBoxArea drops train detections smaller than this many square
	// pixels. Zero disables the filter.
	MinTrainBoxArea float64

	// ApplyExclusionZones drops detections centred inside an exclusion zone.
	ApplyExclusionZones bool
}

// DefaultTrainLabels are the labels counted towards train zone coverage.
var DefaultTrainLabels = detection.NewLabelSet(detection.LabelTrain)

// DefaultVehicleLabels are the labels tracked in road lanes.
var DefaultVehicleLabels = detection.NewLabelSet(
	detection.LabelVehicle, detection.LabelCar, detection.LabelTruck,
	detection.LabelBus, detection.LabelMotorcycle, detection.LabelBicycle,
)

// DefaultConfig returns the stock analysis configuration.
func DefaultConfig() Config {
	return Config{
		Train:         train.DefaultConfig(),
		StaleTimeout:  tracking.DefaultStaleTimeout,
		TrainLabels:   DefaultTrainLabels,
		VehicleLabels: DefaultVehicleLabels,
	}
}

// Analytics turns frames of detections into train and vehicle events. It
// is driven from a single goroutine and is not safe for concurrent use.
type Analytics struct {
	model     *roi.Model
	publisher Publisher
	cfg       Config

	detector *train.Detector
	registry *tracking.Registry

	log     logger.Logger
	metrics Metrics

	coverage  float64
	frames    uint64
	lastFrame time.Time
}

// Option configures Analytics.
type Option func(*Analytics)

// WithLogger sets the logger used by the orchestrator and its detector.
func WithLogger(l logger.Logger) Option {
	return func(a *Analytics) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m Metrics) Option {
	return func(a *Analytics) { a.metrics = m }
}

// NewAnalytics builds the orchestrator for one camera.
func NewAnalytics(model *roi.Model, publisher Publisher, cfg Config, opts ...Option) (*Analytics, error) {
	if model == nil {
		return nil, errors.Newf("region model is required").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if publisher == nil {
		return nil, errors.Newf("event publisher is required").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := cfg.Train.Validate(); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}

	a := &Analytics{
		model:     model,
		publisher: publisher,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Global().Module("analysis")
	}

	a.detector = train.NewDetector(cfg.Train, train.WithLogger(a.log.Module("train")))
	a.registry = tracking.NewRegistry(model, cfg.StaleTimeout)

	if model.TrainZoneArea() <= 0 {
		a.log.Warn("train zone has no area, coverage will always be zero",
			logger.String("camera_id", model.CameraID()))
	}

	return a, nil
}

// ProcessFrame updates train and vehicle state from one frame and publishes
// any resulting events.
func (a *Analytics) ProcessFrame(frame *detection.Frame) {
	start := time.Now()
	ts := frame.Timestamp

	a.coverage = a.trainCoverage(frame.Detections)
	if ev := a.detector.Update(a.coverage, ts); ev != nil {
		a.publish(*ev)
	}

	for i := range frame.Detections {
		d := &frame.Detections[i]
		if !a.cfg.VehicleLabels.Contains(d.Label) {
			continue
		}
		if a.excluded(d) {
			continue
		}
		if !a.registry.HandleDetection(d, ts) {
			a.log.Trace("detection outside all lanes",
				logger.Int64("track_id", d.TrackID),
				logger.String("label", d.ClassLabel))
		}
	}

	for _, v := range a.registry.FinalizeTracks(ts) {
		a.publish(events.NewVehicleEvent(v, ts))
	}

	a.frames++
	a.lastFrame = ts

	if a.metrics != nil {
		a.metrics.RecordFrame(time.Since(start), len(frame.Detections))
		a.metrics.SetCoverage(a.coverage)
		a.metrics.SetTrainActive(a.detector.Active())
		a.metrics.SetActiveTracks(a.registry.CountsByLane())
	}
}

// trainCoverage sums the overlap of train detections with the train zone
// bounds and divides by the zone's polygon area, capped at 1.
func (a *Analytics) trainCoverage(dets []detection.Detection) float64 {
	area := a.model.TrainZoneArea()
	if area <= 0 {
		return 0
	}
	zone := a.model.TrainZoneBounds()

	var covered float64
	for i := range dets {
		d := &dets[i]
		if !a.cfg.TrainLabels.Contains(d.Label) {
			continue
		}
		if a.cfg.MinTrainBoxArea > 0 && d.Box.Area() < a.cfg.MinTrainBoxArea {
			continue
		}
		if a.excluded(d) {
			continue
		}
		covered += geometry.IntersectionArea(d.NormalizedBounds(), zone)
	}

	return min(covered/area, 1)
}

func (a *Analytics) excluded(d *detection.Detection) bool {
	return a.cfg.ApplyExclusionZones && a.model.InExclusionZone(d.Center())
}

func (a *Analytics) publish(ev events.Event) {
	a.publisher.Publish(ev)
	if a.metrics != nil {
		a.metrics.RecordEvent(string(ev.Type))
	}
}

// Coverage returns the coverage ratio of the last processed frame.
func (a *Analytics) Coverage() float64 { return a.coverage }

// TrainActive reports whether a train pass is in progress.
func (a *Analytics) TrainActive() bool { return a.detector.Active() }

// TrainStartedAt returns the start of the train pass in progress.
func (a *Analytics) TrainStartedAt() (time.Time, bool) { return a.detector.StartedAt() }

// ActiveTracks returns the number of vehicles currently tracked in lanes.
func (a *Analytics) ActiveTracks() int { return a.registry.Len() }

// Frames returns the number of frames processed.
func (a *Analytics) Frames() uint64 { return a.frames }

// LastFrameTime returns the timestamp of the last processed frame.
func (a *Analytics) LastFrameTime() time.Time { return a.lastFrame }

// Model returns the region model in use.
func (a *Analytics) Model() *roi.Model { return a.model }
