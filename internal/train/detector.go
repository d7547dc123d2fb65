// Package train implements the hysteresis state machine that turns
// per-frame train zone coverage into train pass start and end events.
package train

import (
	"fmt"
	"time"

	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
)

// Detection defaults.
const (
	DefaultCoverageThreshold = 0.6
	DefaultHitThreshold      = 5
	DefaultMissThreshold     = 10
	DefaultMinDuration       = 2 * time.Second
)

// Config holds the hysteresis thresholds.
type Config struct {
	// CoverageThreshold is the coverage ratio at or above which a frame
	// counts as a hit.
	CoverageThreshold float64
	// HitThreshold is the number of consecutive hits that starts a train.
	HitThreshold int
	// MissThreshold is the number of consecutive misses that ends one.
	MissThreshold int
	// MinDuration is only used to approximate a start time when an end
	// has to be emitted without one.
	MinDuration time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		CoverageThreshold: DefaultCoverageThreshold,
		HitThreshold:      DefaultHitThreshold,
		MissThreshold:     DefaultMissThreshold,
		MinDuration:       DefaultMinDuration,
	}
}

// Validate reports the first out of range threshold.
func (c Config) Validate() error {
	switch {
	case c.CoverageThreshold < 0 || c.CoverageThreshold > 1:
		return fmt.Errorf("coverage threshold %g must be between 0 and 1", c.CoverageThreshold)
	case c.HitThreshold < 1:
		return fmt.Errorf("hit threshold %d must be at least 1", c.HitThreshold)
	case c.MissThreshold < 1:
		return fmt.Errorf("miss threshold %d must be at least 1", c.MissThreshold)
	case c.MinDuration < 0:
		return fmt.Errorf("minimum duration %s must not be negative", c.MinDuration)
	}
	return nil
}

// Detector tracks whether a train is currently occupying the train zone.
// It is not safe for concurrent use.
type Detector struct {
	cfg Config
	log logger.Logger

	active       bool
	hits         int
	misses       int
	currentStart *time.Time
	lastCoverage float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the detector logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDetector returns a detector in the cleared state.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Global().Module("train")
	}
	return d
}

// Update feeds one frame's coverage ratio observed at ts. It returns the
// TRAIN_STARTED or TRAIN_ENDED event caused by this frame, or nil.
func (d *Detector) Update(coverage float64, ts time.Time) *events.Event {
	if coverage >= d.cfg.CoverageThreshold {
		d.hits++
		d.misses = 0
		d.lastCoverage = coverage

		if !d.active && d.hits >= d.cfg.HitThreshold {
			d.active = true
			start := ts
			d.currentStart = &start

			ev := events.NewTrainStarted(events.TrainStarted{
				TrainID:   trainID(start),
				StartedAt: start,
			})
			d.log.Info("train started",
				logger.Time("started_at", start),
				logger.Float64("coverage", coverage))
			return &ev
		}
		return nil
	}

	if !d.active {
		// isolated hits below the activation threshold do not accumulate
		d.hits = 0
		d.lastCoverage = 0
		return nil
	}

	d.misses++
	if d.misses < d.cfg.MissThreshold {
		return nil
	}

	var start time.Time
	if d.currentStart != nil {
		start = *d.currentStart
	} else {
		start = ts.Add(-d.cfg.MinDuration)
		d.log.Warn("train ended without a recorded start, approximating",
			logger.Time("ended_at", ts),
			logger.Duration("min_duration", d.cfg.MinDuration))
	}

	duration := max(ts.Sub(start), 0)
	payload := events.TrainEvent{
		TrainID:       trainID(start),
		StartedAt:     start,
		EndedAt:       ts,
		Duration:      duration,
		CoverageRatio: d.lastCoverage,
	}

	d.active = false
	d.hits = 0
	d.misses = 0
	d.lastCoverage = 0
	d.currentStart = nil

	d.log.Info("train ended",
		logger.String("train_id", payload.TrainID),
		logger.Duration("duration", duration),
		logger.Float64("coverage", payload.CoverageRatio))

	ev := events.NewTrainEnded(payload)
	return &ev
}

// Active reports whether a train is currently present.
func (d *Detector) Active() bool { return d.active }

// StartedAt returns the start of the active train.
func (d *Detector) StartedAt() (time.Time, bool) {
	if d.currentStart == nil {
		return time.Time{}, false
	}
	return *d.currentStart, true
}

// LastCoverage returns the last coverage that counted as a hit during the
// current pass, or 0 when cleared.
func (d *Detector) LastCoverage() float64 { return d.lastCoverage }

// Config returns the thresholds in use.
func (d *Detector) Config() Config { return d.cfg }

func trainID(start time.Time) string {
	return fmt.Sprintf("train-%d", start.Unix())
}
