// Package overlay keeps the state shown on the on-screen status display and
// renders it as text lines.
package overlay

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
)

// Status line values.
const (
	StatusTrainPassing = "TRAIN PASSING"
	StatusTrackClear   = "TRACK CLEAR"
)

// Snapshot is a copy of the overlay state.
type Snapshot struct {
	TrainActive         bool           `json:"train_active"`
	TrainStartedAt      *time.Time     `json:"train_started_at,omitempty"`
	ElapsedSeconds      float64        `json:"elapsed_seconds"`
	LastTrainDuration   time.Duration  `json:"-"`
	VehicleCountsByLane map[string]int `json:"vehicle_counts_by_lane"`
}

// Overlay projects bus events onto display state. Vehicle counts are
// cumulative per lane since start.
type Overlay struct {
	sub *events.Subscription
	log logger.Logger
	now func() time.Time

	mu                sync.RWMutex
	trainActive       bool
	trainStartedAt    time.Time
	lastTrainDuration time.Duration
	vehicleCounts     map[string]int

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	started   bool
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithClock replaces time.Now for elapsed time computation.
func WithClock(now func() time.Time) Option {
	return func(o *Overlay) { o.now = now }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Overlay) {
		if l != nil {
			o.log = l
		}
	}
}

// New subscribes to bus. A non-positive capacity uses the bus default.
func New(bus *events.Bus, capacity int, opts ...Option) *Overlay {
	o := &Overlay{
		log:           logger.Global().Module("overlay"),
		now:           time.Now,
		vehicleCounts: make(map[string]int),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sub = bus.Subscribe(capacity, events.WithName("overlay"))
	return o
}

// Start consumes events until ctx is cancelled, Stop is called or the bus
// stops.
func (o *Overlay) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		o.started = true
		go o.run(ctx)
	})
}

func (o *Overlay) run(ctx context.Context) {
	defer close(o.done)
	for {
		ev, ok := o.sub.ReceiveContext(ctx)
		if !ok {
			return
		}
		o.Apply(ev)
	}
}

// Stop unsubscribes and waits for the consumer to exit.
func (o *Overlay) Stop() {
	o.stopOnce.Do(func() {
		o.sub.Close()
		o.startOnce.Do(func() {})
		if o.started {
			<-o.done
		}
	})
}

// Apply updates the state from one event.
func (o *Overlay) Apply(ev events.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev.Type {
	case events.TypeTrainStarted:
		o.trainActive = true
		o.trainStartedAt = ev.Timestamp
		if p, ok := ev.TrainStarted(); ok && !p.StartedAt.IsZero() {
			o.trainStartedAt = p.StartedAt
		}
	case events.TypeTrainEnded:
		o.trainActive = false
		o.trainStartedAt = time.Time{}
		if p, ok := ev.TrainEnded(); ok {
			o.lastTrainDuration = p.Duration
		}
	case events.TypeVehicleEvent:
		if p, ok := ev.Vehicle(); ok {
			o.vehicleCounts[p.LaneID]++
		}
	case events.TypeHeartbeat:
	default:
		o.log.Debug("ignoring event", logger.String("type", string(ev.Type)))
	}
}

// Snapshot returns a copy of the current state. While a train is passing
// ElapsedSeconds is measured from its start to now, otherwise it is the
// duration of the last train.
func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Snapshot{
		TrainActive:         o.trainActive,
		LastTrainDuration:   o.lastTrainDuration,
		ElapsedSeconds:      o.lastTrainDuration.Seconds(),
		VehicleCountsByLane: maps.Clone(o.vehicleCounts),
	}
	if o.trainActive && !o.trainStartedAt.IsZero() {
		started := o.trainStartedAt
		s.TrainStartedAt = &started
		s.ElapsedSeconds = max(o.now().Sub(started).Seconds(), 0)
	}
	return s
}

// Lines renders the status display text. Lanes are listed in name order.
func (o *Overlay) Lines() []string {
	return o.Snapshot().Lines()
}

// Lines renders s as display text.
func (s Snapshot) Lines() []string {
	status := StatusTrackClear
	if s.TrainActive {
		status = StatusTrainPassing
	}
	lines := []string{
		"Status: " + status,
		fmt.Sprintf("Train duration: %.1fs", s.ElapsedSeconds),
	}

	if len(s.VehicleCountsByLane) > 0 {
		lanes := slices.Sorted(maps.Keys(s.VehicleCountsByLane))
		parts := make([]string, len(lanes))
		for i, lane := range lanes {
			parts[i] = fmt.Sprintf("%s:%d", lane, s.VehicleCountsByLane[lane])
		}
		lines = append(lines, "Vehicles: "+strings.Join(parts, ", "))
	}
	return lines
}
