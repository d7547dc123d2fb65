// Package events provides the in-process event bus that carries train and
// vehicle analytics from the frame processor to its consumers.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of an Event.
type EventType string

const (
	TypeTrainStarted EventType = "TRAIN_STARTED"
	TypeTrainEnded   EventType = "TRAIN_ENDED"
	TypeVehicleEvent EventType = "VEHICLE_EVENT"
	TypeHeartbeat    EventType = "HEARTBEAT"
)

// Event is a single message on the bus. Payload holds TrainStarted,
// TrainEvent or VehicleEvent depending on Type, and nil for heartbeats.
type Event struct {
	Type      EventType
	Payload   any
	Timestamp time.Time
}

// TrainStarted is the payload of TRAIN_STARTED.
type TrainStarted struct {
	TrainID   string    `json:"train_id"`
	StartedAt time.Time `json:"started_at"`
}

// TrainEvent is the payload of TRAIN_ENDED.
type TrainEvent struct {
	TrainID       string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	CoverageRatio float64
}

// MarshalJSON encodes the duration in seconds.
func (e TrainEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TrainID         string    `json:"train_id"`
		StartedAt       time.Time `json:"started_at"`
		EndedAt         time.Time `json:"ended_at"`
		DurationSeconds float64   `json:"duration_seconds"`
		CoverageRatio   float64   `json:"coverage_ratio"`
	}{e.TrainID, e.StartedAt, e.EndedAt, e.Duration.Seconds(), e.CoverageRatio})
}

// VehicleEvent is the payload of VEHICLE_EVENT: one finished vehicle dwell.
type VehicleEvent struct {
	TrackID    int64
	ClassLabel string
	LaneID     string
	EnteredAt  time.Time
	ExitedAt   time.Time
	Duration   time.Duration
}

// MarshalJSON encodes the duration in seconds.
func (e VehicleEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TrackID         int64     `json:"track_id"`
		ClassLabel      string    `json:"class_label"`
		LaneID          string    `json:"lane_id"`
		EnteredAt       time.Time `json:"entered_at"`
		ExitedAt        time.Time `json:"exited_at"`
		DurationSeconds float64   `json:"duration_seconds"`
	}{e.TrackID, e.ClassLabel, e.LaneID, e.EnteredAt, e.ExitedAt, e.Duration.Seconds()})
}

// MarshalJSON encodes the event envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		Payload   any       `json:"payload"`
	}{e.Type, e.Timestamp, e.Payload})
}

// NewTrainStarted wraps a TrainStarted payload.
func NewTrainStarted(p TrainStarted) Event {
	return Event{Type: TypeTrainStarted, Payload: p, Timestamp: p.StartedAt}
}

// NewTrainEnded wraps a TrainEvent payload.
func NewTrainEnded(p TrainEvent) Event {
	return Event{Type: TypeTrainEnded, Payload: p, Timestamp: p.EndedAt}
}

// NewVehicleEvent wraps a VehicleEvent payload. The event is stamped with
// the frame time at which the track was finalized.
func NewVehicleEvent(p VehicleEvent, ts time.Time) Event {
	return Event{Type: TypeVehicleEvent, Payload: p, Timestamp: ts}
}

// NewHeartbeat returns a heartbeat event.
func NewHeartbeat(ts time.Time) Event {
	return Event{Type: TypeHeartbeat, Timestamp: ts}
}

// TrainStarted returns the payload when e is TRAIN_STARTED.
func (e *Event) TrainStarted() (TrainStarted, bool) {
	p, ok := e.Payload.(TrainStarted)
	return p, ok && e.Type == TypeTrainStarted
}

// TrainEnded returns the payload when e is TRAIN_ENDED.
func (e *Event) TrainEnded() (TrainEvent, bool) {
	p, ok := e.Payload.(TrainEvent)
	return p, ok && e.Type == TypeTrainEnded
}

// Vehicle returns the payload when e is VEHICLE_EVENT.
func (e *Event) Vehicle() (VehicleEvent, bool) {
	p, ok := e.Payload.(VehicleEvent)
	return p, ok && e.Type == TypeVehicleEvent
}

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	Published   uint64 // events accepted by Publish
	Delivered   uint64 // per-subscriber enqueues
	Dropped     uint64 // events evicted by drop-oldest
	Subscribers int
	Stopped     bool
}

// Metrics receives bus instrumentation. Implemented by the observability package.
type Metrics interface {
	RecordPublished(eventType string)
	RecordDropped(subscriber string)
	SetSubscribers(n int)
}
