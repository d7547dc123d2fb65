package datastore

import (
	"time"

	"github.com/tphakala/train-spotter/internal/events"
)

// TrainPass is one completed train pass.
type TrainPass struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TrainID         string    `gorm:"size:64;index" json:"train_id"`
	StartedAt       time.Time `gorm:"index" json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	CoverageRatio   float64   `json:"coverage_ratio"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName pins the table name.
func (TrainPass) TableName() string { return "train_passes" }

// VehicleEvent is one finished vehicle dwell in a lane.
type VehicleEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TrackID         int64     `gorm:"index" json:"track_id"`
	LaneID          string    `gorm:"size:64;index" json:"lane_id"`
	ClassLabel      string    `gorm:"size:32" json:"class_label"`
	EnteredAt       time.Time `json:"entered_at"`
	ExitedAt        time.Time `gorm:"index" json:"exited_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName pins the table name.
func (VehicleEvent) TableName() string { return "vehicle_events" }

// SystemStatus is a single row tracking service liveness.
type SystemStatus struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (SystemStatus) TableName() string { return "system_status" }

// systemStatusID is the primary key of the only system_status row.
const systemStatusID = 1

// Status summarises the stored history.
type Status struct {
	LastHeartbeat *time.Time    `json:"last_heartbeat"`
	LastTrain     *TrainPass    `json:"last_train"`
	LastVehicle   *VehicleEvent `json:"last_vehicle"`
	TrainCount    int64         `json:"train_count"`
	VehicleCount  int64         `json:"vehicle_count"`
}

func trainPassFromEvent(ev *events.TrainEvent) TrainPass {
	return TrainPass{
		TrainID:         ev.TrainID,
		StartedAt:       ev.StartedAt.UTC(),
		EndedAt:         ev.EndedAt.UTC(),
		DurationSeconds: ev.Duration.Seconds(),
		CoverageRatio:   ev.CoverageRatio,
	}
}

func vehicleEventFromEvent(ev *events.VehicleEvent) VehicleEvent {
	return VehicleEvent{
		TrackID:         ev.TrackID,
		LaneID:          ev.LaneID,
		ClassLabel:      ev.ClassLabel,
		EnteredAt:       ev.EnteredAt.UTC(),
		ExitedAt:        ev.ExitedAt.UTC(),
		DurationSeconds: ev.Duration.Seconds(),
	}
}
