// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation label values.
const (
	OpRecordTrain   = "record_train"
	OpRecordVehicle = "record_vehicle"
	OpHeartbeat     = "heartbeat"
	OpListTrains    = "list_trains"
	OpListVehicles  = "list_vehicles"
	OpGetStatus     = "get_status"
	OpMigrate       = "migrate"
	OpPublish       = "publish"
	OpDecode        = "decode"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Table label values.
const (
	TableTrainPasses   = "train_passes"
	TableVehicleEvents = "vehicle_events"
	TableSystemStatus  = "system_status"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart1s is the starting bucket for 1s histograms.
	BucketStart1s = 1.0
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// ShutdownTimeout bounds graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
