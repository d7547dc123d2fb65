// Package metrics provides datastore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations.
// It implements Recorder; operations are labelled with the table they touch.
type DatastoreMetrics struct {
	// Database operation metrics
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	// Row counts per table, refreshed after writes
	dbTableRowCountGauge *prometheus.GaugeVec

	// Heartbeat age as seen by the status query
	lastHeartbeatGauge prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"},
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	m.dbTableRowCountGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datastore_table_rows",
			Help: "Number of rows per table",
		},
		[]string{"table"},
	)

	m.lastHeartbeatGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datastore_last_heartbeat_timestamp_seconds",
		Help: "Unix time of the last stored heartbeat",
	})

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbTableRowCountGauge,
		m.lastHeartbeatGauge,
	}
}

// tableFor maps an operation to the table it touches.
func tableFor(operation string) string {
	switch operation {
	case OpRecordTrain, OpListTrains:
		return TableTrainPasses
	case OpRecordVehicle, OpListVehicles:
		return TableVehicleEvents
	case OpHeartbeat, OpGetStatus:
		return TableSystemStatus
	default:
		return "all"
	}
}

// RecordOperation implements Recorder.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, tableFor(operation), status).Inc()
}

// RecordDuration implements Recorder.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.dbOperationDuration.WithLabelValues(operation, tableFor(operation)).Observe(seconds)
}

// RecordError implements Recorder.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, tableFor(operation), errorType).Inc()
}

// SetTableRows records the row count of a table.
func (m *DatastoreMetrics) SetTableRows(table string, rows int64) {
	m.dbTableRowCountGauge.WithLabelValues(table).Set(float64(rows))
}

// SetLastHeartbeat records the time of the last stored heartbeat.
func (m *DatastoreMetrics) SetLastHeartbeat(unixSeconds float64) {
	m.lastHeartbeatGauge.Set(unixSeconds)
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
