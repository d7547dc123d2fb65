// Package datastore persists train passes, vehicle events and service
// liveness through GORM.
package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/observability/metrics"
)

// History query limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// slowQueryThreshold is handed to the GORM logger adapter.
const slowQueryThreshold = 200 * time.Millisecond

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	RecordTrainEvent(ev events.TrainEvent) error
	RecordVehicleEvent(ev events.VehicleEvent) error
	UpdateHeartbeat(ts time.Time) error
	GetTrainEvents(limit int) ([]TrainPass, error)
	GetVehicleEvents(limit int) ([]VehicleEvent, error)
	GetStatus() (*Status, error)
}

// statusRecorder is implemented by metrics.DatastoreMetrics.
type statusRecorder interface {
	SetTableRows(table string, rows int64)
	SetLastHeartbeat(unixSeconds float64)
}

// DataStore implements the queries shared by every backend.
type DataStore struct {
	DB      *gorm.DB
	metrics metrics.Recorder
}

// Option configures a store.
type Option func(*DataStore)

// WithMetrics records operation counts and durations.
func WithMetrics(m metrics.Recorder) Option {
	return func(ds *DataStore) {
		if m != nil {
			ds.metrics = m
		}
	}
}

// New returns the backend enabled in settings. The store must be opened
// before use.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	ds := DataStore{metrics: metrics.NoOpRecorder{}}
	for _, opt := range opts {
		opt(&ds)
	}

	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: ds, Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: ds, Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func newGormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)}
}

// performAutoMigration creates or updates the schema.
func (ds *DataStore) performAutoMigration(dbType string) error {
	start := time.Now()
	err := ds.DB.AutoMigrate(&TrainPass{}, &VehicleEvent{}, &SystemStatus{})
	ds.observe(metrics.OpMigrate, start, err)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("operation", "auto_migrate").
			Build()
	}

	GetLogger().Debug("database schema migrated",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func (ds *DataStore) ready(operation string) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Context("operation", operation).
			Build()
	}
	return nil
}

func (ds *DataStore) observe(operation string, start time.Time, err error) {
	ds.metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		ds.metrics.RecordOperation(operation, metrics.StatusError)
		ds.metrics.RecordError(operation, "query")
		return
	}
	ds.metrics.RecordOperation(operation, metrics.StatusSuccess)
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// RecordTrainEvent stores a completed train pass.
func (ds *DataStore) RecordTrainEvent(ev events.TrainEvent) error {
	if err := ds.ready(metrics.OpRecordTrain); err != nil {
		return err
	}

	start := time.Now()
	row := trainPassFromEvent(&ev)
	err := ds.DB.Create(&row).Error
	ds.observe(metrics.OpRecordTrain, start, err)
	if err != nil {
		return dbError(err, metrics.OpRecordTrain)
	}
	return nil
}

// RecordVehicleEvent stores a finished vehicle dwell.
func (ds *DataStore) RecordVehicleEvent(ev events.VehicleEvent) error {
	if err := ds.ready(metrics.OpRecordVehicle); err != nil {
		return err
	}

	start := time.Now()
	row := vehicleEventFromEvent(&ev)
	err := ds.DB.Create(&row).Error
	ds.observe(metrics.OpRecordVehicle, start, err)
	if err != nil {
		return dbError(err, metrics.OpRecordVehicle)
	}
	return nil
}

// UpdateHeartbeat upserts the liveness row.
func (ds *DataStore) UpdateHeartbeat(ts time.Time) error {
	if err := ds.ready(metrics.OpHeartbeat); err != nil {
		return err
	}

	start := time.Now()
	status := SystemStatus{ID: systemStatusID, LastHeartbeat: ts.UTC()}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat", "updated_at"}),
	}).Create(&status).Error
	ds.observe(metrics.OpHeartbeat, start, err)
	if err != nil {
		return dbError(err, metrics.OpHeartbeat)
	}

	if sr, ok := ds.metrics.(statusRecorder); ok {
		sr.SetLastHeartbeat(float64(ts.Unix()))
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// GetTrainEvents returns the most recent train passes, newest first.
func (ds *DataStore) GetTrainEvents(limit int) ([]TrainPass, error) {
	if err := ds.ready(metrics.OpListTrains); err != nil {
		return nil, err
	}

	start := time.Now()
	var rows []TrainPass
	err := ds.DB.Order("started_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&rows).Error
	ds.observe(metrics.OpListTrains, start, err)
	if err != nil {
		return nil, dbError(err, metrics.OpListTrains)
	}
	return rows, nil
}

// GetVehicleEvents returns the most recent vehicle events, newest first.
func (ds *DataStore) GetVehicleEvents(limit int) ([]VehicleEvent, error) {
	if err := ds.ready(metrics.OpListVehicles); err != nil {
		return nil, err
	}

	start := time.Now()
	var rows []VehicleEvent
	err := ds.DB.Order("exited_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&rows).Error
	ds.observe(metrics.OpListVehicles, start, err)
	if err != nil {
		return nil, dbError(err, metrics.OpListVehicles)
	}
	return rows, nil
}

// GetStatus returns the last heartbeat, the latest train and vehicle rows
// and the row counts.
func (ds *DataStore) GetStatus() (*Status, error) {
	if err := ds.ready(metrics.OpGetStatus); err != nil {
		return nil, err
	}

	start := time.Now()
	status, err := ds.queryStatus()
	ds.observe(metrics.OpGetStatus, start, err)
	if err != nil {
		return nil, dbError(err, metrics.OpGetStatus)
	}

	if sr, ok := ds.metrics.(statusRecorder); ok {
		sr.SetTableRows(metrics.TableTrainPasses, status.TrainCount)
		sr.SetTableRows(metrics.TableVehicleEvents, status.VehicleCount)
	}
	return status, nil
}

func (ds *DataStore) queryStatus() (*Status, error) {
	status := &Status{}

	var sys SystemStatus
	err := ds.DB.Limit(1).Find(&sys, systemStatusID).Error
	if err != nil {
		return nil, err
	}
	if sys.ID != 0 {
		hb := sys.LastHeartbeat
		status.LastHeartbeat = &hb
	}

	var trains []TrainPass
	if err := ds.DB.Order("started_at DESC").Order("id DESC").Limit(1).Find(&trains).Error; err != nil {
		return nil, err
	}
	if len(trains) > 0 {
		status.LastTrain = &trains[0]
	}

	var vehicles []VehicleEvent
	if err := ds.DB.Order("exited_at DESC").Order("id DESC").Limit(1).Find(&vehicles).Error; err != nil {
		return nil, err
	}
	if len(vehicles) > 0 {
		status.LastVehicle = &vehicles[0]
	}

	if err := ds.DB.Model(&TrainPass{}).Count(&status.TrainCount).Error; err != nil {
		return nil, err
	}
	if err := ds.DB.Model(&VehicleEvent{}).Count(&status.VehicleCount).Error; err != nil {
		return nil, err
	}

	return status, nil
}

// closeDB releases the connection pool.
func (ds *DataStore) closeDB() error {
	if err := ds.ready("close"); err != nil {
		return err
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}
