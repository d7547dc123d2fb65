package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file if needed and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.FileError(err, path)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), newGormConfig())
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "sqlite").
			Context("operation", "open").
			Build()
	}

	// SQLite serialises writers; one connection avoids lock contention.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	GetLogger().Info("SQLite database opened", logger.String("path", path))
	return store.performAutoMigration("sqlite")
}

// Close closes the database.
func (store *SQLiteStore) Close() error {
	return store.closeDB()
}
