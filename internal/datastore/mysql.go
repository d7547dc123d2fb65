package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to the server and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg := &store.Settings.Output.MySQL

	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), newGormConfig())
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "mysql").
			Context("host", cfg.Host).
			Context("database", cfg.Database).
			Context("operation", "open").
			Build()
	}

	store.DB = db
	GetLogger().Info("MySQL database opened",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database))
	return store.performAutoMigration("mysql")
}

// Close closes the connection pool.
func (store *MySQLStore) Close() error {
	return store.closeDB()
}
