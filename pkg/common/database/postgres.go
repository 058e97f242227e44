package database

import (
	"fmt"

	"github.com/plugup/shipment-tracking/pkg/common/config"
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to one PostgreSQL database. name only labels logs.
func OpenPostgres(name string, pg config.Postgres) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(pg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("database", name).Error("Failed to connect to PostgreSQL")
		return nil, fmt.Errorf("connecting to %s: %w", name, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"database": name,
		"host":     pg.Host,
		"db":       pg.DB,
	}).Info("Connected to PostgreSQL")
	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
