package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/school-records-api/internal/models"
)

const sqlitePrefix = "sqlite://"

// Connect opens the relational store. DSNs starting with sqlite:// use the
// embedded driver, anything else is treated as a PostgreSQL connection string.
func Connect(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn must not be empty")
	}

	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	if strings.HasPrefix(dsn, sqlitePrefix) {
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// AutoMigrate creates or updates every table the API owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.StudyYear{},
		&models.Grade{},
		&models.Quarter{},
		&models.Subject{},
		&models.Student{},
		&models.Mark{},
		&models.Monitoring{},
		&models.Admin{},
		&models.ActivityLog{},
	)
}
