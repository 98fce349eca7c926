package database

import (
	"fmt"
	"log/slog"

	"calendar-sync-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the SQLite database at path and runs migrations.
// glebarez/sqlite is a pure Go driver, no CGO required.
func InitDB(path string, level logger.LogLevel) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	slog.Info("database connected and migrated", "path", path)
	return nil
}

// Migrate creates or updates the schema. Existing data is kept.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Calendar{},
		&models.Event{},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
