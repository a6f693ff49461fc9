package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/arnold/partnerhub-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database. PostgreSQL if the URL starts with postgres,
// otherwise a SQLite file (or ":memory:"). Timestamps are written in UTC;
// SQLite compares them as text.
func Connect(databaseURL string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(databaseURL, "postgres") {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(databaseURL)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserProfile{},
		&models.Project{},
		&models.Task{},
		&models.Reminder{},
		&models.InAppNotification{},
		&models.NotificationChannel{},
	)
}
