// Package store is the gorm-backed persistence layer for the notification core.
package store

import (
	"errors"

	"github.com/arnold/partnerhub-api/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup or scoped update matches no row.
var ErrNotFound = errors.New("record not found")

// Store implements the repository interfaces consumed by the notify, realtime,
// digest and reminders packages.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Statuses that take a task out of the pending set.
var closedStatuses = []string{models.TaskCompleted, models.TaskCancelled}
