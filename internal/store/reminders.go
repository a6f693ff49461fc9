package store

import (
	"context"
	"time"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// DueReminders returns unsent reminders whose time has come, oldest first.
func (s *Store) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("sent_at IS NULL AND remind_at <= ?", now.UTC()).
		Order("remind_at ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

func (s *Store) FindReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	var reminder models.Reminder
	if err := s.db.WithContext(ctx).Preload("User").First(&reminder, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reminder, nil
}

// MarkReminderSent stamps the reminder. Already-sent reminders are left alone.
func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", at.UTC()).Error
}
