package store

import (
	"context"
	"fmt"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// CreateNotification persists n and fills in its generated ID and timestamps.
func (s *Store) CreateNotification(ctx context.Context, n *models.InAppNotification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("creating notification for user %s: %w", n.UserID, err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// ListNotifications returns one page of the user's notifications, newest first,
// with the total row count.
func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.InAppNotification, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.InAppNotification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.InAppNotification
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	return notifications, total, err
}

func (s *Store) RecentUnread(ctx context.Context, userID uuid.UUID, limit int) ([]models.InAppNotification, error) {
	var notifications []models.InAppNotification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// MarkNotificationRead flips one notification owned by userID.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.InAppNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
