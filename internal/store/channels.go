package store

import (
	"context"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// scopeToOrg joins the channel's project so that orgID limits visibility.
// A nil orgID only matches projects without an organization.
func scopeToOrg(orgID *uuid.UUID) string {
	if orgID == nil {
		return "projects.organization_id IS NULL"
	}
	return "projects.organization_id = ?"
}

func orgArgs(orgID *uuid.UUID) []interface{} {
	if orgID == nil {
		return nil
	}
	return []interface{}{*orgID}
}

// ProjectChannels lists the channels of a project visible to orgID.
func (s *Store) ProjectChannels(ctx context.Context, projectID uuid.UUID, orgID *uuid.UUID) ([]models.NotificationChannel, error) {
	var channels []models.NotificationChannel
	err := s.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = notification_channels.project_id").
		Where("notification_channels.project_id = ?", projectID).
		Where(scopeToOrg(orgID), orgArgs(orgID)...).
		Order("notification_channels.created_at").
		Find(&channels).Error
	return channels, err
}

// ActiveChannelCount counts active channels of the given type for a project.
func (s *Store) ActiveChannelCount(ctx context.Context, projectID uuid.UUID, channelType string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.NotificationChannel{}).
		Where("project_id = ? AND type = ? AND is_active = ?", projectID, channelType, true).
		Count(&count).Error
	return count, err
}

// CreateChannel stores a channel for a project that belongs to orgID.
func (s *Store) CreateChannel(ctx context.Context, channel *models.NotificationChannel, orgID *uuid.UUID) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", channel.ProjectID).
		Where(scopeToOrg(orgID), orgArgs(orgID)...).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return s.db.WithContext(ctx).Create(channel).Error
}

// SetChannelActive toggles a channel visible to orgID.
func (s *Store) SetChannelActive(ctx context.Context, id uuid.UUID, orgID *uuid.UUID, active bool) (*models.NotificationChannel, error) {
	var channel models.NotificationChannel
	err := s.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = notification_channels.project_id").
		Where("notification_channels.id = ?", id).
		Where(scopeToOrg(orgID), orgArgs(orgID)...).
		First(&channel).Error
	if err != nil {
		return nil, notFound(err)
	}

	if err := s.db.WithContext(ctx).Model(&channel).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	channel.IsActive = active
	return &channel, nil
}
