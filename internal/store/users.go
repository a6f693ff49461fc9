package store

import (
	"context"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// FindUsersByIDs resolves recipients. A non-nil orgID restricts the result to
// members of that organization.
func (s *Store) FindUsersByIDs(ctx context.Context, ids []uuid.UUID, orgID *uuid.UUID) ([]models.UserRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := s.db.WithContext(ctx).Where("id IN ?", ids)
	if orgID != nil {
		q = q.Where("organization_id = ?", *orgID)
	}

	var users []models.UserProfile
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}

	refs := make([]models.UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, users[i].Ref())
	}
	return refs, nil
}

func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) ActiveUsers(ctx context.Context) ([]models.UserProfile, error) {
	var users []models.UserProfile
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at").Find(&users).Error
	return users, err
}

// OrganizationOf returns the caller's organization, nil when unaffiliated.
func (s *Store) OrganizationOf(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.OrganizationID, nil
}

// SetDeviceToken stores the FCM registration token for offline pushes.
func (s *Store) SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	result := s.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", userID).
		Update("fcm_token", token)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
