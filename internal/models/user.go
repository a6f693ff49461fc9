package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProfile is the partner/stakeholder profile notifications are addressed to.
type UserProfile struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string          `json:"email" gorm:"uniqueIndex;not null"`
	Name           string          `json:"name"`
	DisplayName    string          `json:"displayName"`
	OrganizationID *uuid.UUID      `json:"organizationId" gorm:"type:uuid;index"`
	IsActive       bool            `json:"isActive" gorm:"index;default:true"`
	Preferences    UserPreferences `json:"preferences" gorm:"serializer:json"`
	FCMToken       string          `json:"-" gorm:"column:fcm_token"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt  `json:"-" gorm:"index"`
}

// UserPreferences is stored as JSON metadata on the profile.
type UserPreferences struct {
	DigestEnabled *bool  `json:"digestEnabled,omitempty"`
	DigestTime    string `json:"digestTime,omitempty"` // informational, the trigger time is global
	Timezone      string `json:"timezone,omitempty"`
}

// WantsDigest reports whether the daily digest is enabled. Unset means enabled.
func (p UserPreferences) WantsDigest() bool {
	return p.DigestEnabled == nil || *p.DigestEnabled
}

func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Ref returns the lightweight recipient view of the profile.
func (u *UserProfile) Ref() UserRef {
	name := u.DisplayName
	if name == "" {
		name = u.Name
	}
	return UserRef{
		ID:          u.ID,
		Email:       u.Email,
		Name:        name,
		DeviceToken: u.FCMToken,
	}
}

// UserRef identifies a notification recipient.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DeviceToken string    `json:"-"`
}
