package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationChannel configures an external integration (e.g. a Slack channel)
// for one project.
type NotificationChannel struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string            `json:"name" gorm:"not null"`
	Type        string            `json:"type" gorm:"not null"` // slack, teams, webhook
	ChannelID   string            `json:"channelId"`
	ProjectID   uuid.UUID         `json:"projectId" gorm:"type:uuid;index;not null"`
	IsActive    bool              `json:"isActive" gorm:"default:true"`
	CreatedByID uuid.UUID         `json:"createdById" gorm:"type:uuid"`
	Config      map[string]string `json:"config" gorm:"serializer:json"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`

	Project *Project `json:"-" gorm:"foreignKey:ProjectID"`
}

func (c *NotificationChannel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CreateChannelRequest struct {
	Name      string            `json:"name" validate:"required"`
	Type      string            `json:"type" validate:"required,oneof=slack teams webhook"`
	ChannelID string            `json:"channelId" validate:"required"`
	Config    map[string]string `json:"config"`
}

type SetChannelActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
