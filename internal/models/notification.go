package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification kinds drive the UI treatment of an in-app notification.
const (
	KindDeadline = "deadline"
	KindSystem   = "system"
)

// InAppNotification is a user-visible notification row. Rows are created by the
// dispatcher and only ever flipped to read afterwards.
type InAppNotification struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;index;not null"`
	Type      string     `json:"type" gorm:"not null"` // deadline, system
	Title     string     `json:"title" gorm:"not null"`
	Message   string     `json:"message"`
	LinkURL   *string    `json:"linkUrl"`
	TaskID    *uuid.UUID `json:"taskId" gorm:"type:uuid"`
	ProjectID *uuid.UUID `json:"projectId" gorm:"type:uuid"`
	IsRead    bool       `json:"isRead" gorm:"index;default:false"`
	CreatedAt time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (n *InAppNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
