package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Reminder struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	UserID    *uuid.UUID     `json:"userId" gorm:"type:uuid;index"`
	ProjectID *uuid.UUID     `json:"projectId" gorm:"type:uuid"`
	TaskID    *uuid.UUID     `json:"taskId" gorm:"type:uuid"`
	Channel   string         `json:"channel" gorm:"default:in_app"` // email, in_app, slack, teams, webhook
	RemindAt  time.Time      `json:"remindAt" gorm:"index;not null"`
	SentAt    *time.Time     `json:"sentAt" gorm:"index"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	User *UserProfile `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Reminder) BeforeSave(tx *gorm.DB) error {
	r.RemindAt = r.RemindAt.UTC()
	return nil
}
