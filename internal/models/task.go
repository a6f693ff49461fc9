package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task statuses
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Task priorities, higher is more urgent.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

type Task struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	ProjectID   *uuid.UUID     `json:"projectId" gorm:"type:uuid;index"`
	AssigneeID  *uuid.UUID     `json:"assigneeId" gorm:"type:uuid;index"`
	Status      string         `json:"status" gorm:"not null;default:todo"`
	Priority    int            `json:"priority" gorm:"not null;default:2"`
	DueDate     *time.Time     `json:"dueDate" gorm:"index"`
	CompletedAt *time.Time     `json:"completedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Task) BeforeSave(tx *gorm.DB) error {
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}
	return nil
}

// PriorityLabel is the human readable priority used in emails.
func (t Task) PriorityLabel() string {
	switch {
	case t.Priority >= PriorityUrgent:
		return "urgent"
	case t.Priority == PriorityHigh:
		return "high"
	case t.Priority == PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}
