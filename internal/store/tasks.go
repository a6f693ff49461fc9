package store

import (
	"context"
	"time"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

func (s *Store) FindTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

func (s *Store) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// TasksDueBetween returns the user's open tasks due in [from, to), most urgent first.
// Bounds are compared in UTC, which is how times are stored.
func (s *Store) TasksDueBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("assignee_id = ? AND due_date >= ? AND due_date < ?", userID, from.UTC(), to.UTC()).
		Where("status NOT IN ?", closedStatuses).
		Order("priority DESC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// OverdueTasks returns the user's open tasks due before the cutoff, oldest first.
func (s *Store) OverdueTasks(ctx context.Context, userID uuid.UUID, before time.Time, limit int) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("assignee_id = ? AND due_date < ?", userID, before.UTC()).
		Where("status NOT IN ?", closedStatuses).
		Order("due_date ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// TaskCounts returns the number of tasks assigned to the user and how many are completed.
func (s *Store) TaskCounts(ctx context.Context, userID uuid.UUID) (total, completed int64, err error) {
	db := s.db.WithContext(ctx).Model(&models.Task{})
	if err = db.Where("assignee_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Where("assignee_id = ? AND status = ?", userID, models.TaskCompleted).
		Count(&completed).Error
	return total, completed, err
}
