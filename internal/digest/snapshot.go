package digest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// sectionLimit caps each list in the digest.
const sectionLimit = 10

// Store is what the digest reads.
type Store interface {
	ActiveUsers(ctx context.Context) ([]models.UserProfile, error)
	TasksDueBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]models.Task, error)
	OverdueTasks(ctx context.Context, userID uuid.UUID, before time.Time, limit int) ([]models.Task, error)
	RecentUnread(ctx context.Context, userID uuid.UUID, limit int) ([]models.InAppNotification, error)
	TaskCounts(ctx context.Context, userID uuid.UUID) (total, completed int64, err error)
}

// startOfDay returns local midnight of t's day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysOverdue counts started days since due, at least one.
func daysOverdue(due, now time.Time) int {
	days := int(math.Ceil(now.Sub(due).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

func completionRate(total, completed int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// BuildSnapshot computes the digest for one user at now. now's location
// defines "today".
func BuildSnapshot(ctx context.Context, store Store, userID uuid.UUID, now time.Time) (*models.DigestSnapshot, error) {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	dueToday, err := store.TasksDueBetween(ctx, userID, today, tomorrow, sectionLimit)
	if err != nil {
		return nil, fmt.Errorf("loading today's tasks: %w", err)
	}

	overdue, err := store.OverdueTasks(ctx, userID, today, sectionLimit)
	if err != nil {
		return nil, fmt.Errorf("loading overdue tasks: %w", err)
	}

	unread, err := store.RecentUnread(ctx, userID, sectionLimit)
	if err != nil {
		return nil, fmt.Errorf("loading unread notifications: %w", err)
	}

	total, completed, err := store.TaskCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	snapshot := &models.DigestSnapshot{
		TodayTasks:          dueToday,
		UnreadNotifications: unread,
		Stats: models.DigestStats{
			TotalTasks:     total,
			CompletedTasks: completed,
			CompletionRate: completionRate(total, completed),
		},
	}
	for _, task := range overdue {
		o := models.OverdueTask{Task: task, DaysOverdue: 1}
		if task.DueDate != nil {
			o.DaysOverdue = daysOverdue(*task.DueDate, now)
		}
		snapshot.OverdueTasks = append(snapshot.OverdueTasks, o)
	}
	return snapshot, nil
}
