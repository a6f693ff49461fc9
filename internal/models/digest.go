package models

// DigestSnapshot is the per-user summary rendered into the daily digest email.
// It is computed at send time and never stored.
type DigestSnapshot struct {
	TodayTasks          []Task              `json:"todayTasks"`
	OverdueTasks        []OverdueTask       `json:"overdueTasks"`
	UnreadNotifications []InAppNotification `json:"unreadNotifications"`
	Stats               DigestStats         `json:"stats"`
}

type OverdueTask struct {
	Task
	DaysOverdue int `json:"daysOverdue"`
}

type DigestStats struct {
	TotalTasks     int64 `json:"totalTasks"`
	CompletedTasks int64 `json:"completedTasks"`
	CompletionRate int   `json:"completionRate"`
}

// Empty reports whether there is nothing worth mailing.
func (d *DigestSnapshot) Empty() bool {
	return len(d.TodayTasks) == 0 && len(d.OverdueTasks) == 0 && len(d.UnreadNotifications) == 0
}
