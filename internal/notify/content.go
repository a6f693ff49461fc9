package notify

import (
	"fmt"

	"github.com/arnold/partnerhub-api/internal/models"
)

// Content is the user-visible part of an in-app notification.
type Content struct {
	Title   string
	Message string
	Type    string
	LinkURL *string
}

type contentRule struct {
	name  string
	match func(*Intent) bool
	build func(*Intent) Content
}

// contentRules are evaluated in order; the first match wins.
var contentRules = []contentRule{
	{
		name:  "escalation",
		match: func(in *Intent) bool { return in.EscalationReason != "" && in.Project != nil },
		build: func(in *Intent) Content {
			return Content{
				Title:   "Escalation: " + in.Project.Name,
				Message: in.EscalationReason,
				Type:    models.KindSystem,
				LinkURL: link("/projects/%s", in.Project.ID),
			}
		},
	},
	{
		name:  "task_reminder",
		match: func(in *Intent) bool { return in.Reminder != nil && in.Task != nil },
		build: func(in *Intent) Content {
			c := Content{
				Title:   orDefault(in.Reminder.Title, "Task reminder: "+in.Task.Title),
				Message: orDefault(in.Reminder.Message, fmt.Sprintf("Task %q is approaching its due date", in.Task.Title)),
				Type:    models.KindDeadline,
			}
			if in.Task.ProjectID != nil {
				c.LinkURL = link("/projects/%s/tasks/%s", *in.Task.ProjectID, in.Task.ID)
			}
			return c
		},
	},
	{
		name:  "reminder",
		match: func(in *Intent) bool { return in.Reminder != nil },
		build: func(in *Intent) Content {
			c := Content{
				Title:   orDefault(in.Reminder.Title, "Reminder"),
				Message: in.Reminder.Message,
				Type:    models.KindSystem,
			}
			if in.Reminder.ProjectID != nil {
				c.LinkURL = link("/projects/%s", *in.Reminder.ProjectID)
			}
			return c
		},
	},
}

// BuildContent derives title, message, kind and link from the intent. It has
// no side effects.
func BuildContent(in Intent) Content {
	for _, rule := range contentRules {
		if rule.match(&in) {
			return rule.build(&in)
		}
	}
	return Content{Title: "Notification", Type: models.KindSystem}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func link(format string, args ...interface{}) *string {
	s := fmt.Sprintf(format, args...)
	return &s
}
