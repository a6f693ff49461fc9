package notify

import (
	"testing"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestBuildContent(t *testing.T) {
	projectID := uuid.New()
	project := &models.Project{ID: projectID, Name: "Apollo"}
	task := &models.Task{ID: uuid.New(), Title: "Test Task", ProjectID: &projectID}
	looseTask := &models.Task{ID: uuid.New(), Title: "Loose"}

	tests := []struct {
		name   string
		intent Intent
		want   Content
	}{
		{
			name:   "escalation wins over reminder",
			intent: Intent{EscalationReason: "Deadline missed", Project: project, Reminder: &models.Reminder{Title: "T"}, Task: task},
			want:   Content{Title: "Escalation: Apollo", Message: "Deadline missed", Type: models.KindSystem, LinkURL: strPtr("/projects/" + projectID.String())},
		},
		{
			name:   "escalation without project falls through",
			intent: Intent{EscalationReason: "Deadline missed"},
			want:   Content{Title: "Notification", Type: models.KindSystem},
		},
		{
			name:   "task reminder defaults",
			intent: Intent{Reminder: &models.Reminder{}, Task: task},
			want: Content{
				Title:   "Task reminder: Test Task",
				Message: `Task "Test Task" is approaching its due date`,
				Type:    models.KindDeadline,
				LinkURL: strPtr("/projects/" + projectID.String() + "/tasks/" + task.ID.String()),
			},
		},
		{
			name:   "task reminder keeps own text",
			intent: Intent{Reminder: &models.Reminder{Title: "Ship it", Message: "Today"}, Task: looseTask},
			want:   Content{Title: "Ship it", Message: "Today", Type: models.KindDeadline},
		},
		{
			name:   "plain reminder",
			intent: Intent{Reminder: &models.Reminder{ProjectID: &projectID}},
			want:   Content{Title: "Reminder", Type: models.KindSystem, LinkURL: strPtr("/projects/" + projectID.String())},
		},
		{
			name:   "nothing",
			intent: Intent{Task: task},
			want:   Content{Title: "Notification", Type: models.KindSystem},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildContent(tt.intent)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, BuildContent(tt.intent))
		})
	}
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]Channel{
		"EMAIL":   ChannelEmail,
		"in_app":  ChannelInApp,
		"IN-APP":  ChannelInApp,
		" slack ": ChannelSlack,
		"Teams":   ChannelTeams,
		"webhook": ChannelWebhook,
	} {
		got, ok := ParseChannel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseChannel("sms")
	assert.False(t, ok)
}

func TestEveryChannelHasARoute(t *testing.T) {
	for c := Channel(0); c < channelCount; c++ {
		r, ok := routeFor(c)
		assert.True(t, ok, c.String())
		assert.Equal(t, c != ChannelEmail && c != ChannelInApp, r.fallback, c.String())
	}
	_, ok := routeFor(channelInvalid)
	assert.False(t, ok)
}
