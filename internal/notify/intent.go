package notify

import (
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
)

// Intent describes one notification to send. It is never persisted.
type Intent struct {
	Channel          Channel
	Reminder         *models.Reminder
	Task             *models.Task
	Project          *models.Project
	Recipients       []models.UserRef
	EscalationReason string
	EscalationLevel  string
	AdditionalInfo   string
}

func (in *Intent) isEscalation() bool {
	return in.EscalationReason != "" && in.EscalationLevel != "" && in.Project != nil
}

// taskID is the task the notification links to, if any.
func (in *Intent) taskID() *uuid.UUID {
	switch {
	case in.Task != nil:
		id := in.Task.ID
		return &id
	case in.Reminder != nil && in.Reminder.TaskID != nil:
		id := *in.Reminder.TaskID
		return &id
	}
	return nil
}

// projectID is the project the notification links to, if any.
func (in *Intent) projectID() *uuid.UUID {
	switch {
	case in.Project != nil:
		id := in.Project.ID
		return &id
	case in.Task != nil && in.Task.ProjectID != nil:
		id := *in.Task.ProjectID
		return &id
	case in.Reminder != nil && in.Reminder.ProjectID != nil:
		id := *in.Reminder.ProjectID
		return &id
	}
	return nil
}

// ReminderChannel is the channel a reminder asks for, in-app when unset. The
// flag is false for names that do not parse.
func ReminderChannel(r *models.Reminder) (Channel, bool) {
	if r.Channel == "" {
		return ChannelInApp, true
	}
	return ParseChannel(r.Channel)
}

// Outcome classifies a dispatch.
type Outcome int

const (
	OutcomeInvalid   Outcome = iota // bad call shape, nothing attempted
	OutcomeFailed                   // attempted, nothing delivered
	OutcomePartial                  // some recipients delivered
	OutcomeDelivered                // every recipient delivered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomePartial:
		return "partial"
	case OutcomeDelivered:
		return "delivered"
	default:
		return "invalid"
	}
}

// Result is the structured outcome behind the boolean SendNotification contract.
type Result struct {
	Channel   Channel
	Outcome   Outcome
	Attempted int
	Succeeded int
}

// Ok is true when at least one recipient was reached.
func (r Result) Ok() bool {
	return r.Outcome == OutcomePartial || r.Outcome == OutcomeDelivered
}

func tally(channel Channel, results []bool) Result {
	res := Result{Channel: channel, Attempted: len(results)}
	for _, ok := range results {
		if ok {
			res.Succeeded++
		}
	}
	switch {
	case res.Succeeded == 0:
		res.Outcome = OutcomeFailed
	case res.Succeeded < res.Attempted:
		res.Outcome = OutcomePartial
	default:
		res.Outcome = OutcomeDelivered
	}
	return res
}
