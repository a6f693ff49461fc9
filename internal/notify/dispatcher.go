package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.InAppNotification) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UserDirectory resolves recipients.
type UserDirectory interface {
	FindUsersByIDs(ctx context.Context, ids []uuid.UUID, orgID *uuid.UUID) ([]models.UserRef, error)
}

// EmailSender sends one email per recipient and reports each result in
// recipient order.
type EmailSender interface {
	SendReminderEmail(ctx context.Context, reminder *models.Reminder, task *models.Task, recipients []models.UserRef) []bool
	SendEscalationEmail(ctx context.Context, reason, level string, project *models.Project, recipients []models.UserRef, additionalInfo string) []bool
}

// Pusher delivers events to live connections.
type Pusher interface {
	SendToUser(userID uuid.UUID, n *models.InAppNotification)
	SendUnreadCount(userID uuid.UUID, count int64)
	IsUserConnected(userID uuid.UUID) bool
}

// DevicePusher reaches users that have no live connection.
type DevicePusher interface {
	PushNotification(ctx context.Context, to models.UserRef, n *models.InAppNotification) error
}

type Dispatcher struct {
	store   NotificationStore
	users   UserDirectory
	email   EmailSender
	pusher  Pusher
	devices DevicePusher
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

type Option func(*Dispatcher)

// WithDevicePush enables mobile pushes for offline in-app recipients.
func WithDevicePush(p DevicePusher) Option {
	return func(d *Dispatcher) { d.devices = p }
}

func NewDispatcher(store NotificationStore, users UserDirectory, email EmailSender, pusher Pusher, m *metrics.Metrics, log logrus.FieldLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		users:   users,
		email:   email,
		pusher:  pusher,
		metrics: m,
		log:     log.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendNotification delivers the intent on its channel and reports whether at
// least one recipient was reached. It never panics or returns an error.
func (d *Dispatcher) SendNotification(ctx context.Context, intent Intent) bool {
	return d.Dispatch(ctx, intent).Ok()
}

// Dispatch is SendNotification with the full outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			d.log.WithField("channel", intent.Channel.String()).Errorf("Dispatch panicked: %v", p)
			res = Result{Channel: intent.Channel, Outcome: OutcomeFailed, Attempted: len(intent.Recipients)}
		}
		d.metrics.Dispatches.WithLabelValues(intent.Channel.String(), res.Outcome.String()).Inc()
	}()

	r, ok := routeFor(intent.Channel)
	if !ok {
		d.log.WithField("channel", int(intent.Channel)).Warn("Unknown notification channel")
		return Result{Channel: intent.Channel, Outcome: OutcomeInvalid}
	}
	if r.fallback {
		d.log.WithField("channel", intent.Channel.String()).Debug("Channel not implemented, delivering in-app")
	}

	switch r.branch {
	case branchEmail:
		res = d.sendEmail(ctx, intent)
	default:
		res = d.sendInApp(ctx, intent)
	}
	res.Channel = intent.Channel
	return res
}

func (d *Dispatcher) sendEmail(ctx context.Context, in Intent) Result {
	if len(in.Recipients) == 0 {
		d.log.Warn("Email notification without recipients")
		return Result{Outcome: OutcomeInvalid}
	}

	var results []bool
	switch {
	case in.isEscalation():
		results = d.email.SendEscalationEmail(ctx, in.EscalationReason, in.EscalationLevel, in.Project, in.Recipients, in.AdditionalInfo)
	case in.Reminder != nil:
		results = d.email.SendReminderEmail(ctx, in.Reminder, in.Task, in.Recipients)
	default:
		d.log.Warn("Email notification has no reminder or escalation content")
		return Result{Outcome: OutcomeInvalid}
	}

	results = results[:min(len(results), len(in.Recipients))]
	for i, ok := range results {
		if !ok {
			d.metrics.RecipientFailures.WithLabelValues("email").Inc()
			d.log.WithField("user_id", in.Recipients[i].ID).Warn("Email delivery failed")
		}
	}
	res := tally(ChannelEmail, results)
	res.Attempted = len(in.Recipients)
	if res.Succeeded > 0 && res.Succeeded < res.Attempted {
		res.Outcome = OutcomePartial
	}
	return res
}

func (d *Dispatcher) sendInApp(ctx context.Context, in Intent) Result {
	if len(in.Recipients) == 0 {
		d.log.Warn("In-app notification without recipients")
		return Result{Outcome: OutcomeInvalid}
	}

	content := BuildContent(in)
	taskID, projectID := in.taskID(), in.projectID()

	results := make([]bool, len(in.Recipients))
	var wg sync.WaitGroup
	for i, r := range in.Recipients {
		wg.Add(1)
		go func(i int, r models.UserRef) {
			defer wg.Done()
			n := &models.InAppNotification{
				UserID:    r.ID,
				Type:      content.Type,
				Title:     content.Title,
				Message:   content.Message,
				LinkURL:   content.LinkURL,
				TaskID:    taskID,
				ProjectID: projectID,
			}
			if err := d.create(ctx, n); err != nil {
				d.metrics.RecipientFailures.WithLabelValues("in_app").Inc()
				d.log.WithField("user_id", r.ID).WithError(err).Error("Failed to create in-app notification")
				return
			}
			results[i] = true
			d.push(ctx, r, n)
		}(i, r)
	}
	wg.Wait()

	return tally(ChannelInApp, results)
}

func (d *Dispatcher) create(ctx context.Context, n *models.InAppNotification) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("create notification: %v", p)
		}
	}()
	return d.store.CreateNotification(ctx, n)
}

// push runs after the record exists; its failures never undo the delivery.
func (d *Dispatcher) push(ctx context.Context, to models.UserRef, n *models.InAppNotification) {
	defer func() {
		if p := recover(); p != nil {
			d.log.WithField("user_id", to.ID).Errorf("Realtime push panicked: %v", p)
		}
	}()

	d.pusher.SendToUser(to.ID, n)

	count, err := d.store.UnreadCount(ctx, to.ID)
	if err != nil {
		d.log.WithField("user_id", to.ID).WithError(err).Warn("Failed to load unread count")
	} else {
		d.pusher.SendUnreadCount(to.ID, count)
	}

	if d.devices != nil && !d.pusher.IsUserConnected(to.ID) {
		if err := d.devices.PushNotification(ctx, to, n); err != nil {
			d.log.WithField("user_id", to.ID).WithError(err).Warn("Device push failed")
		}
	}
}

// SendReminderNotification notifies the reminder's owner on the reminder's
// channel, in-app when unset.
func (d *Dispatcher) SendReminderNotification(ctx context.Context, reminder *models.Reminder, task *models.Task) bool {
	if reminder == nil {
		return false
	}
	log := d.log.WithField("reminder_id", reminder.ID)

	var recipients []models.UserRef
	switch {
	case reminder.User != nil:
		recipients = []models.UserRef{reminder.User.Ref()}
	case reminder.UserID != nil:
		users, err := d.users.FindUsersByIDs(ctx, []uuid.UUID{*reminder.UserID}, nil)
		if err != nil {
			log.WithError(err).Error("Failed to resolve reminder recipient")
			return false
		}
		recipients = users
	}
	if len(recipients) == 0 {
		log.Warn("Reminder has no resolvable recipient")
		return false
	}

	channel, ok := ReminderChannel(reminder)
	if !ok {
		log.WithField("channel", reminder.Channel).Warn("Reminder has an unknown channel")
	}

	return d.SendNotification(ctx, Intent{
		Channel:    channel,
		Reminder:   reminder,
		Task:       task,
		Recipients: recipients,
	})
}

// SendEscalationNotification emails the recipients and notifies them in-app.
// The in-app copy keeps the escalation visible in the notification list when
// email is disabled or bounces. It reports true if either channel reached
// someone. orgID, when set, drops recipients outside that organization.
func (d *Dispatcher) SendEscalationNotification(ctx context.Context, reason, level string, project *models.Project, recipientIDs []uuid.UUID, additionalInfo string, orgID *uuid.UUID) bool {
	if project == nil || len(recipientIDs) == 0 {
		d.log.Warn("Escalation without project or recipients")
		return false
	}
	log := d.log.WithFields(logrus.Fields{"project_id": project.ID, "level": level})

	recipients, err := d.users.FindUsersByIDs(ctx, recipientIDs, orgID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve escalation recipients")
		return false
	}
	if len(recipients) == 0 {
		log.Warn("No escalation recipients found")
		return false
	}

	intent := Intent{
		Project:          project,
		Recipients:       recipients,
		EscalationReason: reason,
		EscalationLevel:  level,
		AdditionalInfo:   additionalInfo,
	}
	intent.Channel = ChannelEmail
	emailed := d.SendNotification(ctx, intent)
	intent.Channel = ChannelInApp
	notified := d.SendNotification(ctx, intent)
	return emailed || notified
}
