// Package reminders turns due reminders into notification intents.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/arnold/partnerhub-api/internal/notify"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const pollLimit = 100

type Store interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	FindTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Producer polls for due reminders and hands them to the notification port.
type Producer struct {
	store   Store
	port    notify.Port
	cron    *cron.Cron
	polling atomic.Bool
	now     func() time.Time
	log     logrus.FieldLogger
}

// NewProducer schedules Poll on spec ("@every 1m" style or a cron expression).
func NewProducer(st Store, port notify.Port, spec string, log logrus.FieldLogger) (*Producer, error) {
	log = log.WithField("component", "reminders")
	p := &Producer{
		store: st,
		port:  port,
		now:   time.Now,
		log:   log,
	}

	cronLog := cron.PrintfLogger(log)
	p.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog)))
	if spec != "" {
		if _, err := p.cron.AddFunc(spec, func() { p.Poll(context.Background()) }); err != nil {
			return nil, fmt.Errorf("scheduling reminder poll %q: %w", spec, err)
		}
	}
	return p, nil
}

func (p *Producer) Start() { p.cron.Start() }

func (p *Producer) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll enqueues every due reminder and returns how many were accepted.
// Accepted reminders are marked sent; rejected ones are retried next poll.
func (p *Producer) Poll(ctx context.Context) int {
	if !p.polling.CompareAndSwap(false, true) {
		return 0
	}
	defer p.polling.Store(false)

	now := p.now()
	due, err := p.store.DueReminders(ctx, now, pollLimit)
	if err != nil {
		p.log.WithError(err).Error("Failed to load due reminders")
		return 0
	}

	enqueued := 0
	for i := range due {
		reminder := &due[i]
		log := p.log.WithField("reminder_id", reminder.ID)

		intent, err := p.Intent(ctx, reminder)
		switch {
		case errors.Is(err, ErrNoRecipient), errors.Is(err, ErrUnknownChannel):
			// nothing can deliver it, stop polling for it
			log.WithError(err).Warn("Dropping undeliverable reminder")
			p.markSent(ctx, reminder.ID, now)
			continue
		case err != nil:
			log.WithError(err).Error("Failed to prepare reminder, will retry")
			continue
		}
		if !p.port.Enqueue(intent) {
			log.Warn("Notification queue rejected reminder, will retry")
			continue
		}
		enqueued++
		p.markSent(ctx, reminder.ID, now)
	}

	if len(due) > 0 {
		p.log.WithFields(logrus.Fields{"due": len(due), "enqueued": enqueued}).Info("Reminder poll finished")
	}
	return enqueued
}

func (p *Producer) markSent(ctx context.Context, id uuid.UUID, at time.Time) {
	if err := p.store.MarkReminderSent(ctx, id, at); err != nil {
		p.log.WithField("reminder_id", id).WithError(err).Error("Failed to mark reminder sent")
	}
}

var (
	ErrNoRecipient    = errors.New("reminder has no recipient")
	ErrUnknownChannel = errors.New("reminder has an unknown channel")
)

// Intent builds the notification for a reminder with its preloaded user.
func (p *Producer) Intent(ctx context.Context, reminder *models.Reminder) (notify.Intent, error) {
	if reminder.User == nil {
		return notify.Intent{}, ErrNoRecipient
	}
	channel, ok := notify.ReminderChannel(reminder)
	if !ok {
		return notify.Intent{}, fmt.Errorf("%w: %q", ErrUnknownChannel, reminder.Channel)
	}

	var task *models.Task
	if reminder.TaskID != nil {
		t, err := p.store.FindTask(ctx, *reminder.TaskID)
		switch {
		case err == nil:
			task = t
		case errors.Is(err, store.ErrNotFound):
			// deleted task, remind without it
		default:
			return notify.Intent{}, fmt.Errorf("loading task: %w", err)
		}
	}

	return notify.Intent{
		Channel:    channel,
		Reminder:   reminder,
		Task:       task,
		Recipients: []models.UserRef{reminder.User.Ref()},
	}, nil
}
