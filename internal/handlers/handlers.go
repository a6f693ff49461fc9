// Package handlers exposes the notification core over the REST API.
package handlers

import (
	"context"
	"errors"

	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UnreadPusher refreshes the unread badge on the user's live connections.
type UnreadPusher interface {
	SendUnreadCount(userID uuid.UUID, count int64)
}

// ReminderSender delivers a reminder right away.
type ReminderSender interface {
	SendReminderNotification(ctx context.Context, reminder *models.Reminder, task *models.Task) bool
}

type Handlers struct {
	store     *store.Store
	pusher    UnreadPusher
	reminders ReminderSender
	validate  *validator.Validate
	log       logrus.FieldLogger
}

func New(st *store.Store, pusher UnreadPusher, reminders ReminderSender, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		store:     st,
		pusher:    pusher,
		reminders: reminders,
		validate:  validator.New(),
		log:       log.WithField("component", "api"),
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

// internalError logs err and answers 500 without leaking it.
func (h *Handlers) internalError(c *fiber.Ctx, err error, msg string) error {
	h.log.WithFields(logrus.Fields{"path": c.Path(), "method": c.Method()}).WithError(err).Error(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// callerOrg resolves the organization the caller's data is scoped to.
func (h *Handlers) callerOrg(c *fiber.Ctx, userID uuid.UUID) (*uuid.UUID, error) {
	return h.store.OrganizationOf(c.UserContext(), userID)
}

func (h *Handlers) orgFailure(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unknown user"})
	}
	return h.internalError(c, err, "Failed to resolve organization")
}

// Health reports whether the database answers.
func (h *Handlers) Health(c *fiber.Ctx) error {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		h.log.WithError(err).Warn("Health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
