package handlers

import (
	"errors"
	"time"

	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/gofiber/fiber/v2"
)

// SendReminder delivers one of the caller's reminders now instead of waiting
// for its remind time.
func (h *Handlers) SendReminder(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	reminderID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid reminder ID")
	}

	ctx := c.UserContext()
	reminder, err := h.store.FindReminder(ctx, reminderID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Reminder not found")
	}
	if err != nil {
		return h.internalError(c, err, "Failed to load reminder")
	}
	// Other users' reminders look missing
	if reminder.UserID == nil || *reminder.UserID != userID {
		return notFound(c, "Reminder not found")
	}

	var task *models.Task
	if reminder.TaskID != nil {
		task, err = h.store.FindTask(ctx, *reminder.TaskID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return h.internalError(c, err, "Failed to load task")
		}
	}

	if !h.reminders.SendReminderNotification(ctx, reminder, task) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Reminder could not be delivered",
		})
	}

	if err := h.store.MarkReminderSent(ctx, reminder.ID, time.Now()); err != nil {
		h.log.WithField("reminder_id", reminder.ID).WithError(err).Warn("Failed to mark reminder sent")
	}
	return c.JSON(fiber.Map{"success": true})
}
