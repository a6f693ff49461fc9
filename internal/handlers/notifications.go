package handlers

import (
	"errors"
	"strconv"

	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetNotifications returns paginated notifications for the current user
func (h *Handlers) GetNotifications(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	ctx := c.UserContext()
	notifications, total, err := h.store.ListNotifications(ctx, userID, page, limit)
	if err != nil {
		return h.internalError(c, err, "Failed to load notifications")
	}
	unread, err := h.store.UnreadCount(ctx, userID)
	if err != nil {
		return h.internalError(c, err, "Failed to load notifications")
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
		"unread":        unread,
		"page":          page,
		"limit":         limit,
	})
}

func (h *Handlers) GetUnreadCount(c *fiber.Ctx) error {
	count, err := h.store.UnreadCount(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return h.internalError(c, err, "Failed to count notifications")
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkNotificationRead marks a single notification as read
func (h *Handlers) MarkNotificationRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	notifID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid notification ID")
	}

	err := h.store.MarkNotificationRead(c.UserContext(), notifID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Notification not found")
	}
	if err != nil {
		return h.internalError(c, err, "Failed to update notification")
	}

	h.refreshUnread(c, userID)
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead marks all notifications as read for the current user
func (h *Handlers) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	updated, err := h.store.MarkAllNotificationsRead(c.UserContext(), userID)
	if err != nil {
		return h.internalError(c, err, "Failed to update notifications")
	}

	h.refreshUnread(c, userID)
	return c.JSON(fiber.Map{"success": true, "updated": updated})
}

// refreshUnread pushes the new badge count to the user's other tabs and devices.
func (h *Handlers) refreshUnread(c *fiber.Ctx, userID uuid.UUID) {
	count, err := h.store.UnreadCount(c.UserContext(), userID)
	if err != nil {
		h.log.WithField("user_id", userID).WithError(err).Warn("Failed to refresh unread count")
		return
	}
	h.pusher.SendUnreadCount(userID, count)
}

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handlers) RegisterDeviceToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || h.validate.Struct(req) != nil {
		return badRequest(c, "Token is required")
	}

	err := h.store.SetDeviceToken(c.UserContext(), userID, req.Token)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		return h.internalError(c, err, "Failed to save device token")
	}
	return c.JSON(fiber.Map{"success": true})
}
