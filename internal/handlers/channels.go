package handlers

import (
	"errors"

	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/gofiber/fiber/v2"
)

func (h *Handlers) GetProjectChannels(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid project ID")
	}
	orgID, err := h.callerOrg(c, middleware.GetUserID(c))
	if err != nil {
		return h.orgFailure(c, err)
	}

	channels, err := h.store.ProjectChannels(c.UserContext(), projectID, orgID)
	if err != nil {
		return h.internalError(c, err, "Failed to load channels")
	}
	return c.JSON(fiber.Map{"channels": channels})
}

func (h *Handlers) CreateChannel(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	projectID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid project ID")
	}

	var req models.CreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	orgID, err := h.callerOrg(c, userID)
	if err != nil {
		return h.orgFailure(c, err)
	}

	channel := &models.NotificationChannel{
		Name:        req.Name,
		Type:        req.Type,
		ChannelID:   req.ChannelID,
		ProjectID:   projectID,
		IsActive:    true,
		CreatedByID: userID,
		Config:      req.Config,
	}
	err = h.store.CreateChannel(c.UserContext(), channel, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return h.internalError(c, err, "Failed to create channel")
	}
	return c.Status(fiber.StatusCreated).JSON(channel)
}

func (h *Handlers) SetChannelActive(c *fiber.Ctx) error {
	channelID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid channel ID")
	}

	var req models.SetChannelActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, "isActive is required")
	}

	orgID, err := h.callerOrg(c, middleware.GetUserID(c))
	if err != nil {
		return h.orgFailure(c, err)
	}

	channel, err := h.store.SetChannelActive(c.UserContext(), channelID, orgID, *req.IsActive)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Channel not found")
	}
	if err != nil {
		return h.internalError(c, err, "Failed to update channel")
	}
	return c.JSON(channel)
}
