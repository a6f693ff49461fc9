package routes

import (
	"strings"

	"github.com/arnold/partnerhub-api/internal/handlers"
	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/realtime"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Handlers *handlers.Handlers
	Gateway  *realtime.Gateway
	Verifier middleware.TokenVerifier
	Origins  []string
	Gatherer prometheus.Gatherer
}

func Setup(app *fiber.App, d Deps) {
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(d.Origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", d.Handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	protected := api.Group("/", middleware.Protected(d.Verifier))

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", d.Handlers.GetNotifications)
	notifications.Get("/unread-count", d.Handlers.GetUnreadCount)
	notifications.Put("/:id/read", d.Handlers.MarkNotificationRead)
	notifications.Post("/read-all", d.Handlers.MarkAllRead)

	// Device token for push notifications
	protected.Post("/device-token", d.Handlers.RegisterDeviceToken)

	// External channel configuration
	protected.Get("/projects/:id/channels", d.Handlers.GetProjectChannels)
	protected.Post("/projects/:id/channels", d.Handlers.CreateChannel)
	protected.Put("/channels/:id/active", d.Handlers.SetChannelActive)

	protected.Post("/reminders/:id/send", d.Handlers.SendReminder)

	// WebSocket for real-time notifications
	app.Use("/ws", d.Gateway.Upgrade())
	app.Get("/ws/notifications", d.Gateway.Handler())
}
