package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnold/partnerhub-api/internal/config"
	"github.com/arnold/partnerhub-api/internal/database"
	"github.com/arnold/partnerhub-api/internal/digest"
	"github.com/arnold/partnerhub-api/internal/handlers"
	"github.com/arnold/partnerhub-api/internal/logger"
	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/notify"
	"github.com/arnold/partnerhub-api/internal/realtime"
	"github.com/arnold/partnerhub-api/internal/reminders"
	"github.com/arnold/partnerhub-api/internal/routes"
	"github.com/arnold/partnerhub-api/internal/services"
	"github.com/arnold/partnerhub-api/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app is the fully wired process.
type app struct {
	log       *logrus.Entry
	db        *gorm.DB
	queue     *notify.Queue
	reminders *reminders.Producer
	digest    *digest.Scheduler
	http      *fiber.App
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.New("partnerhub", cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	st := store.New(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var transport services.Transport
	if cfg.SMTPEnabled() {
		transport = services.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	email := services.NewEmailService(transport, cfg.AppBaseURL, log.WithField("component", "email"))

	verifier := middleware.NewJWTVerifier(cfg.JWTSecret)
	origins := cfg.Origins()
	gateway := realtime.NewGateway(realtime.NewMemoryRegistry(log), verifier, origins, m, log)

	var opts []notify.Option
	if push := services.NewPushService(ctx, cfg.FCMServiceAccount, log.WithField("component", "push")); push.Enabled() {
		opts = append(opts, notify.WithDevicePush(push))
	}
	dispatcher := notify.NewDispatcher(st, st, email, gateway, m, log, opts...)
	queue := notify.NewQueue(dispatcher, cfg.QueueSize, cfg.QueueWorkers, m, log)

	producer, err := reminders.NewProducer(st, queue, cfg.ReminderPoll, log)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.DigestTimezone)
	if err != nil {
		return nil, fmt.Errorf("digest timezone %q: %w", cfg.DigestTimezone, err)
	}
	scheduler, err := digest.NewScheduler(st, email, digest.Config{
		Spec:      cfg.DigestCron,
		Location:  loc,
		BatchSize: cfg.DigestBatchSize,
	}, m, log)
	if err != nil {
		return nil, err
	}

	server := fiber.New(fiber.Config{AppName: "partnerhub"})
	routes.Setup(server, routes.Deps{
		Handlers: handlers.New(st, gateway, dispatcher, log),
		Gateway:  gateway,
		Verifier: verifier,
		Origins:  origins,
		Gatherer: reg,
	})

	return &app{
		log:       log,
		db:        db,
		queue:     queue,
		reminders: producer,
		digest:    scheduler,
		http:      server,
	}, nil
}

// shutdown stops producers before draining the queue they feed.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.http.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if err := a.reminders.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reminders: %w", err))
	}
	if err := a.digest.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("digest: %w", err))
	}
	if err := a.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
