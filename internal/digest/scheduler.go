package digest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 50

// Mailer sends one rendered digest.
type Mailer interface {
	SendDigestEmail(ctx context.Context, user models.UserRef, snapshot *models.DigestSnapshot) bool
}

type Config struct {
	Spec      string // cron expression, e.g. "0 8 * * *"
	Location  *time.Location
	BatchSize int
}

// RunStats summarizes one digest run.
type RunStats struct {
	Eligible int
	Sent     int
	Skipped  int
	Failed   int
}

type Scheduler struct {
	store   Store
	mailer  Mailer
	cfg     Config
	cron    *cron.Cron
	running atomic.Bool
	now     func() time.Time
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewScheduler(store Store, mailer Mailer, cfg Config, m *metrics.Metrics, log logrus.FieldLogger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultBatchSize
	}
	log = log.WithField("component", "digest")

	s := &Scheduler{
		store:   store,
		mailer:  mailer,
		cfg:     cfg,
		now:     time.Now,
		metrics: m,
		log:     log,
	}

	cronLog := cron.PrintfLogger(log)
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if cfg.Spec != "" {
		if _, err := s.cron.AddFunc(cfg.Spec, func() { s.Run(context.Background()) }); err != nil {
			return nil, fmt.Errorf("scheduling digest %q: %w", cfg.Spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithFields(logrus.Fields{"spec": s.cfg.Spec, "timezone": s.cfg.Location.String()}).Info("Digest scheduler started")
}

// Stop halts the trigger and waits for a running digest to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run sends one digest to every eligible user. A call made while another run
// is in progress returns immediately with empty stats.
func (s *Scheduler) Run(ctx context.Context) RunStats {
	var stats RunStats
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Digest run already in progress, skipping")
		return stats
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() { s.metrics.DigestRunDuration.Observe(time.Since(start).Seconds()) }()

	users, err := s.store.ActiveUsers(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to load users for digest")
		return stats
	}

	var eligible []models.UserProfile
	for _, u := range users {
		if u.Preferences.WantsDigest() {
			eligible = append(eligible, u)
		}
	}
	stats.Eligible = len(eligible)

	now := s.now().In(s.cfg.Location)
	results := make([]string, len(eligible))
	for lo := 0; lo < len(eligible); lo += s.cfg.BatchSize {
		hi := lo + s.cfg.BatchSize
		if hi > len(eligible) {
			hi = len(eligible)
		}

		// batches run one after another, users inside a batch concurrently
		var g errgroup.Group
		g.SetLimit(s.cfg.BatchSize)
		for i := lo; i < hi; i++ {
			i := i
			g.Go(func() error {
				results[i] = s.processUser(ctx, &eligible[i], now)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, r := range results {
		switch r {
		case resultSent:
			stats.Sent++
		case resultSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
		s.metrics.DigestEmails.WithLabelValues(r).Inc()
	}

	s.log.WithFields(logrus.Fields{
		"eligible": stats.Eligible,
		"sent":     stats.Sent,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
		"duration": time.Since(start).String(),
	}).Info("Digest run finished")
	return stats
}

const (
	resultSent    = "sent"
	resultSkipped = "skipped"
	resultFailed  = "failed"
)

func (s *Scheduler) processUser(ctx context.Context, user *models.UserProfile, now time.Time) (result string) {
	log := s.log.WithField("user_id", user.ID)
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Digest panicked: %v", p)
			result = resultFailed
		}
	}()

	snapshot, err := BuildSnapshot(ctx, s.store, user.ID, now)
	if err != nil {
		log.WithError(err).Error("Failed to build digest")
		return resultFailed
	}
	if snapshot.Empty() {
		return resultSkipped
	}
	if !s.mailer.SendDigestEmail(ctx, user.Ref(), snapshot) {
		log.Warn("Digest email was not sent")
		return resultFailed
	}
	return resultSent
}
