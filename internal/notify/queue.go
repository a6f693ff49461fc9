package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/sirupsen/logrus"
)

var ErrQueueClosed = errors.New("notification queue closed")

// Port is the fire-and-forget boundary producers hand intents to.
type Port interface {
	Enqueue(intent Intent) bool
}

// Sender is the synchronous dispatch contract the queue drains into.
type Sender interface {
	SendNotification(ctx context.Context, intent Intent) bool
}

// Queue is a bounded Port drained by a fixed worker pool.
type Queue struct {
	sender  Sender
	jobs    chan Intent
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewQueue(sender Sender, size, workers int, m *metrics.Metrics, log logrus.FieldLogger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		sender:  sender,
		jobs:    make(chan Intent, size),
		metrics: m,
		log:     log.WithField("component", "notify_queue"),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

// Enqueue never blocks. It returns false when the queue is full or closed.
func (q *Queue) Enqueue(intent Intent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(intent, ErrQueueClosed)
		return false
	}
	select {
	case q.jobs <- intent:
		return true
	default:
		q.drop(intent, errors.New("queue full"))
		return false
	}
}

func (q *Queue) drop(intent Intent, err error) {
	q.metrics.QueueDropped.Inc()
	q.log.WithField("channel", intent.Channel.String()).WithError(err).Warn("Dropped notification")
}

func (q *Queue) work() {
	defer q.wg.Done()
	for intent := range q.jobs {
		if !q.sender.SendNotification(context.Background(), intent) {
			q.log.WithFields(logrus.Fields{
				"channel":    intent.Channel.String(),
				"recipients": len(intent.Recipients),
			}).Warn("Notification was not delivered")
		}
	}
}

// Close stops accepting intents and waits for queued ones to be sent or for
// ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
