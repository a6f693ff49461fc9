package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "partnerhub"

// Metrics holds the Prometheus collectors of the notification core.
type Metrics struct {
	Dispatches        *prometheus.CounterVec
	RecipientFailures *prometheus.CounterVec
	QueueDropped      prometheus.Counter

	LiveConnections  prometheus.Gauge
	HandshakeRejects *prometheus.CounterVec
	SubscribeRejects prometheus.Counter
	PushedEvents     *prometheus.CounterVec

	DigestEmails      *prometheus.CounterVec
	DigestRunDuration prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "dispatches_total",
				Help:      "Notification dispatches by requested channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		RecipientFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "recipient_failures_total",
				Help:      "Per-recipient delivery failures by branch",
			},
			[]string{"branch"},
		),
		QueueDropped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "queue_dropped_total",
				Help:      "Intents rejected because the queue was full or closed",
			},
		),
		LiveConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "connections",
				Help:      "Authenticated realtime connections",
			},
		),
		HandshakeRejects: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "handshake_rejects_total",
				Help:      "Rejected realtime handshakes by reason",
			},
			[]string{"reason"},
		),
		SubscribeRejects: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "subscribe_rejects_total",
				Help:      "Rejected subscribe requests",
			},
		),
		PushedEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "pushed_events_total",
				Help:      "Events written to live connections",
			},
			[]string{"event"},
		),
		DigestEmails: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "digest",
				Name:      "emails_total",
				Help:      "Digest outcomes per user",
			},
			[]string{"result"}, // sent, skipped, failed
		),
		DigestRunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "digest",
				Name:      "run_duration_seconds",
				Help:      "Duration of a full digest run",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
	}
}
