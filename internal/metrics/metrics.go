package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_redemptions_total",
			Help: "Ticket validation attempts by action taken and reason code",
		},
		[]string{"action", "reason"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_webhook_events_total",
			Help: "Payment provider webhook deliveries by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_purchases_total",
			Help: "Purchase intake requests by outcome",
		},
		[]string{"outcome"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_notifications_total",
			Help: "Ticket notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	PendingExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatepass_pending_expired_total",
			Help: "Pending purchases moved to failed by the expiration job",
		},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatepass_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
