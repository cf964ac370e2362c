package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total notifications delivered, by channel",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total delivery attempts that failed, by channel and kind",
		},
		[]string{"channel", "kind"},
	)

	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Alert rule matches that enqueued a new notification, by rule",
		},
		[]string{"rule"},
	)

	AlertsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_deduplicated_total",
			Help: "Alert rule matches suppressed by an existing non-terminal entry, by rule",
		},
		[]string{"rule"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_cycle_duration_seconds",
			Help: "Duration of scheduler-driven cycles, by job type",
		},
		[]string{"job"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Pending entries in the notification queue",
		},
	)
)
