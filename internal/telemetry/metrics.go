// Package telemetry exposes prometheus counters for the webhook and email
// pipelines. Counters register on the default registry served at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

type Metrics struct {
	WebhookEvents   *prometheus.CounterVec
	UsageIncrements *prometheus.CounterVec
	EmailDeliveries *prometheus.CounterVec
	OrphanedTasks   prometheus.Counter
}

// Module provides the metrics set.
var Module = fx.Provide(New)

func New() *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seohub_webhook_events_total",
			Help: "Inbound SEOWorks webhook events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		UsageIncrements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seohub_usage_increments_total",
			Help: "Dealership usage counter increments by category and outcome.",
		}, []string{"category", "outcome"}),
		EmailDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seohub_email_deliveries_total",
			Help: "Notification email delivery attempts by outcome.",
		}, []string{"outcome"}),
		OrphanedTasks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seohub_orphaned_tasks_total",
			Help: "Webhook events recorded as orphaned for manual reconciliation.",
		}),
	}
}
