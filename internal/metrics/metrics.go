// Package metrics exposes Prometheus instrumentation for the delivery
// pipeline. Counters are package-level and registered on the default
// registry; the HTTP layer mounts Handler at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campaigner"

var (
	// MessagesSent counts messages accepted by the mailbox provider.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "messages_sent_total",
		Help:      "Messages accepted by the mailbox provider.",
	})

	// MessagesFailed counts per-recipient send failures.
	MessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "messages_failed_total",
		Help:      "Per-recipient send failures.",
	})

	// CampaignsCompleted counts campaigns by their final delivery outcome.
	CampaignsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "campaigns_completed_total",
		Help:      "Campaign delivery attempts by outcome.",
	}, []string{"outcome"})

	// QuotaRejections counts sends rejected by the daily quota.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "quota_rejections_total",
		Help:      "Sends rejected by the daily quota.",
	})

	// AuthInvalidations counts mailbox credentials invalidated after
	// authorization-fatal provider errors.
	AuthInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "auth_invalidations_total",
		Help:      "Mailbox credentials invalidated after auth-fatal errors.",
	})

	// SchedulerTicks counts sweep executions.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Scheduler sweep executions.",
	})

	// CampaignsClaimed counts due campaigns claimed by the scheduler.
	CampaignsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "campaigns_claimed_total",
		Help:      "Due campaigns claimed by scheduler sweeps.",
	})
)

// Outcome labels for CampaignsCompleted.
const (
	OutcomeSent    = "sent"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
