package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all EventOps metrics
const namespace = "eventops"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// EventsCreatedTotal counts events created by organizers
var EventsCreatedTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_created_total",
		Help:      "Total number of events created",
	},
)

// EventStatusChangesTotal counts lifecycle transitions by target status
var EventStatusChangesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_status_changes_total",
		Help:      "Total number of event lifecycle transitions",
	},
	[]string{"status"},
)

// AttendeeRegistrationsTotal counts attendee registrations
var AttendeeRegistrationsTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendee_registrations_total",
		Help:      "Total number of attendee registrations",
	},
)

// WebhookDeliveriesTotal counts webhook delivery attempts by kind and result
var WebhookDeliveriesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Total number of webhook delivery attempts",
	},
	[]string{"kind", "result"}, // result: success|failure
)

// WebhookEndpointsDisabledTotal counts endpoints auto-disabled after repeated failures
var WebhookEndpointsDisabledTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_endpoints_disabled_total",
		Help:      "Total number of webhook endpoints auto-disabled after repeated failures",
	},
)

// RateLimitRejectionsTotal counts requests rejected by the rate limiter
var RateLimitRejectionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Total number of requests rejected by the rate limiter",
	},
	[]string{"kind"}, // kind: api|login|ai
)

// AITokensConsumedTotal counts AI tokens charged against daily quotas
var AITokensConsumedTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_tokens_consumed_total",
		Help:      "Total number of AI tokens charged against daily quotas",
	},
)

// AIQuotaRejectionsTotal counts AI requests rejected for exhausted quota
var AIQuotaRejectionsTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_quota_rejections_total",
		Help:      "Total number of AI requests rejected because the daily quota was exhausted",
	},
)

// EmailsSentTotal counts outbound emails by result
var EmailsSentTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Total number of outbound emails",
	},
	[]string{"result"}, // result: success|error|disabled
)

// Init initializes the metrics registry and sets version information
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
