package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/ratelimit"
)

// WebhookDeliveryArgs carries one signed payload bound for one endpoint.
type WebhookDeliveryArgs struct {
	EndpointULID string          `json:"endpoint_ulid"`
	EventKind    string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
}

func (WebhookDeliveryArgs) Kind() string { return JobKindWebhookDelivery }

// WebhookDeliveryWorker posts a payload to a subscriber endpoint and records
// the outcome. A failed delivery returns its error so River retries it with
// backoff; the endpoint is auto-disabled once its failure streak crosses the
// configured threshold.
type WebhookDeliveryWorker struct {
	river.WorkerDefaults[WebhookDeliveryArgs]
	Endpoints  webhooks.Repository
	Webhooks   *webhooks.Service
	Dispatcher *webhooks.Dispatcher
}

func (WebhookDeliveryWorker) Kind() string { return JobKindWebhookDelivery }

func (w WebhookDeliveryWorker) Work(ctx context.Context, job *river.Job[WebhookDeliveryArgs]) error {
	if w.Endpoints == nil || w.Webhooks == nil || w.Dispatcher == nil {
		return fmt.Errorf("webhook delivery worker not configured")
	}

	endpoint, err := w.Endpoints.GetByULID(ctx, job.Args.EndpointULID)
	if errors.Is(err, webhooks.ErrNotFound) {
		// Endpoint deleted while the job was queued; nothing to deliver.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load webhook endpoint: %w", err)
	}
	if endpoint.Disabled {
		return nil
	}

	kind := webhooks.Kind(job.Args.EventKind)
	delivery := webhooks.Delivery{
		EndpointULID: endpoint.ULID,
		Kind:         kind,
		Payload:      job.Args.Payload,
	}

	status, deliveryErr := w.Dispatcher.Deliver(ctx, *endpoint, delivery)
	result := "success"
	if deliveryErr != nil {
		result = "failure"
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues(job.Args.EventKind, result).Inc()

	if err := w.Webhooks.HandleResult(ctx, endpoint.ULID, kind, status, deliveryErr); err != nil {
		return fmt.Errorf("record delivery result: %w", err)
	}
	if deliveryErr != nil {
		return fmt.Errorf("deliver webhook: %w", deliveryErr)
	}
	return nil
}

// RateWindowPurgeArgs defines the job for dropping elapsed rate limit windows.
type RateWindowPurgeArgs struct{}

func (RateWindowPurgeArgs) Kind() string { return JobKindRateWindowPurge }

// RateWindowPurgeWorker removes rate limit windows old enough that no limit
// can consult them again.
type RateWindowPurgeWorker struct {
	river.WorkerDefaults[RateWindowPurgeArgs]
	Limiter   *ratelimit.Limiter
	Retention time.Duration
	Logger    zerolog.Logger
}

func (RateWindowPurgeWorker) Kind() string { return JobKindRateWindowPurge }

func (w RateWindowPurgeWorker) Work(ctx context.Context, job *river.Job[RateWindowPurgeArgs]) error {
	if w.Limiter == nil {
		return fmt.Errorf("rate limiter not configured")
	}

	deleted, err := w.Limiter.Purge(ctx, w.Retention)
	if err != nil {
		return fmt.Errorf("purge rate windows: %w", err)
	}
	if deleted > 0 {
		w.Logger.Info().Int64("deleted", deleted).Msg("purged elapsed rate limit windows")
	}
	return nil
}

// WebhookAttemptPurgeArgs defines the job for trimming old delivery attempts.
type WebhookAttemptPurgeArgs struct{}

func (WebhookAttemptPurgeArgs) Kind() string { return JobKindWebhookAttemptPurge }

// WebhookAttemptPurgeWorker removes delivery attempt rows past retention.
type WebhookAttemptPurgeWorker struct {
	river.WorkerDefaults[WebhookAttemptPurgeArgs]
	Webhooks  *webhooks.Service
	Retention time.Duration
	Logger    zerolog.Logger
}

func (WebhookAttemptPurgeWorker) Kind() string { return JobKindWebhookAttemptPurge }

func (w WebhookAttemptPurgeWorker) Work(ctx context.Context, job *river.Job[WebhookAttemptPurgeArgs]) error {
	if w.Webhooks == nil {
		return fmt.Errorf("webhook service not configured")
	}

	deleted, err := w.Webhooks.PurgeAttempts(ctx, time.Now().Add(-w.Retention))
	if err != nil {
		return fmt.Errorf("purge webhook attempts: %w", err)
	}
	if deleted > 0 {
		w.Logger.Info().Int64("deleted", deleted).Msg("purged old webhook delivery attempts")
	}
	return nil
}

// AIUsagePurgeArgs defines the job for dropping stale daily usage rows.
type AIUsagePurgeArgs struct{}

func (AIUsagePurgeArgs) Kind() string { return JobKindAIUsagePurge }

// AIUsagePurgeWorker removes daily AI usage rows past retention. Quota checks
// only ever read the current day, so old rows exist purely for reporting.
type AIUsagePurgeWorker struct {
	river.WorkerDefaults[AIUsagePurgeArgs]
	Usage     aiusage.Repository
	Retention time.Duration
	Logger    zerolog.Logger
}

func (AIUsagePurgeWorker) Kind() string { return JobKindAIUsagePurge }

func (w AIUsagePurgeWorker) Work(ctx context.Context, job *river.Job[AIUsagePurgeArgs]) error {
	if w.Usage == nil {
		return fmt.Errorf("ai usage repository not configured")
	}

	deleted, err := w.Usage.DeleteBefore(ctx, time.Now().Add(-w.Retention))
	if err != nil {
		return fmt.Errorf("purge ai usage rows: %w", err)
	}
	if deleted > 0 {
		w.Logger.Info().Int64("deleted", deleted).Msg("purged stale ai usage rows")
	}
	return nil
}

// WorkerDeps carries everything the worker set needs at registration time.
type WorkerDeps struct {
	Endpoints           webhooks.Repository
	Webhooks            *webhooks.Service
	Dispatcher          *webhooks.Dispatcher
	Limiter             *ratelimit.Limiter
	Usage               aiusage.Repository
	RateWindowRetention time.Duration
	AttemptRetention    time.Duration
	UsageRetention      time.Duration
	Logger              zerolog.Logger
}

// NewWorkers registers the full worker set.
func NewWorkers(deps WorkerDeps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[WebhookDeliveryArgs](workers, WebhookDeliveryWorker{
		Endpoints:  deps.Endpoints,
		Webhooks:   deps.Webhooks,
		Dispatcher: deps.Dispatcher,
	})
	river.AddWorker[RateWindowPurgeArgs](workers, RateWindowPurgeWorker{
		Limiter:   deps.Limiter,
		Retention: deps.RateWindowRetention,
		Logger:    deps.Logger.With().Str("component", "rate_window_purge").Logger(),
	})
	river.AddWorker[WebhookAttemptPurgeArgs](workers, WebhookAttemptPurgeWorker{
		Webhooks:  deps.Webhooks,
		Retention: deps.AttemptRetention,
		Logger:    deps.Logger.With().Str("component", "webhook_attempt_purge").Logger(),
	})
	river.AddWorker[AIUsagePurgeArgs](workers, AIUsagePurgeWorker{
		Usage:     deps.Usage,
		Retention: deps.UsageRetention,
		Logger:    deps.Logger.With().Str("component", "ai_usage_purge").Logger(),
	})
	return workers
}
