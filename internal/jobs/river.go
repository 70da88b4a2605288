package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindWebhookDelivery     = "webhook_delivery"
	JobKindWebhookAttemptPurge = "webhook_attempt_purge"
	JobKindRateWindowPurge     = "rate_window_purge"
	JobKindAIUsagePurge        = "ai_usage_purge"
)

const (
	WebhookDeliveryMaxAttempts = 8
	PurgeMaxAttempts           = 3
)

// QueueWebhooks isolates outbound deliveries from housekeeping so a slow
// subscriber cannot starve the purge jobs.
const QueueWebhooks = "webhooks"

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the default retry policy configuration.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: PurgeMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindWebhookDelivery: {
				MaxAttempts: WebhookDeliveryMaxAttempts,
				BaseDelay:   30 * time.Second,
				MaxDelay:    30 * time.Minute,
			},
			JobKindWebhookAttemptPurge: {
				MaxAttempts: PurgeMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    10 * time.Minute,
			},
			JobKindRateWindowPurge: {
				MaxAttempts: PurgeMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    10 * time.Minute,
			},
			JobKindAIUsagePurge: {
				MaxAttempts: PurgeMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    10 * time.Minute,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}

	return time.Now().Add(delay)
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	config := NewRetryPolicy().configFor(kind)
	opts := river.InsertOpts{MaxAttempts: config.MaxAttempts}
	if kind == JobKindWebhookDelivery {
		opts.Queue = QueueWebhooks
	}
	return opts
}

// NewClientConfig builds a River client configuration with retry policy.
func NewClientConfig(workers *river.Workers, logger *slog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) *river.Config {
	policy := NewRetryPolicy()
	config := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			QueueWebhooks:      {MaxWorkers: 4},
		},
		Hooks: hooks,
	}
	if logger != nil {
		config.Logger = logger
		config.ErrorHandler = NewAlertingErrorHandler(logger, nil)
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, logger *slog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, logger, hooks, periodicJobs))
}

// NewPeriodicJobs creates the default housekeeping schedule. Elapsed rate
// windows are purged hourly; webhook attempts and stale usage rows daily.
func NewPeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(1*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return RateWindowPurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return WebhookAttemptPurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return AIUsagePurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: PurgeMaxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}
