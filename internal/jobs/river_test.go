package jobs

import (
	"testing"
	"time"

	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyBackoffDoublesPerAttempt(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	tests := []struct {
		attempt int
		delay   time.Duration
	}{
		{1, 30 * time.Second},
		{2, 1 * time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{8, 30 * time.Minute},
		{12, 30 * time.Minute},
	}

	for _, tt := range tests {
		job := &rivertype.JobRow{
			Kind:        JobKindWebhookDelivery,
			Attempt:     tt.attempt,
			AttemptedAt: &now,
		}
		next := policy.NextRetry(job)
		require.Equal(t, tt.delay, next.Sub(now), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicyCapsAtMaxDelay(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	job := &rivertype.JobRow{
		Kind:        JobKindWebhookDelivery,
		Attempt:     20,
		AttemptedAt: &now,
	}
	require.Equal(t, 30*time.Minute, policy.NextRetry(job).Sub(now))
}

func TestRetryPolicyUnknownKindUsesDefault(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	job := &rivertype.JobRow{
		Kind:        "mystery",
		Attempt:     1,
		AttemptedAt: &now,
	}
	require.Equal(t, 30*time.Second, policy.NextRetry(job).Sub(now))
}

func TestInsertOptsForKind(t *testing.T) {
	opts := InsertOptsForKind(JobKindWebhookDelivery)
	require.Equal(t, WebhookDeliveryMaxAttempts, opts.MaxAttempts)
	require.Equal(t, QueueWebhooks, opts.Queue)

	opts = InsertOptsForKind(JobKindRateWindowPurge)
	require.Equal(t, PurgeMaxAttempts, opts.MaxAttempts)
	require.Empty(t, opts.Queue)
}
