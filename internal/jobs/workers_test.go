package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/ratelimit"
)

type endpointStore struct {
	endpoints map[string]*webhooks.Endpoint
	attempts  []webhooks.Attempt
	purged    time.Time
}

func newEndpointStore(endpoints ...*webhooks.Endpoint) *endpointStore {
	store := &endpointStore{endpoints: make(map[string]*webhooks.Endpoint)}
	for _, endpoint := range endpoints {
		store.endpoints[endpoint.ULID] = endpoint
	}
	return store
}

func (s *endpointStore) Create(_ context.Context, params webhooks.EndpointParams) (*webhooks.Endpoint, error) {
	endpoint := &webhooks.Endpoint{
		ULID:      params.ULID,
		OwnerULID: params.OwnerULID,
		URL:       params.URL,
		Secret:    params.Secret,
		Kinds:     params.Kinds,
	}
	s.endpoints[params.ULID] = endpoint
	return endpoint, nil
}

func (s *endpointStore) GetByULID(_ context.Context, ulid string) (*webhooks.Endpoint, error) {
	if endpoint, ok := s.endpoints[ulid]; ok {
		copied := *endpoint
		return &copied, nil
	}
	return nil, webhooks.ErrNotFound
}

func (s *endpointStore) ListByOwner(_ context.Context, ownerULID string) ([]webhooks.Endpoint, error) {
	return nil, nil
}

func (s *endpointStore) ListSubscribed(_ context.Context, ownerULID string, kind webhooks.Kind) ([]webhooks.Endpoint, error) {
	return nil, nil
}

func (s *endpointStore) Update(_ context.Context, ulid string, url string, kinds []webhooks.Kind) (*webhooks.Endpoint, error) {
	return nil, webhooks.ErrNotFound
}

func (s *endpointStore) SetDisabled(_ context.Context, ulid string, disabled bool) error {
	endpoint, ok := s.endpoints[ulid]
	if !ok {
		return webhooks.ErrNotFound
	}
	endpoint.Disabled = disabled
	return nil
}

func (s *endpointStore) Delete(_ context.Context, ulid string) error {
	delete(s.endpoints, ulid)
	return nil
}

func (s *endpointStore) RecordAttempt(_ context.Context, attempt webhooks.Attempt) error {
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *endpointStore) ListAttempts(_ context.Context, endpointULID string, limit int) ([]webhooks.Attempt, error) {
	return s.attempts, nil
}

func (s *endpointStore) ResetFailures(_ context.Context, ulid string) error {
	endpoint, ok := s.endpoints[ulid]
	if !ok {
		return webhooks.ErrNotFound
	}
	endpoint.ConsecutiveFailures = 0
	return nil
}

func (s *endpointStore) IncrementFailures(_ context.Context, ulid string) (int, error) {
	endpoint, ok := s.endpoints[ulid]
	if !ok {
		return 0, webhooks.ErrNotFound
	}
	endpoint.ConsecutiveFailures++
	return endpoint.ConsecutiveFailures, nil
}

func (s *endpointStore) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.purged = cutoff
	deleted := int64(len(s.attempts))
	s.attempts = nil
	return deleted, nil
}

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueDelivery(context.Context, webhooks.Delivery) error { return nil }

func deliveryWorker(t *testing.T, store *endpointStore) WebhookDeliveryWorker {
	t.Helper()
	service := webhooks.NewService(store, noopEnqueuer{}, 3, zerolog.Nop())
	return WebhookDeliveryWorker{
		Endpoints:  store,
		Webhooks:   service,
		Dispatcher: webhooks.NewDispatcher(2*time.Second, zerolog.Nop()),
	}
}

func deliveryJob(args WebhookDeliveryArgs) *river.Job[WebhookDeliveryArgs] {
	return &river.Job[WebhookDeliveryArgs]{Args: args}
}

func TestWebhookDeliveryWorkerSuccess(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newEndpointStore(&webhooks.Endpoint{
		ULID:                "ep1",
		URL:                 server.URL,
		Secret:              "whsec_test",
		Kinds:               []webhooks.Kind{webhooks.KindEventPublished},
		ConsecutiveFailures: 2,
	})
	worker := deliveryWorker(t, store)

	payload := json.RawMessage(`{"event":"ev1"}`)
	err := worker.Work(context.Background(), deliveryJob(WebhookDeliveryArgs{
		EndpointULID: "ep1",
		EventKind:    string(webhooks.KindEventPublished),
		Payload:      payload,
	}))
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(received))

	require.Len(t, store.attempts, 1)
	require.True(t, store.attempts[0].Success)
	require.Equal(t, http.StatusOK, store.attempts[0].StatusCode)
	require.Equal(t, 0, store.endpoints["ep1"].ConsecutiveFailures)
}

func TestWebhookDeliveryWorkerFailureReturnsErrorForRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := newEndpointStore(&webhooks.Endpoint{
		ULID:   "ep1",
		URL:    server.URL,
		Secret: "whsec_test",
		Kinds:  []webhooks.Kind{webhooks.KindEventPublished},
	})
	worker := deliveryWorker(t, store)

	err := worker.Work(context.Background(), deliveryJob(WebhookDeliveryArgs{
		EndpointULID: "ep1",
		EventKind:    string(webhooks.KindEventPublished),
		Payload:      json.RawMessage(`{}`),
	}))
	require.Error(t, err)

	require.Len(t, store.attempts, 1)
	require.False(t, store.attempts[0].Success)
	require.Equal(t, 1, store.endpoints["ep1"].ConsecutiveFailures)
}

func TestWebhookDeliveryWorkerSkipsDisabledEndpoint(t *testing.T) {
	store := newEndpointStore(&webhooks.Endpoint{
		ULID:     "ep1",
		URL:      "http://127.0.0.1:1",
		Secret:   "whsec_test",
		Kinds:    []webhooks.Kind{webhooks.KindEventPublished},
		Disabled: true,
	})
	worker := deliveryWorker(t, store)

	err := worker.Work(context.Background(), deliveryJob(WebhookDeliveryArgs{
		EndpointULID: "ep1",
		EventKind:    string(webhooks.KindEventPublished),
		Payload:      json.RawMessage(`{}`),
	}))
	require.NoError(t, err)
	require.Empty(t, store.attempts)
}

func TestWebhookDeliveryWorkerIgnoresDeletedEndpoint(t *testing.T) {
	worker := deliveryWorker(t, newEndpointStore())

	err := worker.Work(context.Background(), deliveryJob(WebhookDeliveryArgs{
		EndpointULID: "gone",
		EventKind:    string(webhooks.KindEventPublished),
		Payload:      json.RawMessage(`{}`),
	}))
	require.NoError(t, err)
}

type fakeWindowStore struct {
	cutoff  time.Time
	deleted int64
}

func (s *fakeWindowStore) Increment(_ context.Context, identifier string, kind ratelimit.Kind, window time.Duration) (int, time.Time, error) {
	return 1, time.Now(), nil
}

func (s *fakeWindowStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

func TestRateWindowPurgeWorker(t *testing.T) {
	store := &fakeWindowStore{deleted: 7}
	worker := RateWindowPurgeWorker{
		Limiter:   ratelimit.NewLimiter(store, nil, zerolog.Nop()),
		Retention: 24 * time.Hour,
		Logger:    zerolog.Nop(),
	}

	err := worker.Work(context.Background(), &river.Job[RateWindowPurgeArgs]{})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(-24*time.Hour), store.cutoff, 5*time.Second)
}

func TestWebhookAttemptPurgeWorker(t *testing.T) {
	store := newEndpointStore()
	store.attempts = []webhooks.Attempt{{EndpointULID: "ep1"}}
	service := webhooks.NewService(store, noopEnqueuer{}, 3, zerolog.Nop())

	worker := WebhookAttemptPurgeWorker{
		Webhooks:  service,
		Retention: 30 * 24 * time.Hour,
		Logger:    zerolog.Nop(),
	}

	err := worker.Work(context.Background(), &river.Job[WebhookAttemptPurgeArgs]{})
	require.NoError(t, err)
	require.Empty(t, store.attempts)
	require.WithinDuration(t, time.Now().Add(-30*24*time.Hour), store.purged, 5*time.Second)
}

type fakeUsageRepo struct {
	cutoff time.Time
}

func (r *fakeUsageRepo) UpsertDayUsage(context.Context, string, time.Time, int64, int64) error {
	return nil
}

func (r *fakeUsageRepo) GetDayUsage(context.Context, string, time.Time) (*aiusage.DayUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) ListDayUsage(context.Context, time.Time, int) ([]aiusage.DayUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return 3, nil
}

func TestAIUsagePurgeWorker(t *testing.T) {
	repo := &fakeUsageRepo{}
	worker := AIUsagePurgeWorker{
		Usage:     repo,
		Retention: 90 * 24 * time.Hour,
		Logger:    zerolog.Nop(),
	}

	err := worker.Work(context.Background(), &river.Job[AIUsagePurgeArgs]{})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(-90*24*time.Hour), repo.cutoff, 5*time.Second)
}
