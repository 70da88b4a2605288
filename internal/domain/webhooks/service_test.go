package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	endpoints map[string]*Endpoint
	attempts  []Attempt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{endpoints: make(map[string]*Endpoint)}
}

func (f *fakeRepo) Create(_ context.Context, params EndpointParams) (*Endpoint, error) {
	endpoint := &Endpoint{
		ULID:      params.ULID,
		OwnerULID: params.OwnerULID,
		URL:       params.URL,
		Secret:    params.Secret,
		Kinds:     params.Kinds,
		CreatedAt: time.Now(),
	}
	f.endpoints[params.ULID] = endpoint
	return endpoint, nil
}

func (f *fakeRepo) GetByULID(_ context.Context, ulid string) (*Endpoint, error) {
	if endpoint, ok := f.endpoints[ulid]; ok {
		copied := *endpoint
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) ListByOwner(_ context.Context, ownerULID string) ([]Endpoint, error) {
	var result []Endpoint
	for _, endpoint := range f.endpoints {
		if endpoint.OwnerULID == ownerULID {
			result = append(result, *endpoint)
		}
	}
	return result, nil
}

func (f *fakeRepo) ListSubscribed(_ context.Context, ownerULID string, kind Kind) ([]Endpoint, error) {
	var result []Endpoint
	for _, endpoint := range f.endpoints {
		if endpoint.OwnerULID == ownerULID && !endpoint.Disabled && endpoint.Subscribed(kind) {
			result = append(result, *endpoint)
		}
	}
	return result, nil
}

func (f *fakeRepo) Update(_ context.Context, ulid string, url string, kinds []Kind) (*Endpoint, error) {
	endpoint, ok := f.endpoints[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	endpoint.URL = url
	endpoint.Kinds = kinds
	copied := *endpoint
	return &copied, nil
}

func (f *fakeRepo) SetDisabled(_ context.Context, ulid string, disabled bool) error {
	endpoint, ok := f.endpoints[ulid]
	if !ok {
		return ErrNotFound
	}
	endpoint.Disabled = disabled
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, ulid string) error {
	delete(f.endpoints, ulid)
	return nil
}

func (f *fakeRepo) RecordAttempt(_ context.Context, attempt Attempt) error {
	attempt.AttemptedAt = time.Now()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeRepo) ListAttempts(_ context.Context, endpointULID string, limit int) ([]Attempt, error) {
	var result []Attempt
	for _, attempt := range f.attempts {
		if attempt.EndpointULID == endpointULID {
			result = append(result, attempt)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeRepo) ResetFailures(_ context.Context, ulid string) error {
	endpoint, ok := f.endpoints[ulid]
	if !ok {
		return ErrNotFound
	}
	endpoint.ConsecutiveFailures = 0
	return nil
}

func (f *fakeRepo) IncrementFailures(_ context.Context, ulid string) (int, error) {
	endpoint, ok := f.endpoints[ulid]
	if !ok {
		return 0, ErrNotFound
	}
	endpoint.ConsecutiveFailures++
	return endpoint.ConsecutiveFailures, nil
}

func (f *fakeRepo) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []Attempt
	var removed int64
	for _, attempt := range f.attempts {
		if attempt.AttemptedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, attempt)
	}
	f.attempts = kept
	return removed, nil
}

type fakeEnqueuer struct {
	deliveries []Delivery
	fail       bool
}

func (f *fakeEnqueuer) EnqueueDelivery(_ context.Context, delivery Delivery) error {
	if f.fail {
		return errors.New("queue unavailable")
	}
	f.deliveries = append(f.deliveries, delivery)
	return nil
}

var (
	owner    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ1", Role: auth.RoleOrganizer}
	stranger = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ2", Role: auth.RoleOrganizer}
)

func newTestService(repo Repository, enqueuer Enqueuer) *Service {
	return NewService(repo, enqueuer, 3, zerolog.Nop())
}

func createEndpoint(t *testing.T, svc *Service, kinds ...string) *Endpoint {
	t.Helper()
	endpoint, err := svc.Create(context.Background(), owner, Input{
		URL:   "https://hooks.example.test/inbound",
		Kinds: kinds,
	})
	require.NoError(t, err)
	return endpoint
}

func TestCreateEndpointGeneratesSecret(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeEnqueuer{})
	endpoint := createEndpoint(t, svc, "event.published")

	require.True(t, len(endpoint.Secret) > 10)
	require.Contains(t, endpoint.Secret, "whsec_")
}

func TestCreateEndpointRejectsUnknownKind(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeEnqueuer{})

	_, err := svc.Create(context.Background(), owner, Input{
		URL:   "https://hooks.example.test/inbound",
		Kinds: []string{"event.exploded"},
	})
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestCreateEndpointRejectsBadURL(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeEnqueuer{})

	_, err := svc.Create(context.Background(), owner, Input{
		URL:   "ftp://hooks.example.test",
		Kinds: []string{"event.published"},
	})
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestGetEndpointTenancy(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeEnqueuer{})
	endpoint := createEndpoint(t, svc, "event.published")

	_, err := svc.Get(context.Background(), stranger, endpoint.ULID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestEmitFansOutToSubscribers(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(newFakeRepo(), enqueuer)

	createEndpoint(t, svc, "event.published", "event.cancelled")
	createEndpoint(t, svc, "attendee.registered")

	svc.Emit(context.Background(), owner.ULID, KindEventPublished, map[string]string{"event_id": "01HYX3KQW7ERTV9XNBM2P8QJE1"})

	require.Len(t, enqueuer.deliveries, 1)
	require.Equal(t, KindEventPublished, enqueuer.deliveries[0].Kind)
}

func TestEmitSkipsDisabledEndpoints(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc := newTestService(newFakeRepo(), enqueuer)

	endpoint := createEndpoint(t, svc, "event.published")
	_, err := svc.SetDisabled(context.Background(), owner, endpoint.ULID, true)
	require.NoError(t, err)

	svc.Emit(context.Background(), owner.ULID, KindEventPublished, map[string]string{})
	require.Empty(t, enqueuer.deliveries)
}

func TestHandleResultDisablesAfterConsecutiveFailures(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeEnqueuer{})
	endpoint := createEndpoint(t, svc, "event.published")

	for i := 0; i < 3; i++ {
		err := svc.HandleResult(context.Background(), endpoint.ULID, KindEventPublished, 500, errors.New("endpoint returned 500"))
		require.NoError(t, err)
	}

	got, err := repo.GetByULID(context.Background(), endpoint.ULID)
	require.NoError(t, err)
	require.True(t, got.Disabled)
	require.Equal(t, 3, got.ConsecutiveFailures)
}

func TestHandleResultSuccessResetsStreak(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeEnqueuer{})
	endpoint := createEndpoint(t, svc, "event.published")

	require.NoError(t, svc.HandleResult(context.Background(), endpoint.ULID, KindEventPublished, 502, errors.New("endpoint returned 502")))
	require.NoError(t, svc.HandleResult(context.Background(), endpoint.ULID, KindEventPublished, 200, nil))

	got, err := repo.GetByULID(context.Background(), endpoint.ULID)
	require.NoError(t, err)
	require.False(t, got.Disabled)
	require.Equal(t, 0, got.ConsecutiveFailures)
}

func TestReenableClearsFailures(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeEnqueuer{})
	endpoint := createEndpoint(t, svc, "event.published")

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.HandleResult(context.Background(), endpoint.ULID, KindEventPublished, 500, errors.New("boom")))
	}

	enabled, err := svc.SetDisabled(context.Background(), owner, endpoint.ULID, false)
	require.NoError(t, err)
	require.False(t, enabled.Disabled)
	require.Equal(t, 0, enabled.ConsecutiveFailures)
}
