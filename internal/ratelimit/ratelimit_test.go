package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	windows map[string]*window
	fail    bool
	now     time.Time
}

type window struct {
	count     int
	startedAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{windows: make(map[string]*window), now: time.Now()}
}

func (f *fakeStore) Increment(_ context.Context, identifier string, kind Kind, windowDur time.Duration) (int, time.Time, error) {
	if f.fail {
		return 0, time.Time{}, errors.New("connection refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := identifier + "|" + string(kind)
	w, ok := f.windows[key]
	if !ok || f.now.Sub(w.startedAt) >= windowDur {
		w = &window{startedAt: f.now}
		f.windows[key] = w
	}
	w.count++
	return w.count, w.startedAt, nil
}

func (f *fakeStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for key, w := range f.windows {
		if w.startedAt.Before(cutoff) {
			delete(f.windows, key)
			removed++
		}
	}
	return removed, nil
}

func newTestLimiter(store Store) *Limiter {
	return NewLimiter(store, map[Kind]Limit{
		KindAPI:   {Max: 3, Window: time.Minute},
		KindLogin: {Max: 2, Window: 15 * time.Minute},
	}, zerolog.Nop())
}

func TestAllowWithinBudget(t *testing.T) {
	limiter := newTestLimiter(newFakeStore())

	for i := 0; i < 3; i++ {
		decision := limiter.Allow(context.Background(), KindAPI, "203.0.113.7")
		require.True(t, decision.Allowed)
	}
	// A distinct identifier gets its own window.
	decision := limiter.Allow(context.Background(), KindAPI, "203.0.113.8")
	require.True(t, decision.Allowed)
	require.Equal(t, 2, decision.Remaining)
}

func TestAllowRejectsOverBudgetWithRetryAfter(t *testing.T) {
	limiter := newTestLimiter(newFakeStore())

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(context.Background(), KindAPI, "203.0.113.7").Allowed)
	}

	decision := limiter.Allow(context.Background(), KindAPI, "203.0.113.7")
	require.False(t, decision.Allowed)
	require.Greater(t, decision.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, decision.RetryAfter, time.Minute)
}

func TestWindowResetsAfterElapsing(t *testing.T) {
	store := newFakeStore()
	limiter := newTestLimiter(store)

	for i := 0; i < 4; i++ {
		limiter.Allow(context.Background(), KindLogin, "203.0.113.7")
	}
	require.False(t, limiter.Allow(context.Background(), KindLogin, "203.0.113.7").Allowed)

	store.now = store.now.Add(16 * time.Minute)
	require.True(t, limiter.Allow(context.Background(), KindLogin, "203.0.113.7").Allowed)
}

func TestUnknownKindIsUnlimited(t *testing.T) {
	limiter := newTestLimiter(newFakeStore())

	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow(context.Background(), KindAI, "203.0.113.7").Allowed)
	}
}

func TestStoreFailureAllowsRequest(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	limiter := newTestLimiter(store)

	require.True(t, limiter.Allow(context.Background(), KindAPI, "203.0.113.7").Allowed)
}

func TestPurgeRemovesOldWindows(t *testing.T) {
	store := newFakeStore()
	store.now = time.Now().Add(-2 * time.Hour)
	limiter := newTestLimiter(store)

	limiter.Allow(context.Background(), KindAPI, "203.0.113.7")

	removed, err := limiter.Purge(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}
