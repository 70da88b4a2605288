package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/ratelimit"
)

type memoryWindowStore struct {
	counts map[string]int
	starts map[string]time.Time
}

func newMemoryWindowStore() *memoryWindowStore {
	return &memoryWindowStore{
		counts: make(map[string]int),
		starts: make(map[string]time.Time),
	}
}

func (s *memoryWindowStore) Increment(_ context.Context, identifier string, kind ratelimit.Kind, window time.Duration) (int, time.Time, error) {
	key := identifier + ":" + string(kind)
	start, ok := s.starts[key]
	if !ok || time.Since(start) >= window {
		s.starts[key] = time.Now()
		s.counts[key] = 1
		return 1, s.starts[key], nil
	}
	s.counts[key]++
	return s.counts[key], start, nil
}

func (s *memoryWindowStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func apiLimitHandler(max int) http.Handler {
	limiter := ratelimit.NewLimiter(newMemoryWindowStore(), map[ratelimit.Kind]ratelimit.Limit{
		ratelimit.KindAPI: {Max: max, Window: time.Minute},
	}, zerolog.Nop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter, ratelimit.KindAPI, nil, "test")(next)
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	handler := apiLimitHandler(2)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), auth.Actor{ULID: "u1", Role: auth.RoleOrganizer}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRateLimitCountsActorsSeparately(t *testing.T) {
	handler := apiLimitHandler(1)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first = first.WithContext(WithActor(first.Context(), auth.Actor{ULID: "u1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second = second.WithContext(WithActor(second.Context(), auth.Actor{ULID: "u2"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitAnonymousFallsBackToClientIP(t *testing.T) {
	handler := apiLimitHandler(1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4444"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginBurstLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := LoginBurstLimit(3, nil, "test")(next)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.7:1234"

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "180", rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	other := httptest.NewRequest(http.MethodPost, "/login", nil)
	other.RemoteAddr = "192.0.2.8:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClientKeyIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:2222"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	require.Equal(t, "203.0.113.5", clientKey(req, nil))
	require.Equal(t, "203.0.113.5", clientKey(req, []string{"10.0.0.0/8"}))
}

func TestClientKeyHonorsForwardedForFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:2222"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")

	require.Equal(t, "1.2.3.4", clientKey(req, []string{"10.0.0.0/8"}))
}
