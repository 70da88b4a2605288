package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Kind names a counted activity. Each (identifier, kind) pair gets its own
// fixed window row.
type Kind string

const (
	KindAPI   Kind = "api"
	KindLogin Kind = "login"
	KindAI    Kind = "ai"
)

// Limit is a fixed-window budget: at most Max hits per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Store persists window counters. The increment must be atomic: concurrent
// callers for the same key may never lose an increment or double-reset a
// window.
type Store interface {
	// Increment bumps the counter for (identifier, kind), resetting the
	// window first if it has elapsed. It returns the post-increment count and
	// the window start.
	Increment(ctx context.Context, identifier string, kind Kind, window time.Duration) (count int, windowStart time.Time, err error)
	// DeleteBefore drops rows whose window started before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies fixed-window limits backed by a shared store, so every
// server instance counts against the same budget.
type Limiter struct {
	store  Store
	limits map[Kind]Limit
	logger zerolog.Logger
}

func NewLimiter(store Store, limits map[Kind]Limit, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limits: limits,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow counts one hit for the identifier. When the store is unreachable the
// request is allowed: availability wins over strictness for a limiter.
func (l *Limiter) Allow(ctx context.Context, kind Kind, identifier string) Decision {
	limit, ok := l.limits[kind]
	if !ok || limit.Max <= 0 {
		return Decision{Allowed: true}
	}

	count, windowStart, err := l.store.Increment(ctx, identifier, kind, limit.Window)
	if err != nil {
		l.logger.Warn().Err(err).Str("kind", string(kind)).Msg("rate limit store unavailable, allowing request")
		return Decision{Allowed: true}
	}

	if count > limit.Max {
		retryAfter := time.Until(windowStart.Add(limit.Window))
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: limit.Max - count}
}

// Purge removes windows old enough that they can never be consulted again.
func (l *Limiter) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return l.store.DeleteBefore(ctx, time.Now().Add(-retention))
}
