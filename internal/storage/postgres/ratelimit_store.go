package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventops/server/internal/ratelimit"
)

var _ ratelimit.Store = (*RateWindowStore)(nil)

// RateWindowStore keeps one fixed-window counter row per (identifier, kind).
// The upsert below is the whole state machine: it resets the window when it
// has elapsed and increments it otherwise, atomically, so concurrent servers
// never lose a hit.
type RateWindowStore struct {
	db queryer
}

func (s *RateWindowStore) Increment(ctx context.Context, identifier string, kind ratelimit.Kind, window time.Duration) (int, time.Time, error) {
	var count int
	var windowStart time.Time
	err := s.db.QueryRow(ctx, `
INSERT INTO rate_limit_windows (identifier, limit_type, count, window_started_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (identifier, limit_type) DO UPDATE
   SET count = CASE
           WHEN rate_limit_windows.window_started_at <= now() - make_interval(secs => $3) THEN 1
           ELSE rate_limit_windows.count + 1
       END,
       window_started_at = CASE
           WHEN rate_limit_windows.window_started_at <= now() - make_interval(secs => $3) THEN now()
           ELSE rate_limit_windows.window_started_at
       END
RETURNING count, window_started_at`,
		identifier, string(kind), window.Seconds()).Scan(&count, &windowStart)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate window: %w", err)
	}
	return count, windowStart, nil
}

func (s *RateWindowStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM rate_limit_windows WHERE window_started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge rate windows: %w", err)
	}
	return tag.RowsAffected(), nil
}
