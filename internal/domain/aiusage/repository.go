package aiusage

import (
	"context"
	"errors"
	"time"
)

var ErrQuotaExceeded = errors.New("daily AI token quota exceeded")

type Repository interface {
	// UpsertDayUsage adds the deltas to the user's row for the given day,
	// creating it when absent.
	UpsertDayUsage(ctx context.Context, userULID string, day time.Time, tokens, requests int64) error
	GetDayUsage(ctx context.Context, userULID string, day time.Time) (*DayUsage, error)
	// ListDayUsage returns per-user usage for a day, highest spend first.
	ListDayUsage(ctx context.Context, day time.Time, limit int) ([]DayUsage, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
