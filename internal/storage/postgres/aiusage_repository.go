package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/jackc/pgx/v5"
)

var _ aiusage.Repository = (*AIUsageRepository)(nil)

type AIUsageRepository struct {
	db queryer
}

func (r *AIUsageRepository) UpsertDayUsage(ctx context.Context, userULID string, day time.Time, tokens, requests int64) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO ai_usage_daily (user_ulid, day, tokens_used, request_count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_ulid, day) DO UPDATE
   SET tokens_used = ai_usage_daily.tokens_used + EXCLUDED.tokens_used,
       request_count = ai_usage_daily.request_count + EXCLUDED.request_count`,
		userULID, day, tokens, requests)
	if err != nil {
		return fmt.Errorf("upsert ai usage: %w", err)
	}
	return nil
}

func (r *AIUsageRepository) GetDayUsage(ctx context.Context, userULID string, day time.Time) (*aiusage.DayUsage, error) {
	var usage aiusage.DayUsage
	err := r.db.QueryRow(ctx, `
SELECT user_ulid, day, tokens_used, request_count
  FROM ai_usage_daily
 WHERE user_ulid = $1 AND day = $2`, userULID, day).Scan(
		&usage.UserULID, &usage.Day, &usage.TokensUsed, &usage.RequestCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ai usage: %w", err)
	}
	return &usage, nil
}

func (r *AIUsageRepository) ListDayUsage(ctx context.Context, day time.Time, limit int) ([]aiusage.DayUsage, error) {
	rows, err := r.db.Query(ctx, `
SELECT user_ulid, day, tokens_used, request_count
  FROM ai_usage_daily
 WHERE day = $1
 ORDER BY tokens_used DESC
 LIMIT $2`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("list ai usage: %w", err)
	}
	defer rows.Close()

	var items []aiusage.DayUsage
	for rows.Next() {
		var usage aiusage.DayUsage
		if err := rows.Scan(&usage.UserULID, &usage.Day, &usage.TokensUsed, &usage.RequestCount); err != nil {
			return nil, fmt.Errorf("scan ai usage: %w", err)
		}
		items = append(items, usage)
	}
	return items, rows.Err()
}

func (r *AIUsageRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ai_usage_daily WHERE day < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge ai usage: %w", err)
	}
	return tag.RowsAffected(), nil
}
