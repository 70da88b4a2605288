package postgres

import (
	"context"
	"fmt"

	"github.com/eventops/server/internal/domain/moderation"
)

var _ moderation.Repository = (*ModerationRepository)(nil)

type ModerationRepository struct {
	db queryer
}

func (r *ModerationRepository) Append(ctx context.Context, entry moderation.Entry) (*moderation.Entry, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO moderation_log (actor_ulid, action, resource_type, resource_id, reason, ip)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING sequence, created_at`,
		entry.ActorULID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Reason, entry.IP)

	if err := row.Scan(&entry.Sequence, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("append moderation entry: %w", err)
	}
	return &entry, nil
}

func (r *ModerationRepository) ListAfter(ctx context.Context, afterSequence int64, limit int) ([]moderation.Entry, error) {
	rows, err := r.db.Query(ctx, `
SELECT sequence, actor_ulid, action, resource_type, resource_id, reason, ip, created_at
  FROM moderation_log
 WHERE sequence > $1
 ORDER BY sequence
 LIMIT $2`, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	var entries []moderation.Entry
	for rows.Next() {
		var entry moderation.Entry
		if err := rows.Scan(
			&entry.Sequence,
			&entry.ActorULID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Reason,
			&entry.IP,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
