package postgres

import (
	"context"
	"fmt"

	"github.com/eventops/server/internal/domain/stats"
)

var _ stats.Repository = (*StatsRepository)(nil)

type StatsRepository struct {
	db queryer
}

func (r *StatsRepository) PlatformTotals(ctx context.Context) (stats.Platform, error) {
	totals := stats.Platform{EventsByStatus: map[string]int{}}

	row := r.db.QueryRow(ctx, `
SELECT
    (SELECT count(*) FROM users WHERE role = 'organizer'),
    (SELECT count(*) FROM users WHERE role IN ('admin', 'superadmin')),
    (SELECT count(*) FROM users WHERE suspended),
    (SELECT count(*) FROM events),
    (SELECT count(*) FROM attendees),
    (SELECT count(*) FROM webhook_endpoints)`)
	if err := row.Scan(
		&totals.Organizers,
		&totals.Admins,
		&totals.SuspendedUsers,
		&totals.Events,
		&totals.Attendees,
		&totals.WebhookEndpoints,
	); err != nil {
		return stats.Platform{}, fmt.Errorf("platform totals: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM events GROUP BY status`)
	if err != nil {
		return stats.Platform{}, fmt.Errorf("events by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats.Platform{}, fmt.Errorf("scan status count: %w", err)
		}
		totals.EventsByStatus[status] = count
	}
	return totals, rows.Err()
}
