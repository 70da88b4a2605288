package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	db queryer
}

const eventColumns = `id, ulid, organizer_ulid, name, description, venue, city,
       start_time, end_time, capacity, status, cancelled_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	var status string
	err := row.Scan(
		&event.ID,
		&event.ULID,
		&event.OrganizerULID,
		&event.Name,
		&event.Description,
		&event.Venue,
		&event.City,
		&event.StartTime,
		&event.EndTime,
		&event.Capacity,
		&status,
		&event.CancelledAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.Status = events.Status(status)
	return &event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO events (ulid, organizer_ulid, name, description, venue, city, start_time, end_time, capacity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+eventColumns,
		params.ULID, params.OrganizerULID, params.Name, params.Description,
		params.Venue, params.City, params.StartTime, params.EndTime, params.Capacity)
	return scanEvent(row)
}

func (r *EventRepository) GetByULID(ctx context.Context, ulid string) (*events.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE ulid = $1`, ulid)
	return scanEvent(row)
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, paginationArgs events.Pagination) (events.ListResult, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.OrganizerULID != "" {
		conditions = append(conditions, "organizer_ulid = "+arg(filters.OrganizerULID))
	}
	if filters.Status != "" {
		conditions = append(conditions, "status = "+arg(filters.Status))
	}
	if filters.City != "" {
		conditions = append(conditions, "lower(city) = lower("+arg(filters.City)+")")
	}
	if filters.StartDate != nil {
		conditions = append(conditions, "start_time >= "+arg(*filters.StartDate))
	}
	if filters.EndDate != nil {
		conditions = append(conditions, "start_time <= "+arg(*filters.EndDate))
	}
	if filters.Query != "" {
		pattern := "%" + filters.Query + "%"
		conditions = append(conditions, "(name ILIKE "+arg(pattern)+" OR description ILIKE "+arg(pattern)+")")
	}

	if strings.TrimSpace(paginationArgs.After) != "" {
		cursor, err := pagination.Decode(paginationArgs.After)
		if err != nil {
			return events.ListResult{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)",
			arg(cursor.Timestamp.UTC()), arg(cursor.ULID)))
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at, ulid LIMIT ` + arg(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var items []events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, err
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}

	result := events.ListResult{Events: items}
	if len(items) > limit {
		result.Events = items[:limit]
		last := result.Events[limit-1]
		result.NextCursor = pagination.Encode(last.CreatedAt, last.ULID)
	}
	return result, nil
}

func (r *EventRepository) Update(ctx context.Context, ulid string, params events.UpdateParams) (*events.Event, error) {
	assignments := []string{"updated_at = now()"}
	args := []any{ulid}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Name != nil {
		assignments = append(assignments, "name = "+arg(*params.Name))
	}
	if params.Description != nil {
		assignments = append(assignments, "description = "+arg(*params.Description))
	}
	if params.Venue != nil {
		assignments = append(assignments, "venue = "+arg(*params.Venue))
	}
	if params.City != nil {
		assignments = append(assignments, "city = "+arg(*params.City))
	}
	if params.StartTime != nil {
		assignments = append(assignments, "start_time = "+arg(*params.StartTime))
	}
	if params.EndTime != nil {
		assignments = append(assignments, "end_time = "+arg(*params.EndTime))
	}
	if params.Capacity != nil {
		assignments = append(assignments, "capacity = "+arg(*params.Capacity))
	}

	row := r.db.QueryRow(ctx, `
UPDATE events SET `+strings.Join(assignments, ", ")+`
 WHERE ulid = $1
RETURNING `+eventColumns, args...)
	return scanEvent(row)
}

func (r *EventRepository) SetStatus(ctx context.Context, ulid string, status events.Status, cancelledAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE events SET status = $2, cancelled_at = $3, updated_at = now() WHERE ulid = $1`,
		ulid, string(status), cancelledAt)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}
