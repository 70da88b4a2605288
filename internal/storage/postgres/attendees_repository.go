package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ attendees.Repository = (*AttendeeRepository)(nil)

type AttendeeRepository struct {
	db queryer
}

const attendeeColumns = `id, ulid, event_ulid, name, email, ticket_type, checked_in_at, created_at`

func scanAttendee(row pgx.Row) (*attendees.Attendee, error) {
	var attendee attendees.Attendee
	err := row.Scan(
		&attendee.ID,
		&attendee.ULID,
		&attendee.EventULID,
		&attendee.Name,
		&attendee.Email,
		&attendee.TicketType,
		&attendee.CheckedInAt,
		&attendee.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendees.ErrNotFound
		}
		return nil, fmt.Errorf("scan attendee: %w", err)
	}
	return &attendee, nil
}

func (r *AttendeeRepository) Create(ctx context.Context, params attendees.CreateParams) (*attendees.Attendee, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO attendees (ulid, event_ulid, name, email, ticket_type)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+attendeeColumns,
		params.ULID, params.EventULID, params.Name, params.Email, params.TicketType)

	attendee, err := scanAttendee(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, attendees.ErrDuplicateEmail
		}
		return nil, err
	}
	return attendee, nil
}

func (r *AttendeeRepository) GetByULID(ctx context.Context, ulid string) (*attendees.Attendee, error) {
	row := r.db.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE ulid = $1`, ulid)
	return scanAttendee(row)
}

func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventULID string, paginationArgs attendees.Pagination) (attendees.ListResult, error) {
	conditions := []string{"event_ulid = $1"}
	args := []any{eventULID}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if strings.TrimSpace(paginationArgs.After) != "" {
		cursor, err := pagination.Decode(paginationArgs.After)
		if err != nil {
			return attendees.ListResult{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)",
			arg(cursor.Timestamp.UTC()), arg(cursor.ULID)))
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at, ulid LIMIT ` + arg(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return attendees.ListResult{}, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var items []attendees.Attendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return attendees.ListResult{}, err
		}
		items = append(items, *attendee)
	}
	if err := rows.Err(); err != nil {
		return attendees.ListResult{}, fmt.Errorf("list attendees: %w", err)
	}

	result := attendees.ListResult{Attendees: items}
	if len(items) > limit {
		result.Attendees = items[:limit]
		last := result.Attendees[limit-1]
		result.NextCursor = pagination.Encode(last.CreatedAt, last.ULID)
	}
	return result, nil
}

func (r *AttendeeRepository) ListAllByEvent(ctx context.Context, eventULID string) ([]attendees.Attendee, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+attendeeColumns+` FROM attendees WHERE event_ulid = $1 ORDER BY created_at, ulid`, eventULID)
	if err != nil {
		return nil, fmt.Errorf("list all attendees: %w", err)
	}
	defer rows.Close()

	var items []attendees.Attendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *attendee)
	}
	return items, rows.Err()
}

func (r *AttendeeRepository) CountByEvent(ctx context.Context, eventULID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM attendees WHERE event_ulid = $1`, eventULID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendees: %w", err)
	}
	return count, nil
}

func (r *AttendeeRepository) EmailRegistered(ctx context.Context, eventULID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM attendees WHERE event_ulid = $1 AND lower(email) = lower($2))`,
		eventULID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendee email: %w", err)
	}
	return exists, nil
}

func (r *AttendeeRepository) SetCheckedIn(ctx context.Context, ulid string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE attendees SET checked_in_at = $2 WHERE ulid = $1`, ulid, at)
	if err != nil {
		return fmt.Errorf("set attendee checked in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendees.ErrNotFound
	}
	return nil
}

func (r *AttendeeRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM attendees WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendees.ErrNotFound
	}
	return nil
}
