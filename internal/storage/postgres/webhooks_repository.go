package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/jackc/pgx/v5"
)

var _ webhooks.Repository = (*WebhookRepository)(nil)

type WebhookRepository struct {
	db queryer
}

const endpointColumns = `id, ulid, owner_ulid, url, secret, kinds, disabled, consecutive_failures, created_at, updated_at`

func scanEndpoint(row pgx.Row) (*webhooks.Endpoint, error) {
	var endpoint webhooks.Endpoint
	var kinds []string
	err := row.Scan(
		&endpoint.ID,
		&endpoint.ULID,
		&endpoint.OwnerULID,
		&endpoint.URL,
		&endpoint.Secret,
		&kinds,
		&endpoint.Disabled,
		&endpoint.ConsecutiveFailures,
		&endpoint.CreatedAt,
		&endpoint.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, webhooks.ErrNotFound
		}
		return nil, fmt.Errorf("scan webhook endpoint: %w", err)
	}
	endpoint.Kinds = make([]webhooks.Kind, 0, len(kinds))
	for _, kind := range kinds {
		endpoint.Kinds = append(endpoint.Kinds, webhooks.Kind(kind))
	}
	return &endpoint, nil
}

func kindStrings(kinds []webhooks.Kind) []string {
	values := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		values = append(values, string(kind))
	}
	return values
}

func (r *WebhookRepository) Create(ctx context.Context, params webhooks.EndpointParams) (*webhooks.Endpoint, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO webhook_endpoints (ulid, owner_ulid, url, secret, kinds)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+endpointColumns,
		params.ULID, params.OwnerULID, params.URL, params.Secret, kindStrings(params.Kinds))
	return scanEndpoint(row)
}

func (r *WebhookRepository) GetByULID(ctx context.Context, ulid string) (*webhooks.Endpoint, error) {
	row := r.db.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE ulid = $1`, ulid)
	return scanEndpoint(row)
}

func (r *WebhookRepository) ListByOwner(ctx context.Context, ownerULID string) ([]webhooks.Endpoint, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+endpointColumns+` FROM webhook_endpoints WHERE owner_ulid = $1 ORDER BY created_at`, ownerULID)
	if err != nil {
		return nil, fmt.Errorf("list webhook endpoints: %w", err)
	}
	return collectEndpoints(rows)
}

func (r *WebhookRepository) ListSubscribed(ctx context.Context, ownerULID string, kind webhooks.Kind) ([]webhooks.Endpoint, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+endpointColumns+`
  FROM webhook_endpoints
 WHERE owner_ulid = $1 AND NOT disabled AND $2 = ANY (kinds)
 ORDER BY created_at`, ownerULID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list subscribed endpoints: %w", err)
	}
	return collectEndpoints(rows)
}

func collectEndpoints(rows pgx.Rows) ([]webhooks.Endpoint, error) {
	defer rows.Close()
	var items []webhooks.Endpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *endpoint)
	}
	return items, rows.Err()
}

func (r *WebhookRepository) Update(ctx context.Context, ulid string, url string, kinds []webhooks.Kind) (*webhooks.Endpoint, error) {
	row := r.db.QueryRow(ctx, `
UPDATE webhook_endpoints
   SET url = $2, kinds = $3, updated_at = now()
 WHERE ulid = $1
RETURNING `+endpointColumns, ulid, url, kindStrings(kinds))
	return scanEndpoint(row)
}

func (r *WebhookRepository) SetDisabled(ctx context.Context, ulid string, disabled bool) error {
	tag, err := r.db.Exec(ctx, `
UPDATE webhook_endpoints SET disabled = $2, updated_at = now() WHERE ulid = $1`, ulid, disabled)
	if err != nil {
		return fmt.Errorf("set endpoint disabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrNotFound
	}
	return nil
}

func (r *WebhookRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_endpoints WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrNotFound
	}
	return nil
}

func (r *WebhookRepository) RecordAttempt(ctx context.Context, attempt webhooks.Attempt) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO webhook_attempts (endpoint_ulid, kind, status_code, error, success)
VALUES ($1, $2, $3, $4, $5)`,
		attempt.EndpointULID, string(attempt.Kind), attempt.StatusCode, attempt.Error, attempt.Success)
	if err != nil {
		return fmt.Errorf("record webhook attempt: %w", err)
	}
	return nil
}

func (r *WebhookRepository) ListAttempts(ctx context.Context, endpointULID string, limit int) ([]webhooks.Attempt, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, endpoint_ulid, kind, status_code, error, success, attempted_at
  FROM webhook_attempts
 WHERE endpoint_ulid = $1
 ORDER BY attempted_at DESC
 LIMIT $2`, endpointULID, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook attempts: %w", err)
	}
	defer rows.Close()

	var items []webhooks.Attempt
	for rows.Next() {
		var attempt webhooks.Attempt
		var kind string
		if err := rows.Scan(
			&attempt.ID,
			&attempt.EndpointULID,
			&kind,
			&attempt.StatusCode,
			&attempt.Error,
			&attempt.Success,
			&attempt.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook attempt: %w", err)
		}
		attempt.Kind = webhooks.Kind(kind)
		items = append(items, attempt)
	}
	return items, rows.Err()
}

func (r *WebhookRepository) ResetFailures(ctx context.Context, ulid string) error {
	_, err := r.db.Exec(ctx, `
UPDATE webhook_endpoints SET consecutive_failures = 0, updated_at = now() WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("reset endpoint failures: %w", err)
	}
	return nil
}

func (r *WebhookRepository) IncrementFailures(ctx context.Context, ulid string) (int, error) {
	var failures int
	err := r.db.QueryRow(ctx, `
UPDATE webhook_endpoints
   SET consecutive_failures = consecutive_failures + 1, updated_at = now()
 WHERE ulid = $1
RETURNING consecutive_failures`, ulid).Scan(&failures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, webhooks.ErrNotFound
		}
		return 0, fmt.Errorf("increment endpoint failures: %w", err)
	}
	return failures, nil
}

func (r *WebhookRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge webhook attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
