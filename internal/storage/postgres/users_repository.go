package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	db queryer
}

const userColumns = `id, ulid, name, email, password_hash, role, suspended, created_at, updated_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.ULID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Suspended,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO users (ulid, name, email, password_hash, role, suspended)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns,
		params.ULID, params.Name, params.Email, params.PasswordHash, params.Role, params.Suspended)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, users.ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByULID(ctx context.Context, ulid string) (*users.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE ulid = $1`, ulid)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, filters users.Filters, paginationArgs users.Pagination) (users.ListResult, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Role != "" {
		conditions = append(conditions, "role = "+arg(filters.Role))
	}
	if filters.Suspended != nil {
		conditions = append(conditions, "suspended = "+arg(*filters.Suspended))
	}
	if filters.Query != "" {
		pattern := "%" + filters.Query + "%"
		conditions = append(conditions, "(name ILIKE "+arg(pattern)+" OR email ILIKE "+arg(pattern)+")")
	}

	if strings.TrimSpace(paginationArgs.After) != "" {
		cursor, err := pagination.Decode(paginationArgs.After)
		if err != nil {
			return users.ListResult{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)",
			arg(cursor.Timestamp.UTC()), arg(cursor.ULID)))
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at, ulid LIMIT ` + arg(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return users.ListResult{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return users.ListResult{}, err
		}
		items = append(items, *user)
	}
	if err := rows.Err(); err != nil {
		return users.ListResult{}, fmt.Errorf("list users: %w", err)
	}

	result := users.ListResult{Users: items}
	if len(items) > limit {
		result.Users = items[:limit]
		last := result.Users[limit-1]
		result.NextCursor = pagination.Encode(last.CreatedAt, last.ULID)
	}
	return result, nil
}

func (r *UserRepository) SetSuspended(ctx context.Context, ulid string, suspended bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET suspended = $2, updated_at = now() WHERE ulid = $1`, ulid, suspended)
	if err != nil {
		return fmt.Errorf("set user suspended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, ulid string, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE ulid = $1`, ulid, passwordHash)
	if err != nil {
		return fmt.Errorf("set user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) CreateInvitation(ctx context.Context, invitation users.Invitation) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO invitations (user_ulid, email, token_hash, invited_by, expires_at)
VALUES ($1, $2, $3, $4, $5)`,
		invitation.UserULID, invitation.Email, invitation.TokenHash, invitation.InvitedBy, invitation.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

func (r *UserRepository) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (*users.Invitation, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, user_ulid, email, token_hash, invited_by, expires_at, accepted, created_at
  FROM invitations
 WHERE token_hash = $1`, tokenHash)

	var invitation users.Invitation
	err := row.Scan(
		&invitation.ID,
		&invitation.UserULID,
		&invitation.Email,
		&invitation.TokenHash,
		&invitation.InvitedBy,
		&invitation.ExpiresAt,
		&invitation.Accepted,
		&invitation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrInvalidInvitation
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return &invitation, nil
}

func (r *UserRepository) MarkInvitationAccepted(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE invitations SET accepted = TRUE WHERE token_hash = $1 AND NOT accepted`, tokenHash)
	if err != nil {
		return fmt.Errorf("mark invitation accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrInvalidInvitation
	}
	return nil
}
