package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ sponsors.Repository = (*SponsorRepository)(nil)

type SponsorRepository struct {
	db queryer
}

const sponsorColumns = `id, ulid, organizer_ulid, name, contact_email, website, created_at, updated_at`

func scanSponsor(row pgx.Row) (*sponsors.Sponsor, error) {
	var sponsor sponsors.Sponsor
	err := row.Scan(
		&sponsor.ID,
		&sponsor.ULID,
		&sponsor.OrganizerULID,
		&sponsor.Name,
		&sponsor.ContactEmail,
		&sponsor.Website,
		&sponsor.CreatedAt,
		&sponsor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sponsors.ErrNotFound
		}
		return nil, fmt.Errorf("scan sponsor: %w", err)
	}
	return &sponsor, nil
}

const sponsorshipColumns = `id, ulid, sponsor_ulid, event_ulid, tier, amount_cents, status, decided_by, decided_at, created_at`

func scanSponsorship(row pgx.Row) (*sponsors.Sponsorship, error) {
	var sponsorship sponsors.Sponsorship
	var tier, status string
	var decidedBy *string
	err := row.Scan(
		&sponsorship.ID,
		&sponsorship.ULID,
		&sponsorship.SponsorULID,
		&sponsorship.EventULID,
		&tier,
		&sponsorship.AmountCents,
		&status,
		&decidedBy,
		&sponsorship.DecidedAt,
		&sponsorship.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sponsors.ErrSponsorshipNotFound
		}
		return nil, fmt.Errorf("scan sponsorship: %w", err)
	}
	sponsorship.Tier = sponsors.Tier(tier)
	sponsorship.Status = sponsors.SponsorshipStatus(status)
	sponsorship.DecidedBy = derefString(decidedBy)
	return &sponsorship, nil
}

func (r *SponsorRepository) Create(ctx context.Context, params sponsors.SponsorParams) (*sponsors.Sponsor, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO sponsors (ulid, organizer_ulid, name, contact_email, website)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+sponsorColumns,
		params.ULID, params.OrganizerULID, params.Name, params.ContactEmail, params.Website)
	return scanSponsor(row)
}

func (r *SponsorRepository) GetByULID(ctx context.Context, ulid string) (*sponsors.Sponsor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE ulid = $1`, ulid)
	return scanSponsor(row)
}

func (r *SponsorRepository) List(ctx context.Context, organizerULID string, paginationArgs sponsors.Pagination) (sponsors.ListResult, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if organizerULID != "" {
		conditions = append(conditions, "organizer_ulid = "+arg(organizerULID))
	}
	if strings.TrimSpace(paginationArgs.After) != "" {
		cursor, err := pagination.Decode(paginationArgs.After)
		if err != nil {
			return sponsors.ListResult{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)",
			arg(cursor.Timestamp.UTC()), arg(cursor.ULID)))
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + sponsorColumns + ` FROM sponsors WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at, ulid LIMIT ` + arg(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return sponsors.ListResult{}, fmt.Errorf("list sponsors: %w", err)
	}
	defer rows.Close()

	var items []sponsors.Sponsor
	for rows.Next() {
		sponsor, err := scanSponsor(rows)
		if err != nil {
			return sponsors.ListResult{}, err
		}
		items = append(items, *sponsor)
	}
	if err := rows.Err(); err != nil {
		return sponsors.ListResult{}, fmt.Errorf("list sponsors: %w", err)
	}

	result := sponsors.ListResult{Sponsors: items}
	if len(items) > limit {
		result.Sponsors = items[:limit]
		last := result.Sponsors[limit-1]
		result.NextCursor = pagination.Encode(last.CreatedAt, last.ULID)
	}
	return result, nil
}

func (r *SponsorRepository) Update(ctx context.Context, ulid string, params sponsors.SponsorParams) (*sponsors.Sponsor, error) {
	row := r.db.QueryRow(ctx, `
UPDATE sponsors
   SET name = $2, contact_email = $3, website = $4, updated_at = now()
 WHERE ulid = $1
RETURNING `+sponsorColumns,
		ulid, params.Name, params.ContactEmail, params.Website)
	return scanSponsor(row)
}

func (r *SponsorRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sponsors WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete sponsor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sponsors.ErrNotFound
	}
	return nil
}

func (r *SponsorRepository) CreateSponsorship(ctx context.Context, sponsorship sponsors.Sponsorship) (*sponsors.Sponsorship, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO sponsorships (ulid, sponsor_ulid, event_ulid, tier, amount_cents, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+sponsorshipColumns,
		sponsorship.ULID, sponsorship.SponsorULID, sponsorship.EventULID,
		string(sponsorship.Tier), sponsorship.AmountCents, string(sponsorship.Status))

	created, err := scanSponsorship(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, sponsors.ErrDuplicateSponsorship
		}
		return nil, err
	}
	return created, nil
}

func (r *SponsorRepository) GetSponsorshipByULID(ctx context.Context, ulid string) (*sponsors.Sponsorship, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sponsorshipColumns+` FROM sponsorships WHERE ulid = $1`, ulid)
	return scanSponsorship(row)
}

func (r *SponsorRepository) ListSponsorshipsByEvent(ctx context.Context, eventULID string) ([]sponsors.Sponsorship, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+sponsorshipColumns+` FROM sponsorships WHERE event_ulid = $1 ORDER BY created_at`, eventULID)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	defer rows.Close()

	var items []sponsors.Sponsorship
	for rows.Next() {
		sponsorship, err := scanSponsorship(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *sponsorship)
	}
	return items, rows.Err()
}

func (r *SponsorRepository) HasOpenSponsorship(ctx context.Context, sponsorULID, eventULID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM sponsorships
     WHERE sponsor_ulid = $1 AND event_ulid = $2 AND status IN ('pending', 'approved')
)`, sponsorULID, eventULID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open sponsorship: %w", err)
	}
	return exists, nil
}

func (r *SponsorRepository) SetSponsorshipStatus(ctx context.Context, ulid string, status sponsors.SponsorshipStatus, decidedBy string, decidedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE sponsorships SET status = $2, decided_by = $3, decided_at = $4 WHERE ulid = $1`,
		ulid, string(status), decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("set sponsorship status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sponsors.ErrSponsorshipNotFound
	}
	return nil
}
