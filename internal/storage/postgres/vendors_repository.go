package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/domain/vendors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ vendors.Repository = (*VendorRepository)(nil)

type VendorRepository struct {
	db queryer
}

const vendorColumns = `id, ulid, organizer_ulid, name, category, contact_email, notes, created_at, updated_at`

func scanVendor(row pgx.Row) (*vendors.Vendor, error) {
	var vendor vendors.Vendor
	err := row.Scan(
		&vendor.ID,
		&vendor.ULID,
		&vendor.OrganizerULID,
		&vendor.Name,
		&vendor.Category,
		&vendor.ContactEmail,
		&vendor.Notes,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendors.ErrNotFound
		}
		return nil, fmt.Errorf("scan vendor: %w", err)
	}
	return &vendor, nil
}

const applicationColumns = `id, ulid, vendor_ulid, event_ulid, status, note, decided_by, decided_at, created_at`

func scanApplication(row pgx.Row) (*vendors.Application, error) {
	var application vendors.Application
	var status string
	var decidedBy *string
	err := row.Scan(
		&application.ID,
		&application.ULID,
		&application.VendorULID,
		&application.EventULID,
		&status,
		&application.Note,
		&decidedBy,
		&application.DecidedAt,
		&application.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendors.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	application.Status = vendors.ApplicationStatus(status)
	application.DecidedBy = derefString(decidedBy)
	return &application, nil
}

func (r *VendorRepository) Create(ctx context.Context, params vendors.VendorParams) (*vendors.Vendor, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO vendors (ulid, organizer_ulid, name, category, contact_email, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+vendorColumns,
		params.ULID, params.OrganizerULID, params.Name, params.Category, params.ContactEmail, params.Notes)
	return scanVendor(row)
}

func (r *VendorRepository) GetByULID(ctx context.Context, ulid string) (*vendors.Vendor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE ulid = $1`, ulid)
	return scanVendor(row)
}

func (r *VendorRepository) List(ctx context.Context, organizerULID string, paginationArgs vendors.Pagination) (vendors.ListResult, error) {
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
			return vendors.ListResult{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)",
			arg(cursor.Timestamp.UTC()), arg(cursor.ULID)))
	}

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at, ulid LIMIT ` + arg(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return vendors.ListResult{}, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var items []vendors.Vendor
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return vendors.ListResult{}, err
		}
		items = append(items, *vendor)
	}
	if err := rows.Err(); err != nil {
		return vendors.ListResult{}, fmt.Errorf("list vendors: %w", err)
	}

	result := vendors.ListResult{Vendors: items}
	if len(items) > limit {
		result.Vendors = items[:limit]
		last := result.Vendors[limit-1]
		result.NextCursor = pagination.Encode(last.CreatedAt, last.ULID)
	}
	return result, nil
}

func (r *VendorRepository) Update(ctx context.Context, ulid string, params vendors.VendorParams) (*vendors.Vendor, error) {
	row := r.db.QueryRow(ctx, `
UPDATE vendors
   SET name = $2, category = $3, contact_email = $4, notes = $5, updated_at = now()
 WHERE ulid = $1
RETURNING `+vendorColumns,
		ulid, params.Name, params.Category, params.ContactEmail, params.Notes)
	return scanVendor(row)
}

func (r *VendorRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendors WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete vendor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return vendors.ErrNotFound
	}
	return nil
}

func (r *VendorRepository) CreateApplication(ctx context.Context, application vendors.Application) (*vendors.Application, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO vendor_applications (ulid, vendor_ulid, event_ulid, status, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+applicationColumns,
		application.ULID, application.VendorULID, application.EventULID, string(application.Status), application.Note)

	created, err := scanApplication(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, vendors.ErrDuplicateApplication
		}
		return nil, err
	}
	return created, nil
}

func (r *VendorRepository) GetApplicationByULID(ctx context.Context, ulid string) (*vendors.Application, error) {
	row := r.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM vendor_applications WHERE ulid = $1`, ulid)
	return scanApplication(row)
}

func (r *VendorRepository) ListApplicationsByEvent(ctx context.Context, eventULID string) ([]vendors.Application, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+applicationColumns+` FROM vendor_applications WHERE event_ulid = $1 ORDER BY created_at`, eventULID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var items []vendors.Application
	for rows.Next() {
		application, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *application)
	}
	return items, rows.Err()
}

func (r *VendorRepository) HasOpenApplication(ctx context.Context, vendorULID, eventULID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM vendor_applications
     WHERE vendor_ulid = $1 AND event_ulid = $2 AND status IN ('pending', 'approved')
)`, vendorULID, eventULID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open application: %w", err)
	}
	return exists, nil
}

func (r *VendorRepository) SetApplicationStatus(ctx context.Context, ulid string, status vendors.ApplicationStatus, decidedBy string, decidedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE vendor_applications SET status = $2, decided_by = $3, decided_at = $4 WHERE ulid = $1`,
		ulid, string(status), decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("set application status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return vendors.ErrApplicationNotFound
	}
	return nil
}
