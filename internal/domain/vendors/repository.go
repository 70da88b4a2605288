package vendors

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound             = errors.New("vendor not found")
	ErrApplicationNotFound  = errors.New("application not found")
	ErrDuplicateApplication = errors.New("vendor already applied to this event")
	ErrForbidden            = errors.New("not allowed")
	ErrNotPending           = errors.New("application is not pending")
	ErrEventClosed          = errors.New("event does not accept vendors")
)

type Repository interface {
	Create(ctx context.Context, params VendorParams) (*Vendor, error)
	GetByULID(ctx context.Context, ulid string) (*Vendor, error)
	List(ctx context.Context, organizerULID string, pagination Pagination) (ListResult, error)
	Update(ctx context.Context, ulid string, params VendorParams) (*Vendor, error)
	Delete(ctx context.Context, ulid string) error

	CreateApplication(ctx context.Context, application Application) (*Application, error)
	GetApplicationByULID(ctx context.Context, ulid string) (*Application, error)
	ListApplicationsByEvent(ctx context.Context, eventULID string) ([]Application, error)
	HasOpenApplication(ctx context.Context, vendorULID, eventULID string) (bool, error)
	SetApplicationStatus(ctx context.Context, ulid string, status ApplicationStatus, decidedBy string, decidedAt time.Time) error
}
