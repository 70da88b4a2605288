package events

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	GetByULID(ctx context.Context, ulid string) (*Event, error)
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	Update(ctx context.Context, ulid string, params UpdateParams) (*Event, error)
	SetStatus(ctx context.Context, ulid string, status Status, cancelledAt *time.Time) error
}
