package attendees

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("attendee not found")
	ErrForbidden        = errors.New("not allowed")
	ErrDuplicateEmail   = errors.New("email already registered for this event")
	ErrCapacityReached  = errors.New("event is at capacity")
	ErrEventNotOpen     = errors.New("event is not open for registration")
	ErrAlreadyCheckedIn = errors.New("attendee already checked in")
)

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Attendee, error)
	GetByULID(ctx context.Context, ulid string) (*Attendee, error)
	ListByEvent(ctx context.Context, eventULID string, pagination Pagination) (ListResult, error)
	// ListAllByEvent returns every attendee without paging, for exports.
	ListAllByEvent(ctx context.Context, eventULID string) ([]Attendee, error)
	CountByEvent(ctx context.Context, eventULID string) (int, error)
	EmailRegistered(ctx context.Context, eventULID, email string) (bool, error)
	SetCheckedIn(ctx context.Context, ulid string, at time.Time) error
	Delete(ctx context.Context, ulid string) error
}
