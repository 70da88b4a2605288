package webhooks

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("webhook endpoint not found")
	ErrForbidden   = errors.New("not allowed")
	ErrInvalidKind = errors.New("unknown webhook kind")
	ErrInvalidURL  = errors.New("endpoint URL must be http(s)")
)

type Repository interface {
	Create(ctx context.Context, params EndpointParams) (*Endpoint, error)
	GetByULID(ctx context.Context, ulid string) (*Endpoint, error)
	ListByOwner(ctx context.Context, ownerULID string) ([]Endpoint, error)
	// ListSubscribed returns the owner's enabled endpoints listening for kind.
	ListSubscribed(ctx context.Context, ownerULID string, kind Kind) ([]Endpoint, error)
	Update(ctx context.Context, ulid string, url string, kinds []Kind) (*Endpoint, error)
	SetDisabled(ctx context.Context, ulid string, disabled bool) error
	Delete(ctx context.Context, ulid string) error

	RecordAttempt(ctx context.Context, attempt Attempt) error
	ListAttempts(ctx context.Context, endpointULID string, limit int) ([]Attempt, error)
	ResetFailures(ctx context.Context, ulid string) error
	// IncrementFailures bumps the consecutive-failure counter and returns the
	// new value.
	IncrementFailures(ctx context.Context, ulid string) (int, error)
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
