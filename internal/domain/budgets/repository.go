package budgets

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("budget item not found")
	ErrForbidden   = errors.New("not allowed")
	ErrInvalidKind = errors.New("invalid budget kind")
)

type Repository interface {
	Create(ctx context.Context, params ItemParams) (*Item, error)
	GetByULID(ctx context.Context, ulid string) (*Item, error)
	ListByEvent(ctx context.Context, eventULID string) ([]Item, error)
	Update(ctx context.Context, ulid string, params ItemParams) (*Item, error)
	Delete(ctx context.Context, ulid string) error
}
