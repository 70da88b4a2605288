package tasks

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrForbidden     = errors.New("not allowed")
	ErrInvalidStatus = errors.New("invalid task status")
)

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Task, error)
	GetByULID(ctx context.Context, ulid string) (*Task, error)
	ListByEvent(ctx context.Context, eventULID string, filters Filters) ([]Task, error)
	Update(ctx context.Context, ulid string, params UpdateParams) (*Task, error)
	SetStatus(ctx context.Context, ulid string, status Status) error
	Delete(ctx context.Context, ulid string) error
}
