package moderation

import (
	"context"
	"errors"
)

var ErrForbidden = errors.New("not allowed")

// Repository is append-only: entries are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry Entry) (*Entry, error)
	ListAfter(ctx context.Context, afterSequence int64, limit int) ([]Entry, error)
}
