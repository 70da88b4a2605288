package users

import "context"

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByULID(ctx context.Context, ulid string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	SetSuspended(ctx context.Context, ulid string, suspended bool) error
	SetPassword(ctx context.Context, ulid string, passwordHash string) error

	CreateInvitation(ctx context.Context, invitation Invitation) error
	GetInvitationByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	MarkInvitationAccepted(ctx context.Context, tokenHash string) error
}
