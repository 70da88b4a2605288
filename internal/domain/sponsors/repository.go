package sponsors

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound             = errors.New("sponsor not found")
	ErrSponsorshipNotFound  = errors.New("sponsorship not found")
	ErrDuplicateSponsorship = errors.New("sponsor already pledged to this event")
	ErrForbidden            = errors.New("not allowed")
	ErrNotPending           = errors.New("sponsorship is not pending")
	ErrEventClosed          = errors.New("event does not accept sponsorships")
)

type Repository interface {
	Create(ctx context.Context, params SponsorParams) (*Sponsor, error)
	GetByULID(ctx context.Context, ulid string) (*Sponsor, error)
	List(ctx context.Context, organizerULID string, pagination Pagination) (ListResult, error)
	Update(ctx context.Context, ulid string, params SponsorParams) (*Sponsor, error)
	Delete(ctx context.Context, ulid string) error

	CreateSponsorship(ctx context.Context, sponsorship Sponsorship) (*Sponsorship, error)
	GetSponsorshipByULID(ctx context.Context, ulid string) (*Sponsorship, error)
	ListSponsorshipsByEvent(ctx context.Context, eventULID string) ([]Sponsorship, error)
	HasOpenSponsorship(ctx context.Context, sponsorULID, eventULID string) (bool, error)
	SetSponsorshipStatus(ctx context.Context, ulid string, status SponsorshipStatus, decidedBy string, decidedAt time.Time) error
}
