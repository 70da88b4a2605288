package sponsors

import "time"

// Sponsor is an organizer-owned sponsor contact record.
type Sponsor struct {
	ID            string
	ULID          string
	OrganizerULID string
	Name          string
	ContactEmail  string
	Website       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tier is the sponsorship level attached to an event sponsorship.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

func ValidTier(value string) bool {
	switch Tier(value) {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	default:
		return false
	}
}

// SponsorshipStatus mirrors the vendor application workflow.
type SponsorshipStatus string

const (
	StatusPending   SponsorshipStatus = "pending"
	StatusApproved  SponsorshipStatus = "approved"
	StatusRejected  SponsorshipStatus = "rejected"
	StatusWithdrawn SponsorshipStatus = "withdrawn"
)

// Sponsorship pledges an amount at a tier for a specific event.
type Sponsorship struct {
	ID          string
	ULID        string
	SponsorULID string
	EventULID   string
	Tier        Tier
	AmountCents int64
	Status      SponsorshipStatus
	DecidedBy   string
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

type SponsorParams struct {
	ULID          string
	OrganizerULID string
	Name          string
	ContactEmail  string
	Website       string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Sponsors   []Sponsor
	NextCursor string
}
