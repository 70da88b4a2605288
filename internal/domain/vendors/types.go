package vendors

import "time"

// Vendor is an organizer-owned vendor contact record.
type Vendor struct {
	ID            string
	ULID          string
	OrganizerULID string
	Name          string
	Category      string
	ContactEmail  string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApplicationStatus tracks a vendor's participation in an event.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusApproved  ApplicationStatus = "approved"
	StatusRejected  ApplicationStatus = "rejected"
	StatusWithdrawn ApplicationStatus = "withdrawn"
)

// Application links a vendor to an event through an approval workflow.
type Application struct {
	ID         string
	ULID       string
	VendorULID string
	EventULID  string
	Status     ApplicationStatus
	Note       string
	DecidedBy  string
	DecidedAt  *time.Time
	CreatedAt  time.Time
}

type VendorParams struct {
	ULID          string
	OrganizerULID string
	Name          string
	Category      string
	ContactEmail  string
	Notes         string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Vendors    []Vendor
	NextCursor string
}
