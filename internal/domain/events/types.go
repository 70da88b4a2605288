package events

import "time"

// Status is the event lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ValidStatus(value string) bool {
	switch Status(value) {
	case StatusDraft, StatusPublished, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Event is an organizer-owned event. Amounts and counts that hang off an
// event (tasks, budget items, attendees) live in their own packages.
type Event struct {
	ID            string
	ULID          string
	OrganizerULID string
	Name          string
	Description   string
	Venue         string
	City          string
	StartTime     *time.Time
	EndTime       *time.Time
	Capacity      int
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// Ref is the slice of an event other domains need for authorization and
// lifecycle checks.
type Ref struct {
	ULID          string
	OrganizerULID string
	Status        Status
	Capacity      int
}

type CreateParams struct {
	ULID          string
	OrganizerULID string
	Name          string
	Description   string
	Venue         string
	City          string
	StartTime     *time.Time
	EndTime       *time.Time
	Capacity      int
}

type UpdateParams struct {
	Name        *string
	Description *string
	Venue       *string
	City        *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int
}

type Filters struct {
	// OrganizerULID scopes the list; empty means all organizers (admin only).
	OrganizerULID string
	Status        string
	City          string
	StartDate     *time.Time
	EndDate       *time.Time
	Query         string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Events     []Event
	NextCursor string
}
