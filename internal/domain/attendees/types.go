package attendees

import "time"

// Attendee is a person registered for an event.
type Attendee struct {
	ID          string
	ULID        string
	EventULID   string
	Name        string
	Email       string
	TicketType  string
	CheckedInAt *time.Time
	CreatedAt   time.Time
}

func (a Attendee) CheckedIn() bool {
	return a.CheckedInAt != nil
}

type CreateParams struct {
	ULID       string
	EventULID  string
	Name       string
	Email      string
	TicketType string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Attendees  []Attendee
	NextCursor string
}
