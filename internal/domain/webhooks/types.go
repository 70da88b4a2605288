package webhooks

import (
	"encoding/json"
	"time"
)

// Kind names the domain occurrences subscribers can listen for.
type Kind string

const (
	KindEventPublished     Kind = "event.published"
	KindEventCancelled     Kind = "event.cancelled"
	KindVendorApproved     Kind = "vendor.approved"
	KindSponsorApproved    Kind = "sponsor.approved"
	KindAttendeeRegistered Kind = "attendee.registered"
)

func ValidKind(value string) bool {
	switch Kind(value) {
	case KindEventPublished, KindEventCancelled, KindVendorApproved, KindSponsorApproved, KindAttendeeRegistered:
		return true
	default:
		return false
	}
}

// Endpoint is a subscriber URL owned by an organizer. Secret signs payloads;
// it is shown once at creation. Disabled endpoints receive nothing until
// re-enabled.
type Endpoint struct {
	ID                  string
	ULID                string
	OwnerULID           string
	URL                 string
	Secret              string
	Kinds               []Kind
	Disabled            bool
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Subscribed reports whether the endpoint listens for the given kind.
func (e Endpoint) Subscribed(kind Kind) bool {
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type EndpointParams struct {
	ULID      string
	OwnerULID string
	URL       string
	Secret    string
	Kinds     []Kind
}

// Delivery is a single signed payload bound for one endpoint. It is what the
// background queue carries.
type Delivery struct {
	EndpointULID string          `json:"endpoint_ulid"`
	Kind         Kind            `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
}

// Attempt records one delivery try against an endpoint.
type Attempt struct {
	ID           string
	EndpointULID string
	Kind         Kind
	StatusCode   int
	Error        string
	Success      bool
	AttemptedAt  time.Time
}
