package attendees

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/sanitize"
	"github.com/eventops/server/internal/validate"
	"github.com/rs/zerolog"
)

// EventDirectory resolves the event slice needed for authorization and
// capacity checks. Implemented by *events.Service.
type EventDirectory interface {
	Ref(ctx context.Context, eventULID string) (events.Ref, error)
}

type Service struct {
	repo   Repository
	events EventDirectory
	logger zerolog.Logger
}

func NewService(repo Repository, directory EventDirectory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: directory, logger: logger.With().Str("component", "attendees").Logger()}
}

// DefaultTicketType is assigned when registration omits a ticket type.
const DefaultTicketType = "general"

type Input struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email"`
	TicketType string `json:"ticket_type" validate:"max=100"`
}

func (s *Service) authorizeEvent(ctx context.Context, actor auth.Actor, eventULID string) (events.Ref, error) {
	ref, err := s.events.Ref(ctx, eventULID)
	if err != nil {
		return events.Ref{}, err
	}
	if !actor.Owns(ref.OrganizerULID) {
		return events.Ref{}, ErrForbidden
	}
	return ref, nil
}

// Register adds an attendee to a published event. Registration is rejected
// when the event is not published, the email is already registered, or the
// event is full. A capacity of zero means unlimited.
func (s *Service) Register(ctx context.Context, actor auth.Actor, eventULID string, input Input) (*Attendee, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}
	if ref.Status != events.StatusPublished {
		return nil, ErrEventNotOpen
	}

	if field, message, failed := validate.First(input); failed {
		return nil, FieldError{Field: field, Message: message}
	}
	name := sanitize.Text(strings.TrimSpace(input.Name))
	if name == "" {
		return nil, FieldError{Field: "name", Message: "required"}
	}
	address, err := mail.ParseAddress(strings.TrimSpace(input.Email))
	if err != nil {
		return nil, FieldError{Field: "email", Message: "invalid email address"}
	}
	email := strings.ToLower(address.Address)
	ticketType := sanitize.Text(strings.TrimSpace(input.TicketType))
	if ticketType == "" {
		ticketType = DefaultTicketType
	}

	registered, err := s.repo.EmailRegistered(ctx, ref.ULID, email)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if registered {
		return nil, ErrDuplicateEmail
	}

	if ref.Capacity > 0 {
		count, err := s.repo.CountByEvent(ctx, ref.ULID)
		if err != nil {
			return nil, fmt.Errorf("count attendees: %w", err)
		}
		if count >= ref.Capacity {
			return nil, ErrCapacityReached
		}
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	attendee, err := s.repo.Create(ctx, CreateParams{
		ULID:       ulid,
		EventULID:  ref.ULID,
		Name:       name,
		Email:      email,
		TicketType: ticketType,
	})
	if err != nil {
		return nil, fmt.Errorf("register attendee: %w", err)
	}

	s.logger.Info().Str("attendee", attendee.ULID).Str("event", ref.ULID).Msg("attendee registered")
	return attendee, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Attendee, error) {
	attendee, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeEvent(ctx, actor, attendee.EventULID); err != nil {
		return nil, err
	}
	return attendee, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, eventULID string, pagination Pagination) (ListResult, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return ListResult{}, err
	}
	return s.repo.ListByEvent(ctx, ref.ULID, pagination)
}

// ListAll returns the full attendee roster for exports.
func (s *Service) ListAll(ctx context.Context, actor auth.Actor, eventULID string) ([]Attendee, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAllByEvent(ctx, ref.ULID)
}

// CheckIn marks the attendee as present. Checking in twice is an error so
// door staff notice duplicate badges.
func (s *Service) CheckIn(ctx context.Context, actor auth.Actor, ulid string) (*Attendee, error) {
	attendee, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if attendee.CheckedIn() {
		return nil, ErrAlreadyCheckedIn
	}

	now := time.Now().UTC()
	if err := s.repo.SetCheckedIn(ctx, attendee.ULID, now); err != nil {
		return nil, fmt.Errorf("check in attendee: %w", err)
	}
	attendee.CheckedInAt = &now
	return attendee, nil
}

// Remove unregisters an attendee, freeing their capacity slot.
func (s *Service) Remove(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// Count reports the event's registration total for stats.
func (s *Service) Count(ctx context.Context, actor auth.Actor, eventULID string) (int, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return 0, err
	}
	return s.repo.CountByEvent(ctx, ref.ULID)
}

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
