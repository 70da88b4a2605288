package sponsors

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
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
// lifecycle checks. Implemented by *events.Service.
type EventDirectory interface {
	Ref(ctx context.Context, eventULID string) (events.Ref, error)
}

type Service struct {
	repo   Repository
	events EventDirectory
	logger zerolog.Logger
}

func NewService(repo Repository, directory EventDirectory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: directory, logger: logger.With().Str("component", "sponsors").Logger()}
}

type Input struct {
	Name         string `json:"name" validate:"required,max=200"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Website      string `json:"website" validate:"omitempty,url"`
}

type PledgeInput struct {
	SponsorULID string `json:"sponsor_id" validate:"required"`
	EventULID   string `json:"event_id" validate:"required"`
	Tier        string `json:"tier" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
}

// validateInput runs the checks shared by Create and Update.
func validateInput(input Input) error {
	if field, message, failed := validate.First(input); failed {
		return FieldError{Field: field, Message: message}
	}
	if input.ContactEmail != "" {
		if _, err := mail.ParseAddress(strings.TrimSpace(input.ContactEmail)); err != nil {
			return FieldError{Field: "contact_email", Message: "invalid email address"}
		}
	}
	if website := strings.TrimSpace(input.Website); website != "" {
		parsed, err := url.Parse(website)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return FieldError{Field: "website", Message: "must be an http(s) URL"}
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, input Input) (*Sponsor, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	name := sanitize.Text(strings.TrimSpace(input.Name))
	if name == "" {
		return nil, FieldError{Field: "name", Message: "required"}
	}
	website := strings.TrimSpace(input.Website)

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	sponsor, err := s.repo.Create(ctx, SponsorParams{
		ULID:          ulid,
		OrganizerULID: actor.ULID,
		Name:          name,
		ContactEmail:  strings.TrimSpace(input.ContactEmail),
		Website:       website,
	})
	if err != nil {
		return nil, fmt.Errorf("create sponsor: %w", err)
	}

	s.logger.Info().Str("sponsor", sponsor.ULID).Str("organizer", actor.ULID).Msg("sponsor created")
	return sponsor, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Sponsor, error) {
	sponsor, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(sponsor.OrganizerULID) {
		return nil, ErrForbidden
	}
	return sponsor, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, pagination Pagination) (ListResult, error) {
	scope := actor.ULID
	if actor.IsAdmin() {
		scope = ""
	}
	return s.repo.List(ctx, scope, pagination)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, input Input) (*Sponsor, error) {
	sponsor, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}

	if err := validateInput(input); err != nil {
		return nil, err
	}
	name := sanitize.Text(strings.TrimSpace(input.Name))
	if name == "" {
		return nil, FieldError{Field: "name", Message: "required"}
	}

	updated, err := s.repo.Update(ctx, sponsor.ULID, SponsorParams{
		Name:         name,
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		Website:      strings.TrimSpace(input.Website),
	})
	if err != nil {
		return nil, fmt.Errorf("update sponsor: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// Pledge files a pending sponsorship for an event.
func (s *Service) Pledge(ctx context.Context, actor auth.Actor, input PledgeInput) (*Sponsorship, error) {
	if field, message, failed := validate.First(input); failed {
		return nil, FieldError{Field: field, Message: message}
	}
	if !ValidTier(strings.ToLower(strings.TrimSpace(input.Tier))) {
		return nil, FieldError{Field: "tier", Message: "must be bronze, silver, gold or platinum"}
	}
	if input.AmountCents < 0 {
		return nil, FieldError{Field: "amount_cents", Message: "must be non-negative"}
	}

	sponsor, err := s.Get(ctx, actor, input.SponsorULID)
	if err != nil {
		return nil, err
	}

	ref, err := s.events.Ref(ctx, input.EventULID)
	if err != nil {
		return nil, err
	}
	if ref.Status == events.StatusCancelled || ref.Status == events.StatusCompleted {
		return nil, ErrEventClosed
	}

	open, err := s.repo.HasOpenSponsorship(ctx, sponsor.ULID, ref.ULID)
	if err != nil {
		return nil, fmt.Errorf("check sponsorships: %w", err)
	}
	if open {
		return nil, ErrDuplicateSponsorship
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	sponsorship, err := s.repo.CreateSponsorship(ctx, Sponsorship{
		ULID:        ulid,
		SponsorULID: sponsor.ULID,
		EventULID:   ref.ULID,
		Tier:        Tier(strings.ToLower(strings.TrimSpace(input.Tier))),
		AmountCents: input.AmountCents,
		Status:      StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create sponsorship: %w", err)
	}

	s.logger.Info().Str("sponsorship", sponsorship.ULID).Str("event", ref.ULID).Msg("sponsorship pledged")
	return sponsorship, nil
}

// Decide approves or rejects a pending sponsorship; event owner or admin only.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, sponsorshipULID string, approve bool) (*Sponsorship, error) {
	sponsorship, err := s.repo.GetSponsorshipByULID(ctx, sponsorshipULID)
	if err != nil {
		return nil, err
	}
	if sponsorship.Status != StatusPending {
		return nil, ErrNotPending
	}

	ref, err := s.events.Ref(ctx, sponsorship.EventULID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(ref.OrganizerULID) {
		return nil, ErrForbidden
	}
	if approve && ref.Status == events.StatusCancelled {
		return nil, ErrEventClosed
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	}

	now := time.Now().UTC()
	if err := s.repo.SetSponsorshipStatus(ctx, sponsorship.ULID, status, actor.ULID, now); err != nil {
		return nil, fmt.Errorf("decide sponsorship: %w", err)
	}
	sponsorship.Status = status
	sponsorship.DecidedBy = actor.ULID
	sponsorship.DecidedAt = &now
	return sponsorship, nil
}

// Withdraw lets the sponsor owner pull a pending sponsorship.
func (s *Service) Withdraw(ctx context.Context, actor auth.Actor, sponsorshipULID string) (*Sponsorship, error) {
	sponsorship, err := s.repo.GetSponsorshipByULID(ctx, sponsorshipULID)
	if err != nil {
		return nil, err
	}
	if sponsorship.Status != StatusPending {
		return nil, ErrNotPending
	}

	sponsor, err := s.repo.GetByULID(ctx, sponsorship.SponsorULID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(sponsor.OrganizerULID) {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.repo.SetSponsorshipStatus(ctx, sponsorship.ULID, StatusWithdrawn, actor.ULID, now); err != nil {
		return nil, fmt.Errorf("withdraw sponsorship: %w", err)
	}
	sponsorship.Status = StatusWithdrawn
	sponsorship.DecidedBy = actor.ULID
	sponsorship.DecidedAt = &now
	return sponsorship, nil
}

// ListSponsorships returns an event's sponsorships; event owner or admin only.
func (s *Service) ListSponsorships(ctx context.Context, actor auth.Actor, eventULID string) ([]Sponsorship, error) {
	ref, err := s.events.Ref(ctx, eventULID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(ref.OrganizerULID) {
		return nil, ErrForbidden
	}
	return s.repo.ListSponsorshipsByEvent(ctx, ref.ULID)
}

// CountApproved returns the number of approved sponsorships for stats.
func (s *Service) CountApproved(ctx context.Context, eventULID string) (int, error) {
	sponsorships, err := s.repo.ListSponsorshipsByEvent(ctx, eventULID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, sponsorship := range sponsorships {
		if sponsorship.Status == StatusApproved {
			count++
		}
	}
	return count, nil
}

// ApprovedIncome totals approved sponsorship amounts for an event. Budget
// summaries count this as income.
func (s *Service) ApprovedIncome(ctx context.Context, eventULID string) (int64, error) {
	sponsorships, err := s.repo.ListSponsorshipsByEvent(ctx, eventULID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sponsorship := range sponsorships {
		if sponsorship.Status == StatusApproved {
			total += sponsorship.AmountCents
		}
	}
	return total, nil
}

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
