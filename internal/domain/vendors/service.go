package vendors

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
	return &Service{repo: repo, events: directory, logger: logger.With().Str("component", "vendors").Logger()}
}

type Input struct {
	Name         string `json:"name" validate:"required,max=200"`
	Category     string `json:"category" validate:"max=100"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Notes        string `json:"notes" validate:"max=5000"`
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
	return nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, input Input) (*Vendor, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	name := sanitize.Text(strings.TrimSpace(input.Name))
	if name == "" {
		return nil, FieldError{Field: "name", Message: "required"}
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	vendor, err := s.repo.Create(ctx, VendorParams{
		ULID:          ulid,
		OrganizerULID: actor.ULID,
		Name:          name,
		Category:      sanitize.Text(strings.TrimSpace(input.Category)),
		ContactEmail:  strings.TrimSpace(input.ContactEmail),
		Notes:         sanitize.HTML(input.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create vendor: %w", err)
	}

	s.logger.Info().Str("vendor", vendor.ULID).Str("organizer", actor.ULID).Msg("vendor created")
	return vendor, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Vendor, error) {
	vendor, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(vendor.OrganizerULID) {
		return nil, ErrForbidden
	}
	return vendor, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, pagination Pagination) (ListResult, error) {
	scope := actor.ULID
	if actor.IsAdmin() {
		scope = ""
	}
	return s.repo.List(ctx, scope, pagination)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, input Input) (*Vendor, error) {
	vendor, err := s.Get(ctx, actor, ulid)
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

	updated, err := s.repo.Update(ctx, vendor.ULID, VendorParams{
		Name:         name,
		Category:     sanitize.Text(strings.TrimSpace(input.Category)),
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		Notes:        sanitize.HTML(input.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("update vendor: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// Apply files a pending application connecting a vendor to an event. The
// caller must own the vendor; the event must not be cancelled or completed.
func (s *Service) Apply(ctx context.Context, actor auth.Actor, vendorULID, eventULID, note string) (*Application, error) {
	vendor, err := s.Get(ctx, actor, vendorULID)
	if err != nil {
		return nil, err
	}

	ref, err := s.events.Ref(ctx, eventULID)
	if err != nil {
		return nil, err
	}
	if ref.Status == events.StatusCancelled || ref.Status == events.StatusCompleted {
		return nil, ErrEventClosed
	}

	open, err := s.repo.HasOpenApplication(ctx, vendor.ULID, ref.ULID)
	if err != nil {
		return nil, fmt.Errorf("check applications: %w", err)
	}
	if open {
		return nil, ErrDuplicateApplication
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	application, err := s.repo.CreateApplication(ctx, Application{
		ULID:       ulid,
		VendorULID: vendor.ULID,
		EventULID:  ref.ULID,
		Status:     StatusPending,
		Note:       sanitize.Text(strings.TrimSpace(note)),
	})
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logger.Info().Str("application", application.ULID).Str("vendor", vendor.ULID).Str("event", ref.ULID).Msg("vendor applied")
	return application, nil
}

// Decide approves or rejects a pending application. Only the event owner (or
// an admin) may decide. Approval is rejected when the event was cancelled
// since the application was filed.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, applicationULID string, approve bool) (*Application, error) {
	application, err := s.repo.GetApplicationByULID(ctx, applicationULID)
	if err != nil {
		return nil, err
	}
	if application.Status != StatusPending {
		return nil, ErrNotPending
	}

	ref, err := s.events.Ref(ctx, application.EventULID)
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
	if err := s.repo.SetApplicationStatus(ctx, application.ULID, status, actor.ULID, now); err != nil {
		return nil, fmt.Errorf("decide application: %w", err)
	}
	application.Status = status
	application.DecidedBy = actor.ULID
	application.DecidedAt = &now

	s.logger.Info().Str("application", application.ULID).Str("status", string(status)).Msg("application decided")
	return application, nil
}

// Withdraw lets the vendor owner pull a pending application.
func (s *Service) Withdraw(ctx context.Context, actor auth.Actor, applicationULID string) (*Application, error) {
	application, err := s.repo.GetApplicationByULID(ctx, applicationULID)
	if err != nil {
		return nil, err
	}
	if application.Status != StatusPending {
		return nil, ErrNotPending
	}

	vendor, err := s.repo.GetByULID(ctx, application.VendorULID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(vendor.OrganizerULID) {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.repo.SetApplicationStatus(ctx, application.ULID, StatusWithdrawn, actor.ULID, now); err != nil {
		return nil, fmt.Errorf("withdraw application: %w", err)
	}
	application.Status = StatusWithdrawn
	application.DecidedBy = actor.ULID
	application.DecidedAt = &now
	return application, nil
}

// ListApplications returns an event's applications; event owner or admin only.
func (s *Service) ListApplications(ctx context.Context, actor auth.Actor, eventULID string) ([]Application, error) {
	ref, err := s.events.Ref(ctx, eventULID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(ref.OrganizerULID) {
		return nil, ErrForbidden
	}
	return s.repo.ListApplicationsByEvent(ctx, ref.ULID)
}

// CountByEvent returns approved application counts for stats.
func (s *Service) CountApproved(ctx context.Context, eventULID string) (int, error) {
	applications, err := s.repo.ListApplicationsByEvent(ctx, eventULID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, application := range applications {
		if application.Status == StatusApproved {
			count++
		}
	}
	return count, nil
}

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
