package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/sanitize"
	"github.com/eventops/server/internal/validate"
	"github.com/rs/zerolog"
)

const maxCapacity = 1_000_000

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "events").Logger()}
}

type Input struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Venue       string     `json:"venue" validate:"max=200"`
	City        string     `json:"city" validate:"max=100"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    int        `json:"capacity" validate:"gte=0"`
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, input Input) (*Event, error) {
	if field, message, failed := validate.First(input); failed {
		return nil, FilterError{Field: field, Message: message}
	}
	name := sanitize.Text(strings.TrimSpace(input.Name))
	if name == "" {
		return nil, FilterError{Field: "name", Message: "required"}
	}
	if input.Capacity < 0 || input.Capacity > maxCapacity {
		return nil, FilterError{Field: "capacity", Message: "out of range"}
	}
	if input.StartTime != nil && input.EndTime != nil && input.EndTime.Before(*input.StartTime) {
		return nil, FilterError{Field: "end_time", Message: "must be on or after start_time"}
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	event, err := s.repo.Create(ctx, CreateParams{
		ULID:          ulid,
		OrganizerULID: actor.ULID,
		Name:          name,
		Description:   sanitize.HTML(input.Description),
		Venue:         sanitize.Text(strings.TrimSpace(input.Venue)),
		City:          sanitize.Text(strings.TrimSpace(input.City)),
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		Capacity:      input.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().Str("event", event.ULID).Str("organizer", actor.ULID).Msg("event created")
	return event, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Event, error) {
	event, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(event.OrganizerULID) {
		return nil, ErrForbidden
	}
	return event, nil
}

// List returns events visible to the actor. Organizers are always scoped to
// their own events; admins see everything unless they filter explicitly.
func (s *Service) List(ctx context.Context, actor auth.Actor, filters Filters, page Pagination) (ListResult, error) {
	if !actor.IsAdmin() {
		filters.OrganizerULID = actor.ULID
	}
	return s.repo.List(ctx, filters, page)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, params UpdateParams) (*Event, error) {
	event, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if event.Status == StatusCancelled || event.Status == StatusCompleted {
		return nil, ErrInvalidLifecycle
	}

	if params.Name != nil {
		name := sanitize.Text(strings.TrimSpace(*params.Name))
		if name == "" {
			return nil, FilterError{Field: "name", Message: "required"}
		}
		params.Name = &name
	}
	if params.Description != nil {
		clean := sanitize.HTML(*params.Description)
		params.Description = &clean
	}
	if params.Venue != nil {
		clean := sanitize.Text(strings.TrimSpace(*params.Venue))
		params.Venue = &clean
	}
	if params.City != nil {
		clean := sanitize.Text(strings.TrimSpace(*params.City))
		params.City = &clean
	}
	if params.Capacity != nil && (*params.Capacity < 0 || *params.Capacity > maxCapacity) {
		return nil, FilterError{Field: "capacity", Message: "out of range"}
	}

	// Time ordering is checked against the merged pair so a partial update
	// cannot move one bound past the stored other.
	start := event.StartTime
	if params.StartTime != nil {
		start = params.StartTime
	}
	end := event.EndTime
	if params.EndTime != nil {
		end = params.EndTime
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, FilterError{Field: "end_time", Message: "must be on or after start_time"}
	}

	updated, err := s.repo.Update(ctx, ulid, params)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// Publish moves a draft event to published. Required fields must be present.
func (s *Service) Publish(ctx context.Context, actor auth.Actor, ulid string) (*Event, error) {
	event, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if event.Status != StatusDraft {
		return nil, ErrInvalidLifecycle
	}
	if event.Name == "" || event.Venue == "" || event.StartTime == nil {
		return nil, FilterError{Field: "event", Message: "name, venue and start_time are required to publish"}
	}

	if err := s.repo.SetStatus(ctx, ulid, StatusPublished, nil); err != nil {
		return nil, fmt.Errorf("publish event: %w", err)
	}
	event.Status = StatusPublished

	s.logger.Info().Str("event", ulid).Msg("event published")
	return event, nil
}

// Cancel soft-deletes an event. Completed events cannot be cancelled. The
// second return reports whether this call changed the status; cancelling an
// already-cancelled event is an idempotent no-op.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, ulid string) (*Event, bool, error) {
	event, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, false, err
	}
	if event.Status == StatusCompleted {
		return nil, false, ErrInvalidLifecycle
	}
	if event.Status == StatusCancelled {
		return event, false, nil
	}

	now := time.Now().UTC()
	if err := s.repo.SetStatus(ctx, ulid, StatusCancelled, &now); err != nil {
		return nil, false, fmt.Errorf("cancel event: %w", err)
	}
	event.Status = StatusCancelled
	event.CancelledAt = &now

	s.logger.Info().Str("event", ulid).Msg("event cancelled")
	return event, true, nil
}

// Complete marks a published event as completed.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, ulid string) (*Event, error) {
	event, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if event.Status != StatusPublished {
		return nil, ErrInvalidLifecycle
	}

	if err := s.repo.SetStatus(ctx, ulid, StatusCompleted, nil); err != nil {
		return nil, fmt.Errorf("complete event: %w", err)
	}
	event.Status = StatusCompleted
	return event, nil
}

// Ref looks up the ownership/lifecycle slice of an event without any actor
// check. Other domains use it for their own authorization decisions.
func (s *Service) Ref(ctx context.Context, ulid string) (Ref, error) {
	event, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return Ref{}, err
	}
	return Ref{ULID: event.ULID, OrganizerULID: event.OrganizerULID, Status: event.Status, Capacity: event.Capacity}, nil
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseFilters parses the event-list query string.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	page := Pagination{Limit: 50}

	startDate, err := parseDate("startDate", values.Get("startDate"))
	if err != nil {
		return filters, page, err
	}
	endDate, err := parseDate("endDate", values.Get("endDate"))
	if err != nil {
		return filters, page, err
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return filters, page, FilterError{Field: "endDate", Message: "must be on or after startDate"}
	}
	filters.StartDate = startDate
	filters.EndDate = endDate

	filters.City = strings.TrimSpace(values.Get("city"))
	filters.Query = strings.TrimSpace(values.Get("q"))

	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if status != "" && !ValidStatus(status) {
		return filters, page, FilterError{Field: "status", Message: "unsupported lifecycle state"}
	}
	filters.Status = status

	organizer := strings.TrimSpace(values.Get("organizerId"))
	if organizer != "" {
		if err := ids.ValidateULID(organizer); err != nil {
			return filters, page, FilterError{Field: "organizerId", Message: "invalid ULID"}
		}
	}
	filters.OrganizerULID = ids.Normalize(organizer)

	limit, err := parseLimit(values)
	if err != nil {
		return filters, page, err
	}
	page.Limit = limit

	after := strings.TrimSpace(values.Get("after"))
	if after != "" {
		if _, err := pagination.Decode(after); err != nil {
			return filters, page, FilterError{Field: "after", Message: "must be a valid cursor"}
		}
	}
	page.After = after

	return filters, page, nil
}

func parseDate(field string, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, FilterError{Field: field, Message: "must be ISO8601 date"}
	}
	return &parsed, nil
}

func parseLimit(values url.Values) (int, error) {
	limit := 50
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		return limit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, FilterError{Field: "limit", Message: "must be a number"}
	}
	if parsed < 1 || parsed > 200 {
		return 0, FilterError{Field: "limit", Message: "must be between 1 and 200"}
	}
	return parsed, nil
}
