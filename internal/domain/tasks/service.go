package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/sanitize"
	"github.com/eventops/server/internal/validate"
	"github.com/rs/zerolog"
)

// EventDirectory resolves the event slice needed for authorization checks.
// Implemented by *events.Service.
type EventDirectory interface {
	Ref(ctx context.Context, eventULID string) (events.Ref, error)
}

type Service struct {
	repo   Repository
	events EventDirectory
	logger zerolog.Logger
}

func NewService(repo Repository, directory EventDirectory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, events: directory, logger: logger.With().Str("component", "tasks").Logger()}
}

type Input struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description" validate:"max=5000"`
	Assignee    string     `json:"assignee" validate:"max=200"`
	DueAt       *time.Time `json:"due_at"`
}

// authorizeEvent resolves the event and enforces ownership.
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

func (s *Service) Create(ctx context.Context, actor auth.Actor, eventULID string, input Input) (*Task, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}

	if field, message, failed := validate.First(input); failed {
		return nil, FieldError{Field: field, Message: message}
	}
	title := sanitize.Text(strings.TrimSpace(input.Title))
	if title == "" {
		return nil, FieldError{Field: "title", Message: "required"}
	}
	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	task, err := s.repo.Create(ctx, CreateParams{
		ULID:        ulid,
		EventULID:   ref.ULID,
		Title:       title,
		Description: sanitize.HTML(input.Description),
		Assignee:    sanitize.Text(strings.TrimSpace(input.Assignee)),
		DueAt:       input.DueAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info().Str("task", task.ULID).Str("event", ref.ULID).Msg("task created")
	return task, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Task, error) {
	task, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeEvent(ctx, actor, task.EventULID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, eventULID string, filters Filters) ([]Task, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}
	if filters.Status != "" && !ValidStatus(filters.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListByEvent(ctx, ref.ULID, filters)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, params UpdateParams) (*Task, error) {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return nil, err
	}

	if params.Title != nil {
		title := sanitize.Text(strings.TrimSpace(*params.Title))
		if title == "" {
			return nil, FieldError{Field: "title", Message: "required"}
		}
		params.Title = &title
	}
	if params.Description != nil {
		description := sanitize.HTML(*params.Description)
		params.Description = &description
	}
	if params.Assignee != nil {
		assignee := sanitize.Text(strings.TrimSpace(*params.Assignee))
		params.Assignee = &assignee
	}

	updated, err := s.repo.Update(ctx, ulid, params)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

// SetStatus moves a task between working states. Any transition between
// valid states is allowed; tasks are lightweight enough not to warrant a
// state machine.
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, ulid string, status string) (*Task, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	task, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetStatus(ctx, task.ULID, Status(status)); err != nil {
		return nil, fmt.Errorf("set task status: %w", err)
	}
	task.Status = Status(status)
	return task, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// OverdueCount reports how many of an event's tasks are past due, for stats.
func (s *Service) OverdueCount(ctx context.Context, actor auth.Actor, eventULID string) (int, error) {
	list, err := s.List(ctx, actor, eventULID, Filters{})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	count := 0
	for _, task := range list {
		if task.Overdue(now) {
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
