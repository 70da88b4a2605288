package budgets

import (
	"context"
	"fmt"
	"sort"
	"strings"

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

// SponsorIncome surfaces approved sponsorship money so summaries can count
// it as income. Implemented by *sponsors.Service.
type SponsorIncome interface {
	ApprovedIncome(ctx context.Context, eventULID string) (int64, error)
}

type Service struct {
	repo     Repository
	events   EventDirectory
	sponsors SponsorIncome
	logger   zerolog.Logger
}

func NewService(repo Repository, directory EventDirectory, sponsors SponsorIncome, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   directory,
		sponsors: sponsors,
		logger:   logger.With().Str("component", "budgets").Logger(),
	}
}

type Input struct {
	Kind         string `json:"kind" validate:"required"`
	Category     string `json:"category" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=1000"`
	PlannedCents int64  `json:"planned_cents" validate:"gte=0"`
	ActualCents  int64  `json:"actual_cents" validate:"gte=0"`
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

func (s *Service) validate(input Input) (Input, error) {
	if field, message, failed := validate.First(input); failed {
		return input, FieldError{Field: field, Message: message}
	}
	input.Kind = strings.ToLower(strings.TrimSpace(input.Kind))
	if !ValidKind(input.Kind) {
		return input, ErrInvalidKind
	}
	input.Category = sanitize.Text(strings.TrimSpace(input.Category))
	if input.Category == "" {
		return input, FieldError{Field: "category", Message: "required"}
	}
	if input.PlannedCents < 0 || input.ActualCents < 0 {
		return input, FieldError{Field: "amount", Message: "must be non-negative"}
	}
	input.Description = sanitize.Text(strings.TrimSpace(input.Description))
	return input, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, eventULID string, input Input) (*Item, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}

	input, err = s.validate(input)
	if err != nil {
		return nil, err
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	item, err := s.repo.Create(ctx, ItemParams{
		ULID:         ulid,
		EventULID:    ref.ULID,
		Kind:         Kind(input.Kind),
		Category:     input.Category,
		Description:  input.Description,
		PlannedCents: input.PlannedCents,
		ActualCents:  input.ActualCents,
	})
	if err != nil {
		return nil, fmt.Errorf("create budget item: %w", err)
	}

	s.logger.Info().Str("item", item.ULID).Str("event", ref.ULID).Msg("budget item created")
	return item, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Item, error) {
	item, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeEvent(ctx, actor, item.EventULID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, eventULID string) ([]Item, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByEvent(ctx, ref.ULID)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, input Input) (*Item, error) {
	item, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}

	input, err = s.validate(input)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, item.ULID, ItemParams{
		Kind:         Kind(input.Kind),
		Category:     input.Category,
		Description:  input.Description,
		PlannedCents: input.PlannedCents,
		ActualCents:  input.ActualCents,
	})
	if err != nil {
		return nil, fmt.Errorf("update budget item: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// Summarize rolls the event's line items up in memory and folds in approved
// sponsorship income. Events carry at most a few hundred budget lines, so
// aggregation stays out of SQL.
func (s *Service) Summarize(ctx context.Context, actor auth.Actor, eventULID string) (*Summary, error) {
	ref, err := s.authorizeEvent(ctx, actor, eventULID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByEvent(ctx, ref.ULID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}

	sponsorIncome, err := s.sponsors.ApprovedIncome(ctx, ref.ULID)
	if err != nil {
		return nil, fmt.Errorf("sponsor income: %w", err)
	}

	summary := &Summary{EventULID: ref.ULID, SponsorIncomeCents: sponsorIncome}
	expenseTotals := make(map[string]*CategoryTotal)
	incomeTotals := make(map[string]*CategoryTotal)

	for _, item := range items {
		totals := expenseTotals
		if item.Kind == KindIncome {
			totals = incomeTotals
			summary.PlannedIncomeCents += item.PlannedCents
			summary.ActualIncomeCents += item.ActualCents
		} else {
			summary.PlannedExpenseCents += item.PlannedCents
			summary.ActualExpenseCents += item.ActualCents
		}

		total, ok := totals[item.Category]
		if !ok {
			total = &CategoryTotal{Category: item.Category}
			totals[item.Category] = total
		}
		total.PlannedCents += item.PlannedCents
		total.ActualCents += item.ActualCents
	}

	summary.ExpenseVariance = summary.ActualExpenseCents - summary.PlannedExpenseCents
	summary.NetCents = summary.ActualIncomeCents + sponsorIncome - summary.ActualExpenseCents
	summary.Expenses = sortedTotals(expenseTotals)
	summary.Income = sortedTotals(incomeTotals)
	return summary, nil
}

func sortedTotals(totals map[string]*CategoryTotal) []CategoryTotal {
	result := make([]CategoryTotal, 0, len(totals))
	for _, total := range totals {
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Category < result[j].Category })
	return result
}

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
