package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/validate"
	"github.com/rs/zerolog"
)

// Enqueuer hands a delivery to the background queue. Implemented by the jobs
// package so this package stays queue-agnostic.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, delivery Delivery) error
}

type Service struct {
	repo                 Repository
	enqueuer             Enqueuer
	disableAfterFailures int
	logger               zerolog.Logger
}

func NewService(repo Repository, enqueuer Enqueuer, disableAfterFailures int, logger zerolog.Logger) *Service {
	return &Service{
		repo:                 repo,
		enqueuer:             enqueuer,
		disableAfterFailures: disableAfterFailures,
		logger:               logger.With().Str("component", "webhooks").Logger(),
	}
}

type Input struct {
	URL   string   `json:"url" validate:"required,url"`
	Kinds []string `json:"kinds" validate:"required,min=1"`
}

func parseKinds(raw []string) ([]Kind, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidKind
	}
	seen := make(map[Kind]bool, len(raw))
	kinds := make([]Kind, 0, len(raw))
	for _, value := range raw {
		value = strings.ToLower(strings.TrimSpace(value))
		if !ValidKind(value) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, value)
		}
		if !seen[Kind(value)] {
			seen[Kind(value)] = true
			kinds = append(kinds, Kind(value))
		}
	}
	return kinds, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

// Create registers an endpoint and returns it with the freshly generated
// secret. The secret is never returned by reads afterwards.
func (s *Service) Create(ctx context.Context, actor auth.Actor, input Input) (*Endpoint, error) {
	if field, _, failed := validate.First(input); failed {
		if field == "url" {
			return nil, ErrInvalidURL
		}
		return nil, ErrInvalidKind
	}
	endpointURL, err := validateURL(input.URL)
	if err != nil {
		return nil, err
	}
	kinds, err := parseKinds(input.Kinds)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	endpoint, err := s.repo.Create(ctx, EndpointParams{
		ULID:      ulid,
		OwnerULID: actor.ULID,
		URL:       endpointURL,
		Secret:    secret,
		Kinds:     kinds,
	})
	if err != nil {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}

	s.logger.Info().Str("endpoint", endpoint.ULID).Str("owner", actor.ULID).Msg("webhook endpoint created")
	return endpoint, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, ulid string) (*Endpoint, error) {
	endpoint, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(endpoint.OwnerULID) {
		return nil, ErrForbidden
	}
	return endpoint, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor) ([]Endpoint, error) {
	return s.repo.ListByOwner(ctx, actor.ULID)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, ulid string, input Input) (*Endpoint, error) {
	endpoint, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if field, _, failed := validate.First(input); failed {
		if field == "url" {
			return nil, ErrInvalidURL
		}
		return nil, ErrInvalidKind
	}
	endpointURL, err := validateURL(input.URL)
	if err != nil {
		return nil, err
	}
	kinds, err := parseKinds(input.Kinds)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, endpoint.ULID, endpointURL, kinds)
	if err != nil {
		return nil, fmt.Errorf("update endpoint: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, ulid string) error {
	if _, err := s.Get(ctx, actor, ulid); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ulid)
}

// SetDisabled toggles delivery. Re-enabling clears the failure streak.
func (s *Service) SetDisabled(ctx context.Context, actor auth.Actor, ulid string, disabled bool) (*Endpoint, error) {
	endpoint, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetDisabled(ctx, endpoint.ULID, disabled); err != nil {
		return nil, fmt.Errorf("set endpoint disabled: %w", err)
	}
	if !disabled {
		if err := s.repo.ResetFailures(ctx, endpoint.ULID); err != nil {
			return nil, fmt.Errorf("reset failures: %w", err)
		}
		endpoint.ConsecutiveFailures = 0
	}
	endpoint.Disabled = disabled
	return endpoint, nil
}

// ListAttempts returns the endpoint's most recent delivery attempts.
func (s *Service) ListAttempts(ctx context.Context, actor auth.Actor, ulid string, limit int) ([]Attempt, error) {
	endpoint, err := s.Get(ctx, actor, ulid)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListAttempts(ctx, endpoint.ULID, limit)
}

// Emit fans a domain occurrence out to the owner's subscribed endpoints. The
// payload is marshalled once and carried verbatim by every delivery. Emission
// is best-effort: an enqueue failure is logged but never fails the request
// that triggered it.
func (s *Service) Emit(ctx context.Context, ownerULID string, kind Kind, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to marshal webhook payload")
		return
	}

	endpoints, err := s.repo.ListSubscribed(ctx, ownerULID, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to list webhook subscribers")
		return
	}

	for _, endpoint := range endpoints {
		delivery := Delivery{EndpointULID: endpoint.ULID, Kind: kind, Payload: body}
		if err := s.enqueuer.EnqueueDelivery(ctx, delivery); err != nil {
			s.logger.Error().Err(err).Str("endpoint", endpoint.ULID).Str("kind", string(kind)).Msg("failed to enqueue webhook delivery")
		}
	}
}

// HandleResult records an attempt and maintains the failure streak. Crossing
// the consecutive-failure threshold disables the endpoint.
func (s *Service) HandleResult(ctx context.Context, endpointULID string, kind Kind, statusCode int, deliveryErr error) error {
	attempt := Attempt{
		EndpointULID: endpointULID,
		Kind:         kind,
		StatusCode:   statusCode,
		Success:      deliveryErr == nil,
	}
	if deliveryErr != nil {
		attempt.Error = deliveryErr.Error()
	}
	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	if deliveryErr == nil {
		return s.repo.ResetFailures(ctx, endpointULID)
	}

	failures, err := s.repo.IncrementFailures(ctx, endpointULID)
	if err != nil {
		return fmt.Errorf("increment failures: %w", err)
	}
	if failures >= s.disableAfterFailures {
		if err := s.repo.SetDisabled(ctx, endpointULID, true); err != nil {
			return fmt.Errorf("disable endpoint: %w", err)
		}
		metrics.WebhookEndpointsDisabledTotal.Inc()
		s.logger.Warn().Str("endpoint", endpointULID).Int("failures", failures).Msg("webhook endpoint disabled after repeated failures")
	}
	return nil
}

// PurgeAttempts removes attempt rows older than the retention cutoff.
func (s *Service) PurgeAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteAttemptsBefore(ctx, cutoff)
}
