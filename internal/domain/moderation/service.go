package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/sanitize"
	"github.com/rs/zerolog"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "moderation").Logger()}
}

// Record appends a moderation entry. Failures are logged but never bubble up
// so that a logging problem cannot block the moderation action itself.
func (s *Service) Record(ctx context.Context, actor auth.Actor, action, resourceType, resourceID, reason, ip string) {
	entry := Entry{
		ActorULID:    actor.ULID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Reason:       sanitize.Text(strings.TrimSpace(reason)),
		IP:           ip,
	}
	if _, err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", action).
			Str("resource", resourceType+"/"+resourceID).
			Msg("failed to append moderation entry")
	}
}

// List pages through the log oldest-first using an opaque sequence cursor.
// Admins only.
func (s *Service) List(ctx context.Context, actor auth.Actor, cursor string, limit int) (ListResult, error) {
	if !actor.IsAdmin() {
		return ListResult{}, ErrForbidden
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var after int64
	if cursor != "" {
		seq, err := pagination.DecodeSequence(cursor)
		if err != nil {
			return ListResult{}, err
		}
		after = seq
	}

	entries, err := s.repo.ListAfter(ctx, after, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list moderation log: %w", err)
	}

	result := ListResult{Entries: entries}
	if len(entries) == limit {
		result.NextCursor = pagination.EncodeSequence(entries[len(entries)-1].Sequence)
	}
	return result, nil
}
