// Package stats aggregates platform-wide totals for the admin dashboard.
package stats

import (
	"context"
	"errors"

	"github.com/eventops/server/internal/auth"
)

var ErrForbidden = errors.New("not allowed")

// Platform is the admin dashboard roll-up.
type Platform struct {
	Organizers       int            `json:"organizers"`
	Admins           int            `json:"admins"`
	SuspendedUsers   int            `json:"suspended_users"`
	Events           int            `json:"events"`
	EventsByStatus   map[string]int `json:"events_by_status"`
	Attendees        int            `json:"attendees"`
	WebhookEndpoints int            `json:"webhook_endpoints"`
}

type Repository interface {
	PlatformTotals(ctx context.Context) (Platform, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Platform returns the totals; admins only.
func (s *Service) Platform(ctx context.Context, actor auth.Actor) (Platform, error) {
	if !actor.IsAdmin() {
		return Platform{}, ErrForbidden
	}
	return s.repo.PlatformTotals(ctx)
}
