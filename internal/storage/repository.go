package storage

import (
	"context"

	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/eventops/server/internal/domain/stats"
	"github.com/eventops/server/internal/domain/tasks"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/domain/vendors"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/ratelimit"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Events() events.Repository
	Vendors() vendors.Repository
	Sponsors() sponsors.Repository
	Tasks() tasks.Repository
	Budgets() budgets.Repository
	Attendees() attendees.Repository
	Moderation() moderation.Repository
	Webhooks() webhooks.Repository
	AIUsage() aiusage.Repository
	Stats() stats.Repository
	RateWindows() ratelimit.Store

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
