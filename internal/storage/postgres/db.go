package postgres

import (
	"context"
	"fmt"

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
	"github.com/eventops/server/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx so repositories run
// the same code inside and outside a transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{db: r.queryer()}
}

func (r *Repository) Events() events.Repository {
	return &EventRepository{db: r.queryer()}
}

func (r *Repository) Vendors() vendors.Repository {
	return &VendorRepository{db: r.queryer()}
}

func (r *Repository) Sponsors() sponsors.Repository {
	return &SponsorRepository{db: r.queryer()}
}

func (r *Repository) Tasks() tasks.Repository {
	return &TaskRepository{db: r.queryer()}
}

func (r *Repository) Budgets() budgets.Repository {
	return &BudgetRepository{db: r.queryer()}
}

func (r *Repository) Attendees() attendees.Repository {
	return &AttendeeRepository{db: r.queryer()}
}

func (r *Repository) Moderation() moderation.Repository {
	return &ModerationRepository{db: r.queryer()}
}

func (r *Repository) Webhooks() webhooks.Repository {
	return &WebhookRepository{db: r.queryer()}
}

func (r *Repository) AIUsage() aiusage.Repository {
	return &AIUsageRepository{db: r.queryer()}
}

func (r *Repository) Stats() stats.Repository {
	return &StatsRepository{db: r.queryer()}
}

func (r *Repository) RateWindows() ratelimit.Store {
	return &RateWindowStore{db: r.queryer()}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
