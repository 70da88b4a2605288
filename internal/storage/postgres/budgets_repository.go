package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventops/server/internal/domain/budgets"
	"github.com/jackc/pgx/v5"
)

var _ budgets.Repository = (*BudgetRepository)(nil)

type BudgetRepository struct {
	db queryer
}

const budgetColumns = `id, ulid, event_ulid, kind, category, description, planned_cents, actual_cents, created_at, updated_at`

func scanBudgetItem(row pgx.Row) (*budgets.Item, error) {
	var item budgets.Item
	var kind string
	err := row.Scan(
		&item.ID,
		&item.ULID,
		&item.EventULID,
		&kind,
		&item.Category,
		&item.Description,
		&item.PlannedCents,
		&item.ActualCents,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, budgets.ErrNotFound
		}
		return nil, fmt.Errorf("scan budget item: %w", err)
	}
	item.Kind = budgets.Kind(kind)
	return &item, nil
}

func (r *BudgetRepository) Create(ctx context.Context, params budgets.ItemParams) (*budgets.Item, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO budget_items (ulid, event_ulid, kind, category, description, planned_cents, actual_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+budgetColumns,
		params.ULID, params.EventULID, string(params.Kind), params.Category,
		params.Description, params.PlannedCents, params.ActualCents)
	return scanBudgetItem(row)
}

func (r *BudgetRepository) GetByULID(ctx context.Context, ulid string) (*budgets.Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budget_items WHERE ulid = $1`, ulid)
	return scanBudgetItem(row)
}

func (r *BudgetRepository) ListByEvent(ctx context.Context, eventULID string) ([]budgets.Item, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+budgetColumns+` FROM budget_items WHERE event_ulid = $1 ORDER BY kind, category, created_at`, eventULID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	var items []budgets.Item
	for rows.Next() {
		item, err := scanBudgetItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *BudgetRepository) Update(ctx context.Context, ulid string, params budgets.ItemParams) (*budgets.Item, error) {
	row := r.db.QueryRow(ctx, `
UPDATE budget_items
   SET kind = $2, category = $3, description = $4, planned_cents = $5, actual_cents = $6, updated_at = now()
 WHERE ulid = $1
RETURNING `+budgetColumns,
		ulid, string(params.Kind), params.Category, params.Description, params.PlannedCents, params.ActualCents)
	return scanBudgetItem(row)
}

func (r *BudgetRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM budget_items WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete budget item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return budgets.ErrNotFound
	}
	return nil
}
