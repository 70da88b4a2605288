package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventops/server/internal/domain/tasks"
	"github.com/jackc/pgx/v5"
)

var _ tasks.Repository = (*TaskRepository)(nil)

type TaskRepository struct {
	db queryer
}

const taskColumns = `id, ulid, event_ulid, title, description, status, assignee, due_at, created_at, updated_at`

func scanTask(row pgx.Row) (*tasks.Task, error) {
	var task tasks.Task
	var status string
	var assignee *string
	err := row.Scan(
		&task.ID,
		&task.ULID,
		&task.EventULID,
		&task.Title,
		&task.Description,
		&status,
		&assignee,
		&task.DueAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tasks.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.Status = tasks.Status(status)
	task.Assignee = derefString(assignee)
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, params tasks.CreateParams) (*tasks.Task, error) {
	var assignee *string
	if params.Assignee != "" {
		assignee = &params.Assignee
	}
	row := r.db.QueryRow(ctx, `
INSERT INTO tasks (ulid, event_ulid, title, description, assignee, due_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+taskColumns,
		params.ULID, params.EventULID, params.Title, params.Description, assignee, params.DueAt)
	return scanTask(row)
}

func (r *TaskRepository) GetByULID(ctx context.Context, ulid string) (*tasks.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE ulid = $1`, ulid)
	return scanTask(row)
}

func (r *TaskRepository) ListByEvent(ctx context.Context, eventULID string, filters tasks.Filters) ([]tasks.Task, error) {
	conditions := []string{"event_ulid = $1"}
	args := []any{eventULID}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conditions = append(conditions, "status = "+arg(filters.Status))
	}
	if filters.Assignee != "" {
		conditions = append(conditions, "assignee = "+arg(filters.Assignee))
	}
	if filters.OverdueOnly {
		conditions = append(conditions, "due_at IS NOT NULL AND due_at < now() AND status <> 'done'")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY due_at NULLS LAST, created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var items []tasks.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *task)
	}
	return items, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, ulid string, params tasks.UpdateParams) (*tasks.Task, error) {
	assignments := []string{"updated_at = now()"}
	args := []any{ulid}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Title != nil {
		assignments = append(assignments, "title = "+arg(*params.Title))
	}
	if params.Description != nil {
		assignments = append(assignments, "description = "+arg(*params.Description))
	}
	if params.Assignee != nil {
		if *params.Assignee == "" {
			assignments = append(assignments, "assignee = NULL")
		} else {
			assignments = append(assignments, "assignee = "+arg(*params.Assignee))
		}
	}
	if params.ClearDueAt {
		assignments = append(assignments, "due_at = NULL")
	} else if params.DueAt != nil {
		assignments = append(assignments, "due_at = "+arg(*params.DueAt))
	}

	row := r.db.QueryRow(ctx, `
UPDATE tasks SET `+strings.Join(assignments, ", ")+`
 WHERE ulid = $1
RETURNING `+taskColumns, args...)
	return scanTask(row)
}

func (r *TaskRepository) SetStatus(ctx context.Context, ulid string, status tasks.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE tasks SET status = $2, updated_at = now() WHERE ulid = $1`, ulid, string(status))
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}
