package tasks

import "time"

// Status tracks a task through its working states.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

func ValidStatus(value string) bool {
	switch Status(value) {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// Task is a unit of event preparation work, optionally assigned and dated.
// The assignee is a free-form name or email, not a platform account.
type Task struct {
	ID          string
	ULID        string
	EventULID   string
	Title       string
	Description string
	Status      Status
	Assignee    string
	DueAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overdue reports whether the task has a due date in the past and is not done.
func (t Task) Overdue(now time.Time) bool {
	return t.DueAt != nil && t.DueAt.Before(now) && t.Status != StatusDone
}

type CreateParams struct {
	ULID        string
	EventULID   string
	Title       string
	Description string
	Assignee    string
	DueAt       *time.Time
}

type UpdateParams struct {
	Title       *string
	Description *string
	Assignee    *string
	DueAt       *time.Time
	ClearDueAt  bool
}

type Filters struct {
	Status      string
	Assignee    string
	OverdueOnly bool
}
