package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	tasks map[string]*Task
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[string]*Task)}
}

func (f *fakeRepo) Create(_ context.Context, params CreateParams) (*Task, error) {
	task := &Task{
		ULID:        params.ULID,
		EventULID:   params.EventULID,
		Title:       params.Title,
		Description: params.Description,
		Status:      StatusTodo,
		Assignee:    params.Assignee,
		DueAt:       params.DueAt,
		CreatedAt:   time.Now(),
	}
	f.tasks[params.ULID] = task
	return task, nil
}

func (f *fakeRepo) GetByULID(_ context.Context, ulid string) (*Task, error) {
	if task, ok := f.tasks[ulid]; ok {
		copied := *task
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) ListByEvent(_ context.Context, eventULID string, filters Filters) ([]Task, error) {
	var result []Task
	now := time.Now().UTC()
	for _, task := range f.tasks {
		if task.EventULID != eventULID {
			continue
		}
		if filters.Status != "" && task.Status != Status(filters.Status) {
			continue
		}
		if filters.Assignee != "" && task.Assignee != filters.Assignee {
			continue
		}
		if filters.OverdueOnly && !task.Overdue(now) {
			continue
		}
		result = append(result, *task)
	}
	return result, nil
}

func (f *fakeRepo) Update(_ context.Context, ulid string, params UpdateParams) (*Task, error) {
	task, ok := f.tasks[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.Assignee != nil {
		task.Assignee = *params.Assignee
	}
	if params.ClearDueAt {
		task.DueAt = nil
	} else if params.DueAt != nil {
		task.DueAt = params.DueAt
	}
	copied := *task
	return &copied, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, ulid string, status Status) error {
	task, ok := f.tasks[ulid]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, ulid string) error {
	delete(f.tasks, ulid)
	return nil
}

type fakeDirectory struct {
	refs map[string]events.Ref
}

func (f *fakeDirectory) Ref(_ context.Context, ulid string) (events.Ref, error) {
	if ref, ok := f.refs[ulid]; ok {
		return ref, nil
	}
	return events.Ref{}, events.ErrNotFound
}

var (
	owner    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ1", Role: auth.RoleOrganizer}
	stranger = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ2", Role: auth.RoleOrganizer}
	admin    = auth.Actor{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZ3", Role: auth.RoleAdmin}
)

const eventULID = "01HYX3KQW7ERTV9XNBM2P8QJE1"

func newTestService(repo Repository) *Service {
	directory := &fakeDirectory{refs: map[string]events.Ref{
		eventULID: {ULID: eventULID, OrganizerULID: owner.ULID, Status: events.StatusPublished},
	}}
	return NewService(repo, directory, zerolog.Nop())
}

func createTask(t *testing.T, svc *Service, input Input) *Task {
	t.Helper()
	task, err := svc.Create(context.Background(), owner, eventULID, input)
	require.NoError(t, err)
	return task
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Create(context.Background(), owner, eventULID, Input{Title: "  "})
	require.Error(t, err)
}

func TestCreateTaskRequiresEventOwner(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Create(context.Background(), stranger, eventULID, Input{Title: "Book venue"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), admin, eventULID, Input{Title: "Book venue"})
	require.NoError(t, err)
}

func TestCreateTaskKeepsFreeFormAssignee(t *testing.T) {
	svc := newTestService(newFakeRepo())

	task, err := svc.Create(context.Background(), owner, eventULID, Input{
		Title:    "Book venue",
		Assignee: " Dana Ops (dana@example.test) ",
	})
	require.NoError(t, err)
	require.Equal(t, "Dana Ops (dana@example.test)", task.Assignee)
}

func TestSetStatusValidatesState(t *testing.T) {
	svc := newTestService(newFakeRepo())
	task := createTask(t, svc, Input{Title: "Order badges"})

	updated, err := svc.SetStatus(context.Background(), owner, task.ULID, "in_progress")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)

	_, err = svc.SetStatus(context.Background(), owner, task.ULID, "paused")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateClearsDueDate(t *testing.T) {
	svc := newTestService(newFakeRepo())
	due := time.Now().Add(48 * time.Hour)
	task := createTask(t, svc, Input{Title: "Order badges", DueAt: &due})

	updated, err := svc.Update(context.Background(), owner, task.ULID, UpdateParams{ClearDueAt: true})
	require.NoError(t, err)
	require.Nil(t, updated.DueAt)
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newTestService(newFakeRepo())
	createTask(t, svc, Input{Title: "Order badges"})
	second := createTask(t, svc, Input{Title: "Hire security"})

	_, err := svc.SetStatus(context.Background(), owner, second.ULID, "done")
	require.NoError(t, err)

	list, err := svc.List(context.Background(), owner, eventULID, Filters{Status: "done"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, second.ULID, list[0].ULID)
}

func TestOverdueCount(t *testing.T) {
	svc := newTestService(newFakeRepo())

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	createTask(t, svc, Input{Title: "Order badges", DueAt: &past})
	createTask(t, svc, Input{Title: "Hire security", DueAt: &future})
	done := createTask(t, svc, Input{Title: "Print programs", DueAt: &past})

	_, err := svc.SetStatus(context.Background(), owner, done.ULID, "done")
	require.NoError(t, err)

	count, err := svc.OverdueCount(context.Background(), owner, eventULID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
