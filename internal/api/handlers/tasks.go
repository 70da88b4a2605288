package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/tasks"
)

type TasksHandler struct {
	Service *tasks.Service
	Env     string
}

func NewTasksHandler(service *tasks.Service, env string) *TasksHandler {
	return &TasksHandler{Service: service, Env: env}
}

type taskResponse struct {
	ULID        string     `json:"ulid"`
	EventULID   string     `json:"event_ulid"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Overdue     bool       `json:"overdue"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toTaskResponse(t *tasks.Task) taskResponse {
	return taskResponse{
		ULID:        t.ULID,
		EventULID:   t.EventULID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Assignee:    t.Assignee,
		DueAt:       t.DueAt,
		Overdue:     t.Overdue(time.Now().UTC()),
		CreatedAt:   t.CreatedAt,
	}
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input tasks.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	task, err := h.Service.Create(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	query := r.URL.Query()
	list, err := h.Service.List(r.Context(), actor, pathParam(r, "id"), tasks.Filters{
		Status:      query.Get("status"),
		Assignee:    query.Get("assignee"),
		OverdueOnly: query.Get("overdue") == "true",
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]taskResponse, 0, len(list))
	for i := range list {
		items = append(items, toTaskResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	task, err := h.Service.Get(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

type taskUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Assignee    *string    `json:"assignee"`
	DueAt       *time.Time `json:"due_at"`
	ClearDueAt  bool       `json:"clear_due_at"`
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req taskUpdateRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	task, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), tasks.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

func (h *TasksHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req taskStatusRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	task, err := h.Service.SetStatus(r.Context(), actor, pathParam(r, "id"), req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), actor, pathParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TasksHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr tasks.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, tasks.ErrInvalidStatus):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
	case errors.Is(err, tasks.ErrNotFound), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, tasks.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
