package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
)

type BudgetsHandler struct {
	Service *budgets.Service
	Env     string
}

func NewBudgetsHandler(service *budgets.Service, env string) *BudgetsHandler {
	return &BudgetsHandler{Service: service, Env: env}
}

type budgetItemResponse struct {
	ULID         string    `json:"ulid"`
	EventULID    string    `json:"event_ulid"`
	Kind         string    `json:"kind"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	PlannedCents int64     `json:"planned_cents"`
	ActualCents  int64     `json:"actual_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

func toBudgetItemResponse(item *budgets.Item) budgetItemResponse {
	return budgetItemResponse{
		ULID:         item.ULID,
		EventULID:    item.EventULID,
		Kind:         string(item.Kind),
		Category:     item.Category,
		Description:  item.Description,
		PlannedCents: item.PlannedCents,
		ActualCents:  item.ActualCents,
		CreatedAt:    item.CreatedAt,
	}
}

func (h *BudgetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input budgets.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	item, err := h.Service.Create(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBudgetItemResponse(item))
}

func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	items, err := h.Service.List(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	responses := make([]budgetItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toBudgetItemResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": responses})
}

func (h *BudgetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	item, err := h.Service.Get(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBudgetItemResponse(item))
}

func (h *BudgetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input budgets.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	item, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBudgetItemResponse(item))
}

func (h *BudgetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *BudgetsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	summary, err := h.Service.Summarize(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *BudgetsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr budgets.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, budgets.ErrInvalidKind):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
	case errors.Is(err, budgets.ErrNotFound), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, budgets.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
