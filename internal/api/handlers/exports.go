package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/export"
)

type ExportsHandler struct {
	Attendees *attendees.Service
	Budgets   *budgets.Service
	Logger    zerolog.Logger
	Env       string
}

func NewExportsHandler(attendeesSvc *attendees.Service, budgetsSvc *budgets.Service, logger zerolog.Logger, env string) *ExportsHandler {
	return &ExportsHandler{
		Attendees: attendeesSvc,
		Budgets:   budgetsSvc,
		Logger:    logger.With().Str("component", "exports").Logger(),
		Env:       env,
	}
}

// Attendees streams the event's full roster as CSV or JSON.
func (h *ExportsHandler) AttendeeRoster(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	eventULID := pathParam(r, "id")
	roster, err := h.Attendees.ListAll(r.Context(), actor, eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename("attendees", eventULID, format)))
	if err := export.Attendees(w, format, roster); err != nil {
		h.Logger.Error().Err(err).Str("event", eventULID).Msg("attendee export failed mid-stream")
	}
}

// Budget streams the event's budget line items as CSV or JSON.
func (h *ExportsHandler) Budget(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	eventULID := pathParam(r, "id")
	items, err := h.Budgets.List(r.Context(), actor, eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename("budget", eventULID, format)))
	if err := export.BudgetItems(w, format, items); err != nil {
		h.Logger.Error().Err(err).Str("event", eventULID).Msg("budget export failed mid-stream")
	}
}

func (h *ExportsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, attendees.ErrForbidden), errors.Is(err, budgets.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
