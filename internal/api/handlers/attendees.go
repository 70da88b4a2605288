package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/metrics"
)

type AttendeesHandler struct {
	Service  *attendees.Service
	Events   *events.Service
	Webhooks *webhooks.Service
	Env      string
}

func NewAttendeesHandler(service *attendees.Service, eventsSvc *events.Service, hooks *webhooks.Service, env string) *AttendeesHandler {
	return &AttendeesHandler{Service: service, Events: eventsSvc, Webhooks: hooks, Env: env}
}

type attendeeResponse struct {
	ULID        string     `json:"ulid"`
	EventULID   string     `json:"event_ulid"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	TicketType  string     `json:"ticket_type"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAttendeeResponse(a *attendees.Attendee) attendeeResponse {
	return attendeeResponse{
		ULID:        a.ULID,
		EventULID:   a.EventULID,
		Name:        a.Name,
		Email:       a.Email,
		TicketType:  a.TicketType,
		CheckedInAt: a.CheckedInAt,
		CreatedAt:   a.CreatedAt,
	}
}

func (h *AttendeesHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input attendees.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	attendee, err := h.Service.Register(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	metrics.AttendeeRegistrationsTotal.Inc()
	if ref, refErr := h.Events.Ref(r.Context(), attendee.EventULID); refErr == nil {
		h.Webhooks.Emit(r.Context(), ref.OrganizerULID, webhooks.KindAttendeeRegistered, map[string]any{
			"attendee_ulid": attendee.ULID,
			"event_ulid":    attendee.EventULID,
			"name":          attendee.Name,
			"at":            time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusCreated, toAttendeeResponse(attendee))
}

func (h *AttendeesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.Service.List(r.Context(), actor, pathParam(r, "id"), attendees.Pagination{
		Limit: limit,
		After: r.URL.Query().Get("after"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]attendeeResponse, 0, len(result.Attendees))
	for i := range result.Attendees {
		items = append(items, toAttendeeResponse(&result.Attendees[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": result.NextCursor,
	})
}

func (h *AttendeesHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	attendee, err := h.Service.CheckIn(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAttendeeResponse(attendee))
}

func (h *AttendeesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	if err := h.Service.Remove(r.Context(), actor, pathParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendeesHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr attendees.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, attendees.ErrNotFound), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, attendees.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	case errors.Is(err, attendees.ErrDuplicateEmail),
		errors.Is(err, attendees.ErrCapacityReached),
		errors.Is(err, attendees.ErrEventNotOpen),
		errors.Is(err, attendees.ErrAlreadyCheckedIn):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
