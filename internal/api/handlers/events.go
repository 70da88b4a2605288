package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/metrics"
)

type EventsHandler struct {
	Service    *events.Service
	Webhooks   *webhooks.Service
	Moderation *moderation.Service
	Env        string
}

func NewEventsHandler(service *events.Service, hooks *webhooks.Service, mod *moderation.Service, env string) *EventsHandler {
	return &EventsHandler{Service: service, Webhooks: hooks, Moderation: mod, Env: env}
}

type eventResponse struct {
	ULID          string     `json:"ulid"`
	OrganizerULID string     `json:"organizer_ulid"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Venue         string     `json:"venue,omitempty"`
	City          string     `json:"city,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Capacity      int        `json:"capacity"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func toEventResponse(e *events.Event) eventResponse {
	return eventResponse{
		ULID:          e.ULID,
		OrganizerULID: e.OrganizerULID,
		Name:          e.Name,
		Description:   e.Description,
		Venue:         e.Venue,
		City:          e.City,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Capacity:      e.Capacity,
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		CancelledAt:   e.CancelledAt,
	}
}

type eventListResponse struct {
	Items      []eventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// eventWebhookPayload is the body delivered to subscribers for event
// lifecycle kinds.
type eventWebhookPayload struct {
	EventULID string     `json:"event_ulid"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	At        time.Time  `json:"at"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input events.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	event, err := h.Service.Create(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	metrics.EventsCreatedTotal.Inc()
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	filters, pagination, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Service.List(r.Context(), actor, filters, pagination)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]eventResponse, 0, len(result.Events))
	for i := range result.Events {
		items = append(items, toEventResponse(&result.Events[i]))
	}
	writeJSON(w, http.StatusOK, eventListResponse{Items: items, NextCursor: result.NextCursor})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	ulid := pathParam(r, "id")
	if !ids.IsULID(ulid) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid event id", ids.ErrInvalidULID, h.Env)
		return
	}

	event, err := h.Service.Get(r.Context(), actor, ulid)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

type eventUpdateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue"`
	City        *string    `json:"city"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    *int       `json:"capacity"`
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req eventUpdateRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	event, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), events.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		City:        req.City,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *EventsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "publish")
}

func (h *EventsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel")
}

func (h *EventsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete")
}

func (h *EventsHandler) transition(w http.ResponseWriter, r *http.Request, action string) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	ulid := pathParam(r, "id")

	var (
		event   *events.Event
		changed = true
		err     error
	)
	switch action {
	case "publish":
		event, err = h.Service.Publish(r.Context(), actor, ulid)
	case "cancel":
		event, changed, err = h.Service.Cancel(r.Context(), actor, ulid)
	case "complete":
		event, err = h.Service.Complete(r.Context(), actor, ulid)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// A repeated cancel is a no-op; subscribers only hear about real
	// transitions.
	if changed {
		metrics.EventStatusChangesTotal.WithLabelValues(string(event.Status)).Inc()

		switch action {
		case "publish":
			h.emit(r, event, webhooks.KindEventPublished)
		case "cancel":
			h.emit(r, event, webhooks.KindEventCancelled)
			// Cancellations by admins are moderation actions.
			if actor.IsAdmin() && actor.ULID != event.OrganizerULID {
				h.Moderation.Record(r.Context(), actor, moderation.ActionCancelEvent, "event", event.ULID, "", clientIP(r))
			}
		}
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *EventsHandler) emit(r *http.Request, event *events.Event, kind webhooks.Kind) {
	h.Webhooks.Emit(r.Context(), event.OrganizerULID, kind, eventWebhookPayload{
		EventULID: event.ULID,
		Name:      event.Name,
		Status:    string(event.Status),
		StartTime: event.StartTime,
		At:        time.Now().UTC(),
	})
}

func (h *EventsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var filterErr events.FilterError
	switch {
	case errors.As(err, &filterErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{filterErr.Field: filterErr.Message}))
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env)
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	case errors.Is(err, events.ErrInvalidLifecycle):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Invalid lifecycle transition", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
