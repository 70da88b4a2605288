package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/webhooks"
)

type WebhooksHandler struct {
	Service    *webhooks.Service
	Moderation *moderation.Service
	Env        string
}

func NewWebhooksHandler(service *webhooks.Service, mod *moderation.Service, env string) *WebhooksHandler {
	return &WebhooksHandler{Service: service, Moderation: mod, Env: env}
}

type endpointResponse struct {
	ULID                string    `json:"ulid"`
	URL                 string    `json:"url"`
	Kinds               []string  `json:"kinds"`
	Disabled            bool      `json:"disabled"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CreatedAt           time.Time `json:"created_at"`
	// Secret is only present in the create response.
	Secret string `json:"secret,omitempty"`
}

func toEndpointResponse(e *webhooks.Endpoint, includeSecret bool) endpointResponse {
	kinds := make([]string, 0, len(e.Kinds))
	for _, kind := range e.Kinds {
		kinds = append(kinds, string(kind))
	}
	resp := endpointResponse{
		ULID:                e.ULID,
		URL:                 e.URL,
		Kinds:               kinds,
		Disabled:            e.Disabled,
		ConsecutiveFailures: e.ConsecutiveFailures,
		CreatedAt:           e.CreatedAt,
	}
	if includeSecret {
		resp.Secret = e.Secret
	}
	return resp
}

type attemptResponse struct {
	Kind        string    `json:"kind"`
	StatusCode  int       `json:"status_code"`
	Error       string    `json:"error,omitempty"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attempted_at"`
}

func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input webhooks.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	endpoint, err := h.Service.Create(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEndpointResponse(endpoint, true))
}

func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	endpoints, err := h.Service.List(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]endpointResponse, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, toEndpointResponse(&endpoints[i], false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	endpoint, err := h.Service.Get(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEndpointResponse(endpoint, false))
}

func (h *WebhooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input webhooks.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	endpoint, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEndpointResponse(endpoint, false))
}

func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Enable re-arms a disabled endpoint and resets its failure streak.
func (h *WebhooksHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, false)
}

func (h *WebhooksHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, true)
}

func (h *WebhooksHandler) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	endpoint, err := h.Service.SetDisabled(r.Context(), actor, pathParam(r, "id"), disabled)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if disabled && actor.IsAdmin() && actor.ULID != endpoint.OwnerULID {
		h.Moderation.Record(r.Context(), actor, moderation.ActionDisableWebhook, "webhook_endpoint", endpoint.ULID, "", clientIP(r))
	}

	writeJSON(w, http.StatusOK, toEndpointResponse(endpoint, false))
}

func (h *WebhooksHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := h.Service.ListAttempts(r.Context(), actor, pathParam(r, "id"), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, attemptResponse{
			Kind:        string(attempt.Kind),
			StatusCode:  attempt.StatusCode,
			Error:       attempt.Error,
			Success:     attempt.Success,
			AttemptedAt: attempt.AttemptedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *WebhooksHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, webhooks.ErrInvalidKind), errors.Is(err, webhooks.ErrInvalidURL):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
	case errors.Is(err, webhooks.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, webhooks.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
