package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/stats"
	"github.com/eventops/server/internal/domain/users"
)

type AdminHandler struct {
	Users      *users.Service
	Moderation *moderation.Service
	Stats      *stats.Service
	Env        string
}

func NewAdminHandler(usersSvc *users.Service, mod *moderation.Service, statsSvc *stats.Service, env string) *AdminHandler {
	return &AdminHandler{Users: usersSvc, Moderation: mod, Stats: statsSvc, Env: env}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r, h.Env); !ok {
		return
	}

	filters, page, err := users.ParseFilters(r.URL.Query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Users.List(r.Context(), filters, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]userResponse, 0, len(result.Users))
	for i := range result.Users {
		items = append(items, toUserResponse(&result.Users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": result.NextCursor,
	})
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, true)
}

func (h *AdminHandler) UnsuspendUser(w http.ResponseWriter, r *http.Request) {
	h.setSuspended(w, r, false)
}

func (h *AdminHandler) setSuspended(w http.ResponseWriter, r *http.Request, suspended bool) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req suspendRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, h.Env, &req) {
		return
	}

	user, err := h.Users.SetSuspended(r.Context(), actor.Role, pathParam(r, "id"), suspended)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	action := moderation.ActionSuspendUser
	if !suspended {
		action = moderation.ActionUnsuspendUser
	}
	h.Moderation.Record(r.Context(), actor, action, "user", user.ULID, req.Reason, clientIP(r))

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type inviteRequest struct {
	Email string `json:"email"`
}

// InviteAdmin creates a pending admin account and emails the invitation.
// Superadmins only; the route guard enforces the role.
func (h *AdminHandler) InviteAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req inviteRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	user, err := h.Users.InviteAdmin(r.Context(), req.Email, actor.ULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.Moderation.Record(r.Context(), actor, moderation.ActionInviteAdmin, "user", user.ULID, "", clientIP(r))

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type moderationEntryResponse struct {
	Sequence     int64     `json:"sequence"`
	ActorULID    string    `json:"actor_ulid"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Reason       string    `json:"reason,omitempty"`
	IP           string    `json:"ip,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *AdminHandler) ModerationLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.Moderation.List(r.Context(), actor, r.URL.Query().Get("after"), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]moderationEntryResponse, 0, len(result.Entries))
	for _, entry := range result.Entries {
		items = append(items, moderationEntryResponse{
			Sequence:     entry.Sequence,
			ActorULID:    entry.ActorULID,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			Reason:       entry.Reason,
			IP:           entry.IP,
			CreatedAt:    entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": result.NextCursor,
	})
}

func (h *AdminHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	totals, err := h.Stats.Platform(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

func (h *AdminHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr users.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env)
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, users.ErrForbidden), errors.Is(err, moderation.ErrForbidden), errors.Is(err, stats.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
