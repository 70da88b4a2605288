package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/vendors"
	"github.com/eventops/server/internal/domain/webhooks"
)

type VendorsHandler struct {
	Service    *vendors.Service
	Events     *events.Service
	Webhooks   *webhooks.Service
	Moderation *moderation.Service
	Env        string
}

func NewVendorsHandler(service *vendors.Service, eventsSvc *events.Service, hooks *webhooks.Service, mod *moderation.Service, env string) *VendorsHandler {
	return &VendorsHandler{Service: service, Events: eventsSvc, Webhooks: hooks, Moderation: mod, Env: env}
}

type vendorResponse struct {
	ULID         string    `json:"ulid"`
	Name         string    `json:"name"`
	Category     string    `json:"category,omitempty"`
	ContactEmail string    `json:"contact_email"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toVendorResponse(v *vendors.Vendor) vendorResponse {
	return vendorResponse{
		ULID:         v.ULID,
		Name:         v.Name,
		Category:     v.Category,
		ContactEmail: v.ContactEmail,
		Notes:        v.Notes,
		CreatedAt:    v.CreatedAt,
	}
}

type applicationResponse struct {
	ULID       string     `json:"ulid"`
	VendorULID string     `json:"vendor_ulid"`
	EventULID  string     `json:"event_ulid"`
	Status     string     `json:"status"`
	Note       string     `json:"note,omitempty"`
	DecidedBy  string     `json:"decided_by,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toApplicationResponse(a *vendors.Application) applicationResponse {
	return applicationResponse{
		ULID:       a.ULID,
		VendorULID: a.VendorULID,
		EventULID:  a.EventULID,
		Status:     string(a.Status),
		Note:       a.Note,
		DecidedBy:  a.DecidedBy,
		DecidedAt:  a.DecidedAt,
		CreatedAt:  a.CreatedAt,
	}
}

func (h *VendorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input vendors.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	vendor, err := h.Service.Create(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVendorResponse(vendor))
}

func (h *VendorsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.Service.List(r.Context(), actor, vendors.Pagination{
		Limit: limit,
		After: r.URL.Query().Get("after"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]vendorResponse, 0, len(result.Vendors))
	for i := range result.Vendors {
		items = append(items, toVendorResponse(&result.Vendors[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": result.NextCursor,
	})
}

func (h *VendorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	vendor, err := h.Service.Get(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input vendors.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	vendor, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVendorResponse(vendor))
}

func (h *VendorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

type applyRequest struct {
	VendorULID string `json:"vendor_ulid"`
	Note       string `json:"note"`
}

// Apply submits a vendor's application to an event.
func (h *VendorsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req applyRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	application, err := h.Service.Apply(r.Context(), actor, req.VendorULID, pathParam(r, "id"), req.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(application))
}

func (h *VendorsHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	applications, err := h.Service.ListApplications(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]applicationResponse, 0, len(applications))
	for i := range applications {
		items = append(items, toApplicationResponse(&applications[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *VendorsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *VendorsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *VendorsHandler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	application, err := h.Service.Decide(r.Context(), actor, pathParam(r, "id"), approve)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if approve {
		if ref, err := h.Events.Ref(r.Context(), application.EventULID); err == nil {
			h.Webhooks.Emit(r.Context(), ref.OrganizerULID, webhooks.KindVendorApproved, map[string]any{
				"application_ulid": application.ULID,
				"vendor_ulid":      application.VendorULID,
				"event_ulid":       application.EventULID,
				"at":               time.Now().UTC(),
			})
		}
	}
	if actor.IsAdmin() {
		h.Moderation.Record(r.Context(), actor, moderation.ActionDecideVendor, "vendor_application", application.ULID, "", clientIP(r))
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(application))
}

func (h *VendorsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	application, err := h.Service.Withdraw(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(application))
}

func (h *VendorsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr vendors.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, vendors.ErrNotFound), errors.Is(err, vendors.ErrApplicationNotFound), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, vendors.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	case errors.Is(err, vendors.ErrDuplicateApplication), errors.Is(err, vendors.ErrNotPending), errors.Is(err, vendors.ErrEventClosed):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
