package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/eventops/server/internal/domain/webhooks"
)

type SponsorsHandler struct {
	Service    *sponsors.Service
	Events     *events.Service
	Webhooks   *webhooks.Service
	Moderation *moderation.Service
	Env        string
}

func NewSponsorsHandler(service *sponsors.Service, eventsSvc *events.Service, hooks *webhooks.Service, mod *moderation.Service, env string) *SponsorsHandler {
	return &SponsorsHandler{Service: service, Events: eventsSvc, Webhooks: hooks, Moderation: mod, Env: env}
}

type sponsorResponse struct {
	ULID         string    `json:"ulid"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Website      string    `json:"website,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSponsorResponse(s *sponsors.Sponsor) sponsorResponse {
	return sponsorResponse{
		ULID:         s.ULID,
		Name:         s.Name,
		ContactEmail: s.ContactEmail,
		Website:      s.Website,
		CreatedAt:    s.CreatedAt,
	}
}

type sponsorshipResponse struct {
	ULID        string     `json:"ulid"`
	SponsorULID string     `json:"sponsor_ulid"`
	EventULID   string     `json:"event_ulid"`
	Tier        string     `json:"tier"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toSponsorshipResponse(s *sponsors.Sponsorship) sponsorshipResponse {
	return sponsorshipResponse{
		ULID:        s.ULID,
		SponsorULID: s.SponsorULID,
		EventULID:   s.EventULID,
		Tier:        string(s.Tier),
		AmountCents: s.AmountCents,
		Status:      string(s.Status),
		DecidedBy:   s.DecidedBy,
		DecidedAt:   s.DecidedAt,
		CreatedAt:   s.CreatedAt,
	}
}

func (h *SponsorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input sponsors.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	sponsor, err := h.Service.Create(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSponsorResponse(sponsor))
}

func (h *SponsorsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.Service.List(r.Context(), actor, sponsors.Pagination{
		Limit: limit,
		After: r.URL.Query().Get("after"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]sponsorResponse, 0, len(result.Sponsors))
	for i := range result.Sponsors {
		items = append(items, toSponsorResponse(&result.Sponsors[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": result.NextCursor,
	})
}

func (h *SponsorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	sponsor, err := h.Service.Get(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorResponse(sponsor))
}

func (h *SponsorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input sponsors.Input
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	sponsor, err := h.Service.Update(r.Context(), actor, pathParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorResponse(sponsor))
}

func (h *SponsorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Pledge files a sponsorship pledge against the event in the path.
func (h *SponsorsHandler) Pledge(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var input sponsors.PledgeInput
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}
	input.EventULID = pathParam(r, "id")

	sponsorship, err := h.Service.Pledge(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSponsorshipResponse(sponsorship))
}

func (h *SponsorsHandler) ListSponsorships(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	sponsorships, err := h.Service.ListSponsorships(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]sponsorshipResponse, 0, len(sponsorships))
	for i := range sponsorships {
		items = append(items, toSponsorshipResponse(&sponsorships[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *SponsorsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *SponsorsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *SponsorsHandler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	sponsorship, err := h.Service.Decide(r.Context(), actor, pathParam(r, "id"), approve)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if approve {
		if ref, err := h.Events.Ref(r.Context(), sponsorship.EventULID); err == nil {
			h.Webhooks.Emit(r.Context(), ref.OrganizerULID, webhooks.KindSponsorApproved, map[string]any{
				"sponsorship_ulid": sponsorship.ULID,
				"sponsor_ulid":     sponsorship.SponsorULID,
				"event_ulid":       sponsorship.EventULID,
				"tier":             string(sponsorship.Tier),
				"amount_cents":     sponsorship.AmountCents,
				"at":               time.Now().UTC(),
			})
		}
	}
	if actor.IsAdmin() {
		h.Moderation.Record(r.Context(), actor, moderation.ActionDecideSponsor, "sponsorship", sponsorship.ULID, "", clientIP(r))
	}

	writeJSON(w, http.StatusOK, toSponsorshipResponse(sponsorship))
}

func (h *SponsorsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	sponsorship, err := h.Service.Withdraw(r.Context(), actor, pathParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorshipResponse(sponsorship))
}

func (h *SponsorsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr sponsors.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, sponsors.ErrNotFound), errors.Is(err, sponsors.ErrSponsorshipNotFound), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, sponsors.ErrForbidden), errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	case errors.Is(err, sponsors.ErrDuplicateSponsorship), errors.Is(err, sponsors.ErrNotPending), errors.Is(err, sponsors.ErrEventClosed):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
