package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/eventops/server/internal/domain/tasks"
	"github.com/eventops/server/internal/domain/vendors"
)

// EventStatsHandler composes the per-event dashboard roll-up from the domain
// services. The first attendee lookup authorizes the actor against the event;
// the remaining aggregations reuse that decision.
type EventStatsHandler struct {
	Attendees *attendees.Service
	Tasks     *tasks.Service
	Budgets   *budgets.Service
	Vendors   *vendors.Service
	Sponsors  *sponsors.Service
	Env       string
}

func NewEventStatsHandler(a *attendees.Service, t *tasks.Service, b *budgets.Service, v *vendors.Service, sp *sponsors.Service, env string) *EventStatsHandler {
	return &EventStatsHandler{Attendees: a, Tasks: t, Budgets: b, Vendors: v, Sponsors: sp, Env: env}
}

type eventStatsResponse struct {
	EventULID            string `json:"event_ulid"`
	Attendees            int    `json:"attendees"`
	CheckedIn            int    `json:"checked_in"`
	TasksTotal           int    `json:"tasks_total"`
	TasksDone            int    `json:"tasks_done"`
	TasksOverdue         int    `json:"tasks_overdue"`
	ApprovedVendors      int    `json:"approved_vendors"`
	ApprovedSponsorships int    `json:"approved_sponsorships"`
	SponsorIncomeCents   int64  `json:"sponsor_income_cents"`
	BudgetVarianceCents  int64  `json:"budget_variance_cents"`
	BudgetNetCents       int64  `json:"budget_net_cents"`
}

func (h *EventStatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	eventULID := pathParam(r, "id")
	roster, err := h.Attendees.ListAll(r.Context(), actor, eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := eventStatsResponse{EventULID: eventULID, Attendees: len(roster)}
	for _, attendee := range roster {
		if attendee.CheckedIn() {
			resp.CheckedIn++
		}
	}

	taskList, err := h.Tasks.List(r.Context(), actor, eventULID, tasks.Filters{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	now := time.Now().UTC()
	resp.TasksTotal = len(taskList)
	for _, task := range taskList {
		if task.Status == tasks.StatusDone {
			resp.TasksDone++
		}
		if task.Overdue(now) {
			resp.TasksOverdue++
		}
	}

	summary, err := h.Budgets.Summarize(r.Context(), actor, eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp.BudgetVarianceCents = summary.ExpenseVariance
	resp.BudgetNetCents = summary.NetCents
	resp.SponsorIncomeCents = summary.SponsorIncomeCents

	approved, err := h.Vendors.CountApproved(r.Context(), eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp.ApprovedVendors = approved

	sponsorships, err := h.Sponsors.CountApproved(r.Context(), eventULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp.ApprovedSponsorships = sponsorships

	writeJSON(w, http.StatusOK, resp)
}

func (h *EventStatsHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	case errors.Is(err, attendees.ErrForbidden),
		errors.Is(err, tasks.ErrForbidden),
		errors.Is(err, budgets.ErrForbidden),
		errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Not allowed", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
