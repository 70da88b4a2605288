// Package api wires the HTTP surface: routes, middleware chains, and the
// metrics/health endpoints.
package api

import (
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/eventops/server/internal/api/handlers"
	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/eventops/server/internal/domain/stats"
	"github.com/eventops/server/internal/domain/tasks"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/domain/vendors"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/ratelimit"
)

// Deps carries everything the router needs; cmd/serve builds it once.
type Deps struct {
	Config config.Config
	Logger zerolog.Logger

	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]

	Tokens *auth.JWTManager

	Users      *users.Service
	Events     *events.Service
	Vendors    *vendors.Service
	Sponsors   *sponsors.Service
	Tasks      *tasks.Service
	Budgets    *budgets.Service
	Attendees  *attendees.Service
	Webhooks   *webhooks.Service
	Moderation *moderation.Service
	Stats      *stats.Service
	AIUsage    *aiusage.Recorder

	Limiter *ratelimit.Limiter

	Version   string
	GitCommit string
}

// NewRouter assembles the full route table. Every mux-registered handler is
// wrapped in the metrics middleware so request metrics carry the matched
// route pattern; the outer chain (correlation, tracing, logging, headers,
// CORS, body limit) wraps the mux itself.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	env := cfg.Environment

	authHandler := handlers.NewAuthHandler(deps.Users, env)
	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Webhooks, deps.Moderation, env)
	vendorsHandler := handlers.NewVendorsHandler(deps.Vendors, deps.Events, deps.Webhooks, deps.Moderation, env)
	sponsorsHandler := handlers.NewSponsorsHandler(deps.Sponsors, deps.Events, deps.Webhooks, deps.Moderation, env)
	tasksHandler := handlers.NewTasksHandler(deps.Tasks, env)
	budgetsHandler := handlers.NewBudgetsHandler(deps.Budgets, env)
	attendeesHandler := handlers.NewAttendeesHandler(deps.Attendees, deps.Events, deps.Webhooks, env)
	exportsHandler := handlers.NewExportsHandler(deps.Attendees, deps.Budgets, deps.Logger, env)
	webhooksHandler := handlers.NewWebhooksHandler(deps.Webhooks, deps.Moderation, env)
	aiHandler := handlers.NewAIHandler(deps.AIUsage, cfg.AIQuota.DailyTokenLimit, env)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.Moderation, deps.Stats, env)
	statsHandler := handlers.NewEventStatsHandler(deps.Attendees, deps.Tasks, deps.Budgets, deps.Vendors, deps.Sponsors, env)
	health := handlers.NewHealthChecker(deps.Pool, deps.RiverClient, deps.Version, deps.GitCommit)

	authn := middleware.Authenticate(deps.Tokens, deps.Users, env)
	rateAPI := middleware.RateLimit(deps.Limiter, ratelimit.KindAPI, cfg.RateLimit.TrustedProxyCIDRs, env)
	rateLogin := middleware.RateLimit(deps.Limiter, ratelimit.KindLogin, cfg.RateLimit.TrustedProxyCIDRs, env)
	rateAI := middleware.RateLimit(deps.Limiter, ratelimit.KindAI, cfg.RateLimit.TrustedProxyCIDRs, env)
	loginBurst := middleware.LoginBurstLimit(cfg.RateLimit.LoginPer15Minutes, cfg.RateLimit.TrustedProxyCIDRs, env)
	requireAdmin := middleware.RequireRole(auth.RoleAdmin, env)
	requireSuperadmin := middleware.RequireRole(auth.RoleSuperadmin, env)

	mux := http.NewServeMux()

	// Probes and metrics stay outside the API chains.
	handle(mux, "GET /healthz", http.HandlerFunc(health.Live))
	handle(mux, "GET /readyz", http.HandlerFunc(health.Ready))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	public := func(h http.HandlerFunc) http.Handler {
		return rateAPI(h)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return authn(rateAPI(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authn(requireAdmin(rateAPI(h)))
	}
	superadmin := func(h http.HandlerFunc) http.Handler {
		return authn(requireSuperadmin(rateAPI(h)))
	}

	handle(mux, "POST /api/v1/auth/register", public(authHandler.Register))
	handle(mux, "POST /api/v1/auth/login", loginBurst(rateLogin(http.HandlerFunc(authHandler.Login))))
	handle(mux, "POST /api/v1/auth/invitations/accept", public(authHandler.AcceptInvitation))
	handle(mux, "GET /api/v1/me", protected(authHandler.Me))

	handle(mux, "POST /api/v1/events", protected(eventsHandler.Create))
	handle(mux, "GET /api/v1/events", protected(eventsHandler.List))
	handle(mux, "GET /api/v1/events/{id}", protected(eventsHandler.Get))
	handle(mux, "PATCH /api/v1/events/{id}", protected(eventsHandler.Update))
	handle(mux, "DELETE /api/v1/events/{id}", protected(eventsHandler.Cancel))
	handle(mux, "POST /api/v1/events/{id}/publish", protected(eventsHandler.Publish))
	handle(mux, "POST /api/v1/events/{id}/cancel", protected(eventsHandler.Cancel))
	handle(mux, "POST /api/v1/events/{id}/complete", protected(eventsHandler.Complete))
	handle(mux, "GET /api/v1/events/{id}/stats", protected(statsHandler.Get))

	handle(mux, "POST /api/v1/vendors", protected(vendorsHandler.Create))
	handle(mux, "GET /api/v1/vendors", protected(vendorsHandler.List))
	handle(mux, "GET /api/v1/vendors/{id}", protected(vendorsHandler.Get))
	handle(mux, "PUT /api/v1/vendors/{id}", protected(vendorsHandler.Update))
	handle(mux, "DELETE /api/v1/vendors/{id}", protected(vendorsHandler.Delete))
	handle(mux, "POST /api/v1/events/{id}/applications", protected(vendorsHandler.Apply))
	handle(mux, "GET /api/v1/events/{id}/applications", protected(vendorsHandler.ListApplications))
	handle(mux, "POST /api/v1/applications/{id}/approve", protected(vendorsHandler.Approve))
	handle(mux, "POST /api/v1/applications/{id}/reject", protected(vendorsHandler.Reject))
	handle(mux, "POST /api/v1/applications/{id}/withdraw", protected(vendorsHandler.Withdraw))

	handle(mux, "POST /api/v1/sponsors", protected(sponsorsHandler.Create))
	handle(mux, "GET /api/v1/sponsors", protected(sponsorsHandler.List))
	handle(mux, "GET /api/v1/sponsors/{id}", protected(sponsorsHandler.Get))
	handle(mux, "PUT /api/v1/sponsors/{id}", protected(sponsorsHandler.Update))
	handle(mux, "DELETE /api/v1/sponsors/{id}", protected(sponsorsHandler.Delete))
	handle(mux, "POST /api/v1/events/{id}/sponsorships", protected(sponsorsHandler.Pledge))
	handle(mux, "GET /api/v1/events/{id}/sponsorships", protected(sponsorsHandler.ListSponsorships))
	handle(mux, "POST /api/v1/sponsorships/{id}/approve", protected(sponsorsHandler.Approve))
	handle(mux, "POST /api/v1/sponsorships/{id}/reject", protected(sponsorsHandler.Reject))
	handle(mux, "POST /api/v1/sponsorships/{id}/withdraw", protected(sponsorsHandler.Withdraw))

	handle(mux, "POST /api/v1/events/{id}/tasks", protected(tasksHandler.Create))
	handle(mux, "GET /api/v1/events/{id}/tasks", protected(tasksHandler.List))
	handle(mux, "GET /api/v1/tasks/{id}", protected(tasksHandler.Get))
	handle(mux, "PATCH /api/v1/tasks/{id}", protected(tasksHandler.Update))
	handle(mux, "DELETE /api/v1/tasks/{id}", protected(tasksHandler.Delete))
	handle(mux, "POST /api/v1/tasks/{id}/status", protected(tasksHandler.SetStatus))

	handle(mux, "POST /api/v1/events/{id}/budget-items", protected(budgetsHandler.Create))
	handle(mux, "GET /api/v1/events/{id}/budget-items", protected(budgetsHandler.List))
	handle(mux, "GET /api/v1/budget-items/{id}", protected(budgetsHandler.Get))
	handle(mux, "PUT /api/v1/budget-items/{id}", protected(budgetsHandler.Update))
	handle(mux, "DELETE /api/v1/budget-items/{id}", protected(budgetsHandler.Delete))
	handle(mux, "GET /api/v1/events/{id}/budget/summary", protected(budgetsHandler.Summary))

	handle(mux, "POST /api/v1/events/{id}/attendees", protected(attendeesHandler.Register))
	handle(mux, "GET /api/v1/events/{id}/attendees", protected(attendeesHandler.List))
	handle(mux, "POST /api/v1/attendees/{id}/check-in", protected(attendeesHandler.CheckIn))
	handle(mux, "DELETE /api/v1/attendees/{id}", protected(attendeesHandler.Remove))
	handle(mux, "GET /api/v1/events/{id}/export/attendees", protected(exportsHandler.AttendeeRoster))
	handle(mux, "GET /api/v1/events/{id}/export/budget", protected(exportsHandler.Budget))

	handle(mux, "POST /api/v1/webhooks", protected(webhooksHandler.Create))
	handle(mux, "GET /api/v1/webhooks", protected(webhooksHandler.List))
	handle(mux, "GET /api/v1/webhooks/{id}", protected(webhooksHandler.Get))
	handle(mux, "PUT /api/v1/webhooks/{id}", protected(webhooksHandler.Update))
	handle(mux, "DELETE /api/v1/webhooks/{id}", protected(webhooksHandler.Delete))
	handle(mux, "POST /api/v1/webhooks/{id}/enable", protected(webhooksHandler.Enable))
	handle(mux, "POST /api/v1/webhooks/{id}/disable", protected(webhooksHandler.Disable))
	handle(mux, "GET /api/v1/webhooks/{id}/attempts", protected(webhooksHandler.ListAttempts))

	handle(mux, "POST /api/v1/ai/draft", authn(rateAI(http.HandlerFunc(aiHandler.Draft))))
	handle(mux, "GET /api/v1/ai/usage", protected(aiHandler.GetUsage))

	handle(mux, "GET /api/v1/admin/users", admin(adminHandler.ListUsers))
	handle(mux, "POST /api/v1/admin/users/{id}/suspend", admin(adminHandler.SuspendUser))
	handle(mux, "POST /api/v1/admin/users/{id}/unsuspend", admin(adminHandler.UnsuspendUser))
	handle(mux, "POST /api/v1/admin/invitations", superadmin(adminHandler.InviteAdmin))
	handle(mux, "GET /api/v1/admin/moderation-log", admin(adminHandler.ModerationLog))
	handle(mux, "GET /api/v1/admin/stats", admin(adminHandler.PlatformStats))

	requireHTTPS := env == "production"
	var root http.Handler = mux
	root = middleware.RequestSize(middleware.DefaultMaxBodySize)(root)
	root = middleware.CORS(cfg.CORS, deps.Logger)(root)
	root = middleware.SecurityHeaders(requireHTTPS)(root)
	root = middleware.RequestLogging(deps.Logger)(root)
	root = middleware.Tracing(root)
	root = middleware.CorrelationID(deps.Logger)(root)
	return root
}

// handle registers pattern with the metrics middleware innermost so the
// matched pattern is available as the route label.
func handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMiddleware(h))
}
