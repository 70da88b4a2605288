package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/sanitize"
	"github.com/eventops/server/internal/validate"
)

type AIHandler struct {
	Usage      *aiusage.Recorder
	DailyLimit int64
	Env        string
}

func NewAIHandler(usage *aiusage.Recorder, dailyLimit int64, env string) *AIHandler {
	return &AIHandler{Usage: usage, DailyLimit: dailyLimit, Env: env}
}

type draftRequest struct {
	EventName string `json:"event_name" validate:"required,max=200"`
	Venue     string `json:"venue" validate:"max=200"`
	City      string `json:"city" validate:"max=100"`
	Audience  string `json:"audience" validate:"max=200"`
}

type draftResponse struct {
	Draft      string `json:"draft"`
	TokensUsed int64  `json:"tokens_used"`
}

// Draft composes an event description draft and charges its estimated token
// cost against the caller's daily quota.
func (h *AIHandler) Draft(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	var req draftRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}
	if field, message, failed := validate.First(req); failed {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request",
			errors.New(message), h.Env,
			problem.WithErrors(map[string]interface{}{field: message}))
		return
	}

	name := sanitize.Text(strings.TrimSpace(req.EventName))
	if name == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request",
			errors.New("event_name is required"), h.Env,
			problem.WithErrors(map[string]interface{}{"event_name": "required"}))
		return
	}

	draft := composeDraft(name, sanitize.Text(req.Venue), sanitize.Text(req.City), sanitize.Text(req.Audience))
	tokens := estimateTokens(draft)

	if err := h.Usage.Consume(r.Context(), actor.ULID, tokens); err != nil {
		if errors.Is(err, aiusage.ErrQuotaExceeded) {
			metrics.AIQuotaRejectionsTotal.Inc()
			problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Daily AI quota exceeded", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	metrics.AITokensConsumedTotal.Add(float64(tokens))

	writeJSON(w, http.StatusOK, draftResponse{Draft: draft, TokensUsed: tokens})
}

type usageResponse struct {
	DailyLimit      int64 `json:"daily_limit"`
	RemainingTokens int64 `json:"remaining_tokens"`
	UsedTokens      int64 `json:"used_tokens"`
}

// Usage reports the caller's remaining daily token budget.
func (h *AIHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	remaining, err := h.Usage.Remaining(r.Context(), actor.ULID)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{
		DailyLimit:      h.DailyLimit,
		RemainingTokens: remaining,
		UsedTokens:      h.DailyLimit - remaining,
	})
}

func composeDraft(name, venue, city, audience string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Join us for %s", name)
	switch {
	case venue != "" && city != "":
		fmt.Fprintf(&b, " at %s in %s", venue, city)
	case venue != "":
		fmt.Fprintf(&b, " at %s", venue)
	case city != "":
		fmt.Fprintf(&b, " in %s", city)
	}
	b.WriteString(".")
	if audience != "" {
		fmt.Fprintf(&b, " Designed for %s,", audience)
		b.WriteString(" the program brings together hands-on sessions, curated vendors, and space to connect.")
	} else {
		b.WriteString(" Expect hands-on sessions, curated vendors, and plenty of space to connect.")
	}
	b.WriteString(" Seats are limited, so register early.")
	return b.String()
}

// estimateTokens approximates model token usage at four characters per token,
// with a floor so empty-ish drafts still cost something.
func estimateTokens(text string) int64 {
	tokens := int64(len(text)) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
