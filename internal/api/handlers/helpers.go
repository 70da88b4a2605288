package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// decodeJSON parses the request body into dst, answering a validation problem
// on malformed or oversized input. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, env string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		status := http.StatusBadRequest
		if _, ok := err.(*http.MaxBytesError); ok {
			status = http.StatusRequestEntityTooLarge
		}
		problem.Write(w, r, status, problem.TypeValidation, "Invalid request body", err, env)
		return false
	}
	return true
}

// requireActor pulls the authenticated actor; the auth middleware guarantees
// it on protected routes, so absence is a wiring bug answered as 401.
func requireActor(w http.ResponseWriter, r *http.Request, env string) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, env)
		return auth.Actor{}, false
	}
	return actor, true
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
