package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/users"
)

const actorKey contextKey = "actor"

// UserSource loads accounts for authentication checks. Implemented by the
// users repository.
type UserSource interface {
	GetByULID(ctx context.Context, ulid string) (*users.User, error)
}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(auth.Actor)
	return actor, ok
}

// Authenticate validates the bearer token and resolves the account behind it.
// The role comes from the account row, not the token, so role changes and
// suspensions take effect immediately rather than at token expiry.
func Authenticate(tokens *auth.JWTManager, accounts UserSource, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", err, env)
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env)
				return
			}

			account, err := accounts.GetByULID(r.Context(), claims.Subject)
			if errors.Is(err, users.ErrNotFound) {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unknown account", err, env)
				return
			}
			if err != nil {
				problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Authentication failed", err, env)
				return
			}
			if account.Suspended {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Account suspended", users.ErrSuspended, env)
				return
			}

			actor := auth.Actor{ULID: account.ULID, Role: auth.NormalizeRole(account.Role)}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects authenticated requests whose actor ranks below the
// required role. It must run after Authenticate.
func RequireRole(required auth.Role, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", nil, env)
				return
			}
			if !auth.HasAtLeast(string(actor.Role), required) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Insufficient role", nil, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
