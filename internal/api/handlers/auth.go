package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/users"
)

type AuthHandler struct {
	Users *users.Service
	Env   string
}

func NewAuthHandler(service *users.Service, env string) *AuthHandler {
	return &AuthHandler{Users: service, Env: env}
}

type userResponse struct {
	ULID      string    `json:"ulid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *users.User) userResponse {
	return userResponse{
		ULID:      u.ULID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Suspended: u.Suspended,
		CreatedAt: u.CreatedAt,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	user, err := h.Users.Register(r.Context(), users.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	token, user, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserResponse(user)})
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if !decodeJSON(w, r, h.Env, &req) {
		return
	}

	user, err := h.Users.AcceptInvitation(r.Context(), req.Token, req.Name, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.Env)
	if !ok {
		return
	}

	user, err := h.Users.GetByULID(r.Context(), actor.ULID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr users.FieldError
	switch {
	case errors.As(err, &fieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Email already registered", err, h.Env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, h.Env)
	case errors.Is(err, users.ErrSuspended):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Account suspended", err, h.Env)
	case errors.Is(err, users.ErrInvalidInvitation), errors.Is(err, users.ErrAlreadyAccepted):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid invitation", err, h.Env)
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}
