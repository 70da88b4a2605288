package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventops/server/internal/api/pagination"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/sanitize"
	"github.com/rs/zerolog"
)

// DefaultInvitationExpiry is the time until an admin invitation expires.
const DefaultInvitationExpiry = 168 * time.Hour // 7 days

// InvitationMailer sends invitation emails. Implemented by internal/email.
type InvitationMailer interface {
	SendInvitation(ctx context.Context, to, inviteLink, invitedBy string) error
}

type Service struct {
	repo    Repository
	jwt     *auth.JWTManager
	mailer  InvitationMailer
	baseURL string
	logger  zerolog.Logger
}

func NewService(repo Repository, jwt *auth.JWTManager, mailer InvitationMailer, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		jwt:     jwt,
		mailer:  mailer,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "users").Logger(),
	}
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// Register creates a new organizer account from self-signup.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	name := sanitize.Text(strings.TrimSpace(params.Name))
	if name == "" {
		return nil, FieldError{Field: "name", Message: "required"}
	}
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, FieldError{Field: "email", Message: "invalid email address"}
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, FieldError{Field: "password", Message: err.Error()}
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	user, err := s.repo.Create(ctx, CreateParams{
		ULID:         ulid,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         string(auth.RoleOrganizer),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user", user.ULID).Msg("organizer registered")
	return user, nil
}

// Login authenticates a user and returns a signed JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a comparison so missing accounts take as long as bad passwords.
			auth.CheckPassword("$2a$12$000000000000000000000uGJp0lOfA4DACmfIfJdOxROJDsWMhyG2", password)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	if user.Suspended {
		return "", nil, ErrSuspended
	}

	token, err := s.jwt.Generate(user.ULID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *Service) GetByULID(ctx context.Context, ulid string) (*User, error) {
	return s.repo.GetByULID(ctx, ulid)
}

func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	return s.repo.List(ctx, filters, pagination)
}

// InviteAdmin creates an inactive admin account and emails an invitation link.
// Only superadmins may grant the admin role; the caller enforces that.
func (s *Service) InviteAdmin(ctx context.Context, email, invitedBy string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, FieldError{Field: "email", Message: "invalid email address"}
	}

	if existing, err := s.repo.GetByEmail(ctx, normalized); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	// Suspended until the invitation is accepted and a password is set.
	user, err := s.repo.Create(ctx, CreateParams{
		ULID:      ulid,
		Name:      normalized,
		Email:     normalized,
		Role:      string(auth.RoleAdmin),
		Suspended: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create invited admin: %w", err)
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	invitation := Invitation{
		UserULID:  user.ULID,
		Email:     normalized,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(DefaultInvitationExpiry),
		InvitedBy: invitedBy,
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	inviteLink := fmt.Sprintf("%s/invitations/accept?token=%s", strings.TrimRight(s.baseURL, "/"), url.QueryEscape(token))
	if s.mailer != nil {
		if err := s.mailer.SendInvitation(ctx, normalized, inviteLink, invitedBy); err != nil {
			s.logger.Error().Err(err).Str("user", user.ULID).Msg("invitation email failed")
		}
	}

	s.logger.Info().Str("user", user.ULID).Str("invited_by", invitedBy).Msg("admin invited")
	return user, nil
}

// AcceptInvitation activates an invited admin account and sets its password.
func (s *Service) AcceptInvitation(ctx context.Context, token, name, password string) (*User, error) {
	invitation, err := s.repo.GetInvitationByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidInvitation
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if invitation.Accepted {
		return nil, ErrAlreadyAccepted
	}
	if time.Now().After(invitation.ExpiresAt) {
		return nil, ErrInvalidInvitation
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, FieldError{Field: "password", Message: err.Error()}
	}

	if err := s.repo.SetPassword(ctx, invitation.UserULID, hash); err != nil {
		return nil, fmt.Errorf("set password: %w", err)
	}
	if err := s.repo.SetSuspended(ctx, invitation.UserULID, false); err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}
	if err := s.repo.MarkInvitationAccepted(ctx, invitation.TokenHash); err != nil {
		return nil, fmt.Errorf("mark invitation accepted: %w", err)
	}

	user, err := s.repo.GetByULID(ctx, invitation.UserULID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	s.logger.Info().Str("user", user.ULID).Msg("invitation accepted")
	return user, nil
}

// SetSuspended suspends or reactivates an account. Admins cannot be suspended
// by other admins; only a superadmin may do that.
func (s *Service) SetSuspended(ctx context.Context, actor auth.Role, targetULID string, suspended bool) (*User, error) {
	user, err := s.repo.GetByULID(ctx, targetULID)
	if err != nil {
		return nil, err
	}

	if auth.IsAdmin(user.Role) && actor != auth.RoleSuperadmin {
		return nil, ErrForbidden
	}
	if auth.IsSuperadmin(user.Role) {
		return nil, ErrForbidden
	}

	if err := s.repo.SetSuspended(ctx, targetULID, suspended); err != nil {
		return nil, fmt.Errorf("set suspended: %w", err)
	}
	user.Suspended = suspended

	s.logger.Info().Str("user", targetULID).Bool("suspended", suspended).Msg("suspension changed")
	return user, nil
}

// FieldError reports a validation failure for a named field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

var ErrForbidden = errors.New("forbidden")

func normalizeEmail(value string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return "", fmt.Errorf("invalid email address")
	}
	return addr.Address, nil
}

// ParseFilters parses the admin user-list query string.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	page := Pagination{Limit: 50}

	role := strings.ToLower(strings.TrimSpace(values.Get("role")))
	if role != "" && !auth.ValidRole(role) {
		return filters, page, FieldError{Field: "role", Message: "unknown role"}
	}
	filters.Role = role

	if raw := strings.TrimSpace(values.Get("suspended")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, page, FieldError{Field: "suspended", Message: "must be true or false"}
		}
		filters.Suspended = &parsed
	}

	filters.Query = strings.TrimSpace(values.Get("q"))

	limit, err := parseLimit(values)
	if err != nil {
		return filters, page, err
	}
	page.Limit = limit

	after := strings.TrimSpace(values.Get("after"))
	if after != "" {
		if _, err := pagination.Decode(after); err != nil {
			return filters, page, FieldError{Field: "after", Message: "must be a valid cursor"}
		}
	}
	page.After = after

	return filters, page, nil
}

func parseLimit(values url.Values) (int, error) {
	limit := 50
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		return limit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, FieldError{Field: "limit", Message: "must be a number"}
	}
	if parsed < 1 || parsed > 200 {
		return 0, FieldError{Field: "limit", Message: "must be between 1 and 200"}
	}
	return parsed, nil
}
