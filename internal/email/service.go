package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/resend/resend-go/v2"
)

// Service sends transactional email through the Resend API. When email is
// disabled it logs what would have been sent, which keeps local development
// free of API keys.
type Service struct {
	config    config.EmailConfig
	client    *resend.Client
	templates *template.Template
	logger    zerolog.Logger
}

// InvitationData holds data for rendering the invitation email template.
type InvitationData struct {
	InvitedBy   string
	InviteLink  string
	CurrentYear int
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	svc := &Service{
		config:    cfg,
		templates: template.Must(template.New("email").Parse(invitationTemplate)),
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		svc.client = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc, nil
}

// SendInvitation emails an admin invitation link.
func (s *Service) SendInvitation(ctx context.Context, to, inviteLink, invitedBy string) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if err := validateLinkURL(inviteLink); err != nil {
		return fmt.Errorf("invalid invite link: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("invited_by", invitedBy).
			Str("link", inviteLink).
			Msg("email service disabled, skipping invitation email")
		metrics.EmailsSentTotal.WithLabelValues("disabled").Inc()
		return nil
	}

	data := InvitationData{
		InvitedBy:   invitedBy,
		InviteLink:  inviteLink,
		CurrentYear: time.Now().Year(),
	}
	htmlBody, err := s.renderTemplate("invitation", data)
	if err != nil {
		return fmt.Errorf("failed to render invitation template: %w", err)
	}

	if err := s.send(ctx, to, "You have been invited to EventOps", htmlBody); err != nil {
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	s.logger.Info().Str("to", to).Str("invited_by", invitedBy).Msg("invitation email sent")
	return nil
}

func (s *Service) send(ctx context.Context, to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("resend API error: %w", err)
	}

	metrics.EmailsSentTotal.WithLabelValues("success").Inc()
	s.logger.Info().Str("email_id", sent.Id).Str("to", to).Msg("email sent via Resend")
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// validateEmailAddress checks format and rejects header injection attempts.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

// validateLinkURL rejects non-http(s) schemes so a poisoned base URL cannot
// smuggle javascript: or data: links into outbound mail.
func validateLinkURL(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

const invitationTemplate = `{{define "invitation"}}<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <h2>You have been invited to EventOps</h2>
  <p>{{.InvitedBy}} invited you to join EventOps as an administrator.</p>
  <p><a href="{{.InviteLink}}">Accept the invitation</a> to set your password. The link expires in 72 hours.</p>
  <p style="color: #888; font-size: 12px;">&copy; {{.CurrentYear}} EventOps. If you were not expecting this email you can ignore it.</p>
</body>
</html>{{end}}`
