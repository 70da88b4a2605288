package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/eventops")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/eventops")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)
	require.Equal(t, 300, cfg.RateLimit.APIPerMinute)
	require.Equal(t, 5, cfg.RateLimit.LoginPer15Minutes)
	require.Equal(t, 10*time.Second, cfg.Webhooks.DeliveryTimeout)
	require.Equal(t, 20, cfg.Webhooks.DisableAfterFailures)
	require.Equal(t, int64(100000), cfg.AIQuota.DailyTokenLimit)
	require.Equal(t, "development", cfg.Environment)
	require.False(t, cfg.Email.Enabled)
}

func TestLoadEmailEnabledRequiresKeyAndSender(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/eventops")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("RESEND_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "RESEND_API_KEY")

	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("EMAIL_FROM", "")

	_, err = Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "EMAIL_FROM")
}

func TestLoadTrustedProxyList(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/eventops")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TRUSTED_PROXY_CIDRS", "10.0.0.0/8, 192.168.0.0/16")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.RateLimit.TrustedProxyCIDRs)
}
