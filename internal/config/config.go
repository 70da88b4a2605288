package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	Email          EmailConfig
	Webhooks       WebhookConfig
	AIQuota        AIQuotaConfig
	AdminBootstrap AdminBootstrapConfig
	Logging        LoggingConfig
	Tracing        TracingConfig
	CORS           CORSConfig
	Environment    string
}

type CORSConfig struct {
	// AllowAllOrigins reflects development mode; production requires an
	// explicit origin whitelist.
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type RateLimitConfig struct {
	// APIPerMinute caps authenticated API requests per token.
	APIPerMinute int
	// LoginPer15Minutes caps login attempts per client IP.
	LoginPer15Minutes int
	// AIPerMinute caps AI drafting requests per token.
	AIPerMinute int
	// WindowRetention controls how long elapsed windows are kept before purge.
	WindowRetention   time.Duration
	TrustedProxyCIDRs []string
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string
}

type WebhookConfig struct {
	// DeliveryTimeout bounds a single delivery attempt.
	DeliveryTimeout time.Duration
	// DisableAfterFailures auto-disables an endpoint after this many
	// consecutive failed deliveries.
	DisableAfterFailures int
	// AttemptRetention controls how long delivery attempt rows are kept.
	AttemptRetention time.Duration
}

type AIQuotaConfig struct {
	// DailyTokenLimit is the per-organizer daily token budget. Zero disables
	// quota enforcement.
	DailyTokenLimit int64
	FlushInterval   time.Duration
	// UsageRetention controls how long daily usage rows are kept before purge.
	UsageRetention time.Duration
}

type AdminBootstrapConfig struct {
	Name     string
	Email    string
	Password string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "eventops"),
		},
		RateLimit: RateLimitConfig{
			APIPerMinute:      getEnvInt("RATE_LIMIT_API", 300),
			LoginPer15Minutes: getEnvInt("RATE_LIMIT_LOGIN", 5),
			AIPerMinute:       getEnvInt("RATE_LIMIT_AI", 30),
			WindowRetention:   time.Duration(getEnvInt("RATE_LIMIT_RETENTION_HOURS", 24)) * time.Hour,
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS"),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			From:         getEnv("EMAIL_FROM", ""),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Webhooks: WebhookConfig{
			DeliveryTimeout:      time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
			DisableAfterFailures: getEnvInt("WEBHOOK_DISABLE_AFTER_FAILURES", 20),
			AttemptRetention:     time.Duration(getEnvInt("WEBHOOK_ATTEMPT_RETENTION_DAYS", 30)) * 24 * time.Hour,
		},
		AIQuota: AIQuotaConfig{
			DailyTokenLimit: int64(getEnvInt("AI_DAILY_TOKEN_LIMIT", 100000)),
			FlushInterval:   time.Duration(getEnvInt("AI_USAGE_FLUSH_SECONDS", 30)) * time.Second,
			UsageRetention:  time.Duration(getEnvInt("AI_USAGE_RETENTION_DAYS", 90)) * 24 * time.Hour,
		},
		AdminBootstrap: AdminBootstrapConfig{
			Name:     getEnv("ADMIN_NAME", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "none"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "eventops-server"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowAllOrigins: getEnvBool("CORS_ALLOW_ALL_ORIGINS", false),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.CORS.AllowAllOrigins && cfg.Environment == "production" {
		return Config{}, fmt.Errorf("CORS_ALLOW_ALL_ORIGINS is not permitted in production")
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Email.Enabled && cfg.Email.ResendAPIKey == "" {
		return Config{}, fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED is true")
	}
	if cfg.Email.Enabled && cfg.Email.From == "" {
		return Config{}, fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED is true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
