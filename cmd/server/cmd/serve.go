package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventops/server/internal/api"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/domain/aiusage"
	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/eventops/server/internal/domain/events"
	"github.com/eventops/server/internal/domain/ids"
	"github.com/eventops/server/internal/domain/moderation"
	"github.com/eventops/server/internal/domain/sponsors"
	"github.com/eventops/server/internal/domain/stats"
	"github.com/eventops/server/internal/domain/tasks"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/domain/vendors"
	"github.com/eventops/server/internal/domain/webhooks"
	"github.com/eventops/server/internal/email"
	"github.com/eventops/server/internal/jobs"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/ratelimit"
	"github.com/eventops/server/internal/storage/postgres"
	"github.com/eventops/server/internal/telemetry"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the EventOps HTTP server",
	Long: `Start the EventOps HTTP server and begin accepting API requests.

The server loads configuration from environment variables, starts the
background job workers, and handles graceful shutdown on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Msg("starting eventops server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	pool, err := newPool(cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	if err := postgres.MigrateUp(cfg.Database.URL, defaultMigrationsPath); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := migrateJobQueue(cfg.Database.URL); err != nil {
		return fmt.Errorf("job queue migrations failed: %w", err)
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	if err := bootstrapSuperadmin(cfg, pool, logger); err != nil {
		logger.Error().Err(err).Msg("superadmin bootstrap failed")
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email init failed: %w", err)
	}

	eventsSvc := events.NewService(repo.Events(), logger)
	usersSvc := users.NewService(repo.Users(), tokens, mailer, cfg.Server.BaseURL, logger)
	vendorsSvc := vendors.NewService(repo.Vendors(), eventsSvc, logger)
	sponsorsSvc := sponsors.NewService(repo.Sponsors(), eventsSvc, logger)
	tasksSvc := tasks.NewService(repo.Tasks(), eventsSvc, logger)
	budgetsSvc := budgets.NewService(repo.Budgets(), eventsSvc, sponsorsSvc, logger)
	attendeesSvc := attendees.NewService(repo.Attendees(), eventsSvc, logger)
	moderationSvc := moderation.NewService(repo.Moderation(), logger)
	statsSvc := stats.NewService(repo.Stats())

	limiter := ratelimit.NewLimiter(repo.RateWindows(), map[ratelimit.Kind]ratelimit.Limit{
		ratelimit.KindAPI:   {Max: cfg.RateLimit.APIPerMinute, Window: time.Minute},
		ratelimit.KindLogin: {Max: cfg.RateLimit.LoginPer15Minutes, Window: 15 * time.Minute},
		ratelimit.KindAI:    {Max: cfg.RateLimit.AIPerMinute, Window: time.Minute},
	}, logger)

	usage := aiusage.NewRecorder(repo.AIUsage(), cfg.AIQuota.DailyTokenLimit, cfg.AIQuota.FlushInterval, logger)
	usage.Start()
	defer func() {
		if err := usage.Close(); err != nil {
			logger.Error().Err(err).Msg("usage recorder shutdown error")
		}
	}()

	// The webhook service and the job client reference each other; the
	// enqueuer breaks the cycle and is bound to the client below.
	enqueuer := jobs.NewDeliveryEnqueuer()
	webhooksSvc := webhooks.NewService(repo.Webhooks(), enqueuer, cfg.Webhooks.DisableAfterFailures, logger)
	dispatcher := webhooks.NewDispatcher(cfg.Webhooks.DeliveryTimeout, logger)

	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Endpoints:           repo.Webhooks(),
		Webhooks:            webhooksSvc,
		Dispatcher:          dispatcher,
		Limiter:             limiter,
		Usage:               repo.AIUsage(),
		RateWindowRetention: cfg.RateLimit.WindowRetention,
		AttemptRetention:    cfg.Webhooks.AttemptRetention,
		UsageRetention:      cfg.AIQuota.UsageRetention,
		Logger:              logger,
	})

	riverClient, err := jobs.NewClient(pool, workers, newJobLogger(cfg.Logging), []rivertype.Hook{metrics.NewRiverMetricsHook()}, jobs.NewPeriodicJobs())
	if err != nil {
		return fmt.Errorf("job client init failed: %w", err)
	}
	enqueuer.Bind(riverClient)

	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()
	if err := riverClient.Start(riverCtx); err != nil {
		return fmt.Errorf("job workers failed to start: %w", err)
	}
	logger.Info().Msg("background job workers started")
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("job workers shutdown error")
		}
	}()

	handler := api.NewRouter(api.Deps{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		RiverClient: riverClient,
		Tokens:      tokens,
		Users:       usersSvc,
		Events:      eventsSvc,
		Vendors:     vendorsSvc,
		Sponsors:    sponsorsSvc,
		Tasks:       tasksSvc,
		Budgets:     budgetsSvc,
		Attendees:   attendeesSvc,
		Webhooks:    webhooksSvc,
		Moderation:  moderationSvc,
		Stats:       statsSvc,
		AIUsage:     usage,
		Limiter:     limiter,
		Version:     Version,
		GitCommit:   GitCommit,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func newPool(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MaxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return pool, nil
}

// newJobLogger builds the slog logger the job client expects, honoring the
// configured level.
func newJobLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// bootstrapSuperadmin creates the initial superadmin account from ADMIN_*
// env vars when no account with that email exists yet.
func bootstrapSuperadmin(cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var existing string
	err := pool.QueryRow(ctx, `SELECT ulid FROM users WHERE lower(email) = lower($1) LIMIT 1`, bootstrap.Email).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check superadmin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(bootstrap.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash superadmin password: %w", err)
	}
	ulid, err := ids.NewULID()
	if err != nil {
		return fmt.Errorf("generate ulid: %w", err)
	}

	name := bootstrap.Name
	if name == "" {
		name = "Superadmin"
	}
	_, err = pool.Exec(ctx, `
INSERT INTO users (ulid, name, email, password_hash, role)
VALUES ($1, $2, $3, $4, 'superadmin')`,
		ulid, name, bootstrap.Email, string(hash))
	if err != nil {
		return fmt.Errorf("create superadmin: %w", err)
	}

	if cfg.Environment == "production" {
		logger.Info().Msg("bootstrapped superadmin")
	} else {
		logger.Info().Str("email", bootstrap.Email).Msg("bootstrapped superadmin")
	}
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
