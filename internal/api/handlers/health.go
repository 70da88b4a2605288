package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
)

// HealthReport is the full readiness payload.
type HealthReport struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthChecker probes the database, migration state, and job queue.
type HealthChecker struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	version     string
	gitCommit   string
}

func NewHealthChecker(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx], version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		pool:        pool,
		riverClient: riverClient,
		version:     version,
		gitCommit:   gitCommit,
	}
}

// Ready runs all dependency checks and reports 503 when any fails.
func (h *HealthChecker) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{
		"database":   h.checkDatabase(ctx),
		"migrations": h.checkMigrations(ctx),
		"job_queue":  h.checkJobQueue(ctx),
	}

	overall := "healthy"
	statusCode := http.StatusOK
	for _, check := range checks {
		if check.Status == "fail" {
			overall = "unhealthy"
			statusCode = http.StatusServiceUnavailable
			break
		}
		if check.Status == "warn" {
			overall = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(HealthReport{
		Status:    overall,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Live is the lightweight liveness probe.
func (h *HealthChecker) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()
	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "database pool not initialized"}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&one)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "database query failed",
			LatencyMs: latency,
			Details:   map[string]interface{}{"error": err.Error()},
		}
	}

	poolStats := h.pool.Stat()
	return CheckResult{
		Status:    "pass",
		Message:   "postgres reachable",
		LatencyMs: latency,
		Details: map[string]interface{}{
			"max_connections":      poolStats.MaxConns(),
			"total_connections":    poolStats.TotalConns(),
			"idle_connections":     poolStats.IdleConns(),
			"acquired_connections": poolStats.AcquiredConns(),
		},
	}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	start := time.Now()
	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "database pool not initialized"}
	}

	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	err := h.pool.QueryRow(migCtx,
		`SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "failed to read migration version",
			LatencyMs: latency,
			Details:   map[string]interface{}{"error": err.Error()},
		}
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "database in dirty migration state",
			LatencyMs: latency,
			Details:   map[string]interface{}{"version": version},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("migrations applied (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]interface{}{"version": version},
	}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	start := time.Now()
	if h.riverClient == nil {
		return CheckResult{Status: "warn", Message: "job queue not initialized"}
	}

	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var activeJobs int64
	err := h.pool.QueryRow(jobCtx,
		`SELECT count(*) FROM river_job WHERE state = ANY($1)`,
		[]string{"available", "running"}).Scan(&activeJobs)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "failed to query job queue",
			LatencyMs: latency,
			Details:   map[string]interface{}{"error": err.Error()},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   "job queue operational",
		LatencyMs: latency,
		Details:   map[string]interface{}{"active_jobs": activeJobs},
	}
}
