package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sentryops/account-security/internal/client"
)

var startTime = time.Now()

const readinessTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db          *sql.DB
	redis       *client.RedisClient
	environment string
}

func NewHealthHandler(db *sql.DB, redis *client.RedisClient, environment string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, environment: environment}
}

type checkResult struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Healthz is the liveness probe. It reports uptime and never touches
// downstream dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"environment": h.environment,
		"uptime":      time.Since(startTime).Round(time.Second).String(),
		"timestamp":   time.Now().UTC(),
	})
}

// Readyz is the readiness probe. It pings Postgres and Redis with a short
// deadline and reports 503 when either is unreachable.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]checkResult{
		"postgres": h.checkPostgres(ctx),
		"redis":    h.checkRedis(ctx),
	}

	status := http.StatusOK
	overall := "ready"
	for _, c := range checks {
		if c.Status != "healthy" {
			status = http.StatusServiceUnavailable
			overall = "not ready"
			break
		}
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

func (h *HealthHandler) checkPostgres(ctx context.Context) checkResult {
	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return checkResult{Status: "unhealthy", Error: err.Error()}
	}
	return checkResult{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkRedis(ctx context.Context) checkResult {
	start := time.Now()
	if !h.redis.Healthy(ctx, readinessTimeout) {
		return checkResult{Status: "unhealthy", Error: "ping failed"}
	}
	return checkResult{Status: "healthy", Latency: time.Since(start).String()}
}
