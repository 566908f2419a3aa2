package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shehzadigill/gymcoachai-sub008/internal/generation"
)

// Pinger reports backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	sessions Pinger
	oracle   generation.HealthChecker
	timeout  time.Duration
}

// NewHealthHandler creates a health handler. oracle may be nil when the
// configured gateway cannot report its own health.
func NewHealthHandler(sessions Pinger, oracle generation.HealthChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{sessions: sessions, oracle: oracle, timeout: timeout}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.sessions.Ping(ctx); err != nil {
		slog.Error("Health check failed", "check", "sessions", "error", err)
		status["status"] = "degraded"
		checks["sessions"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["sessions"] = "ok"
	}

	// The generator being down degrades the service but does not take it
	// out of rotation; conversations can still be read and cancelled.
	if h.oracle != nil {
		if err := h.oracle.Health(ctx); err != nil {
			slog.Warn("Health check failed", "check", "generator", "error", err)
			status["status"] = "degraded"
			checks["generator"] = "unreachable"
		} else {
			checks["generator"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
