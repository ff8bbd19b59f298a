package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type HealthHandler struct {
	logger *slog.Logger
	check  func(context.Context) error
}

// NewHealthHandler reports healthy while check, which tests the webapp
// root, succeeds. A nil check always passes.
func NewHealthHandler(logger *slog.Logger, check func(context.Context) error) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		check:  check,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	w.Header().Set("Content-Type", "application/json")
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.check(ctx); err != nil {
			h.logger.Warn("health check failed",
				"error", err,
				"duration", time.Since(start).String(),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
	}
	w.Write([]byte(`{"status":"healthy"}`))

	h.logger.Debug("health check completed",
		"duration", time.Since(start).String(),
		"remote_addr", r.RemoteAddr,
	)
}
