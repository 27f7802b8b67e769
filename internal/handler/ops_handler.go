// internal/handler/ops_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leopard-outreach/internal/controller"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

// Ticker runs one delivery pass.
type Ticker interface {
	Tick(ctx context.Context) (*service.TickResult, error)
}

// OpsHandler serves health checks and the manual worker trigger.
type OpsHandler struct {
	Worker Ticker
	Ping   func(ctx context.Context) error
	Logger zerolog.Logger
}

func (h *OpsHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.Logger.Warn().Err(err).Msg("health check failed")
			controller.WriteMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WorkerTickHandler runs a tick inline, for environments without the cron
// worker.
func (h *OpsHandler) WorkerTickHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.Worker.Tick(r.Context())
	if err != nil {
		controller.WriteError(w, h.Logger, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, result)
}
