package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
)

const healthTimeout = 5 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the database and the dispatch queue are reachable
type HealthHandler struct {
	db          Pinger
	queueClient queue.Client
	logger      *slog.Logger
}

// NewHealthHandler creates a new health handler. queueClient may be nil.
func NewHealthHandler(db Pinger, queueClient queue.Client, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		queueClient: queueClient,
		logger:      logger,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string            `json:"status"`
	Services   map[string]string `json:"services"`
	QueueDepth *int64            `json:"queue_depth,omitempty"`
}

// Health handles GET /health. Any unreachable dependency turns the answer
// into a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{Status: "healthy", Services: map[string]string{}}

	checks := map[string]func(context.Context) error{
		"database": h.db.PingContext,
	}
	if h.queueClient != nil {
		checks["queue"] = h.queueClient.Health
	} else {
		response.Services["queue"] = "not_configured"
	}

	for name, check := range checks {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed",
				slog.String("service", name),
				slog.String("error", err.Error()),
			)
			response.Status = "unhealthy"
			response.Services[name] = "unhealthy"
			continue
		}
		response.Services[name] = "healthy"
	}

	if response.Services["queue"] == "healthy" {
		if depth, err := h.queueClient.Depth(ctx); err == nil {
			response.QueueDepth = &depth
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}
