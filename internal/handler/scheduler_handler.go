package handler

import (
	"log/slog"
	"net/http"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/service"
)

// SchedulerHandler exposes the scheduler sweep to external cron triggers
type SchedulerHandler struct {
	scheduler service.SchedulerService
	logger    *slog.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(scheduler service.SchedulerService, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// Sweep handles POST /functions/process-scheduled-campaigns
func (h *SchedulerHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.Sweep(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}
