package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers every route on a chi router with the standard middleware
func NewRouter(
	campaigns *CampaignHandler,
	scheduler *SchedulerHandler,
	health *HealthHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware)

	r.Get("/health", health.Health)

	// Entry points kept under the paths existing clients already call
	r.Route("/functions", func(r chi.Router) {
		r.Post("/send-campaign-messages", campaigns.StartCampaign)
		r.Post("/process-scheduled-campaigns", scheduler.Sweep)
	})

	r.Post("/scheduler/sweep", scheduler.Sweep)

	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", campaigns.ListCampaigns)
		r.Post("/", campaigns.CreateCampaign)
		r.Post("/start", campaigns.StartCampaign)
		r.Get("/{id}", campaigns.GetCampaign)
		r.Post("/{id}/start", campaigns.StartCampaignByID)
		r.Get("/{id}/logs", campaigns.ListCampaignLogs)
	})

	return r
}
