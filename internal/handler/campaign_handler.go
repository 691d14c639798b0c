package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/service"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService service.CampaignService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		logger:          logger,
	}
}

// StartCampaign handles POST /functions/send-campaign-messages with a
// {"campaign_id": ...} body. It answers once the run is handed off; the
// messages are sent in the background.
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.StartCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	id, err := req.Parse()
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	h.start(w, r, id)
}

// StartCampaignByID handles POST /campaigns/{id}/start
func (h *CampaignHandler) StartCampaignByID(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	h.start(w, r, id)
}

func (h *CampaignHandler) start(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	result, err := h.campaignService.Start(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, campaign)
}

// GetCampaign handles GET /campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// ListCampaigns handles GET /campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.CampaignFilter{
		Status:   models.CampaignStatus(query.Get("status")),
		Page:     page,
		PageSize: pageSize,
	}

	if raw := query.Get("instance_id"); raw != "" {
		instanceID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid instance ID")
			return
		}
		filter.InstanceID = &instanceID
	}

	result, err := h.campaignService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// ListCampaignLogs handles GET /campaigns/{id}/logs
func (h *CampaignHandler) ListCampaignLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignIDParam(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	result, err := h.campaignService.ListLogs(r.Context(), models.CampaignLogFilter{
		CampaignID: id,
		Status:     query.Get("status"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// campaignIDParam parses the {id} route parameter, writing a 400 on failure
func campaignIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return uuid.Nil, false
	}
	return id, true
}
