package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// StartCampaignRequest is the body accepted by the start entry point
type StartCampaignRequest struct {
	CampaignID string `json:"campaign_id"`
}

// Parse validates the request and returns the campaign id
func (r *StartCampaignRequest) Parse() (uuid.UUID, error) {
	raw := strings.TrimSpace(r.CampaignID)
	if raw == "" {
		return uuid.Nil, models.ErrInvalidInput("campaign_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.ErrInvalidInput("campaign_id must be a valid UUID")
	}
	return id, nil
}

// StartResult acknowledges a started campaign. Dispatch continues in the
// background; progress is observed through the campaign record.
type StartResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TotalRecipients int    `json:"total_recipients"`
}

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	InstanceID     uuid.UUID   `json:"instance_id"`
	Name           string      `json:"name"`
	Description    *string     `json:"description,omitempty"`
	MessageContent string      `json:"message_content"`
	MessageType    string      `json:"message_type"`
	MediaURL       *string     `json:"media_url,omitempty"`
	MediaMimeType  *string     `json:"media_mimetype,omitempty"`
	TargetContacts []uuid.UUID `json:"target_contacts"`
	ScheduledAt    *time.Time  `json:"scheduled_at,omitempty"`
}

// Campaign builds the campaign row for the request. Campaigns with a
// scheduled time start as scheduled, everything else as draft.
func (r *CreateCampaignRequest) Campaign() *models.Campaign {
	status := models.CampaignStatusDraft
	if r.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	kind := models.MessageKind(r.MessageType)
	if kind == "" {
		kind = models.MessageKindText
	}

	targets := r.TargetContacts
	if targets == nil {
		targets = []uuid.UUID{}
	}

	return &models.Campaign{
		InstanceID:     r.InstanceID,
		Name:           strings.TrimSpace(r.Name),
		Description:    r.Description,
		MessageContent: r.MessageContent,
		MessageKind:    kind,
		MediaURL:       r.MediaURL,
		MediaMimeType:  r.MediaMimeType,
		TargetContacts: targets,
		Status:         status,
		ScheduledAt:    r.ScheduledAt,
	}
}

// CampaignListResult represents paginated campaign results
type CampaignListResult struct {
	Data       []*models.Campaign `json:"data"`
	Pagination models.Pagination  `json:"pagination"`
}

// CampaignLogListResult represents paginated campaign log results
type CampaignLogListResult struct {
	Data       []*models.CampaignLog `json:"data"`
	Pagination models.Pagination     `json:"pagination"`
}

// SweepResult reports one scheduler pass. Errors holds one
// "Campaign <id>: <message>" entry per campaign that could not be started.
type SweepResult struct {
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors,omitempty"`
	Message   string   `json:"message,omitempty"`
	Reaped    int      `json:"reaped,omitempty"`
}
