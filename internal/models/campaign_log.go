package models

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus is the delivery state of one campaign recipient
type LogStatus string

// Campaign log status constants
const (
	LogStatusPending   LogStatus = "pending"
	LogStatusSent      LogStatus = "sent"
	LogStatusDelivered LogStatus = "delivered"
	LogStatusRead      LogStatus = "read"
	LogStatusFailed    LogStatus = "failed"
)

// IsValidLogStatus checks if the log status is valid
func IsValidLogStatus(status string) bool {
	switch LogStatus(status) {
	case LogStatusPending, LogStatusSent, LogStatusDelivered, LogStatusRead, LogStatusFailed:
		return true
	default:
		return false
	}
}

// CampaignLog records the delivery attempt for one (campaign, contact) pair
type CampaignLog struct {
	ID            uuid.UUID  `json:"id"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	ContactID     *uuid.UUID `json:"contact_id,omitempty"`
	Status        LogStatus  `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	ButtonClicked *string    `json:"button_clicked,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CampaignLogFilter holds filtering options for listing logs
type CampaignLogFilter struct {
	CampaignID uuid.UUID
	Status     string
	Page       int
	PageSize   int
}

// LogStatusCounts aggregates log rows of a campaign by status
type LogStatusCounts struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Other   int `json:"other"`
}
