package models

import "github.com/google/uuid"

// Message is the content of a campaign as sent through the gateway
type Message struct {
	Kind          MessageKind `json:"kind"`
	Text          string      `json:"text"`
	MediaURL      string      `json:"media_url,omitempty"`
	MediaMimeType string      `json:"media_mimetype,omitempty"`
}

// DispatchJob is handed from the start entry point to the dispatch worker.
// Recipients keep the order in which they were resolved.
type DispatchJob struct {
	CampaignID uuid.UUID   `json:"campaign_id"`
	InstanceID uuid.UUID   `json:"instance_id"`
	Message    Message     `json:"message"`
	Recipients []Recipient `json:"recipients"`
}
