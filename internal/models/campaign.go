package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

// Campaign status constants
const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Valid reports whether s is one of the known campaign statuses
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// CanStart reports whether a campaign in this status may enter sending.
// Once a campaign is sending, completed or failed it is never started again,
// so repeated start calls cannot create duplicate logs.
func (s CampaignStatus) CanStart() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled
}

// IsTerminal reports whether counters on a campaign in this status are frozen
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// MessageKind selects the gateway endpoint and payload shape
type MessageKind string

// Message kind constants
const (
	MessageKindText     MessageKind = "text"
	MessageKindImage    MessageKind = "image"
	MessageKindDocument MessageKind = "document"
)

// Normalize maps empty or unknown kinds to text
func (k MessageKind) Normalize() MessageKind {
	switch k {
	case MessageKindImage, MessageKindDocument:
		return k
	default:
		return MessageKindText
	}
}

// IsMedia reports whether the kind is sent through the media endpoint
func (k MessageKind) IsMedia() bool {
	return k == MessageKindImage || k == MessageKindDocument
}

// IsValidMessageKind checks if the message kind is known
func IsValidMessageKind(kind string) bool {
	switch MessageKind(kind) {
	case MessageKindText, MessageKindImage, MessageKindDocument:
		return true
	default:
		return false
	}
}

// Campaign represents a bulk WhatsApp send job bound to one messaging instance
type Campaign struct {
	ID              uuid.UUID      `json:"id"`
	InstanceID      uuid.UUID      `json:"instance_id"`
	Name            string         `json:"name"`
	Description     *string        `json:"description,omitempty"`
	MessageContent  string         `json:"message_content"`
	MessageKind     MessageKind    `json:"message_type"`
	MediaURL        *string        `json:"media_url,omitempty"`
	MediaMimeType   *string        `json:"media_mimetype,omitempty"`
	TargetContacts  []uuid.UUID    `json:"target_contacts"`
	Status          CampaignStatus `json:"status"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	DeliveredCount  int            `json:"delivered_count"`
	ReadCount       int            `json:"read_count"`
	FailedCount     int            `json:"failed_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Message returns the content sent to every recipient of the campaign
func (c *Campaign) Message() Message {
	msg := Message{
		Kind: c.MessageKind.Normalize(),
		Text: c.MessageContent,
	}
	if c.MediaURL != nil {
		msg.MediaURL = *c.MediaURL
	}
	if c.MediaMimeType != nil {
		msg.MediaMimeType = *c.MediaMimeType
	}
	return msg
}

// Validate performs validation on campaign data
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return ErrInvalidInput("name is required")
	}
	if c.InstanceID == uuid.Nil {
		return ErrInvalidInput("instance_id is required")
	}
	if c.MessageKind != "" && !IsValidMessageKind(string(c.MessageKind)) {
		return ErrInvalidInput(fmt.Sprintf("invalid message_type: %s (must be 'text', 'image' or 'document')", c.MessageKind))
	}
	if c.MessageKind.Normalize().IsMedia() {
		if c.MediaURL == nil || *c.MediaURL == "" {
			return ErrInvalidInput("media_url is required for media campaigns")
		}
	} else if c.MessageContent == "" {
		return ErrInvalidInput("message_content is required")
	}
	if c.Status != "" && !c.Status.Valid() {
		return ErrInvalidInput(fmt.Sprintf("invalid status: %s", c.Status))
	}
	return nil
}

// CampaignProgress is the running counter snapshot written after each recipient
type CampaignProgress struct {
	SentCount   int `json:"sent_count"`
	FailedCount int `json:"failed_count"`
}

// Processed returns how many recipients have reached a terminal outcome
func (p CampaignProgress) Processed() int {
	return p.SentCount + p.FailedCount
}
