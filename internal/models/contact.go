package models

import "github.com/google/uuid"

// Contact is a WhatsApp contact. Only opted-in, non-group contacts are eligible
// for campaigns.
type Contact struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name"`
	OptIn       bool      `json:"opt_in"`
	IsGroup     bool      `json:"is_group"`
}

// Eligible reports whether the contact may receive campaign messages
func (c *Contact) Eligible() bool {
	return c.OptIn && !c.IsGroup
}

// Recipient is a resolved campaign target
type Recipient struct {
	ContactID   uuid.UUID `json:"contact_id"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name"`
}
