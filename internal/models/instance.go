package models

import (
	"strings"

	"github.com/google/uuid"
)

// ProviderType identifies how a messaging instance is hosted
type ProviderType string

// Provider type constants
const (
	ProviderCloud      ProviderType = "cloud"
	ProviderSelfHosted ProviderType = "self_hosted"
)

// Normalize lowercases p and maps an empty provider type to self_hosted
func (p ProviderType) Normalize() ProviderType {
	n := ProviderType(strings.ToLower(strings.TrimSpace(string(p))))
	if n == "" {
		return ProviderSelfHosted
	}
	return n
}

// Instance is a configured connection to a WhatsApp gateway
type Instance struct {
	ID                 uuid.UUID    `json:"id"`
	InstanceName       string       `json:"instance_name"`
	ProviderType       ProviderType `json:"provider_type"`
	InstanceIDExternal *string      `json:"instance_id_external,omitempty"`
}

// InstanceSecrets holds gateway credentials, stored apart from the instance row
type InstanceSecrets struct {
	InstanceID uuid.UUID `json:"-"`
	APIURL     string    `json:"-"`
	APIKey     string    `json:"-"`
}
