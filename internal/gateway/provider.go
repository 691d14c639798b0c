package gateway

import (
	"net/http"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// Provider shapes requests for one hosting flavour of the messaging gateway
type Provider interface {
	Type() models.ProviderType
	// InstanceIdentifier returns the path segment naming the instance on the gateway
	InstanceIdentifier(instance *models.Instance) string
	// Authorize sets the authentication header for apiKey
	Authorize(req *http.Request, apiKey string)
}

type cloudProvider struct{}

func (cloudProvider) Type() models.ProviderType { return models.ProviderCloud }

func (cloudProvider) InstanceIdentifier(instance *models.Instance) string {
	if instance.InstanceIDExternal != nil && *instance.InstanceIDExternal != "" {
		return *instance.InstanceIDExternal
	}
	return instance.InstanceName
}

func (cloudProvider) Authorize(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

type selfHostedProvider struct{}

func (selfHostedProvider) Type() models.ProviderType { return models.ProviderSelfHosted }

func (selfHostedProvider) InstanceIdentifier(instance *models.Instance) string {
	return instance.InstanceName
}

func (selfHostedProvider) Authorize(req *http.Request, apiKey string) {
	req.Header.Set("apikey", apiKey)
}

// Providers maps provider types to their request strategy
type Providers map[models.ProviderType]Provider

// DefaultProviders returns the cloud and self-hosted strategies
func DefaultProviders() Providers {
	return Providers{
		models.ProviderCloud:      cloudProvider{},
		models.ProviderSelfHosted: selfHostedProvider{},
	}
}

// Register adds or replaces the strategy for p.Type()
func (ps Providers) Register(p Provider) {
	ps[p.Type()] = p
}

// Lookup returns the strategy for t. Unknown types use the self-hosted
// strategy, which authenticates with the raw apikey header.
func (ps Providers) Lookup(t models.ProviderType) Provider {
	if p, ok := ps[t.Normalize()]; ok {
		return p
	}
	if p, ok := ps[models.ProviderSelfHosted]; ok {
		return p
	}
	return selfHostedProvider{}
}
