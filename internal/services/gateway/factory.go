package gateway

import (
	"context"
	"fmt"
)

// Factory implements GatewayFactory interface
type Factory struct{}

// NewFactory creates a new gateway factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateGateway creates a gateway instance based on provider type and configuration
func (f *Factory) CreateGateway(ctx context.Context, provider Provider, config any) (Gateway, error) {
	switch provider {
	case ProviderStripe:
		stripeConfig, ok := config.(*StripeConfig)
		if !ok {
			return nil, fmt.Errorf("invalid stripe config type, expected *gateway.StripeConfig")
		}
		return NewStripeAdapter(stripeConfig)

	case ProviderSandbox:
		return NewSandboxAdapter(), nil

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", provider)
	}
}

// GetSupportedProviders returns list of supported gateway providers
func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{
		ProviderStripe,
		ProviderSandbox,
	}
}
