package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-platform/models"
)

// Provider represents different hosted checkout providers
type Provider string

const (
	ProviderStripe  Provider = "stripe"
	ProviderSandbox Provider = "sandbox"
)

// IntentSucceeded is the only intent status that settles a payment.
const IntentSucceeded = "succeeded"

// LineItem is one priced row of a hosted checkout page.
type LineItem struct {
	Label      string          `json:"label"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Quantity   int64           `json:"quantity"`
}

// SessionRequest represents a generic hosted session request
type SessionRequest struct {
	PaymentID     string     `json:"payment_id"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	LineItems     []LineItem `json:"line_items"`
	SuccessURL    string     `json:"success_url"`
	CancelURL     string     `json:"cancel_url"`
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionStatus reports what the provider knows about a session's payment.
type SessionStatus struct {
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	IntentStatus    string `json:"intent_status"`
}

func (s SessionStatus) Succeeded() bool {
	return s.IntentStatus == IntentSucceeded
}

// Gateway defines the common interface for all hosted checkout providers
type Gateway interface {
	// Provider returns the provider type
	Provider() Provider

	// CreateHostedSession opens a checkout page for the given line items
	CreateHostedSession(ctx context.Context, req *SessionRequest) (*Session, error)

	// GetSessionStatus looks up the payment intent behind a session
	GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error)

	// GetPaymentMethodSummary returns card details of a settled intent, nil if unknown
	GetPaymentMethodSummary(ctx context.Context, paymentIntentID string) (*models.PaymentMethodSummary, error)
}

// GatewayFactory creates gateway instances based on provider type
type GatewayFactory interface {
	CreateGateway(ctx context.Context, provider Provider, config any) (Gateway, error)
	GetSupportedProviders() []Provider
}
