package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"ticket-platform/models"
)

type StripeConfig struct {
	SecretKey  string
	Currency   string
	MinorUnits int
	// APIURL overrides the Stripe API base URL.
	APIURL     string
	HTTPClient *http.Client
	// MaxNetworkRetries defaults to the library's own retry count when nil.
	MaxNetworkRetries *int64
}

// StripeAdapter implements Gateway on Stripe Checkout.
type StripeAdapter struct {
	sessions   checkoutsession.Client
	intents    paymentintent.Client
	currency   string
	minorUnits int
}

func NewStripeAdapter(cfg *StripeConfig) (*StripeAdapter, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.Currency == "" {
		return nil, errors.New("stripe currency is required")
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: cfg.MaxNetworkRetries,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeAdapter{
		sessions:   checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		intents:    paymentintent.Client{B: backend, Key: cfg.SecretKey},
		currency:   cfg.Currency,
		minorUnits: cfg.MinorUnits,
	}, nil
}

func (a *StripeAdapter) Provider() Provider {
	return ProviderStripe
}

func (a *StripeAdapter) CreateHostedSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PaymentID),
	}
	params.Context = ctx
	params.AddMetadata("payment_id", req.PaymentID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(a.currency),
				UnitAmount: stripe.Int64(ToMinorUnits(item.UnitAmount, a.minorUnits)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Label),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	s, err := a.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create session: %w", err)
	}

	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (a *StripeAdapter) GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	s, err := a.sessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get session %s: %w", sessionID, err)
	}

	out := &SessionStatus{SessionID: s.ID}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
		out.IntentStatus = string(s.PaymentIntent.Status)
	}
	return out, nil
}

func (a *StripeAdapter) GetPaymentMethodSummary(ctx context.Context, paymentIntentID string) (*models.PaymentMethodSummary, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := a.intents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get payment intent %s: %w", paymentIntentID, err)
	}

	if pi.PaymentMethod == nil || pi.PaymentMethod.Card == nil {
		return nil, nil
	}
	return &models.PaymentMethodSummary{
		Brand: string(pi.PaymentMethod.Card.Brand),
		Last4: pi.PaymentMethod.Card.Last4,
	}, nil
}
