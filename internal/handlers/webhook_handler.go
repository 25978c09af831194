package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"ticket-platform/internal/services"
	"ticket-platform/internal/status"
)

const maxWebhookBody = int64(65536)

// WebhookHandler settles payments from Stripe checkout events. Stripe
// redelivers on any non-2xx answer, which is the retry path for gateway
// failures.
type WebhookHandler struct {
	checkout *services.CheckoutService
	secret   string
}

func NewWebhookHandler(checkout *services.CheckoutService, secret string) *WebhookHandler {
	return &WebhookHandler{checkout: checkout, secret: secret}
}

func (h *WebhookHandler) Stripe(e *core.RequestEvent) error {
	payload, err := io.ReadAll(http.MaxBytesReader(e.Response, e.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("rejected oversized stripe webhook", "limit", tooLarge.Limit)
			return router.NewApiError(http.StatusRequestEntityTooLarge, "Payload too large", nil)
		}
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, e.Request.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Warn("rejected stripe webhook", "error", err)
		return apis.NewBadRequestError("Invalid signature", nil)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
	default:
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return apis.NewBadRequestError("Invalid checkout session payload", err)
	}

	// Delayed payment methods complete the session before the money arrives;
	// the async events settle those.
	if event.Type == stripe.EventTypeCheckoutSessionCompleted &&
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	ctx := e.Request.Context()
	if session.ClientReferenceID != "" {
		_, err = h.checkout.ValidateStripeSession(ctx, session.ClientReferenceID)
	} else {
		_, err = h.checkout.ValidateBySessionID(ctx, session.ID)
	}

	if errors.Is(err, status.ErrNotFound) {
		slog.Warn("stripe webhook for unknown payment", "event_id", event.ID, "session_id", session.ID)
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}
	if err != nil {
		slog.Error("stripe webhook validation failed", "event_id", event.ID, "session_id", session.ID, "error", err)
		return apiError(err)
	}

	slog.Info("stripe webhook processed", "event_id", event.ID, "type", event.Type, "session_id", session.ID)
	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
