package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"ticket-platform/internal/services/gateway"
	"ticket-platform/internal/services/notify"
	"ticket-platform/internal/status"
	"ticket-platform/models"
	"ticket-platform/monitoring"
)

type CheckoutConfig struct {
	// EmailTicketTopic receives the confirmation of every approved payment.
	EmailTicketTopic string
}

// CheckoutService sequences cart, payment, hosted session, tickets and
// confirmation.
type CheckoutService struct {
	app       core.App
	payments  *PaymentStore
	tickets   *TicketService
	events    *EventStore
	gateway   gateway.Gateway
	publisher notify.Publisher
	locker    Locker
	monitor   *monitoring.Monitor
	cfg       CheckoutConfig
}

func NewCheckoutService(
	app core.App,
	payments *PaymentStore,
	tickets *TicketService,
	events *EventStore,
	gw gateway.Gateway,
	publisher notify.Publisher,
	locker Locker,
	monitor *monitoring.Monitor,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		app:       app,
		payments:  payments,
		tickets:   tickets,
		events:    events,
		gateway:   gw,
		publisher: publisher,
		locker:    locker,
		monitor:   monitor,
		cfg:       cfg,
	}
}

// Checkout validates the cart and creates a PENDING payment priced from the
// event. The gateway is not contacted.
func (s *CheckoutService) Checkout(ctx context.Context, cart models.Cart) (*models.Payment, error) {
	if cart.Quantity <= 0 {
		return nil, status.ErrEmptyCart
	}
	if cart.DiscountPercent < 0 || cart.DiscountPercent > 100 {
		return nil, status.ErrInvalidDiscount
	}
	if !cart.ValidCustomer() {
		return nil, status.ErrInvalidCustomer
	}

	event, err := s.events.GetEvent(ctx, cart.EventID)
	if err != nil {
		return nil, err
	}
	if !event.HasCapacity(cart.Quantity) {
		return nil, fmt.Errorf("event %s has %d left, %d requested: %w",
			event.ID, event.Remaining(), cart.Quantity, status.ErrInsufficientCapacity)
	}

	payment, err := s.payments.CreatePayment(ctx, cart, event.TicketPrice)
	if err != nil {
		s.monitor.TrackCheckoutOperation("checkout", "error")
		return nil, err
	}

	s.monitor.TrackCheckoutOperation("checkout", "created")
	slog.Info("payment created",
		"payment_id", payment.ID,
		"event_id", payment.EventID,
		"quantity", payment.Quantity,
		"total_price", payment.TotalPrice.String())
	return payment, nil
}

// CreateStripeSession opens a hosted checkout page with one line item per
// ticket, saves the session on the payment and stages the PENDING tickets.
// Free payments get no session and go straight to staging.
func (s *CheckoutService) CreateStripeSession(ctx context.Context, paymentID string, specs []models.TicketSpec, successURL, cancelURL string) (*models.SessionResult, error) {
	unlock, err := s.locker.Lock(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, status.ErrPaymentNotPending)
	}
	if len(specs) == 0 {
		return nil, status.ErrEmptyCart
	}
	if len(specs) != payment.Quantity {
		return nil, fmt.Errorf("%d tickets for quantity %d: %w", len(specs), payment.Quantity, status.ErrTicketCountMismatch)
	}
	specs, err = s.tickets.resolveSpecs(ctx, payment, specs)
	if err != nil {
		return nil, err
	}

	staged, err := s.tickets.CountTickets(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if staged > 0 {
		return nil, fmt.Errorf("payment %s has %d tickets: %w", paymentID, staged, status.ErrTicketsAlreadyStaged)
	}

	result := &models.SessionResult{PaymentID: paymentID, SessionURL: successURL}

	if !payment.IsFree() {
		amounts := s.payments.LineAmounts(payment)
		items := make([]gateway.LineItem, 0, len(specs))
		for i, spec := range specs {
			items = append(items, gateway.LineItem{Label: spec.Label(), UnitAmount: amounts[i], Quantity: 1})
		}

		session, err := s.gateway.CreateHostedSession(ctx, &gateway.SessionRequest{
			PaymentID:     paymentID,
			CustomerEmail: payment.CustomerEmail,
			LineItems:     items,
			SuccessURL:    successURL,
			CancelURL:     cancelURL,
		})
		if err != nil {
			s.monitor.TrackCheckoutOperation("create_session", "gateway_error")
			return nil, err
		}
		result.SessionID = session.ID
		result.SessionURL = session.URL
	}

	err = withTx(ctx, s.app, func(ctx context.Context) error {
		if result.SessionID != "" {
			if err := s.payments.SetSessionID(ctx, paymentID, result.SessionID); err != nil {
				return err
			}
		}

		tickets, err := s.tickets.CreateTickets(ctx, paymentID, specs)
		if err != nil {
			return err
		}
		result.Tickets = tickets
		return nil
	})
	if err != nil {
		s.monitor.TrackCheckoutOperation("create_session", "error")
		return nil, err
	}

	s.monitor.TrackCheckoutOperation("create_session", "created")
	slog.Info("checkout session created", "payment_id", paymentID, "session_id", result.SessionID, "tickets", len(result.Tickets))
	return result, nil
}

// ValidateStripeSession settles a payment against the gateway. It is safe to
// call repeatedly and concurrently: only the first call that moves the
// payment out of PENDING touches tickets, inventory or notifications. A
// gateway failure leaves the payment PENDING.
func (s *CheckoutService) ValidateStripeSession(ctx context.Context, paymentID string) (*models.ValidationResult, error) {
	unlock, err := s.locker.Lock(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status.IsTerminal() {
		s.monitor.TrackCheckoutOperation("validate", "settled")
		return s.settledResult(ctx, payment)
	}

	if payment.IsFree() {
		return s.finalize(ctx, payment, "", true)
	}

	if payment.SessionID == "" {
		return nil, fmt.Errorf("payment %s: %w", paymentID, status.ErrSessionMissing)
	}

	session, err := s.gateway.GetSessionStatus(ctx, payment.SessionID)
	if err != nil {
		s.monitor.TrackCheckoutOperation("validate", "gateway_error")
		slog.Warn("payment left pending", "payment_id", paymentID, "error", err)
		return nil, err
	}

	return s.finalize(ctx, payment, session.PaymentIntentID, session.Succeeded())
}

// ValidateBySessionID resolves the session to its payment and validates it.
func (s *CheckoutService) ValidateBySessionID(ctx context.Context, sessionID string) (*models.ValidationResult, error) {
	payment, err := s.payments.GetPaymentBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ValidateStripeSession(ctx, payment.ID)
}

// finalize moves the payment out of PENDING and finalizes its tickets in one
// transaction.
func (s *CheckoutService) finalize(ctx context.Context, payment *models.Payment, intentID string, approved bool) (*models.ValidationResult, error) {
	to := models.PaymentCancelled
	if approved {
		to = models.PaymentApproved
	}

	var tickets []*models.Ticket
	err := withTx(ctx, s.app, func(ctx context.Context) error {
		if err := s.payments.TransitionFromPending(ctx, payment.ID, to, intentID); err != nil {
			return err
		}

		var err error
		tickets, err = s.tickets.ValidateTickets(ctx, payment.ID, approved)
		if err != nil {
			return err
		}
		if approved && len(tickets) == 0 {
			return fmt.Errorf("payment %s: %w", payment.ID, status.ErrTicketsNotStaged)
		}
		return nil
	})
	if errors.Is(err, status.ErrPaymentNotPending) {
		// Another instance settled it first.
		current, err := s.payments.GetPaymentByID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		return s.settledResult(ctx, current)
	}
	if err != nil {
		s.monitor.TrackCheckoutOperation("validate", "error")
		return nil, err
	}

	settled, err := s.payments.GetPaymentByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}

	result := &models.ValidationResult{Payment: settled, Tickets: tickets, IsSuccess: approved}
	if !approved {
		s.monitor.TrackCheckoutOperation("validate", "cancelled")
		slog.Info("payment cancelled", "payment_id", payment.ID, "payment_intent_id", intentID)
		return result, nil
	}

	s.monitor.TrackCheckoutOperation("validate", "approved")
	slog.Info("payment approved", "payment_id", payment.ID, "payment_intent_id", intentID, "tickets", len(tickets))

	s.notify(ctx, settled, tickets)
	result.PaymentMethod = s.paymentMethod(ctx, settled)
	return result, nil
}

// settledResult is the view of a payment some earlier call already settled.
func (s *CheckoutService) settledResult(ctx context.Context, payment *models.Payment) (*models.ValidationResult, error) {
	tickets, err := s.tickets.GetTicketsByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	result := &models.ValidationResult{
		Payment:   payment,
		Tickets:   tickets,
		IsSuccess: payment.Status == models.PaymentApproved,
	}
	if result.IsSuccess {
		result.PaymentMethod = s.paymentMethod(ctx, payment)
	}
	return result, nil
}

// notify hands the confirmation to the publisher. The approval is already
// committed, so failures are only logged.
func (s *CheckoutService) notify(ctx context.Context, payment *models.Payment, tickets []*models.Ticket) {
	msg := models.NewEmailTicketMessage(payment, tickets)
	if err := s.publisher.Publish(ctx, s.cfg.EmailTicketTopic, msg); err != nil {
		slog.Error("failed to publish ticket confirmation",
			"payment_id", payment.ID,
			"topic", s.cfg.EmailTicketTopic,
			"error", err)
	}
}

// paymentMethod fetches the card summary. Missing data is not an error.
func (s *CheckoutService) paymentMethod(ctx context.Context, payment *models.Payment) *models.PaymentMethodSummary {
	if payment.IsFree() || payment.PaymentIntentID == "" {
		return nil
	}

	summary, err := s.gateway.GetPaymentMethodSummary(ctx, payment.PaymentIntentID)
	if err != nil {
		slog.Warn("payment method summary unavailable", "payment_id", payment.ID, "error", err)
		return nil
	}
	return summary
}
