package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-platform/internal/services/gateway"
	"ticket-platform/internal/status"
	"ticket-platform/internal/testutil"
	"ticket-platform/models"
	"ticket-platform/monitoring"
)

const emailTopic = "email-ticket"

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) error {
	args := m.Called(topic, payload)
	return args.Error(0)
}

// countingGateway wraps the sandbox and counts session and status calls.
type countingGateway struct {
	*gateway.SandboxAdapter

	mu          sync.Mutex
	createCalls int
	statusCalls int
	statusErr   error
}

func (g *countingGateway) CreateHostedSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	return g.SandboxAdapter.CreateHostedSession(ctx, req)
}

func (g *countingGateway) sessionsOpened() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls
}

func (g *countingGateway) GetSessionStatus(ctx context.Context, sessionID string) (*gateway.SessionStatus, error) {
	g.mu.Lock()
	g.statusCalls++
	err := g.statusErr
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return g.SandboxAdapter.GetSessionStatus(ctx, sessionID)
}

func (g *countingGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type fixture struct {
	app       core.App
	events    *EventStore
	payments  *PaymentStore
	tickets   *TicketService
	gateway   *countingGateway
	publisher *MockPublisher
	checkout  *CheckoutService
}

func newFixture(t *testing.T, locker Locker) *fixture {
	t.Helper()

	app := testutil.NewApp(t)
	monitor := monitoring.NewMonitor()

	f := &fixture{
		app:       app,
		events:    NewEventStore(app),
		payments:  NewPaymentStore(app, 0),
		gateway:   &countingGateway{SandboxAdapter: gateway.NewSandboxAdapter()},
		publisher: &MockPublisher{},
	}
	f.tickets = NewTicketService(app, f.payments, f.events, monitor)
	f.checkout = NewCheckoutService(app, f.payments, f.tickets, f.events, f.gateway, f.publisher, locker, monitor,
		CheckoutConfig{EmailTicketTopic: emailTopic})
	return f
}

func twoSpecs() []models.TicketSpec {
	return []models.TicketSpec{
		{OwnerName: "An Nguyen", OwnerEmail: "an@example.com", OwnerPhone: "0900000001"},
		{OwnerName: "Binh Tran", OwnerEmail: "binh@example.com", OwnerPhone: "0900000002"},
	}
}

func cartFor(eventID string, quantity, discount int) models.Cart {
	return models.Cart{
		EventID:         eventID,
		UserID:          "user-1",
		Quantity:        quantity,
		DiscountPercent: discount,
		CustomerName:    "An Nguyen",
		CustomerEmail:   "an@example.com",
		CustomerPhone:   "0900000001",
		PaymentMethod:   "card",
	}
}

// stage runs checkout and session creation for two tickets at 100,000 with 10% off.
func (f *fixture) stage(t *testing.T) (string, *models.Payment, *models.SessionResult) {
	t.Helper()
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Concert", decimal.NewFromInt(100000), 100)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 2, 10))
	require.NoError(t, err)

	session, err := f.checkout.CreateStripeSession(ctx, payment.ID, twoSpecs(), "https://tickets.example.com/ok", "https://tickets.example.com/cancel")
	require.NoError(t, err)
	return eventID, payment, session
}

func TestCheckout_ComputesTotal(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	eventID := testutil.CreateEvent(t, f.app, "Concert", decimal.NewFromInt(100000), 100)

	payment, err := f.checkout.Checkout(context.Background(), cartFor(eventID, 2, 10))
	require.NoError(t, err)

	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.True(t, decimal.NewFromInt(180000).Equal(payment.TotalPrice), payment.TotalPrice.String())
	assert.True(t, decimal.NewFromInt(100000).Equal(payment.UnitPrice))

	stored, err := f.payments.GetPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, payment.TotalPrice.Equal(stored.TotalPrice))
}

func TestCheckout_Rejections(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	eventID := testutil.CreateEvent(t, f.app, "Small room", decimal.NewFromInt(50000), 3)

	noContact := cartFor(eventID, 1, 0)
	noContact.CustomerEmail = " "

	longPhone := cartFor(eventID, 1, 0)
	longPhone.CustomerPhone = strings.Repeat("9", models.MaxPhoneLength+1)

	tests := []struct {
		name string
		cart models.Cart
		want error
	}{
		{"empty cart", cartFor(eventID, 0, 0), status.ErrEmptyCart},
		{"negative discount", cartFor(eventID, 1, -5), status.ErrInvalidDiscount},
		{"discount above 100", cartFor(eventID, 1, 101), status.ErrInvalidDiscount},
		{"missing contact", noContact, status.ErrInvalidCustomer},
		{"phone too long", longPhone, status.ErrInvalidCustomer},
		{"unknown event", cartFor("missing_event", 1, 0), status.ErrEventNotFound},
		{"over capacity", cartFor(eventID, 4, 0), status.ErrInsufficientCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkout.Checkout(context.Background(), tt.cart)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.app.CountRecords("payments")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateStripeSession_StagesTickets(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	_, payment, session := f.stage(t)

	assert.NotEmpty(t, session.SessionID)
	assert.Contains(t, session.SessionURL, "session_id="+session.SessionID)
	require.Len(t, session.Tickets, 2)
	for i, tk := range session.Tickets {
		assert.Equal(t, models.TicketPending, tk.Status)
		assert.False(t, tk.IsPaid)
		assert.Empty(t, tk.TicketCode)
		assert.Equal(t, i+1, tk.Position)
		assert.Equal(t, payment.EventID, tk.EventID)
	}

	items := f.gateway.LineItems(session.SessionID)
	require.Len(t, items, 2)
	assert.Equal(t, "An Nguyen - an@example.com - 0900000001", items[0].Label)
	assert.True(t, decimal.NewFromInt(90000).Equal(items[0].UnitAmount))

	stored, err := f.payments.GetPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, stored.SessionID)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestCreateStripeSession_Rejections(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	_, payment, _ := f.stage(t)

	_, err := f.checkout.CreateStripeSession(ctx, payment.ID, twoSpecs(), "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrTicketsAlreadyStaged)

	eventID := testutil.CreateEvent(t, f.app, "Other", decimal.NewFromInt(100000), 0)
	fresh, err := f.checkout.Checkout(ctx, cartFor(eventID, 2, 0))
	require.NoError(t, err)

	_, err = f.checkout.CreateStripeSession(ctx, fresh.ID, twoSpecs()[:1], "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrTicketCountMismatch)

	bad := twoSpecs()
	bad[1].OwnerPhone = ""
	_, err = f.checkout.CreateStripeSession(ctx, fresh.ID, bad, "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrInvalidTicketSpec)

	_, err = f.checkout.CreateStripeSession(ctx, "missing_payment", twoSpecs(), "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrPaymentNotFound)

	n, err := f.tickets.CountTickets(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateStripeSession_LineItemsSumToTotal(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Odd price", decimal.NewFromInt(10001), 100)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 2, 33))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(13401).Equal(payment.TotalPrice), payment.TotalPrice.String())

	session, err := f.checkout.CreateStripeSession(ctx, payment.ID, twoSpecs(), "https://tickets.example.com/ok", "https://tickets.example.com/cancel")
	require.NoError(t, err)

	items := f.gateway.LineItems(session.SessionID)
	require.Len(t, items, 2)

	var charged int64
	for _, item := range items {
		charged += gateway.ToMinorUnits(item.UnitAmount, 0) * item.Quantity
	}
	assert.Equal(t, gateway.ToMinorUnits(payment.TotalPrice, 0), charged)

	ticketSum := decimal.Zero
	for i, tk := range session.Tickets {
		assert.True(t, items[i].UnitAmount.Equal(tk.Price))
		ticketSum = ticketSum.Add(tk.Price)
	}
	assert.True(t, payment.TotalPrice.Equal(ticketSum))
}

func TestCreateStripeSession_RejectsBeforeGateway(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Concert", decimal.NewFromInt(100000), 100)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 2, 0))
	require.NoError(t, err)

	longName := twoSpecs()
	longName[0].OwnerName = strings.Repeat("a", models.MaxNameLength+1)
	_, err = f.checkout.CreateStripeSession(ctx, payment.ID, longName, "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrInvalidTicketSpec)
	assert.ErrorIs(t, err, status.ErrValidation)

	unknownEvent := twoSpecs()
	unknownEvent[1].EventID = "missing_event"
	_, err = f.checkout.CreateStripeSession(ctx, payment.ID, unknownEvent, "ok", "cancel")
	assert.ErrorIs(t, err, status.ErrInvalidReference)

	assert.Zero(t, f.gateway.sessionsOpened())

	stored, err := f.payments.GetPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SessionID)

	n, err := f.tickets.CountTickets(ctx, payment.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateStripeSession_Approves(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	eventID, payment, session := f.stage(t)

	f.publisher.On("Publish", emailTopic, mock.AnythingOfType("models.EmailTicketMessage")).Return(nil)
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	result, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, models.PaymentApproved, result.Payment.Status)
	assert.NotEmpty(t, result.Payment.PaymentIntentID)
	require.Len(t, result.Tickets, 2)
	for _, tk := range result.Tickets {
		assert.Equal(t, models.TicketPaid, tk.Status)
		assert.True(t, tk.IsPaid)
		assert.NotEmpty(t, tk.TicketCode)
	}
	assert.NotEqual(t, result.Tickets[0].TicketCode, result.Tickets[1].TicketCode)
	assert.Equal(t, 2, testutil.SoldQuantity(t, f.app, eventID))
	require.NotNil(t, result.PaymentMethod)
	assert.Equal(t, "4242", result.PaymentMethod.Last4)

	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
	msg := f.publisher.Calls[0].Arguments.Get(1).(models.EmailTicketMessage)
	assert.Equal(t, payment.ID, msg.PaymentID)
	assert.Equal(t, "an@example.com", msg.CustomerEmail)
	assert.Len(t, msg.Tickets, 2)
}

func TestValidateStripeSession_Idempotent(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	eventID, payment, session := f.stage(t)

	f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	first, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)
	second, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Payment.Status, second.Payment.Status)
	require.Len(t, second.Tickets, len(first.Tickets))
	for i := range first.Tickets {
		assert.Equal(t, first.Tickets[i].ID, second.Tickets[i].ID)
		assert.Equal(t, first.Tickets[i].TicketCode, second.Tickets[i].TicketCode)
	}
	assert.Equal(t, 2, testutil.SoldQuantity(t, f.app, eventID))
	assert.Equal(t, 1, f.gateway.calls())
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestValidateStripeSession_Concurrent(t *testing.T) {
	lockers := map[string]Locker{
		"local lock":      NewLocalLocker(),
		"status cas only": noopLocker{},
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, locker)
			eventID, payment, session := f.stage(t)

			f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
			require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

			var wg sync.WaitGroup
			results := make([]*models.ValidationResult, 4)
			errs := make([]error, 4)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = f.checkout.ValidateStripeSession(context.Background(), payment.ID)
				}(i)
			}
			wg.Wait()

			for i := range results {
				require.NoError(t, errs[i])
				assert.Equal(t, models.PaymentApproved, results[i].Payment.Status)
				assert.Len(t, results[i].Tickets, 2)
			}
			assert.Equal(t, 2, testutil.SoldQuantity(t, f.app, eventID))
			f.publisher.AssertNumberOfCalls(t, "Publish", 1)
		})
	}
}

func TestValidateStripeSession_Cancelled(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	eventID, payment, session := f.stage(t)

	require.NoError(t, f.gateway.Simulate(session.SessionID, "canceled"))

	result, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, models.PaymentCancelled, result.Payment.Status)
	assert.Empty(t, result.Tickets)
	assert.Nil(t, result.PaymentMethod)

	n, err := f.tickets.CountTickets(ctx, payment.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, testutil.SoldQuantity(t, f.app, eventID))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	// A cancelled payment stays cancelled without asking the gateway again.
	again, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCancelled, again.Payment.Status)
	assert.Equal(t, 1, f.gateway.calls())
}

func TestValidateStripeSession_GatewayErrorLeavesPending(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	eventID, payment, session := f.stage(t)

	f.gateway.statusErr = status.ErrGatewayTimeout
	_, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	assert.ErrorIs(t, err, status.ErrGateway)

	stored, err := f.payments.GetPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
	n, err := f.tickets.CountTickets(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, testutil.SoldQuantity(t, f.app, eventID))

	// Retrying after the gateway recovers settles the payment.
	f.gateway.statusErr = nil
	f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	result, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, result.Payment.Status)
}

func TestValidateStripeSession_PublishFailureKeepsApproval(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	_, payment, session := f.stage(t)

	f.publisher.On("Publish", emailTopic, mock.Anything).Return(errors.New("broker down"))
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	result, err := f.checkout.ValidateStripeSession(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, result.Payment.Status)
}

func TestValidateStripeSession_FreeEvent(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Open day", decimal.Zero, 50)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 2, 0))
	require.NoError(t, err)
	assert.True(t, payment.IsFree())

	session, err := f.checkout.CreateStripeSession(ctx, payment.ID, twoSpecs(), "https://tickets.example.com/ok", "cancel")
	require.NoError(t, err)
	assert.Empty(t, session.SessionID)
	assert.Equal(t, "https://tickets.example.com/ok", session.SessionURL)

	f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
	result, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, models.PaymentApproved, result.Payment.Status)
	assert.Nil(t, result.PaymentMethod)
	require.Len(t, result.Tickets, 2)
	assert.Equal(t, models.TicketPaid, result.Tickets[0].Status)
	assert.Equal(t, 2, testutil.SoldQuantity(t, f.app, eventID))
	assert.Zero(t, f.gateway.calls())
}

func TestValidateStripeSession_FreeWithoutTicketsStaysPending(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Open day", decimal.Zero, 50)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 1, 0))
	require.NoError(t, err)

	_, err = f.checkout.ValidateStripeSession(ctx, payment.ID)
	assert.ErrorIs(t, err, status.ErrTicketsNotStaged)

	stored, err := f.payments.GetPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestValidateStripeSession_MissingSession(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()

	eventID := testutil.CreateEvent(t, f.app, "Concert", decimal.NewFromInt(100000), 0)
	payment, err := f.checkout.Checkout(ctx, cartFor(eventID, 1, 0))
	require.NoError(t, err)

	_, err = f.checkout.ValidateStripeSession(ctx, payment.ID)
	assert.ErrorIs(t, err, status.ErrSessionMissing)

	_, err = f.checkout.ValidateStripeSession(ctx, "missing_payment")
	assert.ErrorIs(t, err, status.ErrPaymentNotFound)
}

func TestValidateStripeSession_TerminatedTicketStaysTerminated(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	ctx := context.Background()
	eventID, payment, session := f.stage(t)

	_, err := f.tickets.TerminateTicket(ctx, session.Tickets[0].ID)
	require.NoError(t, err)

	f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	result, err := f.checkout.ValidateStripeSession(ctx, payment.ID)
	require.NoError(t, err)

	require.Len(t, result.Tickets, 2)
	assert.Equal(t, models.TicketTerminated, result.Tickets[0].Status)
	assert.Empty(t, result.Tickets[0].TicketCode)
	assert.Equal(t, models.TicketPaid, result.Tickets[1].Status)
	assert.Equal(t, 1, testutil.SoldQuantity(t, f.app, eventID))
}

func TestValidateBySessionID(t *testing.T) {
	f := newFixture(t, NewLocalLocker())
	_, payment, session := f.stage(t)

	f.publisher.On("Publish", emailTopic, mock.Anything).Return(nil)
	require.NoError(t, f.gateway.Simulate(session.SessionID, gateway.IntentSucceeded))

	result, err := f.checkout.ValidateBySessionID(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, result.Payment.ID)
	assert.True(t, result.IsSuccess)

	_, err = f.checkout.ValidateBySessionID(context.Background(), "cs_unknown")
	assert.ErrorIs(t, err, status.ErrPaymentNotFound)
}
