package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"ticket-platform/internal/status"
	"ticket-platform/migrations"
	"ticket-platform/models"
)

// PaymentStore persists checkout attempts. Amounts are kept in whole
// multiples of the currency's smallest unit.
type PaymentStore struct {
	app        core.App
	minorUnits int
}

func NewPaymentStore(app core.App, minorUnits int) *PaymentStore {
	return &PaymentStore{app: app, minorUnits: minorUnits}
}

// CreatePayment stores a PENDING payment for the cart. The total is fixed
// here and never recomputed.
func (s *PaymentStore) CreatePayment(ctx context.Context, cart models.Cart, unitPrice decimal.Decimal) (*models.Payment, error) {
	app := appFor(ctx, s.app)

	collection, err := app.FindCachedCollectionByNameOrId(migrations.PaymentsCollection)
	if err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, cart.Quantity)
	for i := range prices {
		prices[i] = unitPrice
	}
	total := models.CalculateTotal(prices, cart.DiscountPercent, s.minorUnits)

	record := core.NewRecord(collection)
	record.Set("event", cart.EventID)
	record.Set("user_id", cart.UserID)
	record.Set("quantity", cart.Quantity)
	record.Set("unit_price", unitPrice.InexactFloat64())
	record.Set("total_price", total.InexactFloat64())
	record.Set("discount_percent", cart.DiscountPercent)
	record.Set("customer_name", strings.TrimSpace(cart.CustomerName))
	record.Set("customer_email", strings.TrimSpace(cart.CustomerEmail))
	record.Set("customer_phone", strings.TrimSpace(cart.CustomerPhone))
	record.Set("payment_method", cart.PaymentMethod)
	record.Set("status", string(models.PaymentPending))

	if err := app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return paymentFromRecord(record), nil
}

// LineAmounts splits the payment total into one charged amount per ticket.
func (s *PaymentStore) LineAmounts(p *models.Payment) []decimal.Decimal {
	return models.SplitTotal(p.TotalPrice, p.Quantity, s.minorUnits)
}

func (s *PaymentStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	record, err := s.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return paymentFromRecord(record), nil
}

// GetPaymentBySessionID resolves a gateway session back to its payment.
func (s *PaymentStore) GetPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, status.ErrPaymentNotFound
	}

	record, err := appFor(ctx, s.app).FindFirstRecordByData(migrations.PaymentsCollection, "stripe_session_id", sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("payment with session %s: %w", sessionID, status.ErrPaymentNotFound)
		}
		return nil, err
	}
	return paymentFromRecord(record), nil
}

// SetSessionID binds the gateway session to a payment that is still PENDING.
func (s *PaymentStore) SetSessionID(ctx context.Context, id, sessionID string) error {
	res, err := appFor(ctx, s.app).DB().
		NewQuery("UPDATE {{payments}} SET [[stripe_session_id]] = {:session}, [[updated]] = {:now} WHERE [[id]] = {:id} AND [[status]] = {:pending}").
		WithContext(ctx).
		Bind(dbx.Params{
			"session": sessionID,
			"now":     types.NowDateTime().String(),
			"id":      id,
			"pending": string(models.PaymentPending),
		}).
		Execute()
	if err != nil {
		return fmt.Errorf("set session of payment %s: %w", id, err)
	}
	return s.checkTransition(ctx, id, res)
}

// TransitionFromPending moves a PENDING payment to the given status. It fails
// with status.ErrPaymentNotPending when another caller already moved it.
func (s *PaymentStore) TransitionFromPending(ctx context.Context, id string, to models.PaymentStatus, intentID string) error {
	res, err := appFor(ctx, s.app).DB().
		NewQuery(`UPDATE {{payments}}
			SET [[status]] = {:to},
				[[payment_intent_id]] = CASE WHEN {:intent} = '' THEN [[payment_intent_id]] ELSE {:intent} END,
				[[updated]] = {:now}
			WHERE [[id]] = {:id} AND [[status]] = {:pending}`).
		WithContext(ctx).
		Bind(dbx.Params{
			"to":      string(to),
			"intent":  intentID,
			"now":     types.NowDateTime().String(),
			"id":      id,
			"pending": string(models.PaymentPending),
		}).
		Execute()
	if err != nil {
		return fmt.Errorf("transition payment %s to %s: %w", id, to, err)
	}
	return s.checkTransition(ctx, id, res)
}

func (s *PaymentStore) checkTransition(ctx context.Context, id string, res interface{ RowsAffected() (int64, error) }) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	// Tell a missing payment apart from one that already left PENDING.
	if _, err := s.findRecord(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("payment %s: %w", id, status.ErrPaymentNotPending)
}

func (s *PaymentStore) ListPayments(ctx context.Context, f models.PaginationFilter) (*models.PagedPayments, error) {
	return s.list(ctx, nil, f)
}

func (s *PaymentStore) ListPaymentsByUser(ctx context.Context, userID string, f models.PaginationFilter) (*models.PagedPayments, error) {
	return s.list(ctx, dbx.HashExp{"user_id": userID}, f)
}

func (s *PaymentStore) ListPaymentsByEvent(ctx context.Context, eventID string, f models.PaginationFilter) (*models.PagedPayments, error) {
	return s.list(ctx, dbx.HashExp{"event": eventID}, f)
}

func (s *PaymentStore) list(ctx context.Context, where dbx.Expression, f models.PaginationFilter) (*models.PagedPayments, error) {
	f = f.Normalize()
	app := appFor(ctx, s.app)

	var exprs []dbx.Expression
	if where != nil {
		exprs = append(exprs, where)
	}
	if f.Search != "" {
		exprs = append(exprs, dbx.Or(
			dbx.Like("customer_name", f.Search),
			dbx.Like("customer_email", f.Search),
		))
	}

	total, err := app.CountRecords(migrations.PaymentsCollection, exprs...)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}

	q := app.RecordQuery(migrations.PaymentsCollection).
		WithContext(ctx).
		OrderBy(f.OrderExpr("created"), f.OrderExpr("id"))
	for _, e := range exprs {
		q = q.AndWhere(e)
	}
	if !f.TakeAll {
		q = q.Limit(int64(f.Size)).Offset(int64((f.Page - 1) * f.Size))
	}

	var records []*core.Record
	if err := q.All(&records); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	items := make([]*models.Payment, 0, len(records))
	for _, r := range records {
		items = append(items, paymentFromRecord(r))
	}
	return &models.PagedPayments{Items: items, Metadata: models.NewMetadata(int(total), f)}, nil
}

func (s *PaymentStore) findRecord(ctx context.Context, id string) (*core.Record, error) {
	if id == "" {
		return nil, status.ErrPaymentNotFound
	}

	record, err := appFor(ctx, s.app).FindRecordById(migrations.PaymentsCollection, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("payment %s: %w", id, status.ErrPaymentNotFound)
		}
		return nil, err
	}
	return record, nil
}
