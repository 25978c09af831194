package models

import (
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "PENDING"
	PaymentApproved       PaymentStatus = "APPROVED"
	PaymentReadyForPickup PaymentStatus = "READYFORPICKUP"
	PaymentCompleted      PaymentStatus = "COMPLETED"
	PaymentRefunded       PaymentStatus = "REFUNDED"
	PaymentCancelled      PaymentStatus = "CANCELLED"
)

var PaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentApproved,
	PaymentReadyForPickup,
	PaymentCompleted,
	PaymentRefunded,
	PaymentCancelled,
}

// IsTerminal reports whether the checkout workflow may no longer move the payment.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentPending
}

type Payment struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	UserID          string          `json:"user_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DiscountPercent int             `json:"discount_percent"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	Status          PaymentStatus   `json:"status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	SessionID       string          `json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsFree reports whether the payment needs no gateway settlement.
func (p Payment) IsFree() bool {
	return p.TotalPrice.IsZero()
}

// Cart is the checkout submission.
type Cart struct {
	EventID         string `json:"event_id"`
	UserID          string `json:"user_id"`
	Quantity        int    `json:"quantity"`
	DiscountPercent int    `json:"discount_percent"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	PaymentMethod   string `json:"payment_method"`
}

// ValidCustomer reports whether the contact fields are present and every
// free-text field fits its column.
func (c Cart) ValidCustomer() bool {
	return validContact(c.CustomerName, c.CustomerEmail, c.CustomerPhone) &&
		utf8.RuneCountInString(c.UserID) <= MaxReferenceLength &&
		utf8.RuneCountInString(c.PaymentMethod) <= MaxReferenceLength
}

var hundred = decimal.NewFromInt(100)

// CalculateTotal applies the percentage discount to the sum of the ticket
// prices and rounds to the currency's smallest unit.
func CalculateTotal(prices []decimal.Decimal, discountPercent, minorUnits int) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Mul(hundred.Sub(decimal.NewFromInt(int64(discountPercent)))).Div(hundred).Round(int32(minorUnits))
}

// SplitTotal divides total into n amounts in the currency's smallest unit.
// All shares are equal except the last, which takes the remainder, so the
// shares always add up to total.
func SplitTotal(total decimal.Decimal, n, minorUnits int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}

	share := total.Div(decimal.NewFromInt(int64(n))).RoundDown(int32(minorUnits))
	out := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		out[i] = share
	}
	out[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return out
}

// PaymentMethodSummary describes the card used for a settled payment.
type PaymentMethodSummary struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// ValidationResult is the outcome of validating one payment.
type ValidationResult struct {
	Payment       *Payment              `json:"payment"`
	Tickets       []*Ticket             `json:"tickets"`
	PaymentMethod *PaymentMethodSummary `json:"payment_method,omitempty"`
	IsSuccess     bool                  `json:"is_success"`
}

// SessionResult is returned after a hosted checkout session was opened.
type SessionResult struct {
	PaymentID  string    `json:"payment_id"`
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
	Tickets    []*Ticket `json:"tickets"`
}

// EmailTicketMessage is published once a payment is approved.
type EmailTicketMessage struct {
	PaymentID     string          `json:"payment_id"`
	EventID       string          `json:"event_id"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Discount      int             `json:"discount"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Tickets       []*Ticket       `json:"tickets"`
}

func NewEmailTicketMessage(p *Payment, tickets []*Ticket) EmailTicketMessage {
	return EmailTicketMessage{
		PaymentID:     p.ID,
		EventID:       p.EventID,
		Quantity:      p.Quantity,
		TotalPrice:    p.TotalPrice,
		Discount:      p.DiscountPercent,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		Tickets:       tickets,
	}
}

func (m EmailTicketMessage) MessageKey() string {
	return m.PaymentID
}
