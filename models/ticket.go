package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Column limits for contact fields, in characters.
const (
	MaxNameLength      = 200
	MaxEmailLength     = 200
	MaxPhoneLength     = 50
	MaxReferenceLength = 100
)

type TicketStatus string

const (
	TicketPending    TicketStatus = "PENDING"
	TicketPaid       TicketStatus = "PAID"
	TicketTerminated TicketStatus = "TERMINATED"
)

type Ticket struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	PaymentID  string          `json:"payment_id"`
	Position   int             `json:"position"`
	OwnerName  string          `json:"owner_name"`
	OwnerEmail string          `json:"owner_email"`
	OwnerPhone string          `json:"owner_phone"`
	IsPaid     bool            `json:"is_paid"`
	TicketCode string          `json:"ticket_code,omitempty"`
	Status     TicketStatus    `json:"status"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TicketSpec is one line of a cart: who the ticket is for.
type TicketSpec struct {
	EventID    string `json:"event_id"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
	OwnerPhone string `json:"owner_phone"`
}

func (s TicketSpec) Valid() bool {
	return validContact(s.OwnerName, s.OwnerEmail, s.OwnerPhone) &&
		utf8.RuneCountInString(s.EventID) <= MaxReferenceLength
}

// Label is the line item name shown on the hosted checkout page.
func (s TicketSpec) Label() string {
	return s.OwnerName + " - " + s.OwnerEmail + " - " + s.OwnerPhone
}

// OwnerUpdate carries new contact fields for an existing ticket.
type OwnerUpdate struct {
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
	OwnerPhone string `json:"owner_phone"`
}

func (u OwnerUpdate) Valid() bool {
	return TicketSpec{OwnerName: u.OwnerName, OwnerEmail: u.OwnerEmail, OwnerPhone: u.OwnerPhone}.Valid()
}

func validContact(name, email, phone string) bool {
	return fits(name, MaxNameLength) && fits(email, MaxEmailLength) && fits(phone, MaxPhoneLength)
}

// fits reports whether the trimmed value is non-empty and at most limit characters.
func fits(v string, limit int) bool {
	v = strings.TrimSpace(v)
	return v != "" && utf8.RuneCountInString(v) <= limit
}
