package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the inventory slice of an event the checkout flow reads and updates.
type Event struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	TicketPrice        decimal.Decimal `json:"ticket_price"`
	TicketQuantity     int             `json:"ticket_quantity"`
	TicketSoldQuantity int             `json:"ticket_sold_quantity"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Remaining returns how many tickets can still be sold. Zero capacity means unlimited.
func (e Event) Remaining() int {
	if e.TicketQuantity <= 0 {
		return -1
	}
	if left := e.TicketQuantity - e.TicketSoldQuantity; left > 0 {
		return left
	}
	return 0
}

// HasCapacity reports whether n more tickets fit.
func (e Event) HasCapacity(n int) bool {
	left := e.Remaining()
	return left < 0 || n <= left
}
