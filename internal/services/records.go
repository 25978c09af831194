package services

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-platform/models"
)

func eventFromRecord(r *core.Record) *models.Event {
	return &models.Event{
		ID:                 r.Id,
		Name:               r.GetString("name"),
		TicketPrice:        decimal.NewFromFloat(r.GetFloat("ticket_price")),
		TicketQuantity:     r.GetInt("ticket_quantity"),
		TicketSoldQuantity: r.GetInt("ticket_sold_quantity"),
		CreatedAt:          r.GetDateTime("created").Time(),
		UpdatedAt:          r.GetDateTime("updated").Time(),
	}
}

func paymentFromRecord(r *core.Record) *models.Payment {
	return &models.Payment{
		ID:              r.Id,
		EventID:         r.GetString("event"),
		UserID:          r.GetString("user_id"),
		Quantity:        r.GetInt("quantity"),
		UnitPrice:       decimal.NewFromFloat(r.GetFloat("unit_price")),
		TotalPrice:      decimal.NewFromFloat(r.GetFloat("total_price")),
		DiscountPercent: r.GetInt("discount_percent"),
		CustomerName:    r.GetString("customer_name"),
		CustomerEmail:   r.GetString("customer_email"),
		CustomerPhone:   r.GetString("customer_phone"),
		Status:          models.PaymentStatus(r.GetString("status")),
		PaymentMethod:   r.GetString("payment_method"),
		PaymentIntentID: r.GetString("payment_intent_id"),
		SessionID:       r.GetString("stripe_session_id"),
		CreatedAt:       r.GetDateTime("created").Time(),
		UpdatedAt:       r.GetDateTime("updated").Time(),
	}
}

func ticketFromRecord(r *core.Record, price decimal.Decimal) *models.Ticket {
	return &models.Ticket{
		ID:         r.Id,
		EventID:    r.GetString("event"),
		PaymentID:  r.GetString("payment"),
		Position:   r.GetInt("position"),
		OwnerName:  r.GetString("owner_name"),
		OwnerEmail: r.GetString("owner_email"),
		OwnerPhone: r.GetString("owner_phone"),
		IsPaid:     r.GetBool("is_paid"),
		TicketCode: r.GetString("ticket_code"),
		Status:     models.TicketStatus(r.GetString("status")),
		Price:      price,
		CreatedAt:  r.GetDateTime("created").Time(),
		UpdatedAt:  r.GetDateTime("updated").Time(),
	}
}
