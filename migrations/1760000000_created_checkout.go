package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-platform/models"
)

const (
	EventsCollection   = "events"
	PaymentsCollection = "payments"
	TicketsCollection  = "tickets"
)

var (
	PaymentStatusValues = []string{"PENDING", "APPROVED", "READYFORPICKUP", "COMPLETED", "REFUNDED", "CANCELLED"}
	TicketStatusValues  = []string{"PENDING", "PAID", "TERMINATED"}
)

func init() {
	m.Register(func(app core.App) error {
		return CreateCheckoutCollections(app)
	}, func(app core.App) error {
		return DropCheckoutCollections(app)
	})
}

// CreateCheckoutCollections creates the events, payments and tickets collections.
func CreateCheckoutCollections(app core.App) error {
	events := core.NewBaseCollection(EventsCollection)
	events.Fields.Add(
		&core.TextField{Name: "name", Required: true, Max: 200},
		&core.DateField{Name: "start_at"},
		&core.DateField{Name: "end_at"},
		&core.NumberField{Name: "ticket_price", Min: types.Pointer(0.0)},
		&core.NumberField{Name: "ticket_quantity", Min: types.Pointer(0.0), OnlyInt: true},
		&core.NumberField{Name: "ticket_sold_quantity", Min: types.Pointer(0.0), OnlyInt: true},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	if err := app.Save(events); err != nil {
		return err
	}

	payments := core.NewBaseCollection(PaymentsCollection)
	payments.Fields.Add(
		&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true},
		&core.TextField{Name: "user_id", Max: models.MaxReferenceLength},
		&core.NumberField{Name: "quantity", Min: types.Pointer(1.0), OnlyInt: true, Required: true},
		&core.NumberField{Name: "unit_price", Min: types.Pointer(0.0)},
		&core.NumberField{Name: "total_price", Min: types.Pointer(0.0)},
		&core.NumberField{Name: "discount_percent", Min: types.Pointer(0.0), Max: types.Pointer(100.0), OnlyInt: true},
		&core.TextField{Name: "customer_name", Required: true, Max: models.MaxNameLength},
		&core.TextField{Name: "customer_email", Required: true, Max: models.MaxEmailLength},
		&core.TextField{Name: "customer_phone", Required: true, Max: models.MaxPhoneLength},
		&core.SelectField{Name: "status", Values: PaymentStatusValues, MaxSelect: 1, Required: true},
		&core.TextField{Name: "payment_method", Max: models.MaxReferenceLength},
		&core.TextField{Name: "payment_intent_id", Max: 255},
		&core.TextField{Name: "stripe_session_id", Max: 255},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	payments.AddIndex("idx_payments_event", false, "event", "")
	payments.AddIndex("idx_payments_user", false, "user_id", "")
	payments.AddIndex("idx_payments_session", false, "stripe_session_id", "")
	if err := app.Save(payments); err != nil {
		return err
	}

	tickets := core.NewBaseCollection(TicketsCollection)
	tickets.Fields.Add(
		&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true},
		&core.RelationField{Name: "payment", CollectionId: payments.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
		&core.NumberField{Name: "position", Min: types.Pointer(0.0), OnlyInt: true},
		&core.TextField{Name: "owner_name", Required: true, Max: models.MaxNameLength},
		&core.TextField{Name: "owner_email", Required: true, Max: models.MaxEmailLength},
		&core.TextField{Name: "owner_phone", Required: true, Max: models.MaxPhoneLength},
		&core.BoolField{Name: "is_paid"},
		&core.TextField{Name: "ticket_code", Max: 255},
		&core.SelectField{Name: "status", Values: TicketStatusValues, MaxSelect: 1, Required: true},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	tickets.AddIndex("idx_tickets_payment", false, "payment", "")
	tickets.AddIndex("idx_tickets_event", false, "event", "")

	return app.Save(tickets)
}

func DropCheckoutCollections(app core.App) error {
	for _, name := range []string{TicketsCollection, PaymentsCollection, EventsCollection} {
		collection, err := app.FindCollectionByNameOrId(name)
		if err != nil {
			return err
		}
		if err := app.Delete(collection); err != nil {
			return err
		}
	}
	return nil
}
