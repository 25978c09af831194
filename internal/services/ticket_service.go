package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-platform/internal/status"
	"ticket-platform/migrations"
	"ticket-platform/models"
	"ticket-platform/monitoring"
	"ticket-platform/utils"
)

// TicketService is the ticket ledger. Every ticket belongs to one payment.
type TicketService struct {
	app      core.App
	payments *PaymentStore
	events   *EventStore
	monitor  *monitoring.Monitor
}

func NewTicketService(app core.App, payments *PaymentStore, events *EventStore, monitor *monitoring.Monitor) *TicketService {
	return &TicketService{
		app:      app,
		payments: payments,
		events:   events,
		monitor:  monitor,
	}
}

// CreateTickets stages one PENDING ticket per spec under the payment.
// Inventory is not touched until the payment is approved.
func (s *TicketService) CreateTickets(ctx context.Context, paymentID string, specs []models.TicketSpec) ([]*models.Ticket, error) {
	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	specs, err = s.resolveSpecs(ctx, payment, specs)
	if err != nil {
		return nil, err
	}

	amounts := s.payments.LineAmounts(payment)
	tickets := make([]*models.Ticket, 0, len(specs))

	err = withTx(ctx, s.app, func(ctx context.Context) error {
		app := appFor(ctx, s.app)

		collection, err := app.FindCachedCollectionByNameOrId(migrations.TicketsCollection)
		if err != nil {
			return err
		}

		for i, spec := range specs {
			record := core.NewRecord(collection)
			record.Set("event", spec.EventID)
			record.Set("payment", paymentID)
			record.Set("position", i+1)
			record.Set("owner_name", strings.TrimSpace(spec.OwnerName))
			record.Set("owner_email", strings.TrimSpace(spec.OwnerEmail))
			record.Set("owner_phone", strings.TrimSpace(spec.OwnerPhone))
			record.Set("is_paid", false)
			record.Set("status", string(models.TicketPending))

			if err := app.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("create ticket %d of payment %s: %w", i+1, paymentID, err)
			}
			tickets = append(tickets, ticketFromRecord(record, positionPrice(amounts, record)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tickets, nil
}

// resolveSpecs checks every spec and fills in the payment's event where the
// spec leaves it empty.
func (s *TicketService) resolveSpecs(ctx context.Context, payment *models.Payment, specs []models.TicketSpec) ([]models.TicketSpec, error) {
	out := make([]models.TicketSpec, len(specs))
	for i, spec := range specs {
		if !spec.Valid() {
			return nil, fmt.Errorf("ticket %d: %w", i+1, status.ErrInvalidTicketSpec)
		}
		if spec.EventID == "" {
			spec.EventID = payment.EventID
		}
		if _, err := s.events.GetEvent(ctx, spec.EventID); err != nil {
			if errors.Is(err, status.ErrEventNotFound) {
				return nil, fmt.Errorf("ticket %d event %s: %w", i+1, spec.EventID, status.ErrInvalidReference)
			}
			return nil, err
		}
		if spec.EventID != payment.EventID {
			return nil, fmt.Errorf("ticket %d event %s: %w", i+1, spec.EventID, status.ErrEventMismatch)
		}
		out[i] = spec
	}
	return out, nil
}

// ValidateTickets finalizes the tickets of a payment. When approved, every
// PENDING ticket becomes PAID with its code and the event's sold counter
// grows by the number of tickets just paid. Tickets already PAID or
// TERMINATED are left alone, so a retry changes nothing. When not approved,
// all tickets of the payment are deleted.
func (s *TicketService) ValidateTickets(ctx context.Context, paymentID string, approved bool) ([]*models.Ticket, error) {
	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !approved {
		err := withTx(ctx, s.app, func(ctx context.Context) error {
			_, err := appFor(ctx, s.app).DB().
				Delete(migrations.TicketsCollection, dbx.HashExp{"payment": paymentID}).
				WithContext(ctx).
				Execute()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("delete tickets of payment %s: %w", paymentID, err)
		}
		return nil, nil
	}

	var tickets []*models.Ticket
	err = withTx(ctx, s.app, func(ctx context.Context) error {
		app := appFor(ctx, s.app)

		records, err := s.findRecordsByPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		paid := map[string]int{}
		for _, record := range records {
			if models.TicketStatus(record.GetString("status")) != models.TicketPending {
				continue
			}

			record.Set("status", string(models.TicketPaid))
			record.Set("is_paid", true)
			record.Set("ticket_code", utils.HashTicketCode(
				record.GetString("owner_name"),
				record.GetString("owner_email"),
				record.GetString("owner_phone"),
			))
			if err := app.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("mark ticket %s paid: %w", record.Id, err)
			}
			paid[record.GetString("event")]++
		}

		for eventID, n := range paid {
			if err := s.events.IncrementSoldQuantity(ctx, eventID, n); err != nil {
				return err
			}
			eventID, n := eventID, n
			afterCommit(ctx, func() {
				s.monitor.TrackTicketsSold(eventID, n)
				slog.Info("tickets paid", "payment_id", paymentID, "event_id", eventID, "count", n)
			})
		}

		tickets = make([]*models.Ticket, 0, len(records))
		amounts := s.payments.LineAmounts(payment)
		for _, record := range records {
			tickets = append(tickets, ticketFromRecord(record, positionPrice(amounts, record)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tickets, nil
}

// TerminateTicket marks a ticket TERMINATED whatever its current status.
func (s *TicketService) TerminateTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := s.findRecord(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	record.Set("status", string(models.TicketTerminated))
	if err := appFor(ctx, s.app).SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("terminate ticket %s: %w", ticketID, err)
	}

	slog.Info("ticket terminated", "ticket_id", ticketID, "payment_id", record.GetString("payment"))
	return s.toTicket(ctx, record), nil
}

// UpdateTicketInfo rewrites the owner contact fields. An existing ticket code
// is kept as issued.
func (s *TicketService) UpdateTicketInfo(ctx context.Context, ticketID string, update models.OwnerUpdate) (*models.Ticket, error) {
	if !update.Valid() {
		return nil, status.ErrInvalidTicketSpec
	}

	record, err := s.findRecord(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	record.Set("owner_name", strings.TrimSpace(update.OwnerName))
	record.Set("owner_email", strings.TrimSpace(update.OwnerEmail))
	record.Set("owner_phone", strings.TrimSpace(update.OwnerPhone))
	if err := appFor(ctx, s.app).SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	return s.toTicket(ctx, record), nil
}

func (s *TicketService) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := s.findRecord(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.toTicket(ctx, record), nil
}

// GetTicketsByPaymentID returns the tickets of a payment ordered by position.
func (s *TicketService) GetTicketsByPaymentID(ctx context.Context, paymentID string) ([]*models.Ticket, error) {
	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	records, err := s.findRecordsByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	amounts := s.payments.LineAmounts(payment)
	tickets := make([]*models.Ticket, 0, len(records))
	for _, record := range records {
		tickets = append(tickets, ticketFromRecord(record, positionPrice(amounts, record)))
	}
	return tickets, nil
}

func (s *TicketService) CountTickets(ctx context.Context, paymentID string) (int, error) {
	n, err := appFor(ctx, s.app).CountRecords(migrations.TicketsCollection, dbx.HashExp{"payment": paymentID})
	if err != nil {
		return 0, fmt.Errorf("count tickets of payment %s: %w", paymentID, err)
	}
	return int(n), nil
}

func (s *TicketService) findRecordsByPayment(ctx context.Context, paymentID string) ([]*core.Record, error) {
	var records []*core.Record
	err := appFor(ctx, s.app).RecordQuery(migrations.TicketsCollection).
		WithContext(ctx).
		AndWhere(dbx.HashExp{"payment": paymentID}).
		OrderBy("[[position]] ASC", "[[id]] ASC").
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("find tickets of payment %s: %w", paymentID, err)
	}
	return records, nil
}

func (s *TicketService) findRecord(ctx context.Context, ticketID string) (*core.Record, error) {
	if ticketID == "" {
		return nil, status.ErrTicketNotFound
	}

	record, err := appFor(ctx, s.app).FindRecordById(migrations.TicketsCollection, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, status.ErrTicketNotFound)
		}
		return nil, err
	}
	return record, nil
}

func (s *TicketService) toTicket(ctx context.Context, record *core.Record) *models.Ticket {
	var amounts []decimal.Decimal
	if payment, err := s.payments.GetPaymentByID(ctx, record.GetString("payment")); err == nil {
		amounts = s.payments.LineAmounts(payment)
	}
	return ticketFromRecord(record, positionPrice(amounts, record))
}

// positionPrice is the amount charged for the ticket at its cart position.
func positionPrice(amounts []decimal.Decimal, record *core.Record) decimal.Decimal {
	i := record.GetInt("position") - 1
	if i < 0 || i >= len(amounts) {
		return decimal.Zero
	}
	return amounts[i]
}
