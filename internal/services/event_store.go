package services

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-platform/internal/status"
	"ticket-platform/migrations"
	"ticket-platform/models"
)

// EventStore reads event inventory and keeps its sold counter.
type EventStore struct {
	app core.App
}

func NewEventStore(app core.App) *EventStore {
	return &EventStore{app: app}
}

func (s *EventStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if id == "" {
		return nil, status.ErrEventNotFound
	}

	record, err := appFor(ctx, s.app).FindRecordById(migrations.EventsCollection, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("event %s: %w", id, status.ErrEventNotFound)
		}
		return nil, err
	}
	return eventFromRecord(record), nil
}

// IncrementSoldQuantity adds n to the sold counter in a single statement so
// concurrent approvals for the same event never lose an update.
func (s *EventStore) IncrementSoldQuantity(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}

	res, err := appFor(ctx, s.app).DB().
		NewQuery("UPDATE {{events}} SET [[ticket_sold_quantity]] = [[ticket_sold_quantity]] + {:n} WHERE [[id]] = {:id}").
		WithContext(ctx).
		Bind(dbx.Params{"n": n, "id": id}).
		Execute()
	if err != nil {
		return fmt.Errorf("increment sold quantity of event %s: %w", id, err)
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("event %s: %w", id, status.ErrEventNotFound)
	}
	return nil
}
