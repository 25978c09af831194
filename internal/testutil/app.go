package testutil

import (
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ticket-platform/migrations"
)

// NewApp boots a throwaway PocketBase app with the checkout collections.
func NewApp(t testing.TB) core.App {
	t.Helper()

	app := core.NewBaseApp(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, app.Bootstrap())
	t.Cleanup(func() {
		_ = app.ResetBootstrapState()
	})

	require.NoError(t, migrations.CreateCheckoutCollections(app))
	return app
}

// CreateEvent inserts an event with the given price and capacity.
func CreateEvent(t testing.TB, app core.App, name string, price decimal.Decimal, quantity int) string {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId(migrations.EventsCollection)
	require.NoError(t, err)

	record := core.NewRecord(collection)
	record.Set("name", name)
	record.Set("ticket_price", price.InexactFloat64())
	record.Set("ticket_quantity", quantity)
	record.Set("ticket_sold_quantity", 0)
	require.NoError(t, app.Save(record))

	return record.Id
}

// SoldQuantity reads the sold counter of an event straight from the store.
func SoldQuantity(t testing.TB, app core.App, eventID string) int {
	t.Helper()

	record, err := app.FindRecordById(migrations.EventsCollection, eventID)
	require.NoError(t, err)
	return record.GetInt("ticket_sold_quantity")
}
