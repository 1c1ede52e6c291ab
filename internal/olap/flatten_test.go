package olap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

func pricesTable(t *testing.T) *Table {
	t.Helper()
	rows, err := BuildDimPrices(fixtureSnapshot(t))
	require.NoError(t, err)
	return TableOf(TableDimPrices, DimPriceColumns, rows)
}

func TestApplyFlattenIfNeeded_Prices(t *testing.T) {
	out := ApplyFlattenIfNeeded(pricesTable(t), TableDimPrices)

	assert.Equal(t, []string{
		"price_id", "product_id", "currency", "unit_amount", "type", "billing_scheme",
		"livemode", "created_at", "recurring_interval", "recurring_count", "recurring_usage_type",
	}, out.Columns)
	assert.Equal(t, -1, out.ColumnIndex("recurring"))

	assert.True(t, snapshot.String("month").Equal(out.Value(0, "recurring_interval")))
	assert.True(t, snapshot.Int(1).Equal(out.Value(0, "recurring_count")))
	assert.True(t, snapshot.String("licensed").Equal(out.Value(0, "recurring_usage_type")))

	// price_2 is one-time.
	assert.True(t, out.Value(1, "recurring_interval").IsNull())
	assert.True(t, out.Value(1, "recurring_count").IsNull())
}

func TestApplyFlattenIfNeeded_FromStagedFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, pricesTable(t)))

	staged, err := ReadCSV(TableDimPrices, &buf)
	require.NoError(t, err)
	assert.Equal(t, snapshot.KindString, staged.Value(0, "recurring").Kind())

	out := ApplyFlattenIfNeeded(staged, TableDimPrices)
	assert.True(t, snapshot.String("month").Equal(out.Value(0, "recurring_interval")))
	assert.True(t, snapshot.Int(1).Equal(out.Value(0, "recurring_count")))
}

func TestApplyFlattenIfNeeded_Unregistered(t *testing.T) {
	table := NewTable(TableDimCustomers, DimCustomerColumns)
	assert.Same(t, table, ApplyFlattenIfNeeded(table, TableDimCustomers))
}

func TestApplyFlattenIfNeeded_AlreadyFlat(t *testing.T) {
	once := ApplyFlattenIfNeeded(pricesTable(t), TableDimPrices)
	twice := ApplyFlattenIfNeeded(once, TableDimPrices)
	assert.True(t, once.Equal(twice))
}
