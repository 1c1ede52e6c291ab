package olap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

var expectedColumns = map[string][]string{
	TableFactInvoices: {
		"invoice_id", "customer_id", "customer_email", "amount_paid", "currency", "status",
		"created_at", "period_start", "period_end", "product_id", "product_name", "price_id",
		"plan_amount", "plan_interval", "subscription_id", "payment_method_type",
		"receipt_number", "livemode", "card_brand",
	},
	TableDimCustomers:      {"customer_id", "email", "name", "delinquent", "currency", "livemode", "created_at"},
	TableDimProducts:       {"product_id", "name", "description", "active", "created_at", "updated_at"},
	TableDimPrices:         {"price_id", "product_id", "currency", "unit_amount", "type", "billing_scheme", "recurring", "livemode", "created_at"},
	TableDimPaymentMethods: {"payment_method_id", "type", "customer_id", "livemode", "created_at", "card_brand"},
	TableDimSubscriptions: {
		"subscription_id", "customer_id", "price_id", "status", "currency", "start_date",
		"created_at", "cancel_at", "ended_at", "plan_interval", "livemode",
	},
	TableDimPaymentIntents: {"payment_intent_id", "customer_id", "invoice_id", "status", "amount", "currency", "created_at"},
	TableDimCharges:        {"charge_id", "payment_intent_id", "customer_id", "amount", "currency", "status", "paid", "created_at"},
}

func TestBuildAll_ColumnContract(t *testing.T) {
	batch, err := BuildAll(context.Background(), fixtureSnapshot(t))
	require.NoError(t, err)

	require.Len(t, batch.Tables, len(TableNames))
	for i, table := range batch.Tables {
		assert.Equal(t, TableNames[i], table.Name)
		assert.Empty(t, table.MissingColumns(expectedColumns[table.Name]), table.Name)
		assert.Equal(t, expectedColumns[table.Name], table.Columns, table.Name)
	}
	assert.Equal(t, 4, batch.SourceInvoices)
	assert.Equal(t, 2, batch.Fact.Output)
}

func TestBuildAll_DimensionsUniqueAndNonEmpty(t *testing.T) {
	batch, err := BuildAll(context.Background(), fixtureSnapshot(t))
	require.NoError(t, err)

	for _, name := range TableNames[1:] {
		table, ok := batch.Table(name)
		require.True(t, ok, name)

		id, ok := IdentifierColumn(name)
		require.True(t, ok, name)
		assert.Zero(t, table.DuplicateCount(id), name)
		assert.NotZero(t, table.Len(), name)
	}
}

func TestBuildAll_Idempotent(t *testing.T) {
	snap := fixtureSnapshot(t)

	first, err := BuildAll(context.Background(), snap)
	require.NoError(t, err)
	second, err := BuildAll(context.Background(), snap)
	require.NoError(t, err)

	for i := range first.Tables {
		assert.True(t, first.Tables[i].Equal(second.Tables[i]), first.Tables[i].Name)
	}
}

func TestBuildAll_MissingInvoicesFails(t *testing.T) {
	snap := withEntities(t, fixtureSnapshot(t), map[string][]snapshot.Value{snapshot.EntityInvoices: nil})
	_, err := BuildAll(context.Background(), snap)
	assert.ErrorIs(t, err, snapshot.ErrMissingEntity)
}

func TestBuildDimPaymentIntents_Degrades(t *testing.T) {
	tests := []struct {
		name  string
		lists map[string][]snapshot.Value
	}{
		{name: "empty list", lists: map[string][]snapshot.Value{snapshot.EntityPaymentIntents: {}}},
		{name: "missing list", lists: map[string][]snapshot.Value{snapshot.EntityPaymentIntents: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := withEntities(t, fixtureSnapshot(t), tt.lists)
			table := TableOf(TableDimPaymentIntents, DimPaymentIntentColumns, BuildDimPaymentIntents(snap))
			assert.Zero(t, table.Len())
			assert.Equal(t,
				[]string{"payment_intent_id", "customer_id", "invoice_id", "status", "amount", "currency", "created_at"},
				table.Columns)
		})
	}
}

func TestBuildDimCharges_MissingList(t *testing.T) {
	snap := withEntities(t, fixtureSnapshot(t), map[string][]snapshot.Value{snapshot.EntityCharges: nil})
	table := TableOf(TableDimCharges, DimChargeColumns, BuildDimCharges(snap))
	assert.Zero(t, table.Len())
	assert.Equal(t, expectedColumns[TableDimCharges], table.Columns)
}

func TestBuildDimSubscriptions_PriceFromFirstItem(t *testing.T) {
	rows, err := BuildDimSubscriptions(fixtureSnapshot(t))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "price_1", rows[0].PriceID.StringVal)
	// sub_2 has no items.
	assert.False(t, rows[1].PriceID.Valid)
	assert.True(t, rows[1].CancelAt.Valid)
	assert.False(t, rows[0].CancelAt.Valid)
}

func TestBuildDimPaymentMethods_CardBrand(t *testing.T) {
	base := fixtureSnapshot(t)
	methods, _ := base.Entities(snapshot.EntityPaymentMethods)
	methods = append(methods, snapshot.Map(map[string]snapshot.Value{
		"id":   snapshot.String("pm_2"),
		"type": snapshot.String("sepa_debit"),
	}))
	snap := withEntities(t, base, map[string][]snapshot.Value{snapshot.EntityPaymentMethods: methods})

	rows, err := BuildDimPaymentMethods(snap)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "visa", rows[0].CardBrand.StringVal)
	assert.False(t, rows[1].CardBrand.Valid)
}

func TestBuildDimCustomers_KeepsFirstDuplicate(t *testing.T) {
	base := fixtureSnapshot(t)
	customers, _ := base.Entities(snapshot.EntityCustomers)
	dup := snapshot.Map(map[string]snapshot.Value{
		"id":    snapshot.String("cus_1"),
		"email": snapshot.String("other@example.com"),
	})
	snap := withEntities(t, base, map[string][]snapshot.Value{
		snapshot.EntityCustomers: append(append([]snapshot.Value{}, customers...), dup),
	})

	rows, err := BuildDimCustomers(snap)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ana@example.com", rows[0].Email.StringVal)
}
