package olap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// fixtureExport has four invoices: two resolve fully (in_2 has no default
// payment method), in_3 has no line items and in_4 points at an unknown
// customer.
const fixtureExport = `{
	"invoices": [
		{
			"id": "in_1", "customer_id": "cus_1", "amount_paid": 1200, "currency": "eur",
			"status": "paid", "created": 1714557600, "period_start": 1714557600, "period_end": 1717236000,
			"default_payment_method_id": "pm_1", "receipt_number": "2072-1714", "livemode": false,
			"lines": {"data": [{
				"parent": {"subscription_item_details": {"subscription": "sub_1"}},
				"pricing": {"price_details": {"price": "price_1", "product": "prod_1"}}
			}]}
		},
		{
			"id": "in_2", "customer_id": "cus_2", "amount_paid": 500, "currency": "eur",
			"status": "paid", "created": 1714644000, "period_start": 1714644000, "period_end": 1717322400,
			"default_payment_method_id": null, "receipt_number": null, "livemode": false,
			"lines": {"data": [{
				"parent": {"subscription_item_details": {"subscription": "sub_2"}},
				"pricing": {"price_details": {"price": "price_2", "product": "prod_2"}}
			}]}
		},
		{
			"id": "in_3", "customer_id": "cus_1", "amount_paid": 0, "currency": "eur",
			"status": "draft", "created": 1714730400, "livemode": false,
			"lines": {"data": []}
		},
		{
			"id": "in_4", "customer_id": "cus_missing", "amount_paid": 900, "currency": "eur",
			"status": "paid", "created": 1714816800, "livemode": false,
			"lines": {"data": [{
				"parent": {"subscription_item_details": {"subscription": "sub_1"}},
				"pricing": {"price_details": {"price": "price_1", "product": "prod_1"}}
			}]}
		}
	],
	"customers": [
		{"id": "cus_1", "email": "ana@example.com", "name": "Ana", "delinquent": false, "currency": "eur", "livemode": false, "created": 1714000000},
		{"id": "cus_2", "email": "bo@example.com", "name": "Bo", "delinquent": true, "currency": "eur", "livemode": false, "created": 1714000100}
	],
	"subscriptions": [
		{
			"id": "sub_1", "customer_id": "cus_1", "price_id": "price_1", "status": "active", "currency": "eur",
			"start_date": 1714000000, "created": 1714000000, "cancel_at": null, "ended_at": null,
			"plan_interval": "month", "livemode": false,
			"items": {"data": [{"price": {"id": "price_1"}}]}
		},
		{
			"id": "sub_2", "customer_id": "cus_2", "price_id": "price_2", "status": "canceled", "currency": "eur",
			"start_date": 1714000100, "created": 1714000100, "cancel_at": 1720000000, "ended_at": 1720000000,
			"plan_interval": "year", "livemode": false,
			"items": {"data": []}
		}
	],
	"products": [
		{"id": "prod_1", "name": "Pro", "description": "Pro plan", "active": true, "created": 1713000000, "updated": 1713500000},
		{"id": "prod_2", "name": "Team", "description": null, "active": true, "created": 1713000100, "updated": 1713500100}
	],
	"prices": [
		{
			"id": "price_1", "product_id": "prod_1", "currency": "eur", "unit_amount": 1200, "type": "recurring",
			"billing_scheme": "per_unit", "livemode": false, "created": 1713000000,
			"recurring": {"interval": "month", "interval_count": 1, "usage_type": "licensed"}
		},
		{
			"id": "price_2", "product_id": "prod_2", "currency": "eur", "unit_amount": 5000, "type": "one_time",
			"billing_scheme": "per_unit", "livemode": false, "created": 1713000100, "recurring": null
		}
	],
	"payment_methods": [
		{"id": "pm_1", "type": "card", "customer_id": "cus_1", "livemode": false, "created": 1714000000, "card": {"brand": "visa", "last4": "4242"}}
	],
	"payment_intents": [
		{"id": "pi_1", "customer_id": "cus_1", "invoice": "in_1", "status": "succeeded", "amount": 1200, "currency": "eur", "created": 1714557600}
	],
	"charges": [
		{"id": "ch_1", "payment_intent": "pi_1", "customer_id": "cus_1", "amount": 1200, "currency": "eur", "status": "succeeded", "paid": true, "created": 1714557600}
	]
}`

func fixtureSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.Parse([]byte(fixtureExport))
	require.NoError(t, err)
	return snap
}

// withEntities returns a copy of base with the given entity lists replaced.
// A nil list removes the entity.
func withEntities(t *testing.T, base *snapshot.Snapshot, lists map[string][]snapshot.Value) *snapshot.Snapshot {
	t.Helper()
	entities := make(map[string][]snapshot.Value)
	for _, name := range base.Names() {
		records, _ := base.Entities(name)
		entities[name] = records
	}
	for name, records := range lists {
		if records == nil {
			delete(entities, name)
			continue
		}
		entities[name] = records
	}
	return snapshot.New(entities)
}
