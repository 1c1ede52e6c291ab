package olap

import (
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

var subscriptionPricePath = snapshot.P(
	snapshot.Key("items"), snapshot.Key("data"), snapshot.At(0), snapshot.Key("price"), snapshot.Key("id"),
)

// field reads a top-level field of a record, null when absent.
func field(rec snapshot.Value, name string) snapshot.Value {
	return snapshot.Extract(rec, snapshot.P(snapshot.Key(name)), snapshot.Null())
}

// uniqueBy keeps the first row for each identifier. Rows with a null
// identifier are kept as they are.
func uniqueBy[R any](rows []R, id func(R) bigquery.NullString) []R {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		key := id(r)
		if key.Valid {
			if _, dup := seen[key.StringVal]; dup {
				continue
			}
			seen[key.StringVal] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// BuildDimCustomers projects the customer list. The list is required.
func BuildDimCustomers(s *snapshot.Snapshot) ([]DimCustomerRow, error) {
	records, err := s.Require(snapshot.EntityCustomers)
	if err != nil {
		return nil, fmt.Errorf("BuildDimCustomers: %w", err)
	}
	rows := make([]DimCustomerRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimCustomerRow{
			CustomerID: toNullString(field(rec, "id")),
			Email:      toNullString(field(rec, "email")),
			Name:       toNullString(field(rec, "name")),
			Delinquent: toNullBool(field(rec, "delinquent")),
			Currency:   toNullString(field(rec, "currency")),
			Livemode:   toNullBool(field(rec, "livemode")),
			CreatedAt:  toNullTimestamp(field(rec, "created")),
		})
	}
	return uniqueBy(rows, func(r DimCustomerRow) bigquery.NullString { return r.CustomerID }), nil
}

// BuildDimProducts projects the product list. The list is required.
func BuildDimProducts(s *snapshot.Snapshot) ([]DimProductRow, error) {
	records, err := s.Require(snapshot.EntityProducts)
	if err != nil {
		return nil, fmt.Errorf("BuildDimProducts: %w", err)
	}
	rows := make([]DimProductRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimProductRow{
			ProductID:   toNullString(field(rec, "id")),
			Name:        toNullString(field(rec, "name")),
			Description: toNullString(field(rec, "description")),
			Active:      toNullBool(field(rec, "active")),
			CreatedAt:   toNullTimestamp(field(rec, "created")),
			UpdatedAt:   toNullTimestamp(field(rec, "updated")),
		})
	}
	return uniqueBy(rows, func(r DimProductRow) bigquery.NullString { return r.ProductID }), nil
}

// BuildDimPrices projects the price list, keeping recurring as JSON.
func BuildDimPrices(s *snapshot.Snapshot) ([]DimPriceRow, error) {
	records, err := s.Require(snapshot.EntityPrices)
	if err != nil {
		return nil, fmt.Errorf("BuildDimPrices: %w", err)
	}
	rows := make([]DimPriceRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimPriceRow{
			PriceID:       toNullString(field(rec, "id")),
			ProductID:     toNullString(field(rec, "product_id")),
			Currency:      toNullString(field(rec, "currency")),
			UnitAmount:    toNullInt64(field(rec, "unit_amount")),
			Type:          toNullString(field(rec, "type")),
			BillingScheme: toNullString(field(rec, "billing_scheme")),
			Recurring:     toNullJSON(field(rec, "recurring")),
			Livemode:      toNullBool(field(rec, "livemode")),
			CreatedAt:     toNullTimestamp(field(rec, "created")),
		})
	}
	return uniqueBy(rows, func(r DimPriceRow) bigquery.NullString { return r.PriceID }), nil
}

// BuildDimPaymentMethods projects the payment method list and lifts the card
// brand out of the nested card.
func BuildDimPaymentMethods(s *snapshot.Snapshot) ([]DimPaymentMethodRow, error) {
	records, err := s.Require(snapshot.EntityPaymentMethods)
	if err != nil {
		return nil, fmt.Errorf("BuildDimPaymentMethods: %w", err)
	}
	rows := make([]DimPaymentMethodRow, 0, len(records))
	for _, rec := range records {
		card := field(rec, "card")
		rows = append(rows, DimPaymentMethodRow{
			PaymentMethodID: toNullString(field(rec, "id")),
			Type:            toNullString(field(rec, "type")),
			CustomerID:      toNullString(field(rec, "customer_id")),
			Livemode:        toNullBool(field(rec, "livemode")),
			CreatedAt:       toNullTimestamp(field(rec, "created")),
			CardBrand:       toNullString(snapshot.Extract(card, cardBrandPath, snapshot.Null())),
		})
	}
	return uniqueBy(rows, func(r DimPaymentMethodRow) bigquery.NullString { return r.PaymentMethodID }), nil
}

// BuildDimSubscriptions projects the subscription list. price_id comes from
// the first subscription item.
func BuildDimSubscriptions(s *snapshot.Snapshot) ([]DimSubscriptionRow, error) {
	records, err := s.Require(snapshot.EntitySubscriptions)
	if err != nil {
		return nil, fmt.Errorf("BuildDimSubscriptions: %w", err)
	}
	rows := make([]DimSubscriptionRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimSubscriptionRow{
			SubscriptionID: toNullString(field(rec, "id")),
			CustomerID:     toNullString(field(rec, "customer_id")),
			PriceID:        toNullString(snapshot.Extract(rec, subscriptionPricePath, snapshot.Null())),
			Status:         toNullString(field(rec, "status")),
			Currency:       toNullString(field(rec, "currency")),
			StartDate:      toNullTimestamp(field(rec, "start_date")),
			CreatedAt:      toNullTimestamp(field(rec, "created")),
			CancelAt:       toNullTimestamp(field(rec, "cancel_at")),
			EndedAt:        toNullTimestamp(field(rec, "ended_at")),
			PlanInterval:   toNullString(field(rec, "plan_interval")),
			Livemode:       toNullBool(field(rec, "livemode")),
		})
	}
	return uniqueBy(rows, func(r DimSubscriptionRow) bigquery.NullString { return r.SubscriptionID }), nil
}

// BuildDimPaymentIntents projects the payment intent list. A missing or empty
// list yields no rows.
func BuildDimPaymentIntents(s *snapshot.Snapshot) []DimPaymentIntentRow {
	records, _ := s.Entities(snapshot.EntityPaymentIntents)
	rows := make([]DimPaymentIntentRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimPaymentIntentRow{
			PaymentIntentID: toNullString(field(rec, "id")),
			CustomerID:      toNullString(field(rec, "customer_id")),
			InvoiceID:       toNullString(field(rec, "invoice")),
			Status:          toNullString(field(rec, "status")),
			Amount:          toNullInt64(field(rec, "amount")),
			Currency:        toNullString(field(rec, "currency")),
			CreatedAt:       toNullTimestamp(field(rec, "created")),
		})
	}
	return uniqueBy(rows, func(r DimPaymentIntentRow) bigquery.NullString { return r.PaymentIntentID })
}

// BuildDimCharges projects the charge list. A missing or empty list yields
// no rows.
func BuildDimCharges(s *snapshot.Snapshot) []DimChargeRow {
	records, _ := s.Entities(snapshot.EntityCharges)
	rows := make([]DimChargeRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, DimChargeRow{
			ChargeID:        toNullString(field(rec, "id")),
			PaymentIntentID: toNullString(field(rec, "payment_intent")),
			CustomerID:      toNullString(field(rec, "customer_id")),
			Amount:          toNullInt64(field(rec, "amount")),
			Currency:        toNullString(field(rec, "currency")),
			Status:          toNullString(field(rec, "status")),
			Paid:            toNullBool(field(rec, "paid")),
			CreatedAt:       toNullTimestamp(field(rec, "created")),
		})
	}
	return uniqueBy(rows, func(r DimChargeRow) bigquery.NullString { return r.ChargeID })
}
