package olap

import (
	"fmt"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// Paths inside an invoice's "lines" field. Only the first line item is read;
// the other lines of a multi-line invoice do not contribute keys.
var (
	lineSubscriptionPath = snapshot.P(
		snapshot.Key("data"), snapshot.At(0),
		snapshot.Key("parent"), snapshot.Key("subscription_item_details"), snapshot.Key("subscription"),
	)
	linePricePath = snapshot.P(
		snapshot.Key("data"), snapshot.At(0),
		snapshot.Key("pricing"), snapshot.Key("price_details"), snapshot.Key("price"),
	)
	lineProductPath = snapshot.P(
		snapshot.Key("data"), snapshot.At(0),
		snapshot.Key("pricing"), snapshot.Key("price_details"), snapshot.Key("product"),
	)
	cardBrandPath = snapshot.P(snapshot.Key("brand"))
)

var invoiceFields = []string{
	"id", "customer_id", "amount_paid", "currency", "status", "created",
	"period_start", "period_end", "default_payment_method_id", "receipt_number",
	"livemode", "lines",
}

// invoiceFrame derives invoice_id and the first-line-item keys. Unresolvable
// paths yield null keys; the rows are kept until a join needs the key.
func invoiceFrame(invoices []snapshot.Value) *Frame {
	fromLines := func(p snapshot.Path) func(Row) snapshot.Value {
		return func(r Row) snapshot.Value {
			return snapshot.Extract(r.Get("lines"), p, snapshot.Null())
		}
	}
	return FrameOf(invoices, invoiceFields...).
		With("invoice_id", func(r Row) snapshot.Value { return r.Get("id") }).
		With("subscription_id", fromLines(lineSubscriptionPath)).
		With("price_id", fromLines(linePricePath)).
		With("product_id", fromLines(lineProductPath))
}

// factJoinSteps returns the fixed enrichment order. Later steps see every
// column added by earlier ones; the price join keys on the invoice-derived
// price_id, the subscription's own price is pulled as subscription_price_id.
func factJoinSteps(s *snapshot.Snapshot) ([]JoinStep, error) {
	customers, err := s.Require(snapshot.EntityCustomers)
	if err != nil {
		return nil, err
	}
	subscriptions, err := s.Require(snapshot.EntitySubscriptions)
	if err != nil {
		return nil, err
	}
	products, err := s.Require(snapshot.EntityProducts)
	if err != nil {
		return nil, err
	}
	prices, err := s.Require(snapshot.EntityPrices)
	if err != nil {
		return nil, err
	}
	// Invoices without a default payment method are common; a missing list
	// behaves like an empty one.
	paymentMethods, _ := s.Entities(snapshot.EntityPaymentMethods)

	return []JoinStep{
		{
			Name:     "customers",
			Right:    FrameOf(customers, "id", "email"),
			LeftKey:  "customer_id",
			RightKey: "id",
			Pull:     []Pull{{From: "email", As: "customer_email"}},
			Kind:     InnerJoin,
			Suffix:   "_customer",
		},
		{
			Name:     "subscriptions",
			Right:    FrameOf(subscriptions, "id", "price_id", "plan_interval"),
			LeftKey:  "subscription_id",
			RightKey: "id",
			Pull: []Pull{
				{From: "price_id", As: "subscription_price_id"},
				{From: "plan_interval"},
			},
			Kind:   InnerJoin,
			Suffix: "_sub",
		},
		{
			Name:     "products",
			Right:    FrameOf(products, "id", "name"),
			LeftKey:  "product_id",
			RightKey: "id",
			Pull:     []Pull{{From: "name", As: "product_name"}},
			Kind:     InnerJoin,
			Suffix:   "_product",
		},
		{
			Name:     "prices",
			Right:    FrameOf(prices, "id", "unit_amount"),
			LeftKey:  "price_id",
			RightKey: "id",
			Pull:     []Pull{{From: "unit_amount", As: "plan_amount"}},
			Kind:     InnerJoin,
			Suffix:   "_price",
		},
		{
			Name:     "payment_methods",
			Right:    FrameOf(paymentMethods, "id", "type", "card"),
			LeftKey:  "default_payment_method_id",
			RightKey: "id",
			Pull: []Pull{
				{From: "type", As: "payment_method_type"},
				{From: "card"},
			},
			Kind:   LeftJoin,
			Suffix: "_payment_method",
		},
	}, nil
}

// BuildFactInvoices builds one fact row per invoice whose customer,
// subscription, product and price resolve. Unresolved invoices are dropped
// and show up in the returned stats. It fails only when a required entity
// list is missing from the snapshot.
func BuildFactInvoices(s *snapshot.Snapshot) ([]FactInvoiceRow, JoinStats, error) {
	invoices, err := s.Require(snapshot.EntityInvoices)
	if err != nil {
		return nil, JoinStats{}, fmt.Errorf("BuildFactInvoices: %w", err)
	}
	steps, err := factJoinSteps(s)
	if err != nil {
		return nil, JoinStats{}, fmt.Errorf("BuildFactInvoices: %w", err)
	}

	joined, stats, err := Join(invoiceFrame(invoices), steps...)
	if err != nil {
		return nil, stats, fmt.Errorf("BuildFactInvoices: %w", err)
	}

	rows := make([]FactInvoiceRow, 0, joined.Len())
	for _, r := range joined.Rows {
		rows = append(rows, FactInvoiceRow{
			InvoiceID:         toNullString(r.Get("invoice_id")),
			CustomerID:        toNullString(r.Get("customer_id")),
			CustomerEmail:     toNullString(r.Get("customer_email")),
			AmountPaid:        toNullInt64(r.Get("amount_paid")),
			Currency:          toNullString(r.Get("currency")),
			Status:            toNullString(r.Get("status")),
			CreatedAt:         toNullTimestamp(r.Get("created")),
			PeriodStart:       toNullTimestamp(r.Get("period_start")),
			PeriodEnd:         toNullTimestamp(r.Get("period_end")),
			ProductID:         toNullString(r.Get("product_id")),
			ProductName:       toNullString(r.Get("product_name")),
			PriceID:           toNullString(r.Get("price_id")),
			PlanAmount:        toNullInt64(r.Get("plan_amount")),
			PlanInterval:      toNullString(r.Get("plan_interval")),
			SubscriptionID:    toNullString(r.Get("subscription_id")),
			PaymentMethodType: toNullString(r.Get("payment_method_type")),
			ReceiptNumber:     toNullString(r.Get("receipt_number")),
			Livemode:          toNullBool(r.Get("livemode")),
			CardBrand:         toNullString(snapshot.Extract(r.Get("card"), cardBrandPath, snapshot.Null())),
		})
	}
	return rows, stats, nil
}

// FactInvoicesTable builds fact_invoices as a Table.
func FactInvoicesTable(s *snapshot.Snapshot) (*Table, JoinStats, error) {
	rows, stats, err := BuildFactInvoices(s)
	if err != nil {
		return nil, stats, err
	}
	return TableOf(TableFactInvoices, FactInvoiceColumns, rows), stats, nil
}
