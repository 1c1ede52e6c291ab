package olap

import (
	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// FactInvoiceRow is one row of fact_invoices: an invoice enriched with its
// customer, subscription, product, price and payment method.
type FactInvoiceRow struct {
	InvoiceID         bigquery.NullString    `bigquery:"invoice_id"`
	CustomerID        bigquery.NullString    `bigquery:"customer_id"`
	CustomerEmail     bigquery.NullString    `bigquery:"customer_email"`
	AmountPaid        bigquery.NullInt64     `bigquery:"amount_paid"`
	Currency          bigquery.NullString    `bigquery:"currency"`
	Status            bigquery.NullString    `bigquery:"status"`
	CreatedAt         bigquery.NullTimestamp `bigquery:"created_at"`
	PeriodStart       bigquery.NullTimestamp `bigquery:"period_start"`
	PeriodEnd         bigquery.NullTimestamp `bigquery:"period_end"`
	ProductID         bigquery.NullString    `bigquery:"product_id"`
	ProductName       bigquery.NullString    `bigquery:"product_name"`
	PriceID           bigquery.NullString    `bigquery:"price_id"`
	PlanAmount        bigquery.NullInt64     `bigquery:"plan_amount"`
	PlanInterval      bigquery.NullString    `bigquery:"plan_interval"`
	SubscriptionID    bigquery.NullString    `bigquery:"subscription_id"`
	PaymentMethodType bigquery.NullString    `bigquery:"payment_method_type"`
	ReceiptNumber     bigquery.NullString    `bigquery:"receipt_number"`
	Livemode          bigquery.NullBool      `bigquery:"livemode"`
	CardBrand         bigquery.NullString    `bigquery:"card_brand"`
}

// FactInvoiceColumns is the fact_invoices column order.
var FactInvoiceColumns = []string{
	"invoice_id", "customer_id", "customer_email", "amount_paid", "currency",
	"status", "created_at", "period_start", "period_end", "product_id",
	"product_name", "price_id", "plan_amount", "plan_interval", "subscription_id",
	"payment_method_type", "receipt_number", "livemode", "card_brand",
}

func (r FactInvoiceRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.InvoiceID),
		fromNullString(r.CustomerID),
		fromNullString(r.CustomerEmail),
		fromNullInt64(r.AmountPaid),
		fromNullString(r.Currency),
		fromNullString(r.Status),
		fromNullTimestamp(r.CreatedAt),
		fromNullTimestamp(r.PeriodStart),
		fromNullTimestamp(r.PeriodEnd),
		fromNullString(r.ProductID),
		fromNullString(r.ProductName),
		fromNullString(r.PriceID),
		fromNullInt64(r.PlanAmount),
		fromNullString(r.PlanInterval),
		fromNullString(r.SubscriptionID),
		fromNullString(r.PaymentMethodType),
		fromNullString(r.ReceiptNumber),
		fromNullBool(r.Livemode),
		fromNullString(r.CardBrand),
	}
}

// DimCustomerRow is one row of dim_customers.
type DimCustomerRow struct {
	CustomerID bigquery.NullString    `bigquery:"customer_id"`
	Email      bigquery.NullString    `bigquery:"email"`
	Name       bigquery.NullString    `bigquery:"name"`
	Delinquent bigquery.NullBool      `bigquery:"delinquent"`
	Currency   bigquery.NullString    `bigquery:"currency"`
	Livemode   bigquery.NullBool      `bigquery:"livemode"`
	CreatedAt  bigquery.NullTimestamp `bigquery:"created_at"`
}

var DimCustomerColumns = []string{
	"customer_id", "email", "name", "delinquent", "currency", "livemode", "created_at",
}

func (r DimCustomerRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.CustomerID),
		fromNullString(r.Email),
		fromNullString(r.Name),
		fromNullBool(r.Delinquent),
		fromNullString(r.Currency),
		fromNullBool(r.Livemode),
		fromNullTimestamp(r.CreatedAt),
	}
}

// DimProductRow is one row of dim_products.
type DimProductRow struct {
	ProductID   bigquery.NullString    `bigquery:"product_id"`
	Name        bigquery.NullString    `bigquery:"name"`
	Description bigquery.NullString    `bigquery:"description"`
	Active      bigquery.NullBool      `bigquery:"active"`
	CreatedAt   bigquery.NullTimestamp `bigquery:"created_at"`
	UpdatedAt   bigquery.NullTimestamp `bigquery:"updated_at"`
}

var DimProductColumns = []string{
	"product_id", "name", "description", "active", "created_at", "updated_at",
}

func (r DimProductRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.ProductID),
		fromNullString(r.Name),
		fromNullString(r.Description),
		fromNullBool(r.Active),
		fromNullTimestamp(r.CreatedAt),
		fromNullTimestamp(r.UpdatedAt),
	}
}

// DimPriceRow is one row of dim_prices. Recurring keeps the nested billing
// cycle as JSON until the load step flattens it.
type DimPriceRow struct {
	PriceID       bigquery.NullString    `bigquery:"price_id"`
	ProductID     bigquery.NullString    `bigquery:"product_id"`
	Currency      bigquery.NullString    `bigquery:"currency"`
	UnitAmount    bigquery.NullInt64     `bigquery:"unit_amount"`
	Type          bigquery.NullString    `bigquery:"type"`
	BillingScheme bigquery.NullString    `bigquery:"billing_scheme"`
	Recurring     bigquery.NullJSON      `bigquery:"recurring"`
	Livemode      bigquery.NullBool      `bigquery:"livemode"`
	CreatedAt     bigquery.NullTimestamp `bigquery:"created_at"`
}

var DimPriceColumns = []string{
	"price_id", "product_id", "currency", "unit_amount", "type",
	"billing_scheme", "recurring", "livemode", "created_at",
}

func (r DimPriceRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.PriceID),
		fromNullString(r.ProductID),
		fromNullString(r.Currency),
		fromNullInt64(r.UnitAmount),
		fromNullString(r.Type),
		fromNullString(r.BillingScheme),
		fromNullJSON(r.Recurring),
		fromNullBool(r.Livemode),
		fromNullTimestamp(r.CreatedAt),
	}
}

// DimPaymentMethodRow is one row of dim_payment_methods.
type DimPaymentMethodRow struct {
	PaymentMethodID bigquery.NullString    `bigquery:"payment_method_id"`
	Type            bigquery.NullString    `bigquery:"type"`
	CustomerID      bigquery.NullString    `bigquery:"customer_id"`
	Livemode        bigquery.NullBool      `bigquery:"livemode"`
	CreatedAt       bigquery.NullTimestamp `bigquery:"created_at"`
	CardBrand       bigquery.NullString    `bigquery:"card_brand"`
}

var DimPaymentMethodColumns = []string{
	"payment_method_id", "type", "customer_id", "livemode", "created_at", "card_brand",
}

func (r DimPaymentMethodRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.PaymentMethodID),
		fromNullString(r.Type),
		fromNullString(r.CustomerID),
		fromNullBool(r.Livemode),
		fromNullTimestamp(r.CreatedAt),
		fromNullString(r.CardBrand),
	}
}

// DimSubscriptionRow is one row of dim_subscriptions.
type DimSubscriptionRow struct {
	SubscriptionID bigquery.NullString    `bigquery:"subscription_id"`
	CustomerID     bigquery.NullString    `bigquery:"customer_id"`
	PriceID        bigquery.NullString    `bigquery:"price_id"`
	Status         bigquery.NullString    `bigquery:"status"`
	Currency       bigquery.NullString    `bigquery:"currency"`
	StartDate      bigquery.NullTimestamp `bigquery:"start_date"`
	CreatedAt      bigquery.NullTimestamp `bigquery:"created_at"`
	CancelAt       bigquery.NullTimestamp `bigquery:"cancel_at"`
	EndedAt        bigquery.NullTimestamp `bigquery:"ended_at"`
	PlanInterval   bigquery.NullString    `bigquery:"plan_interval"`
	Livemode       bigquery.NullBool      `bigquery:"livemode"`
}

var DimSubscriptionColumns = []string{
	"subscription_id", "customer_id", "price_id", "status", "currency", "start_date",
	"created_at", "cancel_at", "ended_at", "plan_interval", "livemode",
}

func (r DimSubscriptionRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.SubscriptionID),
		fromNullString(r.CustomerID),
		fromNullString(r.PriceID),
		fromNullString(r.Status),
		fromNullString(r.Currency),
		fromNullTimestamp(r.StartDate),
		fromNullTimestamp(r.CreatedAt),
		fromNullTimestamp(r.CancelAt),
		fromNullTimestamp(r.EndedAt),
		fromNullString(r.PlanInterval),
		fromNullBool(r.Livemode),
	}
}

// DimPaymentIntentRow is one row of dim_payment_intents.
type DimPaymentIntentRow struct {
	PaymentIntentID bigquery.NullString    `bigquery:"payment_intent_id"`
	CustomerID      bigquery.NullString    `bigquery:"customer_id"`
	InvoiceID       bigquery.NullString    `bigquery:"invoice_id"`
	Status          bigquery.NullString    `bigquery:"status"`
	Amount          bigquery.NullInt64     `bigquery:"amount"`
	Currency        bigquery.NullString    `bigquery:"currency"`
	CreatedAt       bigquery.NullTimestamp `bigquery:"created_at"`
}

var DimPaymentIntentColumns = []string{
	"payment_intent_id", "customer_id", "invoice_id", "status", "amount", "currency", "created_at",
}

func (r DimPaymentIntentRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.PaymentIntentID),
		fromNullString(r.CustomerID),
		fromNullString(r.InvoiceID),
		fromNullString(r.Status),
		fromNullInt64(r.Amount),
		fromNullString(r.Currency),
		fromNullTimestamp(r.CreatedAt),
	}
}

// DimChargeRow is one row of dim_charges.
type DimChargeRow struct {
	ChargeID        bigquery.NullString    `bigquery:"charge_id"`
	PaymentIntentID bigquery.NullString    `bigquery:"payment_intent_id"`
	CustomerID      bigquery.NullString    `bigquery:"customer_id"`
	Amount          bigquery.NullInt64     `bigquery:"amount"`
	Currency        bigquery.NullString    `bigquery:"currency"`
	Status          bigquery.NullString    `bigquery:"status"`
	Paid            bigquery.NullBool      `bigquery:"paid"`
	CreatedAt       bigquery.NullTimestamp `bigquery:"created_at"`
}

var DimChargeColumns = []string{
	"charge_id", "payment_intent_id", "customer_id", "amount", "currency", "status", "paid", "created_at",
}

func (r DimChargeRow) Values() []snapshot.Value {
	return []snapshot.Value{
		fromNullString(r.ChargeID),
		fromNullString(r.PaymentIntentID),
		fromNullString(r.CustomerID),
		fromNullInt64(r.Amount),
		fromNullString(r.Currency),
		fromNullString(r.Status),
		fromNullBool(r.Paid),
		fromNullTimestamp(r.CreatedAt),
	}
}
