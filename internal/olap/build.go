package olap

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// Builder produces one output table from a snapshot.
type Builder struct {
	Name  string
	Build func(*snapshot.Snapshot) (*Table, error)
}

// Builders is the fixed set of dimension builders, in output order. The fact
// table is built separately by BuildAll so its join stats can be kept.
var Builders = []Builder{
	{Name: TableDimCustomers, Build: func(s *snapshot.Snapshot) (*Table, error) {
		rows, err := BuildDimCustomers(s)
		return TableOf(TableDimCustomers, DimCustomerColumns, rows), err
	}},
	{Name: TableDimProducts, Build: func(s *snapshot.Snapshot) (*Table, error) {
		rows, err := BuildDimProducts(s)
		return TableOf(TableDimProducts, DimProductColumns, rows), err
	}},
	{Name: TableDimPrices, Build: func(s *snapshot.Snapshot) (*Table, error) {
		rows, err := BuildDimPrices(s)
		return TableOf(TableDimPrices, DimPriceColumns, rows), err
	}},
	{Name: TableDimPaymentMethods, Build: func(s *snapshot.Snapshot) (*Table, error) {
		rows, err := BuildDimPaymentMethods(s)
		return TableOf(TableDimPaymentMethods, DimPaymentMethodColumns, rows), err
	}},
	{Name: TableDimSubscriptions, Build: func(s *snapshot.Snapshot) (*Table, error) {
		rows, err := BuildDimSubscriptions(s)
		return TableOf(TableDimSubscriptions, DimSubscriptionColumns, rows), err
	}},
	{Name: TableDimPaymentIntents, Build: func(s *snapshot.Snapshot) (*Table, error) {
		return TableOf(TableDimPaymentIntents, DimPaymentIntentColumns, BuildDimPaymentIntents(s)), nil
	}},
	{Name: TableDimCharges, Build: func(s *snapshot.Snapshot) (*Table, error) {
		return TableOf(TableDimCharges, DimChargeColumns, BuildDimCharges(s)), nil
	}},
}

// ColumnsFor returns the fixed column contract of an output table.
func ColumnsFor(table string) ([]string, bool) {
	switch table {
	case TableFactInvoices:
		return FactInvoiceColumns, true
	case TableDimCustomers:
		return DimCustomerColumns, true
	case TableDimProducts:
		return DimProductColumns, true
	case TableDimPrices:
		return DimPriceColumns, true
	case TableDimPaymentMethods:
		return DimPaymentMethodColumns, true
	case TableDimSubscriptions:
		return DimSubscriptionColumns, true
	case TableDimPaymentIntents:
		return DimPaymentIntentColumns, true
	case TableDimCharges:
		return DimChargeColumns, true
	}
	return nil, false
}

// IdentifierColumn returns the column that must be unique in a dimension
// table.
func IdentifierColumn(table string) (string, bool) {
	cols, ok := ColumnsFor(table)
	if !ok || table == TableFactInvoices {
		return "", false
	}
	return cols[0], true
}

// Batch is the full output of one transformation run.
type Batch struct {
	Tables         []*Table
	Fact           JoinStats
	SourceInvoices int
}

// Table returns the named table of the batch.
func (b *Batch) Table(name string) (*Table, bool) {
	for _, t := range b.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// BuildAll runs the fact builder and every dimension builder over s. The
// builders share s read-only, so they run concurrently; tables are returned
// in TableNames order regardless of completion order.
func BuildAll(ctx context.Context, s *snapshot.Snapshot) (*Batch, error) {
	tables := make([]*Table, len(Builders)+1)
	var stats JoinStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, st, err := FactInvoicesTable(s)
		if err != nil {
			return err
		}
		tables[0], stats = t, st
		return nil
	})
	for i, b := range Builders {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := b.Build(s)
			if err != nil {
				return err
			}
			tables[i+1] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("BuildAll: %w", err)
	}

	return &Batch{
		Tables:         tables,
		Fact:           stats,
		SourceInvoices: s.Count(snapshot.EntityInvoices),
	}, nil
}
