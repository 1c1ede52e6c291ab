package olap

import (
	"fmt"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// Output table names. Staged files are named <table>.csv.
const (
	TableFactInvoices      = "fact_invoices"
	TableDimCustomers      = "dim_customers"
	TableDimProducts       = "dim_products"
	TableDimPrices         = "dim_prices"
	TableDimPaymentMethods = "dim_payment_methods"
	TableDimSubscriptions  = "dim_subscriptions"
	TableDimPaymentIntents = "dim_payment_intents"
	TableDimCharges        = "dim_charges"
)

// TableNames lists every output table in the order a run produces them.
var TableNames = []string{
	TableFactInvoices,
	TableDimCustomers,
	TableDimProducts,
	TableDimPrices,
	TableDimPaymentMethods,
	TableDimSubscriptions,
	TableDimPaymentIntents,
	TableDimCharges,
}

// FileName returns the staged file name for a table.
func FileName(table string) string {
	return table + ".csv"
}

// Record is a fixed-schema output row.
type Record interface {
	Values() []snapshot.Value
}

// Table is an ordered, column-addressed set of rows. Column order is part of
// the output contract.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]snapshot.Value
}

// NewTable returns an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols, Rows: [][]snapshot.Value{}}
}

// TableOf converts typed records into a Table.
func TableOf[R Record](name string, columns []string, records []R) *Table {
	t := NewTable(name, columns)
	t.Rows = make([][]snapshot.Value, 0, len(records))
	for _, r := range records {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// Append adds a row, checking its width against the column list.
func (t *Table) Append(row []snapshot.Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d values, want %d", t.Name, len(row), len(t.Columns))
	}
	cp := make([]snapshot.Value, len(row))
	copy(cp, row)
	t.Rows = append(t.Rows, cp)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of a column in row order.
func (t *Table) Column(name string) ([]snapshot.Value, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]snapshot.Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Value returns the cell at row i, column name; null when the column is absent.
func (t *Table) Value(i int, name string) snapshot.Value {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return snapshot.Null()
	}
	return t.Rows[i][idx]
}

// MissingColumns returns the required columns the table does not have.
func (t *Table) MissingColumns(required []string) []string {
	var missing []string
	for _, c := range required {
		if t.ColumnIndex(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

// DuplicateCount returns how many non-null values of column repeat an
// earlier value.
func (t *Table) DuplicateCount(column string) int {
	values, ok := t.Column(column)
	if !ok {
		return 0
	}
	seen := make(map[string]struct{}, len(values))
	dups := 0
	for _, v := range values {
		key, ok := v.Key()
		if !ok {
			continue
		}
		if _, exists := seen[key]; exists {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// Equal reports whether two tables hold the same columns and rows in order.
func (t *Table) Equal(o *Table) bool {
	if t.Name != o.Name || len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		for j := range t.Rows[i] {
			if !t.Rows[i][j].Equal(o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}
