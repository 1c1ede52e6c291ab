package olap

import (
	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// FlattenFunc expands compound columns of one table into scalar columns.
type FlattenFunc func(*Table) *Table

var flattenRules = map[string]FlattenFunc{
	TableDimPrices: flattenRecurring,
}

// ApplyFlattenIfNeeded runs the flatten rule registered for name, returning t
// unchanged when there is none.
func ApplyFlattenIfNeeded(t *Table, name string) *Table {
	rule, ok := flattenRules[name]
	if !ok {
		return t
	}
	return rule(t)
}

// recurringColumns maps the flattened column names to their key inside the
// recurring structure.
var recurringColumns = []struct {
	column string
	key    string
}{
	{"recurring_interval", "interval"},
	{"recurring_count", "interval_count"},
	{"recurring_usage_type", "usage_type"},
}

// flattenRecurring replaces dim_prices.recurring with recurring_interval,
// recurring_count and recurring_usage_type appended after the other columns.
// recurring may be a nested map or its JSON text as read back from a staged
// file. A table without the column is returned as is.
func flattenRecurring(t *Table) *Table {
	idx := t.ColumnIndex("recurring")
	if idx < 0 {
		return t
	}

	cols := make([]string, 0, len(t.Columns)+len(recurringColumns)-1)
	cols = append(cols, t.Columns[:idx]...)
	cols = append(cols, t.Columns[idx+1:]...)
	for _, rc := range recurringColumns {
		cols = append(cols, rc.column)
	}

	out := NewTable(t.Name, cols)
	out.Rows = make([][]snapshot.Value, 0, len(t.Rows))
	for _, row := range t.Rows {
		recurring := decodeCompound(row[idx])

		next := make([]snapshot.Value, 0, len(cols))
		next = append(next, row[:idx]...)
		next = append(next, row[idx+1:]...)
		for _, rc := range recurringColumns {
			next = append(next, snapshot.Extract(recurring, snapshot.P(snapshot.Key(rc.key)), snapshot.Null()))
		}
		out.Rows = append(out.Rows, next)
	}
	return out
}

// decodeCompound returns v when it is already nested, or parses it as JSON
// when it is text. Anything else is null.
func decodeCompound(v snapshot.Value) snapshot.Value {
	switch v.Kind() {
	case snapshot.KindMap, snapshot.KindList:
		return v
	case snapshot.KindString:
		s, _ := v.Str()
		var parsed snapshot.Value
		if err := parsed.UnmarshalJSON([]byte(s)); err != nil {
			return snapshot.Null()
		}
		return parsed
	}
	return snapshot.Null()
}
