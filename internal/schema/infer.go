// Package schema infers warehouse column types for output tables and renders
// the DDL and load statements that stage them into a warehouse.
package schema

import (
	"regexp"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// WarehouseType is a dialect-neutral column type.
type WarehouseType string

const (
	String    WarehouseType = "STRING"
	Float     WarehouseType = "FLOAT"
	Number    WarehouseType = "NUMBER"
	Boolean   WarehouseType = "BOOLEAN"
	Timestamp WarehouseType = "TIMESTAMP"
)

// SampleSize is how many non-null values the timestamp heuristic looks at.
const SampleSize = 5

var isoDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

// columnOverrides force a type regardless of the values. Identifiers stay
// textual so they join cleanly; receipt numbers look numeric but are not.
var columnOverrides = map[string]WarehouseType{
	"invoice_id":          String,
	"customer_id":         String,
	"subscription_id":     String,
	"price_id":            String,
	"product_id":          String,
	"payment_method_id":   String,
	"payment_intent_id":   String,
	"charge_id":           String,
	"receipt_number":      String,
	"card_brand":          String,
	"payment_method_type": String,
	"cancel_at":           Timestamp,
	"ended_at":            Timestamp,
}

// tableOverrides are keyed by table then column and win over columnOverrides.
var tableOverrides = map[string]map[string]WarehouseType{
	olap.TableDimSubscriptions: {"start_date": Timestamp},
}

// Override returns the forced type for a column, if any.
func Override(table, column string) (WarehouseType, bool) {
	if cols, ok := tableOverrides[table]; ok {
		if t, ok := cols[column]; ok {
			return t, true
		}
	}
	t, ok := columnOverrides[column]
	return t, ok
}

// InferColumnType resolves a column type: overrides first, then timestamp
// detection on a sample of non-null values, then the values' kind.
func InferColumnType(table, column string, values []snapshot.Value) WarehouseType {
	if t, ok := Override(table, column); ok {
		return t
	}
	if looksLikeTimestamps(values) {
		return Timestamp
	}
	return kindType(values)
}

func looksLikeTimestamps(values []snapshot.Value) bool {
	sampled := 0
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind() != snapshot.KindTimestamp && !isoDateTime.MatchString(v.Text()) {
			return false
		}
		sampled++
		if sampled == SampleSize {
			break
		}
	}
	return sampled > 0
}

// kindType maps the common kind of the non-null values. Ints mixed with
// floats widen to FLOAT; any other mix, or no values at all, is STRING.
func kindType(values []snapshot.Value) WarehouseType {
	var kind snapshot.Kind
	for _, v := range values {
		k := v.Kind()
		switch {
		case k == snapshot.KindNull:
			continue
		case kind == snapshot.KindNull:
			kind = k
		case kind == k:
		case (kind == snapshot.KindInt && k == snapshot.KindFloat) || (kind == snapshot.KindFloat && k == snapshot.KindInt):
			kind = snapshot.KindFloat
		default:
			return String
		}
	}

	switch kind {
	case snapshot.KindInt:
		return Number
	case snapshot.KindFloat:
		return Float
	case snapshot.KindBool:
		return Boolean
	case snapshot.KindTimestamp:
		return Timestamp
	}
	return String
}

// Column is one inferred column.
type Column struct {
	Name string
	Type WarehouseType
}

// TableSchema is the inferred layout of one table, in column order.
type TableSchema struct {
	Name    string
	Columns []Column
}

// InferTable infers every column of t in order.
func InferTable(t *olap.Table) TableSchema {
	s := TableSchema{Name: t.Name, Columns: make([]Column, 0, len(t.Columns))}
	for _, name := range t.Columns {
		values, _ := t.Column(name)
		s.Columns = append(s.Columns, Column{Name: name, Type: InferColumnType(t.Name, name, values)})
	}
	return s
}

var bigqueryFieldTypes = map[WarehouseType]bigquery.FieldType{
	String:    bigquery.StringFieldType,
	Float:     bigquery.FloatFieldType,
	Number:    bigquery.IntegerFieldType,
	Boolean:   bigquery.BooleanFieldType,
	Timestamp: bigquery.TimestampFieldType,
}

// BigQuerySchema converts the inferred columns into a nullable BigQuery
// schema.
func (s TableSchema) BigQuerySchema() bigquery.Schema {
	out := make(bigquery.Schema, 0, len(s.Columns))
	for _, c := range s.Columns {
		ft, ok := bigqueryFieldTypes[c.Type]
		if !ok {
			ft = bigquery.StringFieldType
		}
		out = append(out, &bigquery.FieldSchema{Name: c.Name, Type: ft})
	}
	return out
}
