package bigquery

import (
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/billing-olap/internal/schema"
)

func TestCompareSchema(t *testing.T) {
	want := schema.TableSchema{
		Name: "dim_charges",
		Columns: []schema.Column{
			{Name: "charge_id", Type: schema.String},
			{Name: "amount", Type: schema.Number},
			{Name: "paid", Type: schema.Boolean},
		},
	}.BigQuerySchema()

	tests := []struct {
		name    string
		got     bigquery.Schema
		wantErr bool
	}{
		{
			name: "identical",
			got: bigquery.Schema{
				{Name: "charge_id", Type: bigquery.StringFieldType},
				{Name: "amount", Type: bigquery.IntegerFieldType},
				{Name: "paid", Type: bigquery.BooleanFieldType},
			},
		},
		{
			name: "missing column",
			got: bigquery.Schema{
				{Name: "charge_id", Type: bigquery.StringFieldType},
				{Name: "amount", Type: bigquery.IntegerFieldType},
			},
			wantErr: true,
		},
		{
			name: "wrong type",
			got: bigquery.Schema{
				{Name: "charge_id", Type: bigquery.StringFieldType},
				{Name: "amount", Type: bigquery.FloatFieldType},
				{Name: "paid", Type: bigquery.BooleanFieldType},
			},
			wantErr: true,
		},
		{
			name: "reordered",
			got: bigquery.Schema{
				{Name: "amount", Type: bigquery.IntegerFieldType},
				{Name: "charge_id", Type: bigquery.StringFieldType},
				{Name: "paid", Type: bigquery.BooleanFieldType},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareSchema("dim_charges", want, tt.got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchemaMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}
