package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/billing-olap/internal/logger"
	"github.com/dvloznov/billing-olap/internal/schema"
)

// ErrSchemaMismatch is returned when a loaded table's schema differs from
// the inferred one.
var ErrSchemaMismatch = errors.New("bigquery: table schema mismatch")

// ExecStatementsWithClient runs statements one at a time, in order, stopping
// at the first failure.
func ExecStatementsWithClient(ctx context.Context, client *bigquery.Client, stmts []schema.Statement) error {
	log := logger.FromContext(ctx)

	for _, st := range stmts {
		log.Debug().
			Str("table", st.Table).
			Str("kind", st.Kind).
			Msg("executing statement")

		if err := ExecWithClient(ctx, client, st.SQL); err != nil {
			return fmt.Errorf("ExecStatements: %s %s: %w", st.Kind, st.Table, err)
		}

		log.Info().
			Str("table", st.Table).
			Str("kind", st.Kind).
			Msg("statement executed")
	}
	return nil
}

// ExecWithClient runs one statement with optional named parameters and
// waits for it to finish.
func ExecWithClient(ctx context.Context, client *bigquery.Client, sql string, params ...bigquery.QueryParameter) error {
	q := client.Query(sql)
	q.Parameters = params
	return runAndWait(ctx, q)
}

// VerifyTableSchemaWithClient compares the loaded table's columns, in order,
// with the inferred schema.
func VerifyTableSchemaWithClient(ctx context.Context, client *bigquery.Client, datasetID string, want schema.TableSchema) error {
	md, err := client.Dataset(datasetID).Table(want.Name).Metadata(ctx)
	if err != nil {
		return fmt.Errorf("VerifyTableSchema: %s metadata: %w", want.Name, err)
	}
	return CompareSchema(want.Name, want.BigQuerySchema(), md.Schema)
}

// CompareSchema reports the first difference between two schemas.
func CompareSchema(table string, want, got bigquery.Schema) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: %s has %d columns, want %d", ErrSchemaMismatch, table, len(got), len(want))
	}
	for i := range want {
		if want[i].Name != got[i].Name || want[i].Type != got[i].Type {
			return fmt.Errorf("%w: %s column %d is %s %s, want %s %s",
				ErrSchemaMismatch, table, i, got[i].Name, got[i].Type, want[i].Name, want[i].Type)
		}
	}
	return nil
}
