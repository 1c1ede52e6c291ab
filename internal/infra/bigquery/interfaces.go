package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/dvloznov/billing-olap/internal/schema"
)

// RunRepository records ETL runs in the etl_runs table.
type RunRepository interface {
	// StartRun inserts a new run with status=RUNNING and returns its run_id.
	StartRun(ctx context.Context, kind, runTS string) (string, error)

	// MarkRunSucceeded sets status=SUCCESS, finished_ts and the run result.
	MarkRunSucceeded(ctx context.Context, runID string, result RunResult) error

	// MarkRunFailed sets status=FAILED, finished_ts and error_message.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// ListRecentRuns returns up to limit runs, newest first.
	ListRecentRuns(ctx context.Context, limit int) ([]*RunRow, error)
}

// Executor runs generated statements and checks what they produced.
type Executor interface {
	// Exec runs statements in order, stopping at the first failure.
	Exec(ctx context.Context, stmts []schema.Statement) error

	// VerifyTable compares a loaded table's schema with the inferred one.
	VerifyTable(ctx context.Context, want schema.TableSchema) error
}

// Warehouse is the concrete implementation of RunRepository and Executor.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type Warehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewWarehouse creates a Warehouse with a shared BigQuery client.
func NewWarehouse(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*Warehouse, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewWarehouse: creating client: %w", err)
	}
	return &Warehouse{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the warehouse is no longer needed to release resources.
func (w *Warehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// Dialect returns the statement dialect for this warehouse's dataset.
func (w *Warehouse) Dialect() schema.BigQueryDialect {
	return schema.BigQueryDialect{ProjectID: w.projectID, DatasetID: w.datasetID}
}

func (w *Warehouse) StartRun(ctx context.Context, kind, runTS string) (string, error) {
	return StartRunWithClient(ctx, w.client, w.datasetID, kind, runTS)
}

func (w *Warehouse) MarkRunSucceeded(ctx context.Context, runID string, result RunResult) error {
	return MarkRunSucceededWithClient(ctx, w.client, w.datasetID, runID, result)
}

func (w *Warehouse) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, w.client, w.datasetID, runID, runErr)
}

func (w *Warehouse) ListRecentRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	return ListRecentRunsWithClient(ctx, w.client, w.datasetID, limit)
}

func (w *Warehouse) Exec(ctx context.Context, stmts []schema.Statement) error {
	return ExecStatementsWithClient(ctx, w.client, stmts)
}

func (w *Warehouse) VerifyTable(ctx context.Context, want schema.TableSchema) error {
	return VerifyTableSchemaWithClient(ctx, w.client, w.datasetID, want)
}
