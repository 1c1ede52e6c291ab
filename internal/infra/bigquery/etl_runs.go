package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

const etlRunsTable = "etl_runs"

// Run kinds.
const (
	RunKindTransform = "TRANSFORM"
	RunKindSQL       = "SQL"
	RunKindLoad      = "LOAD"
)

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type RunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED
	RunTS string `bigquery:"run_ts"` // REQUIRED
	Kind  string `bigquery:"kind"`   // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // NULLABLE
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	SourceObject bigquery.NullString `bigquery:"source_object"` // NULLABLE

	SourceInvoices  bigquery.NullInt64 `bigquery:"source_invoices"`  // NULLABLE
	FactRows        bigquery.NullInt64 `bigquery:"fact_rows"`        // NULLABLE
	DroppedInvoices bigquery.NullInt64 `bigquery:"dropped_invoices"` // NULLABLE
	TablesWritten   bigquery.NullInt64 `bigquery:"tables_written"`   // NULLABLE
}

// RunResult is what a successful run records.
type RunResult struct {
	SourceObject    string
	SourceInvoices  int
	FactRows        int
	DroppedInvoices int
	TablesWritten   int
}
