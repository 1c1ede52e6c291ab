package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/billing-olap/internal/logger"
)

// StartRunWithClient inserts a new row into <dataset>.etl_runs with
// status=RUNNING and returns the generated run_id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, kind, runTS string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			run_ts,
			kind,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@run_ts,
			@kind,
			@started_ts,
			@status
		)
	`, datasetID, etlRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "run_ts", Value: runTS},
		{Name: "kind", Value: kind},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runAndWait(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return runID, nil
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_ts, the source
// object and the run counts.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, result RunResult) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = NULL,
		    source_object = @source_object,
		    source_invoices = @source_invoices,
		    fact_rows = @fact_rows,
		    dropped_invoices = @dropped_invoices,
		    tables_written = @tables_written
		WHERE run_id = @run_id
	`, datasetID, etlRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "source_object", Value: result.SourceObject},
		{Name: "source_invoices", Value: result.SourceInvoices},
		{Name: "fact_rows", Value: result.FactRows},
		{Name: "dropped_invoices", Value: result.DroppedInvoices},
		{Name: "tables_written", Value: result.TablesWritten},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// It is best-effort: failures are logged, not returned.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, etlRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update failed")
	}
}

// ListRecentRunsWithClient returns the newest runs first.
func ListRecentRunsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*RunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			run_ts,
			kind,
			started_ts,
			finished_ts,
			status,
			error_message,
			source_object,
			source_invoices,
			fact_rows,
			dropped_invoices,
			tables_written
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, etlRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: reading query: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: iterating rows: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

// runAndWait runs a query job and waits for it to finish.
func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
