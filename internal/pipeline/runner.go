package pipeline

import (
	"context"
	"fmt"
	"time"

	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/logger"
	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/report"
	"github.com/dvloznov/billing-olap/internal/schema"
	"github.com/dvloznov/billing-olap/internal/staging"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// Deps holds the collaborators of a Runner. Unused ones may be nil; each Run
// method checks what it needs.
type Deps struct {
	Source    SnapshotSource
	Sink      OutputSink
	Loader    OutputLoader
	Dialect   schema.Dialect
	Scripts   storage.ObjectStore
	Warehouse infra.Executor

	// Runs records run bookkeeping. Defaults to NopRunRecorder.
	Runs infra.RunRepository

	// Reporter, when set, receives a summary of every finished run.
	Reporter Reporter

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes the pipelines with run bookkeeping around them.
type Runner struct {
	deps Deps
}

// NewRunner creates a Runner, filling in defaults for unset dependencies.
func NewRunner(deps Deps) *Runner {
	if deps.Runs == nil {
		deps.Runs = NopRunRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps}
}

// RunTransform builds every output table from the newest snapshot and
// persists them under a fresh run timestamp.
func (r *Runner) RunTransform(ctx context.Context) (*PipelineState, error) {
	if r.deps.Source == nil || r.deps.Sink == nil {
		return nil, fmt.Errorf("RunTransform: source and sink are required")
	}
	return r.run(ctx, infra.RunKindTransform, NewTransformPipeline(r.deps.Source, r.deps.Sink))
}

// RunSQL stages the newest outputs and writes the create and load scripts.
func (r *Runner) RunSQL(ctx context.Context) (*PipelineState, error) {
	if err := r.requireSQL(); err != nil {
		return nil, fmt.Errorf("RunSQL: %w", err)
	}
	return r.run(ctx, infra.RunKindSQL, NewSQLPipeline(r.deps.Loader, r.deps.Sink, r.deps.Dialect, r.deps.Scripts))
}

// RunLoad does what RunSQL does, then runs the statements in the warehouse
// and verifies the loaded tables.
func (r *Runner) RunLoad(ctx context.Context) (*PipelineState, error) {
	if err := r.requireSQL(); err != nil {
		return nil, fmt.Errorf("RunLoad: %w", err)
	}
	if r.deps.Warehouse == nil {
		return nil, fmt.Errorf("RunLoad: warehouse is required")
	}
	return r.run(ctx, infra.RunKindLoad, NewLoadPipeline(r.deps.Loader, r.deps.Sink, r.deps.Dialect, r.deps.Scripts, r.deps.Warehouse))
}

// Inspect loads and flattens the newest outputs without recording a run.
func (r *Runner) Inspect(ctx context.Context) (*PipelineState, error) {
	if r.deps.Loader == nil {
		return nil, fmt.Errorf("Inspect: loader is required")
	}
	state := &PipelineState{}
	p := NewPipeline(&LoadOutputsStep{Loader: r.deps.Loader}, &FlattenStep{})
	if err := p.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("Inspect: %w", err)
	}
	return state, nil
}

func (r *Runner) requireSQL() error {
	if r.deps.Loader == nil || r.deps.Sink == nil || r.deps.Dialect == nil {
		return fmt.Errorf("loader, sink and dialect are required")
	}
	return nil
}

// run wraps a pipeline with its etl_runs row: RUNNING before the first step,
// then SUCCESS with the result or FAILED with the error.
func (r *Runner) run(ctx context.Context, kind string, p *Pipeline) (*PipelineState, error) {
	started := r.deps.Now().UTC()
	state := &PipelineState{
		Kind:  kind,
		RunTS: staging.RunTimestamp(started),
	}

	runID, err := r.deps.Runs.StartRun(ctx, kind, state.RunTS)
	if err != nil {
		return nil, fmt.Errorf("%s run: %w", kind, err)
	}
	state.RunID = runID

	ctx = logger.WithRun(ctx, runID, state.RunTS)
	log := logger.FromContext(ctx)
	log.Info().Str("kind", kind).Msg("run started")

	runErr := p.Execute(ctx, state)
	if runErr != nil {
		r.deps.Runs.MarkRunFailed(ctx, runID, runErr)
		log.Error().Err(runErr).Str("kind", kind).Msg("run failed")
	} else if err := r.deps.Runs.MarkRunSucceeded(ctx, runID, state.Result); err != nil {
		runErr = err
	} else {
		log.Info().
			Str("kind", kind).
			Int("source_invoices", state.Result.SourceInvoices).
			Int("fact_rows", state.Result.FactRows).
			Int("dropped_invoices", state.Result.DroppedInvoices).
			Int("tables_written", state.Result.TablesWritten).
			Msg("run succeeded")
	}

	r.report(ctx, state, started, runErr)

	if runErr != nil {
		return state, fmt.Errorf("%s run %s: %w", kind, runID, runErr)
	}
	return state, nil
}

// report is best-effort: a failed report never fails the run.
func (r *Runner) report(ctx context.Context, state *PipelineState, started time.Time, runErr error) {
	if r.deps.Reporter == nil {
		return
	}

	summary := Summarize(state, started, r.deps.Now().UTC(), runErr)
	if err := r.deps.Reporter.ReportRun(ctx, summary); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("run report failed")
	}
}

// Summarize builds the report of a finished run from its state.
func Summarize(state *PipelineState, started, finished time.Time, runErr error) report.RunSummary {
	s := report.RunSummary{
		RunID:           state.RunID,
		RunTS:           state.RunTS,
		Kind:            state.Kind,
		Status:          infra.RunStatusSuccess,
		Started:         started,
		Finished:        finished,
		SourceObject:    state.Result.SourceObject,
		SourceInvoices:  state.Result.SourceInvoices,
		FactRows:        state.Result.FactRows,
		DroppedInvoices: state.Result.DroppedInvoices,
	}
	if runErr != nil {
		s.Status = infra.RunStatusFailed
		s.Error = runErr.Error()
	}

	var tables []*olap.Table
	switch {
	case state.Batch != nil:
		tables = state.Batch.Tables
	case state.Tables != nil:
		tables = state.Tables
	}
	for _, t := range tables {
		s.Tables = append(s.Tables, report.TableCount{Name: t.Name, Rows: t.Len()})
	}
	return s
}
