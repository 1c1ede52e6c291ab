// Package pipeline wires the transformation engine to storage and the
// warehouse as a sequence of steps over a shared state.
package pipeline

import (
	"context"
	"fmt"

	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/schema"
	"github.com/dvloznov/billing-olap/internal/snapshot"
	"github.com/dvloznov/billing-olap/internal/staging"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// Script file names written by GenerateSQLStep.
const (
	CreateScriptName = "create_tables.sql"
	LoadScriptName   = "load_tables.sql"
)

// PipelineStep represents a single step of a run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Kind  string
	RunID string
	RunTS string

	// Transform runs.
	Snapshot   *snapshot.Snapshot
	Source     storage.Object
	Batch      *olap.Batch
	OutputURIs []string

	// SQL and load runs.
	Outputs    *staging.Outputs
	Tables     []*olap.Table
	Schemas    []schema.TableSchema
	StagedURIs map[string]string
	Statements []schema.Statement
	Scripts    []string

	Result infra.RunResult
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewTransformPipeline builds snapshot -> tables -> stored outputs.
func NewTransformPipeline(source SnapshotSource, sink OutputSink) *Pipeline {
	return NewPipeline(
		&LoadSnapshotStep{Source: source},
		&BuildTablesStep{},
		&SaveOutputsStep{Sink: sink},
	)
}

// NewSQLPipeline builds latest outputs -> flattened, staged tables -> SQL
// scripts.
func NewSQLPipeline(loader OutputLoader, sink OutputSink, dialect schema.Dialect, scripts storage.ObjectStore) *Pipeline {
	return NewPipeline(sqlSteps(loader, sink, dialect, scripts)...)
}

// NewLoadPipeline extends the SQL pipeline with execution against the
// warehouse and a schema check of every loaded table.
func NewLoadPipeline(loader OutputLoader, sink OutputSink, dialect schema.Dialect, scripts storage.ObjectStore, warehouse infra.Executor) *Pipeline {
	steps := sqlSteps(loader, sink, dialect, scripts)
	steps = append(steps,
		&ExecuteStep{Warehouse: warehouse},
		&VerifyStep{Warehouse: warehouse},
	)
	return NewPipeline(steps...)
}

func sqlSteps(loader OutputLoader, sink OutputSink, dialect schema.Dialect, scripts storage.ObjectStore) []PipelineStep {
	return []PipelineStep{
		&LoadOutputsStep{Loader: loader},
		&FlattenStep{},
		&StageStep{Sink: sink},
		&GenerateSQLStep{Dialect: dialect, Scripts: scripts},
	}
}
