package pipeline

import (
	"context"
	"errors"
	"fmt"

	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/logger"
	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/schema"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// LoadSnapshotStep reads the snapshot the run transforms.
type LoadSnapshotStep struct {
	Source SnapshotSource
}

func (s *LoadSnapshotStep) Execute(ctx context.Context, state *PipelineState) error {
	snap, obj, err := s.Source.Load(ctx)
	if err != nil {
		return err
	}
	state.Snapshot = snap
	state.Source = obj
	state.Result.SourceObject = obj.Name

	log := logger.FromContext(ctx)
	log.Info().
		Str("source", obj.Name).
		Int64("bytes", obj.Size).
		Time("updated", obj.Updated).
		Strs("entities", snap.Names()).
		Msg("snapshot loaded")
	return nil
}

// BuildTablesStep runs every builder over the snapshot.
type BuildTablesStep struct{}

func (s *BuildTablesStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	batch, err := olap.BuildAll(ctx, state.Snapshot)
	if err != nil {
		return err
	}
	state.Batch = batch

	for _, t := range batch.Tables {
		log.Info().
			Str("table", t.Name).
			Int("rows", t.Len()).
			Msg("table built")
	}
	for _, st := range batch.Fact.Steps {
		if st.Unmatched == 0 && st.Ambiguous == 0 {
			continue
		}
		log.Warn().
			Str("join", st.Name).
			Str("kind", st.Kind.String()).
			Int("input", st.Input).
			Int("unmatched", st.Unmatched).
			Int("ambiguous", st.Ambiguous).
			Msg("fact join did not match every row")
	}

	fact, _ := batch.Table(olap.TableFactInvoices)
	state.Result.SourceInvoices = batch.SourceInvoices
	state.Result.FactRows = fact.Len()
	state.Result.DroppedInvoices = batch.SourceInvoices - fact.Len()
	return nil
}

// SaveOutputsStep writes every built table under the run timestamp.
type SaveOutputsStep struct {
	Sink OutputSink
}

func (s *SaveOutputsStep) Execute(ctx context.Context, state *PipelineState) error {
	uris, err := s.Sink.SaveAll(ctx, state.Batch.Tables, state.RunTS)
	if err != nil {
		return err
	}
	state.OutputURIs = uris
	state.Result.TablesWritten = len(uris)

	log := logger.FromContext(ctx)
	for _, uri := range uris {
		log.Info().Str("uri", uri).Msg("output saved")
	}
	return nil
}

// LoadOutputsStep reads back the newest complete output set.
type LoadOutputsStep struct {
	Loader OutputLoader
}

func (s *LoadOutputsStep) Execute(ctx context.Context, state *PipelineState) error {
	outputs, err := s.Loader.Load(ctx, olap.TableNames)
	if err != nil {
		return err
	}
	state.Outputs = outputs

	log := logger.FromContext(ctx)
	log.Info().
		Str("outputs_ts", outputs.RunTS).
		Int("tables", len(outputs.Tables)).
		Msg("outputs loaded")
	return nil
}

// FlattenStep applies the flatten rules to every loaded table and infers the
// warehouse schema of the result.
type FlattenStep struct{}

func (s *FlattenStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Tables = make([]*olap.Table, 0, len(state.Outputs.Tables))
	state.Schemas = make([]schema.TableSchema, 0, len(state.Outputs.Tables))

	for _, t := range state.Outputs.Tables {
		flat := olap.ApplyFlattenIfNeeded(t, t.Name)
		state.Tables = append(state.Tables, flat)
		state.Schemas = append(state.Schemas, schema.InferTable(flat))
	}
	return nil
}

// StageStep writes the flattened tables next to the outputs they came from,
// ready for the warehouse to load.
type StageStep struct {
	Sink OutputSink
}

func (s *StageStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.StagedURIs = make(map[string]string, len(state.Tables))
	for _, t := range state.Tables {
		uri, err := s.Sink.Stage(ctx, t, state.Outputs.RunTS)
		if err != nil {
			return err
		}
		state.StagedURIs[t.Name] = uri
		log.Debug().Str("table", t.Name).Str("uri", uri).Msg("table staged")
	}
	state.Result.TablesWritten = len(state.StagedURIs)
	return nil
}

// GenerateSQLStep renders the create and load statements and, when Scripts
// is set, writes them as two script files.
type GenerateSQLStep struct {
	Dialect schema.Dialect
	Scripts storage.ObjectStore
}

func (s *GenerateSQLStep) Execute(ctx context.Context, state *PipelineState) error {
	creates := schema.CreateStatements(s.Dialect, state.Schemas)
	loads := schema.LoadStatements(s.Dialect, state.Schemas, func(table string) string {
		return state.StagedURIs[table]
	})
	state.Statements = append(creates, loads...)

	if s.Scripts == nil {
		return nil
	}

	log := logger.FromContext(ctx)
	for _, f := range []struct {
		name  string
		stmts []schema.Statement
	}{
		{CreateScriptName, creates},
		{LoadScriptName, loads},
	} {
		if err := s.Scripts.Write(ctx, f.name, []byte(schema.Script(f.stmts)), "application/sql"); err != nil {
			return fmt.Errorf("GenerateSQL: %s: %w", f.name, err)
		}
		uri := s.Scripts.URI(f.name)
		state.Scripts = append(state.Scripts, uri)
		log.Info().
			Str("dialect", s.Dialect.Name()).
			Str("path", uri).
			Int("statements", len(f.stmts)).
			Msg("SQL script written")
	}
	return nil
}

// ExecuteStep runs the generated statements against the warehouse.
type ExecuteStep struct {
	Warehouse infra.Executor
}

func (s *ExecuteStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Warehouse.Exec(ctx, state.Statements)
}

// VerifyStep compares every loaded table with its inferred schema. All
// mismatches are reported together.
type VerifyStep struct {
	Warehouse infra.Executor
}

func (s *VerifyStep) Execute(ctx context.Context, state *PipelineState) error {
	var errs []error
	for _, want := range state.Schemas {
		if err := s.Warehouse.VerifyTable(ctx, want); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Verify: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("tables", len(state.Schemas)).
		Msg("loaded tables verified")
	return nil
}
