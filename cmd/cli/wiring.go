package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/billing-olap/internal/config"
	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/logger"
	"github.com/dvloznov/billing-olap/internal/pipeline"
	"github.com/dvloznov/billing-olap/internal/report"
	"github.com/dvloznov/billing-olap/internal/schema"
	"github.com/dvloznov/billing-olap/internal/staging"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// environment holds the clients one command works with.
type environment struct {
	cfg *config.Config

	// remote is the configured bucket; nil in DEV without one.
	remote storage.ObjectStore

	// outputs is where output tables live: remote in PROD, the local output
	// directory in DEV.
	outputs storage.ObjectStore
	layout  staging.Layout

	warehouse *infra.Warehouse
	reporter  pipeline.Reporter

	closers []func() error
}

func openEnvironment(ctx context.Context, cfg *config.Config, needRemote bool) (*environment, error) {
	log := logger.FromContext(ctx)
	env := &environment{cfg: cfg}

	if cfg.Bucket() != "" {
		remote, err := openRemote(ctx, cfg, env)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.remote = remote
	} else if needRemote {
		return nil, fmt.Errorf("no bucket configured for %s (use -file to read a local snapshot): %w",
			cfg.StorageBackend, config.ErrMissingSetting)
	}

	if cfg.IsProd() {
		env.outputs = env.remote
		env.layout = staging.Layout{Prefix: cfg.OutputPrefix, Timestamped: true}
	} else {
		env.outputs = storage.NewLocalStore(cfg.LocalOutputDir)
		env.layout = staging.Layout{}
	}

	if cfg.BQProjectID != "" {
		w, err := infra.NewWarehouse(ctx, cfg.BQProjectID, cfg.BQDatasetID, cfg.ClientOptions()...)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.warehouse = w
		env.closers = append(env.closers, w.Close)
	} else {
		log.Debug().Msg("BQ_PROJECT_ID not set, runs will not be recorded")
	}

	if cfg.NotionEnabled() {
		env.reporter = report.NewNotionReporter(report.NewNotionClient(cfg.NotionToken), cfg.NotionRunsDatabaseID)
	}

	return env, nil
}

func openRemote(ctx context.Context, cfg *config.Config, env *environment) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		return storage.NewS3Store(ctx, cfg.S3)
	default:
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.ClientOptions()...)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, gcs.Close)
		return gcs, nil
	}
}

// runner builds a pipeline runner over the environment. source and dialect
// may be nil for commands that do not use them.
func (e *environment) runner(source pipeline.SnapshotSource, dialect schema.Dialect) *pipeline.Runner {
	deps := pipeline.Deps{
		Source:   source,
		Sink:     staging.NewSink(e.outputs, e.layout),
		Loader:   staging.NewOutputLoader(e.outputs, e.layout),
		Dialect:  dialect,
		Scripts:  storage.NewLocalStore(e.cfg.SQLDir),
		Reporter: e.reporter,
	}
	if e.warehouse != nil {
		deps.Runs = e.warehouse
		deps.Warehouse = e.warehouse
	}
	return pipeline.NewRunner(deps)
}

func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func dialectFor(cfg *config.Config, name string) (schema.Dialect, error) {
	switch name {
	case "bigquery":
		if cfg.BQProjectID == "" {
			return nil, fmt.Errorf("bigquery dialect needs BQ_PROJECT_ID: %w", config.ErrMissingSetting)
		}
		return schema.BigQueryDialect{ProjectID: cfg.BQProjectID, DatasetID: cfg.BQDatasetID}, nil
	case "snowflake":
		return schema.SnowflakeDialect{Stage: cfg.SnowflakeStage}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}
