package pipeline

import (
	"context"

	"github.com/dvloznov/billing-olap/internal/olap"
	"github.com/dvloznov/billing-olap/internal/report"
	"github.com/dvloznov/billing-olap/internal/snapshot"
	"github.com/dvloznov/billing-olap/internal/staging"
	"github.com/dvloznov/billing-olap/internal/storage"
)

// SnapshotSource provides the snapshot a transform run reads.
type SnapshotSource interface {
	// Load returns the decoded snapshot and the object it came from.
	Load(ctx context.Context) (*snapshot.Snapshot, storage.Object, error)
}

// OutputSink persists output tables.
type OutputSink interface {
	// SaveAll writes every table of a run and returns their URIs in order.
	SaveAll(ctx context.Context, tables []*olap.Table, runTS string) ([]string, error)

	// Stage writes a warehouse-ready copy of one table and returns its URI.
	Stage(ctx context.Context, t *olap.Table, runTS string) (string, error)
}

// OutputLoader reads back the newest set of output tables.
type OutputLoader interface {
	Load(ctx context.Context, tables []string) (*staging.Outputs, error)
}

// Reporter publishes a summary of each finished run.
type Reporter interface {
	ReportRun(ctx context.Context, s report.RunSummary) error
}
