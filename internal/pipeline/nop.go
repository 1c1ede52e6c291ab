package pipeline

import (
	"context"

	"github.com/google/uuid"

	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/logger"
)

// NopRunRecorder hands out run ids without persisting anything. It is used
// when no warehouse is configured.
type NopRunRecorder struct{}

func (NopRunRecorder) StartRun(ctx context.Context, kind, runTS string) (string, error) {
	return uuid.NewString(), nil
}

func (NopRunRecorder) MarkRunSucceeded(ctx context.Context, runID string, result infra.RunResult) error {
	return nil
}

func (NopRunRecorder) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)
	log.Debug().Str("run_id", runID).Msg("run failure not recorded")
}

func (NopRunRecorder) ListRecentRuns(ctx context.Context, limit int) ([]*infra.RunRow, error) {
	return nil, nil
}
