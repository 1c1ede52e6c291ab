package report

import (
	"context"
	"fmt"

	"github.com/dvloznov/billing-olap/internal/logger"
)

// NotionReporter writes one page per run into a Notion database.
type NotionReporter struct {
	service    NotionService
	databaseID string
}

// NewNotionReporter creates a reporter writing into databaseID.
func NewNotionReporter(service NotionService, databaseID string) *NotionReporter {
	return &NotionReporter{
		service:    service,
		databaseID: databaseID,
	}
}

// ReportRun creates the run's page.
func (r *NotionReporter) ReportRun(ctx context.Context, s RunSummary) error {
	log := logger.FromContext(ctx)

	page, err := r.service.CreatePage(ctx, r.databaseID, SummaryToNotionProperties(s))
	if err != nil {
		return fmt.Errorf("ReportRun: %s: %w", s.RunID, err)
	}

	log.Debug().
		Str("run_id", s.RunID).
		Str("page_id", string(page.ID)).
		Msg("run reported to Notion")
	return nil
}
