package ports

import (
	"context"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

type Reporter interface {
	Report(ctx context.Context, report *domain.OperationReport) error
}

// ListingReporter renders the run history and the available state backups.
type ListingReporter interface {
	ReportHistory(ctx context.Context, entries []reporting.HistoryEntry) error
	ReportBackups(ctx context.Context, backups []domain.Backup) error
}
