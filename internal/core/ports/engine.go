package ports

import (
	"context"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

//go:generate mockery --name LifecycleEngine --output ./mocks --outpkg mocks --case underscore

// LifecycleEngine runs one lifecycle command across every registered driver.
type LifecycleEngine interface {
	Execute(ctx context.Context, cmd domain.Command, dryRun bool) (*domain.OperationReport, error)
}
