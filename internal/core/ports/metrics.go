package ports

import (
	"time"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

//go:generate mockery --name MetricsRecorder --output ./mocks --outpkg mocks --case underscore

type MetricsRecorder interface {
	ObserveResult(cmd domain.Command, result domain.OperationResult)
	ObserveRetry(operation string, err error, wait time.Duration)
	ObserveRun(report *domain.OperationReport)
}
