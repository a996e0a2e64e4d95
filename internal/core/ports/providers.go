package ports

import (
	"context"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

//go:generate mockery --name ResourceDriver --output ./mocks --outpkg mocks --case underscore
//go:generate mockery --name PlatformProvider --output ./mocks --outpkg mocks --case underscore

// ResourceDriver reads and mutates exactly one remote resource.
type ResourceDriver interface {
	Kind() domain.ResourceKind
	Identifier() string
	// Describe reads the live configuration. An expected absence is reported
	// as Present=false, not as an error.
	Describe(ctx context.Context) (domain.ResourceSnapshot, error)
	// MinimalCostTarget is pure: the cheapest configuration reachable from
	// current without destroying durable data.
	MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot
	// Apply moves the resource to target with the fewest mutating calls and
	// returns NoOp without any mutating call when it is already there.
	Apply(ctx context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error)
}

// PlatformProvider builds the drivers for the configured resource inventory.
type PlatformProvider interface {
	Type() string
	Drivers(ctx context.Context) ([]ResourceDriver, error)
	AccountID(ctx context.Context) (string, error)
}
