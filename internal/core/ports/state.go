package ports

import (
	"context"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

//go:generate mockery --name StateStore --output ./mocks --outpkg mocks --case underscore

type StateStore interface {
	// Save replaces the stored state atomically.
	Save(ctx context.Context, state domain.LifecycleState) error
	// Load fails with STATE_NOT_FOUND when nothing was ever saved.
	Load(ctx context.Context) (domain.LifecycleState, error)
	Validate(state domain.LifecycleState) error
}

//go:generate mockery --name BackupStore --output ./mocks --outpkg mocks --case underscore

// BackupStore lists and restores the timestamped copies a state store keeps
// next to the current document.
type BackupStore interface {
	// ListBackups returns the newest backup first.
	ListBackups(ctx context.Context) ([]domain.Backup, error)
	// RestoreBackup makes the backup named by stamp the current state and
	// returns it. An empty stamp picks the newest backup.
	RestoreBackup(ctx context.Context, stamp string) (domain.LifecycleState, error)
}

// RunHistory is an append-only record of finished runs.
type RunHistory interface {
	AppendHistory(ctx context.Context, entry reporting.HistoryEntry) error
	// History returns up to limit entries, newest first.
	History(ctx context.Context, limit int) ([]reporting.HistoryEntry, error)
}

// RunLocker serializes mutating runs against one project. The returned
// unlock func must be called exactly once.
type RunLocker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// InventorySource discovers resource identifiers from an external record of
// what was provisioned.
type InventorySource interface {
	Type() string
	Discover(ctx context.Context) (domain.Inventory, error)
}
