package app

import (
	"context"
	"time"

	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/metrics"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

// Application runs one lifecycle command and renders its report.
type Application struct {
	Engine   ports.LifecycleEngine
	Reporter ports.Reporter
	Metrics  *metrics.Recorder
	Logger   ports.Logger
	Config   *config.Config
	// Locker, when set, guards mutating runs so two stops or starts against
	// one project cannot interleave.
	Locker ports.RunLocker
	// History, when set, receives one entry per run.
	History ports.RunHistory
	// Backups is set when the state store keeps off-host backups.
	Backups ports.BackupStore

	now func() time.Time
}

func NewApplication(engine ports.LifecycleEngine, reporter ports.Reporter, recorder *metrics.Recorder, logger ports.Logger, cfg *config.Config) *Application {
	return &Application{
		Engine:   engine,
		Reporter: reporter,
		Metrics:  recorder,
		Logger:   logger,
		Config:   cfg,
		now:      time.Now,
	}
}

// Run executes cmd and returns the process exit code. A report is rendered
// whenever the engine produced one, even if it also returned an error.
func (a *Application) Run(ctx context.Context, cmd domain.Command, dryRun bool) (int, error) {
	a.Logger.Debugf(ctx, "Running %s (dry_run=%t)", cmd, dryRun)

	if cmd.Mutating() && !dryRun && a.Locker != nil {
		unlock, err := a.Locker.Lock(ctx)
		if err != nil {
			a.Logger.Errorf(ctx, err, "%s not started", cmd)
			return domain.ExitFatal, err
		}
		defer func() { _ = unlock() }()
	}

	report, err := a.Engine.Execute(ctx, cmd, dryRun)

	if report != nil {
		if reportErr := a.Reporter.Report(ctx, report); reportErr != nil {
			a.Logger.Errorf(ctx, reportErr, "Failed to render report")
		}
	}
	a.writeMetrics(ctx)
	a.recordHistory(ctx, cmd, dryRun, report, err)

	if err != nil {
		a.Logger.Errorf(ctx, err, "%s failed", cmd)
		return domain.ExitFatal, err
	}
	if report == nil {
		return domain.ExitFatal, nil
	}
	return report.ExitCode(), nil
}

func (a *Application) writeMetrics(ctx context.Context) {
	if a.Metrics == nil || a.Config == nil || a.Config.Settings.MetricsTextfile == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Config.Settings.MetricsTextfile); err != nil {
		a.Logger.Warnf(ctx, "Metrics not written: %v", err)
		return
	}
	a.Logger.Debugf(ctx, "Metrics written to %s", a.Config.Settings.MetricsTextfile)
}

// recordHistory runs on a fresh context so an interrupted run is still
// recorded.
func (a *Application) recordHistory(ctx context.Context, cmd domain.Command, dryRun bool, report *domain.OperationReport, runErr error) {
	if a.History == nil {
		return
	}
	entry := reporting.NewHistoryEntry(cmd, dryRun, report, runErr, a.clock())
	if err := a.History.AppendHistory(context.WithoutCancel(ctx), entry); err != nil {
		a.Logger.Warnf(ctx, "Run not recorded in history: %v", err)
	}
}

// ShowHistory renders up to limit recorded runs, newest first.
func (a *Application) ShowHistory(ctx context.Context, limit int) error {
	if a.History == nil {
		return errors.NewUserFacing(errors.CodeConfigValidation, "run history is disabled",
			"Set state.history to true to record runs.")
	}
	entries, err := a.History.History(ctx, limit)
	if err != nil {
		return err
	}
	return a.listing().ReportHistory(ctx, entries)
}

// ListBackups renders the off-host backups of the restore point.
func (a *Application) ListBackups(ctx context.Context) error {
	if a.Backups == nil {
		return errBackupsDisabled()
	}
	backups, err := a.Backups.ListBackups(ctx)
	if err != nil {
		return err
	}
	return a.listing().ReportBackups(ctx, backups)
}

// RestoreBackup replaces the local restore point with the backup named by
// stamp, or with the newest backup when stamp is empty. It takes the run lock
// so it cannot race a stop or start.
func (a *Application) RestoreBackup(ctx context.Context, stamp string) (domain.LifecycleState, error) {
	if a.Backups == nil {
		return domain.LifecycleState{}, errBackupsDisabled()
	}
	if a.Locker != nil {
		unlock, err := a.Locker.Lock(ctx)
		if err != nil {
			return domain.LifecycleState{}, err
		}
		defer func() { _ = unlock() }()
	}
	state, err := a.Backups.RestoreBackup(ctx, stamp)
	if err != nil {
		return domain.LifecycleState{}, err
	}
	a.Logger.Infof(ctx, "Restore point replaced by backup taken at %s (%d snapshot(s))",
		state.Timestamp.UTC().Format(time.RFC3339), len(state.Snapshots))
	return state, nil
}

func errBackupsDisabled() error {
	return errors.NewUserFacing(errors.CodeConfigValidation, "state backups are not configured",
		"Set state.s3.bucket to keep timestamped backups in S3.")
}

func (a *Application) listing() ports.ListingReporter {
	if l, ok := a.Reporter.(ports.ListingReporter); ok {
		return l
	}
	return unsupportedListing{}
}

func (a *Application) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

type unsupportedListing struct{}

func (unsupportedListing) ReportHistory(context.Context, []reporting.HistoryEntry) error {
	return errors.New(errors.CodeNotImplemented, "the configured reporter cannot render run history")
}

func (unsupportedListing) ReportBackups(context.Context, []domain.Backup) error {
	return errors.New(errors.CodeNotImplemented, "the configured reporter cannot render backups")
}
