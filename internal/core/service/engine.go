package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

// DefaultConcurrency of 0 runs every driver in its own goroutine.
const DefaultConcurrency = 0

// LifecycleController runs status, stop and start across every registered
// driver. Drivers run concurrently; a failing driver never aborts the others.
type LifecycleController struct {
	registry    *DriverRegistry
	store       ports.StateStore
	costs       ports.CostModel
	metrics     ports.MetricsRecorder
	logger      ports.Logger
	project     string
	accountID   string
	concurrency int
	now         func() time.Time
	newRunID    func() string
}

type ControllerOption func(*LifecycleController)

func WithProject(project string) ControllerOption {
	return func(c *LifecycleController) { c.project = project }
}

func WithAccountID(accountID string) ControllerOption {
	return func(c *LifecycleController) { c.accountID = accountID }
}

// WithConcurrency caps how many drivers run at once. Zero or less means one
// goroutine per driver.
func WithConcurrency(n int) ControllerOption {
	return func(c *LifecycleController) {
		if n < 0 {
			n = 0
		}
		c.concurrency = n
	}
}

func WithMetrics(metrics ports.MetricsRecorder) ControllerOption {
	return func(c *LifecycleController) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *LifecycleController) {
		if now != nil {
			c.now = now
		}
	}
}

func WithRunIDs(newRunID func() string) ControllerOption {
	return func(c *LifecycleController) {
		if newRunID != nil {
			c.newRunID = newRunID
		}
	}
}

func NewLifecycleController(
	registry *DriverRegistry,
	store ports.StateStore,
	costs ports.CostModel,
	logger ports.Logger,
	opts ...ControllerOption,
) (*LifecycleController, error) {
	if registry == nil {
		return nil, errors.New(errors.CodeConfigValidation, "driver registry cannot be nil")
	}
	if store == nil {
		return nil, errors.New(errors.CodeConfigValidation, "state store cannot be nil")
	}
	if costs == nil {
		return nil, errors.New(errors.CodeConfigValidation, "cost model cannot be nil")
	}

	c := &LifecycleController{
		registry:    registry,
		store:       store,
		costs:       costs,
		metrics:     nopMetrics{},
		logger:      logger,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		newRunID:    func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *LifecycleController) Execute(ctx context.Context, cmd domain.Command, dryRun bool) (*domain.OperationReport, error) {
	if c.registry.Len() == 0 {
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			"no resources are registered",
			"Declare resources in the configuration file or enable discovery.tfstate.")
	}

	switch cmd {
	case domain.CommandStatus:
		return c.Status(ctx)
	case domain.CommandStop:
		return c.Stop(ctx, dryRun)
	case domain.CommandStart:
		return c.Start(ctx, dryRun)
	default:
		return nil, errors.Newf(errors.CodeInternal, "unknown command '%s'", cmd)
	}
}

// Status describes every resource and prices its current configuration. It
// never mutates anything.
func (c *LifecycleController) Status(ctx context.Context) (*domain.OperationReport, error) {
	report := c.newReport(ctx, domain.CommandStatus, false)
	drivers := c.registry.Drivers()

	report.Results = c.runAll(ctx, domain.CommandStatus, drivers, func(ctx context.Context, i int, d ports.ResourceDriver) domain.OperationResult {
		current, err := d.Describe(ctx)
		res := newResult(d)
		if err != nil {
			res.Err = err
			res.Phase = domain.PhaseFailed
			return res
		}
		res.Previous = &current
		res.New = &current
		res.Phase = domain.PhaseDescribed
		return res
	})

	return c.finish(ctx, report), nil
}

// captured is the pre-mutation snapshot one stop goroutine read.
type captured struct {
	snapshot  domain.ResourceSnapshot
	ok        bool
	atMinimal bool
}

// Stop moves every resource to its minimal-cost configuration. Outside a dry
// run the pre-mutation snapshots are saved once every driver has finished,
// including the ones that failed.
func (c *LifecycleController) Stop(ctx context.Context, dryRun bool) (*domain.OperationReport, error) {
	report := c.newReport(ctx, domain.CommandStop, dryRun)
	drivers := c.registry.Drivers()
	snaps := make([]captured, len(drivers))

	report.Results = c.runAll(ctx, domain.CommandStop, drivers, func(ctx context.Context, i int, d ports.ResourceDriver) domain.OperationResult {
		current, err := d.Describe(ctx)
		if err != nil {
			res := newResult(d)
			res.Err = err
			res.Phase = domain.PhaseFailed
			return res
		}
		target := d.MinimalCostTarget(current)
		snaps[i] = captured{
			snapshot:  current,
			ok:        true,
			atMinimal: current.Present == target.Present && domain.FieldsEqual(current.Fields, target.Fields),
		}

		if dryRun {
			return plan(d, current, target)
		}
		res, err := d.Apply(ctx, target)
		return settle(d, res, err)
	})

	var previous *domain.LifecycleState
	if ctx.Err() == nil {
		previous = c.previousState(ctx)
		report.Results = append(report.Results, c.retained(ctx, previous)...)
	}

	c.finish(ctx, report)
	if dryRun {
		return report, nil
	}
	if ctx.Err() != nil {
		c.logger.Warnf(ctx, "Run cancelled before completion, state not saved")
		return report, nil
	}

	state := c.restorePoint(ctx, report, drivers, snaps, previous)
	if err := c.store.Save(ctx, state); err != nil {
		c.logger.Errorf(ctx, err, "Failed to save lifecycle state; resources may have been parked without a restore point")
		return report, err
	}
	return report, nil
}

// previousState returns the last saved restore point, or nil when there is
// none or it cannot be trusted.
func (c *LifecycleController) previousState(ctx context.Context) *domain.LifecycleState {
	previous, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, errors.CodeStateNotFound) {
			c.logger.Warnf(ctx, "Previous state unreadable, not carrying snapshots forward: %v", err)
		}
		return nil
	}
	if err := c.store.Validate(previous); err != nil {
		c.logger.Warnf(ctx, "Previous state invalid, not carrying snapshots forward: %v", err)
		return nil
	}
	return &previous
}

// orphans are the snapshots of previous that no registered driver owns:
// unknown kinds and resources removed from the configuration.
func (c *LifecycleController) orphans(previous *domain.LifecycleState) []domain.ResourceSnapshot {
	if previous == nil {
		return nil
	}
	var out []domain.ResourceSnapshot
	for _, snap := range previous.Snapshots {
		if _, ok := c.registry.Get(snap.Kind, snap.Identifier); !ok {
			out = append(out, snap)
		}
	}
	return out
}

// retained reports every orphan snapshot as a NoOp with a warning; stop keeps
// them in the restore point untouched.
func (c *LifecycleController) retained(ctx context.Context, previous *domain.LifecycleState) []domain.OperationResult {
	var results []domain.OperationResult
	for _, snap := range c.orphans(previous) {
		res := domain.OperationResult{
			Kind:       snap.Kind,
			Identifier: snap.Identifier,
			Action:     domain.ActionNoOp,
			Phase:      domain.PhaseUnknown,
		}
		res.Warn("saved snapshot has no configured driver; kept in the restore point unchanged")
		c.logger.Warnf(ctx, "Keeping saved snapshot %s that no configured driver manages", snap.Key())
		c.metrics.ObserveResult(domain.CommandStop, res)
		results = append(results, res)
	}
	return results
}

// restorePoint builds the state to save after a stop. A resource that was
// already parked, or could not be described, keeps the snapshot from the
// previous restore point so that repeating stop never loses it. Snapshots no
// driver owns are carried over as they are.
func (c *LifecycleController) restorePoint(
	ctx context.Context,
	report *domain.OperationReport,
	drivers []ports.ResourceDriver,
	snaps []captured,
	previous *domain.LifecycleState,
) domain.LifecycleState {
	state := domain.LifecycleState{
		SchemaVersion: domain.CurrentSchemaVersion,
		Project:       c.project,
		Timestamp:     report.StartedAt,
		RunID:         report.RunID,
		Snapshots:     make([]domain.ResourceSnapshot, 0, len(drivers)),
	}
	for i, d := range drivers {
		snap := snaps[i]
		if snap.ok && !snap.atMinimal {
			state.Snapshots = append(state.Snapshots, snap.snapshot)
			continue
		}
		if previous != nil {
			if prev, found := previous.Lookup(d.Kind(), d.Identifier()); found {
				c.logger.Debugf(ctx, "Keeping previous restore point for %s", prev.Key())
				state.Snapshots = append(state.Snapshots, prev)
				continue
			}
		}
		if snap.ok {
			state.Snapshots = append(state.Snapshots, snap.snapshot)
			continue
		}
		c.logger.Warnf(ctx, "No snapshot for %s; it will not be restored by start",
			domain.SnapshotKey(d.Kind(), d.Identifier()))
	}
	state.Snapshots = append(state.Snapshots, c.orphans(previous)...)
	return state
}

// Start restores every resource to the snapshot saved by the last stop. A
// missing or invalid state fails before any driver is touched.
func (c *LifecycleController) Start(ctx context.Context, dryRun bool) (*domain.OperationReport, error) {
	state, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Validate(state); err != nil {
		return nil, err
	}

	report := c.newReport(ctx, domain.CommandStart, dryRun)
	drivers := c.registry.Drivers()

	report.Results = c.runAll(ctx, domain.CommandStart, drivers, func(ctx context.Context, i int, d ports.ResourceDriver) domain.OperationResult {
		saved, found := state.Lookup(d.Kind(), d.Identifier())
		if !found {
			res := newResult(d)
			res.Warn("no saved snapshot for this resource; left unchanged")
			return res
		}
		if dryRun {
			current, err := d.Describe(ctx)
			if err != nil {
				res := newResult(d)
				res.Err = err
				res.Phase = domain.PhaseFailed
				return res
			}
			return plan(d, current, saved)
		}
		res, err := d.Apply(ctx, saved)
		return settle(d, res, err)
	})

	for _, snap := range state.Snapshots {
		if _, ok := c.registry.Get(snap.Kind, snap.Identifier); ok {
			continue
		}
		saved := snap
		res := domain.OperationResult{
			Kind:       snap.Kind,
			Identifier: snap.Identifier,
			Action:     domain.ActionNoOp,
			New:        &saved,
			Phase:      domain.PhaseFailed,
			Err: errors.NewUserFacing(errors.CodeResourceNotFound,
				fmt.Sprintf("saved snapshot %s has no configured driver", snap.Key()),
				"Add the resource back to the configuration or run stop again to replace the restore point."),
		}
		c.price(&res)
		c.metrics.ObserveResult(domain.CommandStart, res)
		report.Results = append(report.Results, res)
	}

	return c.finish(ctx, report), nil
}

// runAll runs fn for every driver, each in its own goroutine unless a cap is
// configured. Each goroutine writes only its own slot of the returned slice.
func (c *LifecycleController) runAll(
	ctx context.Context,
	cmd domain.Command,
	drivers []ports.ResourceDriver,
	fn func(ctx context.Context, i int, d ports.ResourceDriver) domain.OperationResult,
) []domain.OperationResult {
	results := make([]domain.OperationResult, len(drivers))

	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, d := range drivers {
		g.Go(func() error {
			log := c.logger.WithFields(map[string]any{
				"resource_kind": d.Kind(),
				"resource_id":   d.Identifier(),
			})
			started := c.now()
			res := fn(ctx, i, d)
			res.Duration = c.now().Sub(started)
			c.price(&res)

			if res.Failed() {
				log.Errorf(ctx, res.Err, "%s failed", cmd)
			} else {
				log.Infof(ctx, "%s: %s (%+.4f/h)", cmd, res.Action, res.CostDeltaPerHour)
			}
			for _, w := range res.Warnings {
				log.Warnf(ctx, "%s", w)
			}
			c.metrics.ObserveResult(cmd, res)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// price fills the cost fields of res. A failed result is priced as unchanged
// since its final configuration is unknown.
func (c *LifecycleController) price(res *domain.OperationResult) {
	if res.Previous != nil {
		res.PreviousHourlyCost = c.costs.EstimateHourlyCost(*res.Previous)
	}
	switch {
	case res.Failed():
		res.NewHourlyCost = res.PreviousHourlyCost
	case res.New != nil:
		res.NewHourlyCost = c.costs.EstimateHourlyCost(*res.New)
	default:
		res.NewHourlyCost = res.PreviousHourlyCost
	}
	res.CostDeltaPerHour = res.NewHourlyCost - res.PreviousHourlyCost
}

func (c *LifecycleController) newReport(ctx context.Context, cmd domain.Command, dryRun bool) *domain.OperationReport {
	report := &domain.OperationReport{
		Command:   cmd,
		DryRun:    dryRun,
		RunID:     c.newRunID(),
		Project:   c.project,
		AccountID: c.accountID,
		StartedAt: c.now().UTC(),
	}
	c.logger.Infof(ctx, "Starting %s (dry_run=%t, run_id=%s)", cmd, dryRun, report.RunID)
	return report
}

func (c *LifecycleController) finish(ctx context.Context, report *domain.OperationReport) *domain.OperationReport {
	report.FinishedAt = c.now().UTC()
	report.Summarize()
	c.metrics.ObserveRun(report)
	if report.PartialFailure {
		c.logger.Warnf(ctx, "%s finished with %d failure(s) of %d resource(s)", report.Command, len(report.Failures()), len(report.Results))
	} else {
		c.logger.Infof(ctx, "%s finished for %d resource(s)", report.Command, len(report.Results))
	}
	return report
}

func newResult(d ports.ResourceDriver) domain.OperationResult {
	return domain.OperationResult{
		Kind:       d.Kind(),
		Identifier: d.Identifier(),
		Action:     domain.ActionNoOp,
		Phase:      domain.PhaseUnknown,
	}
}

// plan is the dry-run result of moving current to target.
func plan(d ports.ResourceDriver, current, target domain.ResourceSnapshot) domain.OperationResult {
	res := newResult(d)
	prev := current
	res.Previous = &prev
	res.Action = domain.PlanAction(current, target)
	if res.Action == domain.ActionNoOp {
		res.New = &prev
	} else {
		next := target
		res.New = &next
	}
	res.Phase = domain.PhaseDescribed
	return res
}

// settle normalises what a driver's Apply returned.
func settle(d ports.ResourceDriver, res domain.OperationResult, err error) domain.OperationResult {
	if res.Kind == "" {
		res.Kind = d.Kind()
		res.Identifier = d.Identifier()
	}
	if res.Action == "" {
		res.Action = domain.ActionNoOp
	}
	if err != nil && res.Err == nil {
		res.Err = err
	}
	if res.Err != nil {
		res.Phase = domain.PhaseFailed
	}
	return res
}

type nopMetrics struct{}

func (nopMetrics) ObserveResult(domain.Command, domain.OperationResult) {}
func (nopMetrics) ObserveRetry(string, error, time.Duration) {}
func (nopMetrics) ObserveRun(*domain.OperationReport) {}
