package shared

import (
	"context"
	"time"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/retry"
)

// Caller issues AWS API calls on behalf of one driver. Every call waits on
// the shared limiter and has its error classified; mutating calls also go
// through the retry policy.
type Caller struct {
	Service  string
	Resource string
	Limiter  RateLimiter
	Errors   ErrorHandler
	Policy   retry.Policy
	Logger   ports.Logger
}

// Read issues a single non-mutating call bounded by the policy's call timeout.
func (c Caller) Read(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return c.Errors.Handle(ctx, c.Service, operation, c.Resource, err)
	}
	callCtx := ctx
	if c.Policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.Policy.CallTimeout)
		defer cancel()
	}
	if err := fn(callCtx); err != nil {
		return c.Errors.Handle(ctx, c.Service, operation, c.Resource, err)
	}
	return nil
}

// Mutate issues a mutating call through the retry policy.
func (c Caller) Mutate(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return c.Policy.Do(ctx, c.Service+"."+operation, func(callCtx context.Context) error {
		if err := c.Limiter.Wait(callCtx); err != nil {
			return c.Errors.Handle(ctx, c.Service, operation, c.Resource, err)
		}
		c.Logger.Debugf(ctx, "%s %s on %s", c.Service, operation, c.Resource)
		if err := fn(callCtx); err != nil {
			return c.Errors.Handle(ctx, c.Service, operation, c.Resource, err)
		}
		return nil
	}, retry.DefaultClassifier)
}

// Poll calls check every interval until it reports done, returns an error,
// or timeout elapses. A timeout yields RESOURCE_BUSY.
func (c Caller) Poll(ctx context.Context, what string, interval, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New(errors.CodeResourceBusy, "timed out waiting for "+what)
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Cancelled(ctx.Err(), "cancelled while waiting for %s", what)
		case <-t.C:
		}
	}
}

// LogRejected records a target the remote API refused, with both
// configurations, so the user can see what was attempted.
func LogRejected(ctx context.Context, logger ports.Logger, err error, current, target domain.ResourceSnapshot) {
	if !errors.Is(err, errors.CodeInvalidTarget) && !errors.Is(err, errors.CodeConflict) {
		return
	}
	logger.Errorf(ctx, err, "Remote API rejected target for %s: prior=%+v attempted=%+v", current.Key(), current.Fields, target.Fields)
}

// Result starts an OperationResult for a driver run.
func Result(current, target domain.ResourceSnapshot) domain.OperationResult {
	prev := current
	next := target
	return domain.OperationResult{
		Kind:       current.Kind,
		Identifier: current.Identifier,
		Action:     domain.ActionNoOp,
		Previous:   &prev,
		New:        &next,
		Phase:      domain.PhaseDescribed,
	}
}

// Fail marks res as failed with err and returns both.
func Fail(res domain.OperationResult, err error) (domain.OperationResult, error) {
	res.Err = err
	res.Phase = domain.PhaseFailed
	return res, err
}
