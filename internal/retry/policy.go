// Package retry wraps individual remote calls with bounded exponential
// backoff. It is never applied around a whole command run.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/olusolaa/cost-parker/internal/errors"
)

type Class int

const (
	Fatal Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Classifier decides whether a failed attempt may be repeated.
type Classifier func(error) Class

// DefaultClassifier retries UNAVAILABLE, THROTTLED and RESOURCE_BUSY.
func DefaultClassifier(err error) Class {
	if errors.IsRetryable(err) {
		return Retryable
	}
	return Fatal
}

type Policy struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxAttempts int
	MaxDelay    time.Duration
	// Jitter is the randomization factor in [0, 1).
	Jitter float64
	// CallTimeout bounds each attempt. Zero means no per-attempt bound.
	CallTimeout time.Duration

	// OnRetry is called before sleeping between attempts.
	OnRetry func(operation string, err error, wait time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		Factor:      2,
		MaxAttempts: 3,
		MaxDelay:    30 * time.Second,
		Jitter:      0.1,
		CallTimeout: 20 * time.Second,
	}
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	b.RandomizationFactor = p.Jitter
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// Do runs fn until it succeeds, fails with an error classify marks Fatal, or
// MaxAttempts is reached. Cancelling ctx stops immediately, including during
// a backoff sleep, with an error for which errors.Is(err, context.Canceled)
// holds.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error, classify Classifier) error {
	if classify == nil {
		classify = DefaultClassifier
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	tries := 0
	op := func() (struct{}, error) {
		tries++
		err := p.attempt(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if classify(err) == Fatal {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(operation, err, wait)
		}))
	}

	_, err := backoff.Retry(ctx, op, opts...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Cancelled(ctxErr, "%s cancelled after %d attempt(s)", operation, tries)
	}
	if lastErr == nil {
		lastErr = err
	}
	if classify(lastErr) == Fatal || tries < 2 {
		return lastErr
	}
	return errors.WrapWithCode(lastErr, errors.GetCode(lastErr), fmt.Sprintf("%s failed after %d attempts", operation, tries))
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if p.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		defer cancel()
	}
	err := fn(callCtx)
	if err == nil {
		return nil
	}
	// A per-call deadline with a live parent is a slow remote, not a cancellation.
	if ctx.Err() == nil && stderrors.Is(err, context.DeadlineExceeded) && errors.GetCode(err) != errors.CodeUnavailable {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "remote call timed out")
	}
	return err
}
