package function

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	aws_errors "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/errors"
	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const serviceName = "Lambda"

// Spec is a named group of functions parked together.
type Spec struct {
	Name      string
	Functions []string
}

// Driver throttles a group of Lambda functions by setting their reserved
// concurrency to zero. Functions are never created or deleted.
type Driver struct {
	spec         Spec
	client       LambdaClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	logger       ports.Logger
}

type DriverOption func(*Driver)

func WithLambdaClient(client LambdaClientInterface) DriverOption {
	return func(d *Driver) {
		if client != nil {
			d.client = client
		}
	}
}

func WithRateLimiter(limiter shared.RateLimiter) DriverOption {
	return func(d *Driver) {
		if limiter != nil {
			d.limiter = limiter
		}
	}
}

func WithErrorHandler(handler shared.ErrorHandler) DriverOption {
	return func(d *Driver) {
		if handler != nil {
			d.errorHandler = handler
		}
	}
}

func WithRetryPolicy(policy retry.Policy) DriverOption {
	return func(d *Driver) { d.policy = policy }
}

func WithLogger(logger ports.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDriver(cfg aws.Config, spec Spec, opts ...DriverOption) *Driver {
	d := &Driver{
		spec:         spec,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		policy:       retry.DefaultPolicy(),
		logger:       log.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = lambda.NewFromConfig(cfg)
	}
	if d.limiter == nil {
		d.limiter = aws_limiter.New(aws_limiter.DefaultRPS, d.logger)
	}
	d.logger = d.logger.WithFields(map[string]any{"resource_kind": domain.KindFunctionGroup, "resource_id": spec.Name})
	return d
}

func (d *Driver) Kind() domain.ResourceKind { return domain.KindFunctionGroup }

func (d *Driver) Identifier() string { return d.spec.Name }

func (d *Driver) caller(function string) shared.Caller {
	return shared.Caller{
		Service:  serviceName,
		Resource: function,
		Limiter:  d.limiter,
		Errors:   d.errorHandler,
		Policy:   d.policy,
		Logger:   d.logger,
	}
}

// Describe reads the reserved concurrency of every function in the group.
// Functions that no longer exist are left out of the snapshot.
func (d *Driver) Describe(ctx context.Context) (domain.ResourceSnapshot, error) {
	snap := domain.ResourceSnapshot{
		Kind:       domain.KindFunctionGroup,
		Identifier: d.spec.Name,
		Present:    true,
	}
	fields := domain.FunctionGroupFields{Functions: make([]domain.FunctionLimit, 0, len(d.spec.Functions))}

	for _, name := range d.spec.Functions {
		var out *lambda.GetFunctionConcurrencyOutput
		err := d.caller(name).Read(ctx, "GetFunctionConcurrency", func(ctx context.Context) error {
			var err error
			out, err = d.client.GetFunctionConcurrency(ctx, &lambda.GetFunctionConcurrencyInput{FunctionName: aws.String(name)})
			return err
		})
		if err != nil {
			if errors.Is(err, errors.CodeResourceNotFound) {
				d.logger.Warnf(ctx, "Function %s not found, skipping", name)
				continue
			}
			snap.Fields = fields
			return snap, err
		}
		fields.Functions = append(fields.Functions, domain.FunctionLimit{
			Function:         name,
			ConcurrencyLimit: out.ReservedConcurrentExecutions,
		})
	}

	snap.Fields = fields
	return snap, nil
}

func (d *Driver) MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot {
	target := current
	f, ok := current.Fields.(domain.FunctionGroupFields)
	if !ok {
		return target
	}
	limits := make([]domain.FunctionLimit, 0, len(f.Functions))
	for _, fl := range f.Functions {
		limits = append(limits, domain.FunctionLimit{Function: fl.Function, ConcurrencyLimit: aws.Int32(0)})
	}
	target.Fields = domain.FunctionGroupFields{Functions: limits}
	return target
}

func (d *Driver) Apply(ctx context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error) {
	current, err := d.Describe(ctx)
	res := shared.Result(current, target)
	if err != nil {
		return shared.Fail(res, err)
	}
	want, ok := target.Fields.(domain.FunctionGroupFields)
	if !ok {
		return shared.Fail(res, errors.Newf(errors.CodeInvalidTarget, "target for function group '%s' carries %T fields", d.spec.Name, target.Fields))
	}
	have := current.Fields.(domain.FunctionGroupFields)
	action := domain.PlanAction(current, target)

	applied := make(map[string]*int32)
	var firstErr error
	var failed []string
	for _, fl := range want.Functions {
		cur, exists := have.Limit(fl.Function)
		if !exists {
			res.Warn(fmt.Sprintf("function %s not found; skipped", fl.Function))
			continue
		}
		if sameLimit(cur.ConcurrencyLimit, fl.ConcurrencyLimit) {
			continue
		}
		res.Phase = domain.PhaseApplying
		if err := d.setLimit(ctx, fl.Function, fl.ConcurrencyLimit); err != nil {
			d.logger.Errorf(ctx, err, "Failed to set concurrency for %s", fl.Function)
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, fl.Function)
			continue
		}
		applied[fl.Function] = fl.ConcurrencyLimit
	}

	newFields := domain.FunctionGroupFields{Functions: make([]domain.FunctionLimit, 0, len(have.Functions))}
	for _, fl := range have.Functions {
		if limit, ok := applied[fl.Function]; ok {
			fl.ConcurrencyLimit = limit
		}
		newFields.Functions = append(newFields.Functions, fl)
	}
	res.New.Fields = newFields

	if firstErr != nil {
		if len(applied) > 0 {
			res.Action = action
		}
		err := errors.WrapWithCode(firstErr, errors.GetCode(firstErr),
			fmt.Sprintf("%d of %d functions failed: %s", len(failed), len(want.Functions), strings.Join(failed, ", ")))
		shared.LogRejected(ctx, d.logger, err, current, target)
		return shared.Fail(res, err)
	}

	if len(applied) > 0 {
		res.Action = action
	}
	res.Phase = domain.PhaseApplied
	return res, nil
}

// setLimit reserves limit concurrent executions, or removes the reservation
// when limit is nil.
func (d *Driver) setLimit(ctx context.Context, function string, limit *int32) error {
	if limit == nil {
		return d.caller(function).Mutate(ctx, "DeleteFunctionConcurrency", func(ctx context.Context) error {
			_, err := d.client.DeleteFunctionConcurrency(ctx, &lambda.DeleteFunctionConcurrencyInput{FunctionName: aws.String(function)})
			return err
		})
	}
	return d.caller(function).Mutate(ctx, "PutFunctionConcurrency", func(ctx context.Context) error {
		_, err := d.client.PutFunctionConcurrency(ctx, &lambda.PutFunctionConcurrencyInput{
			FunctionName:                 aws.String(function),
			ReservedConcurrentExecutions: aws.Int32(*limit),
		})
		return err
	})
}

func sameLimit(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
