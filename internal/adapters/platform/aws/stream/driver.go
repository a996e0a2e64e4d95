package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	aws_errors "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/errors"
	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const (
	serviceName = "Kinesis"

	// MinShards is the floor for a provisioned stream.
	MinShards int32 = 1

	DefaultPollInterval = 10 * time.Second
	DefaultStepTimeout  = 10 * time.Minute
)

type Spec struct {
	Name string
	// PollInterval and StepTimeout govern the wait for ACTIVE between hops.
	PollInterval time.Duration
	StepTimeout  time.Duration
}

// Driver scales a provisioned Kinesis stream down to one shard and back.
// Retention and records are never touched.
type Driver struct {
	spec         Spec
	client       KinesisClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	logger       ports.Logger
}

type DriverOption func(*Driver)

func WithKinesisClient(client KinesisClientInterface) DriverOption {
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
	if spec.PollInterval <= 0 {
		spec.PollInterval = DefaultPollInterval
	}
	if spec.StepTimeout <= 0 {
		spec.StepTimeout = DefaultStepTimeout
	}
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
		d.client = kinesis.NewFromConfig(cfg)
	}
	if d.limiter == nil {
		d.limiter = aws_limiter.New(aws_limiter.DefaultRPS, d.logger)
	}
	d.logger = d.logger.WithFields(map[string]any{"resource_kind": domain.KindStream, "resource_id": spec.Name})
	return d
}

func (d *Driver) Kind() domain.ResourceKind { return domain.KindStream }

func (d *Driver) Identifier() string { return d.spec.Name }

func (d *Driver) caller() shared.Caller {
	return shared.Caller{
		Service:  serviceName,
		Resource: d.spec.Name,
		Limiter:  d.limiter,
		Errors:   d.errorHandler,
		Policy:   d.policy,
		Logger:   d.logger,
	}
}

func (d *Driver) Describe(ctx context.Context) (domain.ResourceSnapshot, error) {
	snap, _, err := d.describe(ctx)
	return snap, err
}

func (d *Driver) describe(ctx context.Context) (domain.ResourceSnapshot, types.StreamStatus, error) {
	snap := domain.ResourceSnapshot{
		Kind:       domain.KindStream,
		Identifier: d.spec.Name,
		Fields:     domain.StreamFields{},
	}

	var out *kinesis.DescribeStreamSummaryOutput
	err := d.caller().Read(ctx, "DescribeStreamSummary", func(ctx context.Context) error {
		var err error
		out, err = d.client.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{StreamName: aws.String(d.spec.Name)})
		return err
	})
	if err != nil {
		if errors.Is(err, errors.CodeResourceNotFound) {
			return snap, "", nil
		}
		return snap, "", err
	}
	summary := out.StreamDescriptionSummary
	if summary == nil {
		return snap, "", errors.Newf(errors.CodePlatformAPIError, "empty stream summary for '%s'", d.spec.Name)
	}

	mode := domain.StreamModeProvisioned
	if summary.StreamModeDetails != nil && summary.StreamModeDetails.StreamMode == types.StreamModeOnDemand {
		mode = domain.StreamModeOnDemand
	}
	snap.Present = summary.StreamStatus != types.StreamStatusDeleting
	snap.Fields = domain.StreamFields{
		ShardCount:     aws.ToInt32(summary.OpenShardCount),
		StreamMode:     mode,
		RetentionHours: aws.ToInt32(summary.RetentionPeriodHours),
	}
	return snap, summary.StreamStatus, nil
}

// MinimalCostTarget requests a single shard. On-demand streams bill per use
// and are returned unchanged.
func (d *Driver) MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot {
	target := current
	f, ok := current.Fields.(domain.StreamFields)
	if !ok || f.StreamMode == domain.StreamModeOnDemand || !current.Present {
		return target
	}
	f.ShardCount = MinShards
	target.Fields = f
	return target
}

func (d *Driver) Apply(ctx context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error) {
	current, status, err := d.describe(ctx)
	res := shared.Result(current, target)
	if err != nil {
		return shared.Fail(res, err)
	}

	if !current.Present {
		if target.Present {
			return shared.Fail(res, errors.Newf(errors.CodeResourceNotFound, "stream '%s' does not exist and is never created by this tool", d.spec.Name))
		}
		res.Phase = domain.PhaseApplied
		return res, nil
	}

	have := current.Fields.(domain.StreamFields)
	want, ok := target.Fields.(domain.StreamFields)
	if !ok {
		return shared.Fail(res, errors.Newf(errors.CodeInvalidTarget, "target for stream '%s' carries %T fields", d.spec.Name, target.Fields))
	}

	if have.StreamMode == domain.StreamModeOnDemand {
		if want.ShardCount != have.ShardCount && want.StreamMode != domain.StreamModeOnDemand {
			res.Warn("stream is ON_DEMAND; shard count left unchanged")
		}
		*res.New = current
		res.Phase = domain.PhaseApplied
		return res, nil
	}
	if want.ShardCount < MinShards {
		err := errors.Newf(errors.CodeInvalidTarget, "shard count %d is below the minimum of %d", want.ShardCount, MinShards)
		shared.LogRejected(ctx, d.logger, err, current, target)
		return shared.Fail(res, err)
	}
	if want.ShardCount == have.ShardCount {
		*res.New = current
		res.Phase = domain.PhaseApplied
		return res, nil
	}

	res.Phase = domain.PhaseApplying
	if status != types.StreamStatusActive {
		if err := d.waitActive(ctx, have.ShardCount); err != nil {
			return shared.Fail(res, err)
		}
	}

	n := have.ShardCount
	hops := Plan(n, want.ShardCount)
	d.logger.Infof(ctx, "Scaling stream %d -> %d in %d step(s)", n, want.ShardCount, len(hops))
	for i, next := range hops {
		if err := d.updateShardCount(ctx, n, next); err != nil {
			shared.LogRejected(ctx, d.logger, err, current, target)
			return shared.Fail(res, err)
		}
		if i < len(hops)-1 {
			if err := d.waitActive(ctx, next); err != nil {
				return shared.Fail(res, err)
			}
		}
		n = next
	}

	newFields := have
	newFields.ShardCount = want.ShardCount
	res.New.Fields = newFields
	res.New.Present = true
	res.Action = domain.ActionScaled
	res.Phase = domain.PhaseApplied
	return res, nil
}

func (d *Driver) updateShardCount(ctx context.Context, from, to int32) error {
	err := d.caller().Mutate(ctx, "UpdateShardCount", func(ctx context.Context) error {
		_, err := d.client.UpdateShardCount(ctx, &kinesis.UpdateShardCountInput{
			StreamName:       aws.String(d.spec.Name),
			TargetShardCount: aws.Int32(to),
			ScalingType:      types.ScalingTypeUniformScaling,
		})
		return err
	})
	if errors.Is(err, errors.CodeInvalidTarget) {
		// The hop was legal for the count we described, so the stream changed
		// underneath us.
		return errors.WrapWithCode(err, errors.CodeConflict,
			fmt.Sprintf("stream '%s' rejected legal transition %d -> %d; it was probably modified concurrently", d.spec.Name, from, to))
	}
	return err
}

// waitActive polls until the stream is ACTIVE and checks that it holds the
// expected number of open shards.
func (d *Driver) waitActive(ctx context.Context, expected int32) error {
	return d.caller().Poll(ctx, fmt.Sprintf("stream '%s' to become ACTIVE", d.spec.Name), d.spec.PollInterval, d.spec.StepTimeout,
		func(ctx context.Context) (bool, error) {
			snap, status, err := d.describe(ctx)
			if err != nil {
				return false, err
			}
			if status != types.StreamStatusActive {
				return false, nil
			}
			if got := snap.Fields.(domain.StreamFields).ShardCount; got != expected {
				return false, errors.New(errors.CodeConflict,
					fmt.Sprintf("stream '%s' has %d open shards, expected %d; it was modified concurrently", d.spec.Name, got, expected))
			}
			return true, nil
		})
}
