package endpoint

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	aws_errors "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/errors"
	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const serviceName = "SageMaker"

// Spec names the endpoint to manage. ConfigName is used to recreate the
// endpoint when no saved snapshot carries one.
type Spec struct {
	Name       string
	ConfigName string
}

// Driver parks a SageMaker endpoint by deleting it and restores it by
// recreating it from its endpoint configuration. The endpoint configuration
// and the model are never touched.
type Driver struct {
	spec         Spec
	client       SageMakerClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	logger       ports.Logger
}

type DriverOption func(*Driver)

func WithSageMakerClient(client SageMakerClientInterface) DriverOption {
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
	return func(d *Driver) {
		d.policy = policy
	}
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
		d.client = sagemaker.NewFromConfig(cfg)
	}
	if d.limiter == nil {
		d.limiter = aws_limiter.New(aws_limiter.DefaultRPS, d.logger)
	}
	d.logger = d.logger.WithFields(map[string]any{"resource_kind": domain.KindEndpoint, "resource_id": spec.Name})
	return d
}

func (d *Driver) Kind() domain.ResourceKind { return domain.KindEndpoint }

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

// describe also returns the raw endpoint status. An endpoint that is being
// deleted is reported absent: it is already on its way to zero cost.
func (d *Driver) describe(ctx context.Context) (domain.ResourceSnapshot, types.EndpointStatus, error) {
	snap := domain.ResourceSnapshot{
		Kind:       domain.KindEndpoint,
		Identifier: d.spec.Name,
		Fields:     domain.EndpointFields{EndpointConfigName: d.spec.ConfigName},
	}

	var out *sagemaker.DescribeEndpointOutput
	err := d.caller().Read(ctx, "DescribeEndpoint", func(ctx context.Context) error {
		var err error
		out, err = d.client.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(d.spec.Name)})
		return err
	})
	if err != nil {
		if errors.Is(err, errors.CodeResourceNotFound) {
			d.logger.Debugf(ctx, "Endpoint does not exist")
			return snap, "", nil
		}
		return snap, "", err
	}

	status := out.EndpointStatus
	configName := aws.ToString(out.EndpointConfigName)
	if configName == "" {
		configName = d.spec.ConfigName
	}
	fields := domain.EndpointFields{EndpointConfigName: configName}

	if configName != "" {
		class, count, err := d.describeConfig(ctx, configName)
		if err != nil {
			return snap, status, err
		}
		fields.InstanceClass = class
		fields.InstanceCount = count
	}

	snap.Fields = fields
	snap.Present = status != types.EndpointStatusDeleting
	return snap, status, nil
}

func (d *Driver) describeConfig(ctx context.Context, name string) (string, int32, error) {
	var out *sagemaker.DescribeEndpointConfigOutput
	err := d.caller().Read(ctx, "DescribeEndpointConfig", func(ctx context.Context) error {
		var err error
		out, err = d.client.DescribeEndpointConfig(ctx, &sagemaker.DescribeEndpointConfigInput{EndpointConfigName: aws.String(name)})
		return err
	})
	if err != nil {
		return "", 0, err
	}

	var class string
	var count int32
	for _, v := range out.ProductionVariants {
		if class == "" {
			class = string(v.InstanceType)
		}
		count += aws.ToInt32(v.InitialInstanceCount)
	}
	return class, count, nil
}

// MinimalCostTarget deletes the endpoint but keeps its configuration so it
// can be recreated.
func (d *Driver) MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot {
	target := current
	target.Present = false
	return target
}

func (d *Driver) Apply(ctx context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error) {
	current, status, err := d.describe(ctx)
	res := shared.Result(current, target)
	if err != nil {
		return shared.Fail(res, err)
	}

	switch domain.PlanAction(current, target) {
	case domain.ActionDeleted:
		return d.delete(ctx, res)
	case domain.ActionRecreated:
		return d.recreate(ctx, res, current, target, status)
	default:
		if current.Present && target.Present {
			if want, ok := target.Fields.(domain.EndpointFields); ok {
				have, _ := current.Fields.(domain.EndpointFields)
				if want.EndpointConfigName != "" && want.EndpointConfigName != have.EndpointConfigName {
					res.Warn(fmt.Sprintf("endpoint is live with config %q, saved config was %q; left unchanged", have.EndpointConfigName, want.EndpointConfigName))
				}
			}
		}
		*res.New = current
		res.Phase = domain.PhaseApplied
		return res, nil
	}
}

func (d *Driver) delete(ctx context.Context, res domain.OperationResult) (domain.OperationResult, error) {
	res.Phase = domain.PhaseApplying
	err := d.caller().Mutate(ctx, "DeleteEndpoint", func(ctx context.Context) error {
		_, err := d.client.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{EndpointName: aws.String(d.spec.Name)})
		return err
	})
	if err != nil && !errors.Is(err, errors.CodeResourceNotFound) {
		return shared.Fail(res, err)
	}

	res.Action = domain.ActionDeleted
	res.New.Present = false
	res.Phase = domain.PhaseApplied
	d.logger.Infof(ctx, "Deleted endpoint")
	return res, nil
}

func (d *Driver) recreate(ctx context.Context, res domain.OperationResult, current, target domain.ResourceSnapshot, status types.EndpointStatus) (domain.OperationResult, error) {
	want, _ := target.Fields.(domain.EndpointFields)
	configName := want.EndpointConfigName
	if configName == "" {
		configName = d.spec.ConfigName
	}
	if configName == "" {
		err := errors.Newf(errors.CodeInvalidTarget, "no endpoint config known for endpoint '%s'", d.spec.Name)
		shared.LogRejected(ctx, d.logger, err, current, target)
		return shared.Fail(res, err)
	}

	res.Phase = domain.PhaseApplying
	err := d.caller().Mutate(ctx, "CreateEndpoint", func(ctx context.Context) error {
		if status == types.EndpointStatusDeleting {
			// Re-check: the delete may have finished since the last attempt.
			var err error
			if _, status, err = d.describe(ctx); err != nil {
				return err
			}
			if status == types.EndpointStatusDeleting {
				return errors.New(errors.CodeResourceBusy, "endpoint is still being deleted")
			}
		}
		_, err := d.client.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
			EndpointName:       aws.String(d.spec.Name),
			EndpointConfigName: aws.String(configName),
		})
		return err
	})
	if err != nil {
		shared.LogRejected(ctx, d.logger, err, current, target)
		return shared.Fail(res, err)
	}

	res.Action = domain.ActionRecreated
	res.LongRunning = true
	res.New.Present = true
	res.New.Fields = domain.EndpointFields{
		EndpointConfigName: configName,
		InstanceClass:      want.InstanceClass,
		InstanceCount:      want.InstanceCount,
	}
	res.Phase = domain.PhaseApplied
	d.logger.Infof(ctx, "Requested recreation of endpoint from config %s", configName)
	return res, nil
}
