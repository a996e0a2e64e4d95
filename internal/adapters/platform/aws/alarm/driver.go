package alarm

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

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
	serviceName = "CloudWatch"
	// batchSize is the API limit on alarm names per request.
	batchSize = 100
)

// Spec selects alarms by explicit names, or by name prefix when Names is
// empty.
type Spec struct {
	Name   string
	Prefix string
	Names  []string
}

// Driver silences a group of CloudWatch alarms by disabling their actions.
// Alarms keep evaluating; nothing is deleted.
type Driver struct {
	spec         Spec
	client       CloudWatchClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	logger       ports.Logger
}

type DriverOption func(*Driver)

func WithCloudWatchClient(client CloudWatchClientInterface) DriverOption {
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
		d.client = cloudwatch.NewFromConfig(cfg)
	}
	if d.limiter == nil {
		d.limiter = aws_limiter.New(aws_limiter.DefaultRPS, d.logger)
	}
	d.logger = d.logger.WithFields(map[string]any{"resource_kind": domain.KindAlarmGroup, "resource_id": spec.Name})
	return d
}

func (d *Driver) Kind() domain.ResourceKind { return domain.KindAlarmGroup }

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
	snap := domain.ResourceSnapshot{
		Kind:       domain.KindAlarmGroup,
		Identifier: d.spec.Name,
		Present:    true,
		Fields:     domain.AlarmGroupFields{},
	}
	if d.spec.Prefix == "" && len(d.spec.Names) == 0 {
		return snap, errors.Newf(errors.CodeConfigValidation, "alarm group '%s' needs a prefix or explicit alarm names", d.spec.Name)
	}

	var inputs []*cloudwatch.DescribeAlarmsInput
	alarmTypes := []types.AlarmType{types.AlarmTypeMetricAlarm, types.AlarmTypeCompositeAlarm}
	if len(d.spec.Names) > 0 {
		for _, batch := range batches(d.spec.Names) {
			inputs = append(inputs, &cloudwatch.DescribeAlarmsInput{AlarmNames: batch, AlarmTypes: alarmTypes})
		}
	} else {
		inputs = append(inputs, &cloudwatch.DescribeAlarmsInput{AlarmNamePrefix: aws.String(d.spec.Prefix), AlarmTypes: alarmTypes})
	}

	byName := make(map[string]bool)
	for _, input := range inputs {
		paginator := cloudwatch.NewDescribeAlarmsPaginator(d.client, input)
		for paginator.HasMorePages() {
			var page *cloudwatch.DescribeAlarmsOutput
			err := d.caller().Read(ctx, "DescribeAlarms", func(ctx context.Context) error {
				var err error
				page, err = paginator.NextPage(ctx)
				return err
			})
			if err != nil {
				return snap, err
			}
			for _, a := range page.MetricAlarms {
				byName[aws.ToString(a.AlarmName)] = aws.ToBool(a.ActionsEnabled)
			}
			for _, a := range page.CompositeAlarms {
				byName[aws.ToString(a.AlarmName)] = aws.ToBool(a.ActionsEnabled)
			}
		}
	}

	if len(d.spec.Names) > 0 {
		for _, name := range d.spec.Names {
			if _, ok := byName[name]; !ok {
				d.logger.Warnf(ctx, "Alarm %s not found, skipping", name)
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := domain.AlarmGroupFields{Alarms: make([]domain.AlarmAction, 0, len(names))}
	for _, name := range names {
		fields.Alarms = append(fields.Alarms, domain.AlarmAction{Name: name, ActionsEnabled: byName[name]})
	}
	fields.AlarmsEnabled = fields.EnabledCount() > 0
	snap.Fields = fields
	return snap, nil
}

func (d *Driver) MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot {
	target := current
	f, ok := current.Fields.(domain.AlarmGroupFields)
	if !ok {
		return target
	}
	alarms := make([]domain.AlarmAction, 0, len(f.Alarms))
	for _, a := range f.Alarms {
		alarms = append(alarms, domain.AlarmAction{Name: a.Name, ActionsEnabled: false})
	}
	target.Fields = domain.AlarmGroupFields{AlarmsEnabled: false, Alarms: alarms}
	return target
}

func (d *Driver) Apply(ctx context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error) {
	current, err := d.Describe(ctx)
	res := shared.Result(current, target)
	if err != nil {
		return shared.Fail(res, err)
	}
	want, ok := target.Fields.(domain.AlarmGroupFields)
	if !ok {
		return shared.Fail(res, errors.Newf(errors.CodeInvalidTarget, "target for alarm group '%s' carries %T fields", d.spec.Name, target.Fields))
	}
	have := current.Fields.(domain.AlarmGroupFields)
	action := domain.PlanAction(current, target)

	var toDisable, toEnable []string
	for _, a := range have.Alarms {
		desired := want.Desired(a.Name)
		switch {
		case desired == a.ActionsEnabled:
		case desired:
			toEnable = append(toEnable, a.Name)
		default:
			toDisable = append(toDisable, a.Name)
		}
	}
	if len(toDisable) == 0 && len(toEnable) == 0 {
		res.Phase = domain.PhaseApplied
		*res.New = current
		return res, nil
	}

	res.Phase = domain.PhaseApplying
	done := make(map[string]bool)
	for _, batch := range batches(toDisable) {
		err := d.caller().Mutate(ctx, "DisableAlarmActions", func(ctx context.Context) error {
			_, err := d.client.DisableAlarmActions(ctx, &cloudwatch.DisableAlarmActionsInput{AlarmNames: batch})
			return err
		})
		if err != nil {
			res.New.Fields = withActions(have, done)
			return shared.Fail(res, err)
		}
		for _, n := range batch {
			done[n] = false
		}
	}
	for _, batch := range batches(toEnable) {
		err := d.caller().Mutate(ctx, "EnableAlarmActions", func(ctx context.Context) error {
			_, err := d.client.EnableAlarmActions(ctx, &cloudwatch.EnableAlarmActionsInput{AlarmNames: batch})
			return err
		})
		if err != nil {
			res.New.Fields = withActions(have, done)
			return shared.Fail(res, err)
		}
		for _, n := range batch {
			done[n] = true
		}
	}

	d.logger.Infof(ctx, "Disabled actions on %d alarm(s), enabled on %d", len(toDisable), len(toEnable))
	res.New.Fields = withActions(have, done)
	res.Action = action
	res.Phase = domain.PhaseApplied
	return res, nil
}

func withActions(have domain.AlarmGroupFields, changed map[string]bool) domain.AlarmGroupFields {
	out := domain.AlarmGroupFields{Alarms: make([]domain.AlarmAction, 0, len(have.Alarms))}
	for _, a := range have.Alarms {
		if v, ok := changed[a.Name]; ok {
			a.ActionsEnabled = v
		}
		out.Alarms = append(out.Alarms, a)
	}
	out.AlarmsEnabled = out.EnabledCount() > 0
	return out
}

func batches(names []string) [][]string {
	var out [][]string
	for start := 0; start < len(names); start += batchSize {
		end := start + batchSize
		if end > len(names) {
			end = len(names)
		}
		out = append(out, names[start:end])
	}
	return out
}
