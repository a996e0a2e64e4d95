package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/alarm"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/endpoint"
	aws_errors "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/function"
	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/stream"
	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const ProviderTypeAWS = "aws"

// Provider builds the drivers of one project. Every driver it builds shares
// one AWS config, one API limiter and one retry policy.
type Provider struct {
	awsConfig    aws.Config
	resources    config.ResourcesConfig
	inventories  []ports.InventorySource
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	stsClient    shared.IdentityClient
	logger       ports.Logger

	configLoaded bool

	mu        sync.Mutex
	accountID string
}

type ProviderOption func(*Provider)

// WithAWSConfig skips loading the default AWS configuration.
func WithAWSConfig(cfg aws.Config) ProviderOption {
	return func(p *Provider) {
		p.awsConfig = cfg
		p.configLoaded = true
	}
}

func WithSTSClient(client shared.IdentityClient) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.stsClient = client
		}
	}
}

// WithInventory adds resources discovered by source to the declared ones.
// Sources are consulted in the order they are given.
func WithInventory(source ports.InventorySource) ProviderOption {
	return func(p *Provider) {
		if source != nil {
			p.inventories = append(p.inventories, source)
		}
	}
}

func WithRateLimiter(limiter shared.RateLimiter) ProviderOption {
	return func(p *Provider) {
		if limiter != nil {
			p.limiter = limiter
		}
	}
}

func WithErrorHandler(handler shared.ErrorHandler) ProviderOption {
	return func(p *Provider) {
		if handler != nil {
			p.errorHandler = handler
		}
	}
}

func WithRetryPolicy(policy retry.Policy) ProviderOption {
	return func(p *Provider) { p.policy = policy }
}

func NewProvider(ctx context.Context, cfg *config.Config, logger ports.Logger, opts ...ProviderOption) (*Provider, error) {
	if logger == nil {
		return nil, errors.New(errors.CodeConfigValidation, "logger cannot be nil for AWS Provider")
	}
	if cfg == nil {
		return nil, errors.New(errors.CodeConfigValidation, "configuration cannot be nil for AWS Provider")
	}

	p := &Provider{
		resources:    cfg.Resources,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		policy:       cfg.Retry.Policy(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	if !p.configLoaded {
		awsCfg, err := LoadAWSConfig(ctx, cfg.Platform.AWS)
		if err != nil {
			return nil, err
		}
		p.awsConfig = awsCfg
	}
	if p.limiter == nil {
		p.limiter = aws_limiter.New(cfg.Platform.AWS.RPS, logger)
	}
	if p.stsClient == nil {
		p.stsClient = sts.NewFromConfig(p.awsConfig)
	}

	logger.Debugf(ctx, "AWS provider ready (region: %s)", p.awsConfig.Region)
	return p, nil
}

// LoadAWSConfig loads the default credential chain. SDK retries are
// disabled; the retry policy owns every retry.
func LoadAWSConfig(ctx context.Context, pc config.AWSPlatformConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if pc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(pc.Region))
	}
	if pc.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(pc.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.WrapUserFacing(err, errors.CodeConfigValidation,
			"failed to load AWS configuration",
			"Check AWS credentials and the platform.aws.profile setting.")
	}
	if cfg.Region == "" {
		return aws.Config{}, errors.NewUserFacing(errors.CodeConfigValidation,
			"no AWS region configured",
			"Set platform.aws.region, PARKER_PLATFORM_AWS_REGION or AWS_REGION.")
	}
	if pc.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(pc.EndpointURL)
	}
	return cfg, nil
}

func (p *Provider) Type() string {
	return ProviderTypeAWS
}

// Drivers builds one driver per declared or discovered resource: endpoints,
// then streams, then function groups, then alarm groups.
func (p *Provider) Drivers(ctx context.Context) ([]ports.ResourceDriver, error) {
	specs := specsFromConfig(p.resources)

	for _, source := range p.inventories {
		inv, err := source.Discover(ctx)
		if err != nil {
			return nil, err
		}
		added := specs.merge(inv)
		p.logger.Infof(ctx, "Inventory '%s' contributed %d resource(s)", source.Type(), added)
	}

	drivers := make([]ports.ResourceDriver, 0, specs.count())
	for _, spec := range specs.endpoints {
		drivers = append(drivers, endpoint.NewDriver(p.awsConfig, spec,
			endpoint.WithRateLimiter(p.limiter),
			endpoint.WithErrorHandler(p.errorHandler),
			endpoint.WithRetryPolicy(p.policy),
			endpoint.WithLogger(p.logger),
		))
	}
	for _, spec := range specs.streams {
		drivers = append(drivers, stream.NewDriver(p.awsConfig, spec,
			stream.WithRateLimiter(p.limiter),
			stream.WithErrorHandler(p.errorHandler),
			stream.WithRetryPolicy(p.policy),
			stream.WithLogger(p.logger),
		))
	}
	for _, spec := range specs.functions {
		drivers = append(drivers, function.NewDriver(p.awsConfig, spec,
			function.WithRateLimiter(p.limiter),
			function.WithErrorHandler(p.errorHandler),
			function.WithRetryPolicy(p.policy),
			function.WithLogger(p.logger),
		))
	}
	for _, spec := range specs.alarms {
		drivers = append(drivers, alarm.NewDriver(p.awsConfig, spec,
			alarm.WithRateLimiter(p.limiter),
			alarm.WithErrorHandler(p.errorHandler),
			alarm.WithRetryPolicy(p.policy),
			alarm.WithLogger(p.logger),
		))
	}

	p.logger.Debugf(ctx, "Built %d AWS driver(s)", len(drivers))
	return drivers, nil
}

// AccountID returns the caller's account, looked up once per provider.
func (p *Provider) AccountID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountID != "" {
		return p.accountID, nil
	}

	caller := shared.Caller{
		Service:  "STS",
		Resource: "caller-identity",
		Limiter:  p.limiter,
		Errors:   p.errorHandler,
		Policy:   p.policy,
		Logger:   p.logger,
	}
	var out *sts.GetCallerIdentityOutput
	err := caller.Read(ctx, "GetCallerIdentity", func(ctx context.Context) error {
		var err error
		out, err = p.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		return err
	})
	if err != nil {
		return "", err
	}
	p.accountID = aws.ToString(out.Account)
	return p.accountID, nil
}

// StateStore wraps local with an S3 mirror when mirror names a bucket.
func (p *Provider) StateStore(local ports.StateStore, mirror *s3.MirrorConfig, project string) ports.StateStore {
	if mirror == nil || !mirror.Enabled() {
		return local
	}
	return s3.NewMirror(p.awsConfig, local, *mirror, project,
		s3.WithRateLimiter(p.limiter),
		s3.WithErrorHandler(p.errorHandler),
		s3.WithRetryPolicy(p.policy),
		s3.WithLogger(p.logger),
	)
}
