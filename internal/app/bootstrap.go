package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"

	"github.com/olusolaa/cost-parker/internal/adapters/inventory/tfhcl"
	"github.com/olusolaa/cost-parker/internal/adapters/inventory/tfstate"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/cost-parker/internal/adapters/state/filestore"
	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/core/service"
	"github.com/olusolaa/cost-parker/internal/cost"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/metrics"
	"github.com/olusolaa/cost-parker/internal/retry"
	jsonreporter "github.com/olusolaa/cost-parker/internal/reporting/json"
	"github.com/olusolaa/cost-parker/internal/reporting/text"
	yamlreporter "github.com/olusolaa/cost-parker/internal/reporting/yaml"
)

// Platform is the cloud side of the application: it builds drivers and may
// wrap the local state store.
type Platform interface {
	ports.PlatformProvider
	StateStore(local ports.StateStore, mirror *s3.MirrorConfig, project string) ports.StateStore
}

type bootstrapOptions struct {
	platform  Platform
	output    io.Writer
	logOutput io.Writer
}

type Option func(*bootstrapOptions)

// WithPlatform replaces the AWS platform, e.g. in tests.
func WithPlatform(p Platform) Option {
	return func(o *bootstrapOptions) { o.platform = p }
}

// WithOutput sets where reports are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *bootstrapOptions) { o.output = w }
}

// WithLogOutput sets where logs are written. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *bootstrapOptions) { o.logOutput = w }
}

func BuildApplicationFromViper(ctx context.Context, v *viper.Viper, opts ...Option) (*Application, error) {
	o := bootstrapOptions{output: os.Stdout, logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(ctx, v)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLoggerTo(log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat}, o.logOutput)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	logger = logger.WithFields(map[string]any{"project": cfg.Project})
	logger.Debugf(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	} else {
		logger.Debugf(ctx, "No configuration file found, using defaults/env/flags.")
	}

	recorder := metrics.NewRecorder(cfg.Project)
	policy := cfg.Retry.Policy()
	policy.OnRetry = recorder.ObserveRetry

	platform := o.platform
	if platform == nil {
		platform, err = newAWSPlatform(ctx, cfg, policy, logger)
		if err != nil {
			return nil, err
		}
	}

	registry := service.NewDriverRegistry()
	drivers, err := platform.Drivers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to build resource drivers")
	}
	for _, d := range drivers {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	if registry.Len() == 0 {
		return nil, errors.NewUserFacing(errors.CodeConfigValidation, "no resources to manage",
			"Declare resources under 'resources' or enable discovery.tfstate.")
	}
	logger.Infof(ctx, "Registered %d resource driver(s)", registry.Len())

	accountID, err := platform.AccountID(ctx)
	if err != nil {
		logger.Warnf(ctx, "Could not determine %s account: %v", platform.Type(), err)
	}

	local, err := filestore.New(filestore.Config{Directory: cfg.State.Directory},
		cfg.Project, logger.WithFields(map[string]any{"component": "state"}))
	if err != nil {
		return nil, err
	}
	store := platform.StateStore(local, cfg.State.S3, cfg.Project)

	reporter, err := newReporter(cfg, logger, o.output)
	if err != nil {
		return nil, err
	}

	controller, err := service.NewLifecycleController(
		registry, store, cost.NewModel(cfg.Pricing.Rates()),
		logger.WithFields(map[string]any{"component": "controller"}),
		service.WithProject(cfg.Project),
		service.WithAccountID(accountID),
		service.WithConcurrency(cfg.Settings.Concurrency),
		service.WithMetrics(recorder),
		service.WithRunIDs(func() string { return ulid.Make().String() }),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize lifecycle controller")
	}

	logger.Debugf(ctx, "Application bootstrap complete")
	application := NewApplication(controller, reporter, recorder, logger, cfg)
	application.Locker = local
	if cfg.State.History {
		application.History = local
	}
	if backups, ok := store.(ports.BackupStore); ok {
		application.Backups = backups
	}
	return application, nil
}

func newAWSPlatform(ctx context.Context, cfg *config.Config, policy retry.Policy, logger ports.Logger) (Platform, error) {
	provLog := logger.WithFields(map[string]any{"provider": aws.ProviderTypeAWS})
	opts := []aws.ProviderOption{aws.WithRetryPolicy(policy)}

	if cfg.Discovery.TFState != nil {
		source, err := tfstate.NewSource(*cfg.Discovery.TFState, cfg.Project, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, aws.WithInventory(source))
		provLog.Infof(ctx, "Using %s discovery: %s", tfstate.SourceTypeTFState, cfg.Discovery.TFState.FilePath)
	}
	if cfg.Discovery.TFHCL != nil {
		source, err := tfhcl.NewSource(*cfg.Discovery.TFHCL, cfg.Project, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, aws.WithInventory(source))
		provLog.Infof(ctx, "Using %s discovery: %s", tfhcl.SourceTypeTFHCL, cfg.Discovery.TFHCL.Directory)
	}

	provider, err := aws.NewProvider(ctx, cfg, provLog, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to initialize AWS provider")
	}
	return provider, nil
}

func newReporter(cfg *config.Config, logger ports.Logger, w io.Writer) (ports.Reporter, error) {
	reportLog := logger.WithFields(map[string]any{"component": "reporter", "type": cfg.Settings.Output})
	switch cfg.Settings.Output {
	case text.ReporterTypeText:
		return text.NewReporter(cfg.Settings.Text, reportLog, text.WithWriter(w))
	case jsonreporter.ReporterTypeJSON:
		return jsonreporter.NewReporter(jsonreporter.Config{}, reportLog, jsonreporter.WithWriter(w))
	case yamlreporter.ReporterTypeYAML:
		return yamlreporter.NewReporter(reportLog, yamlreporter.WithWriter(w))
	default:
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("unsupported output format: %s", cfg.Settings.Output), "Supported: text, json, yaml")
	}
}
