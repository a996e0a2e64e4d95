package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
)

const (
	EnvPrefix = "PARKER"
	FileName  = ".cost-parker"
)

// NewViper returns a viper instance that reads PARKER_* environment
// variables for every known key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// AutomaticEnv only applies to keys viper knows about, so every scalar key is
// registered here.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("project", cfg.Project)

	v.SetDefault("settings.log_level", cfg.Settings.LogLevel)
	v.SetDefault("settings.log_format", cfg.Settings.LogFormat)
	v.SetDefault("settings.concurrency", cfg.Settings.Concurrency)
	v.SetDefault("settings.output", cfg.Settings.Output)
	v.SetDefault("settings.text.no_color", cfg.Settings.Text.NoColor)
	v.SetDefault("settings.metrics_textfile", cfg.Settings.MetricsTextfile)

	v.SetDefault("state.directory", cfg.State.Directory)
	v.SetDefault("state.history", cfg.State.History)

	v.SetDefault("platform.aws.region", cfg.Platform.AWS.Region)
	v.SetDefault("platform.aws.profile", cfg.Platform.AWS.Profile)
	v.SetDefault("platform.aws.rps", cfg.Platform.AWS.RPS)
	v.SetDefault("platform.aws.endpoint_url", cfg.Platform.AWS.EndpointURL)

	v.SetDefault("retry.base_delay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.factor", cfg.Retry.Factor)
	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)
	v.SetDefault("retry.call_timeout", cfg.Retry.CallTimeout)

	v.SetDefault("pricing.shard_hour", cfg.Pricing.ShardHour)
	v.SetDefault("pricing.alarm_month", cfg.Pricing.AlarmMonth)
	v.SetDefault("pricing.default_endpoint_rate", cfg.Pricing.DefaultEndpointRate)
}

// ReadFile loads path, or searches the working and home directories for
// .cost-parker.yaml when path is empty. A missing default file is not an
// error; the returned name is empty in that case.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && stderrors.As(err, &notFound) {
			return "", nil
		}
		if os.IsNotExist(err) {
			return "", errors.WrapUserFacing(err, errors.CodeConfigReadError,
				fmt.Sprintf("configuration file %s not found", path),
				"Check the --config path.")
		}
		return "", errors.Wrap(err, errors.CodeConfigReadError, "failed to read config file")
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes and validates the configuration held by v.
func Load(ctx context.Context, v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeConfigParseError,
			"failed to decode configuration", "Check value types in the configuration file and PARKER_* variables.")
	}

	if level, err := log.ParseLevel(string(cfg.Settings.LogLevel)); err == nil {
		cfg.Settings.LogLevel = level
	}
	if err := Validate(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the struct tag rules plus the checks tags cannot express.
func Validate(ctx context.Context, cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(ctx, cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !stderrors.As(err, &validationErrors) {
			return errors.Wrap(err, errors.CodeInternal, "configuration validation could not run")
		}
		var details strings.Builder
		details.WriteString("Configuration validation failed:")
		for _, fe := range validationErrors {
			details.WriteString(fmt.Sprintf("\n - Field '%s': Failed on '%s' validation (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.NewUserFacing(errors.CodeConfigValidation, details.String(), "Please check your configuration file, environment or flags.")
	}

	if strings.ContainsAny(cfg.Project, `/\`) || cfg.Project == "." || cfg.Project == ".." {
		return errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("project name %q cannot be used as a file name", cfg.Project),
			"Use letters, digits, '-' or '_' in the project name.")
	}
	if cfg.Settings.MetricsTextfile != "" && filepath.Ext(cfg.Settings.MetricsTextfile) != ".prom" {
		return errors.NewUserFacing(errors.CodeConfigValidation,
			"settings.metrics_textfile must end in .prom",
			"The node exporter textfile collector only reads *.prom files.")
	}
	return nil
}
