package config

import (
	"time"

	"github.com/olusolaa/cost-parker/internal/adapters/inventory/tfhcl"
	"github.com/olusolaa/cost-parker/internal/adapters/inventory/tfstate"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/cost-parker/internal/cost"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/reporting/text"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const (
	DefaultStateDirectory = ".cost-parker"
	DefaultConcurrency    = 0
)

type Config struct {
	Project   string          `yaml:"project" mapstructure:"project" validate:"required"`
	Settings  SettingsConfig  `yaml:"settings" mapstructure:"settings"`
	State     StateConfig     `yaml:"state" mapstructure:"state"`
	Platform  PlatformConfig  `yaml:"platform" mapstructure:"platform"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Resources ResourcesConfig `yaml:"resources" mapstructure:"resources"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
}

type SettingsConfig struct {
	LogLevel    log.Level   `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   log.Format  `yaml:"log_format" mapstructure:"log_format" validate:"oneof=text json"`
	// Concurrency caps how many resources are processed at once. 0 runs
	// every resource in parallel.
	Concurrency int         `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0,lte=64"`
	Output      string      `yaml:"output" mapstructure:"output" validate:"oneof=text json yaml"`
	Text        text.Config `yaml:"text" mapstructure:"text"`
	// MetricsTextfile, when set, receives the run metrics in Prometheus
	// text format.
	MetricsTextfile string `yaml:"metrics_textfile" mapstructure:"metrics_textfile"`
}

type StateConfig struct {
	Directory string           `yaml:"directory" mapstructure:"directory" validate:"required"`
	// History appends a record of every run to <project>.history.jsonl in
	// Directory.
	History   bool             `yaml:"history" mapstructure:"history"`
	S3        *s3.MirrorConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

type PlatformConfig struct {
	AWS AWSPlatformConfig `yaml:"aws" mapstructure:"aws"`
}

type AWSPlatformConfig struct {
	Region  string `yaml:"region" mapstructure:"region"`
	Profile string `yaml:"profile" mapstructure:"profile"`
	RPS     int    `yaml:"rps" mapstructure:"rps" validate:"gte=0,lte=100"`
	// EndpointURL overrides every service endpoint, e.g. for LocalStack.
	EndpointURL string `yaml:"endpoint_url" mapstructure:"endpoint_url" validate:"omitempty,url"`
}

type RetryConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay" validate:"gt=0"`
	Factor      float64       `yaml:"factor" mapstructure:"factor" validate:"gte=1"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout" validate:"gte=0"`
}

// Policy converts the section into a retry policy with the default jitter.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.BaseDelay = r.BaseDelay
	p.Factor = r.Factor
	p.MaxAttempts = r.MaxAttempts
	p.MaxDelay = r.MaxDelay
	p.CallTimeout = r.CallTimeout
	return p
}

// PricingConfig overrides the built-in rates. Instance classes are listed
// rather than keyed because they contain dots; listed classes are merged over
// the built-in table.
type PricingConfig struct {
	ShardHour           float64        `yaml:"shard_hour" mapstructure:"shard_hour" validate:"gte=0"`
	AlarmMonth          float64        `yaml:"alarm_month" mapstructure:"alarm_month" validate:"gte=0"`
	DefaultEndpointRate float64        `yaml:"default_endpoint_rate" mapstructure:"default_endpoint_rate" validate:"gte=0"`
	EndpointInstances   []InstanceRate `yaml:"endpoint_instances" mapstructure:"endpoint_instances" validate:"dive"`
}

type InstanceRate struct {
	Class  string  `yaml:"class" mapstructure:"class" validate:"required"`
	Hourly float64 `yaml:"hourly" mapstructure:"hourly" validate:"gt=0"`
}

func (p PricingConfig) Rates() cost.Rates {
	rates := cost.Rates{
		ShardHour:           p.ShardHour,
		AlarmMonth:          p.AlarmMonth,
		DefaultEndpointRate: p.DefaultEndpointRate,
		EndpointInstance:    make(map[string]float64, len(p.EndpointInstances)),
	}
	for _, ir := range p.EndpointInstances {
		rates.EndpointInstance[ir.Class] = ir.Hourly
	}
	return rates
}

type ResourcesConfig struct {
	Endpoints      []EndpointConfig      `yaml:"endpoints" mapstructure:"endpoints" validate:"dive"`
	Streams        []StreamConfig        `yaml:"streams" mapstructure:"streams" validate:"dive"`
	FunctionGroups []FunctionGroupConfig `yaml:"function_groups" mapstructure:"function_groups" validate:"dive"`
	AlarmGroups    []AlarmGroupConfig    `yaml:"alarm_groups" mapstructure:"alarm_groups" validate:"dive"`
}

// Count returns the number of declared resources.
func (r ResourcesConfig) Count() int {
	return len(r.Endpoints) + len(r.Streams) + len(r.FunctionGroups) + len(r.AlarmGroups)
}

type EndpointConfig struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// ConfigName is needed to recreate the endpoint when the first stop
	// finds it already deleted.
	ConfigName string `yaml:"endpoint_config_name" mapstructure:"endpoint_config_name"`
}

type StreamConfig struct {
	Name         string        `yaml:"name" mapstructure:"name" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gte=0"`
	StepTimeout  time.Duration `yaml:"step_timeout" mapstructure:"step_timeout" validate:"gte=0"`
}

type FunctionGroupConfig struct {
	Name      string   `yaml:"name" mapstructure:"name" validate:"required"`
	Functions []string `yaml:"functions" mapstructure:"functions" validate:"min=1,dive,required"`
}

type AlarmGroupConfig struct {
	Name   string   `yaml:"name" mapstructure:"name" validate:"required"`
	Prefix string   `yaml:"prefix" mapstructure:"prefix" validate:"required_without=Names"`
	Names  []string `yaml:"names" mapstructure:"names" validate:"required_without=Prefix,dive,required"`
}

// DiscoveryConfig adds resources found in Terraform output or configuration
// to the declared ones. Declared resources win on conflict.
type DiscoveryConfig struct {
	TFState *tfstate.Config `yaml:"tfstate,omitempty" mapstructure:"tfstate"`
	TFHCL   *tfhcl.Config   `yaml:"tfhcl,omitempty" mapstructure:"tfhcl"`
}

func DefaultConfig() *Config {
	rates := cost.DefaultRates()
	policy := retry.DefaultPolicy()

	return &Config{
		Settings: SettingsConfig{
			LogLevel:    log.LevelInfo,
			LogFormat:   log.FormatText,
			Concurrency: DefaultConcurrency,
			Output:      text.ReporterTypeText,
		},
		State: StateConfig{
			Directory: DefaultStateDirectory,
			History:   true,
		},
		Platform: PlatformConfig{
			AWS: AWSPlatformConfig{RPS: limiter.DefaultRPS},
		},
		Retry: RetryConfig{
			BaseDelay:   policy.BaseDelay,
			Factor:      policy.Factor,
			MaxAttempts: policy.MaxAttempts,
			MaxDelay:    policy.MaxDelay,
			CallTimeout: policy.CallTimeout,
		},
		Pricing: PricingConfig{
			ShardHour:           rates.ShardHour,
			AlarmMonth:          rates.AlarmMonth,
			DefaultEndpointRate: rates.DefaultEndpointRate,
		},
	}
}
