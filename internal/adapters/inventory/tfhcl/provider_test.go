package tfhcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
)

const mainTF = `
variable "env" {
  type    = string
  default = "demo"
}

variable "suffix" {
  type = string
}

locals {
  prefix   = "fraud-${var.env}"
  endpoint = "${local.prefix}-ep"
}

resource "aws_sagemaker_endpoint" "fraud" {
  name                 = local.endpoint
  endpoint_config_name = aws_sagemaker_endpoint_configuration.fraud.name

  tags = {
    team = "ml"
  }
}

resource "aws_kinesis_stream" "clicks" {
  name        = "clicks"
  shard_count = 2

  stream_mode_details {
    stream_mode = "PROVISIONED"
  }
}

resource "aws_kinesis_stream" "late" {
  name = "late-${var.suffix}"
}

resource "aws_kinesis_stream" "sharded" {
  count = 2
  name  = "sharded-${count.index}"
}

resource "aws_lambda_function" "ingest" {
  function_name = format("%s-ingest", local.prefix)
  role          = aws_iam_role.lambda.arn
}

resource "aws_s3_bucket" "assets" {
  bucket = "assets"
}
`

const alarmsJSON = `{
  "resource": {
    "aws_cloudwatch_metric_alarm": {
      "p99": {"alarm_name": "checkout-p99"}
    }
  }
}`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func discover(t *testing.T, cfg Config) (domain.Inventory, error) {
	t.Helper()
	src, err := NewSource(cfg, "fraud-demo", log.Nop())
	require.NoError(t, err)
	return src.Discover(context.Background())
}

func TestDiscover(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"main.tf":          mainTF,
		"alarms.tf.json":   alarmsJSON,
		"README.md":        "not terraform",
		"terraform.tfvars": `suffix = "v2"`,
	})

	inv, err := discover(t, Config{Directory: dir})
	require.NoError(t, err)

	endpoints := inv.OfKind(domain.KindEndpoint)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "fraud-demo-ep", endpoints[0].Identifier)
	assert.Empty(t, endpoints[0].Attributes, "config name refers to another resource")
	assert.Equal(t, "aws_sagemaker_endpoint.fraud", endpoints[0].Address)

	streams := inv.OfKind(domain.KindStream)
	require.Len(t, streams, 1, "unset variables and counted resources are skipped")
	assert.Equal(t, "clicks", streams[0].Identifier)

	functions := inv.OfKind(domain.KindFunctionGroup)
	require.Len(t, functions, 1)
	assert.Equal(t, "fraud-demo", functions[0].Identifier)
	assert.Equal(t, []string{"fraud-demo-ingest"}, functions[0].Members)

	alarms := inv.OfKind(domain.KindAlarmGroup)
	require.Len(t, alarms, 1)
	assert.Equal(t, []string{"checkout-p99"}, alarms[0].Members)
}

func TestDiscover_VarFiles(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"main.tf":      mainTF,
		"prod.tfvars":  "env = \"prod\"\nsuffix = \"v2\"\nunused = 1\n",
		"extra.tfvars": `suffix = "v3"`,
	})

	inv, err := discover(t, Config{
		Directory:     dir,
		VarFiles:      []string{"prod.tfvars", filepath.Join(dir, "extra.tfvars")},
		FunctionGroup: "api",
	})
	require.NoError(t, err)

	assert.Equal(t, "fraud-prod-ep", inv.OfKind(domain.KindEndpoint)[0].Identifier)
	var streams []string
	for _, e := range inv.OfKind(domain.KindStream) {
		streams = append(streams, e.Identifier)
	}
	assert.Equal(t, []string{"clicks", "late-v3"}, streams)
	assert.Equal(t, "api", inv.OfKind(domain.KindFunctionGroup)[0].Identifier)
}

func TestDiscover_Failures(t *testing.T) {
	testCases := []struct {
		name  string
		files map[string]string
		cfg   func(dir string) Config
		code  errors.Code
	}{
		{
			name: "missing directory",
			cfg:  func(dir string) Config { return Config{Directory: filepath.Join(dir, "absent")} },
			code: errors.CodeInventoryReadError,
		},
		{
			name:  "no terraform files",
			files: map[string]string{"README.md": "docs"},
			cfg:   func(dir string) Config { return Config{Directory: dir} },
			code:  errors.CodeInventoryParseError,
		},
		{
			name:  "syntax error",
			files: map[string]string{"main.tf": `resource "aws_kinesis_stream" "x" {`},
			cfg:   func(dir string) Config { return Config{Directory: dir} },
			code:  errors.CodeInventoryParseError,
		},
		{
			name:  "missing var file",
			files: map[string]string{"main.tf": mainTF},
			cfg:   func(dir string) Config { return Config{Directory: dir, VarFiles: []string{"absent.tfvars"}} },
			code:  errors.CodeInventoryParseError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeModule(t, tc.files)
			_, err := discover(t, tc.cfg(dir))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestDiscover_Cached(t *testing.T) {
	dir := writeModule(t, map[string]string{"main.tf": `resource "aws_kinesis_stream" "clicks" { name = "clicks" }`})
	src, err := NewSource(Config{Directory: dir}, "fraud-demo", log.Nop())
	require.NoError(t, err)

	first, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "main.tf")))
	second, err := src.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNewSource_RequiresDirectory(t *testing.T) {
	_, err := NewSource(Config{}, "fraud-demo", log.Nop())
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}

func TestEvaluateLocals_Cycle(t *testing.T) {
	dir := writeModule(t, map[string]string{"main.tf": `
locals {
  a = local.b
  b = local.a
}

resource "aws_kinesis_stream" "loop" {
  name = local.a
}
`})

	inv, err := discover(t, Config{Directory: dir})

	require.NoError(t, err)
	assert.Empty(t, inv.Entries)
}
