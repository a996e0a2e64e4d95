package stream

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/kinesis"
)

//go:generate mockery --name KinesisClientInterface --output ./mocks --outpkg mocks --case underscore

type KinesisClientInterface interface {
	DescribeStreamSummary(ctx context.Context, params *kinesis.DescribeStreamSummaryInput, optFns ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error)
	UpdateShardCount(ctx context.Context, params *kinesis.UpdateShardCountInput, optFns ...func(*kinesis.Options)) (*kinesis.UpdateShardCountOutput, error)
}
