package stream

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	portsmocks "github.com/olusolaa/cost-parker/internal/core/ports/mocks"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/retry"
	"github.com/olusolaa/cost-parker/mocks"
)

type StreamDriverTestSuite struct {
	suite.Suite
	client *mocks.MockKinesisClient
	logger *portsmocks.Logger
	driver *Driver
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *StreamDriverTestSuite) SetupTest() {
	s.client = new(mocks.MockKinesisClient)
	s.logger = portsmocks.NewPermissiveLogger(s.T())
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)

	s.driver = NewDriver(aws.Config{Region: "us-east-1"},
		Spec{Name: "clicks", PollInterval: time.Millisecond, StepTimeout: time.Second},
		WithKinesisClient(s.client),
		WithRateLimiter(aws_limiter.Unlimited(s.logger)),
		WithRetryPolicy(retry.Policy{BaseDelay: time.Millisecond, Factor: 2, MaxAttempts: 3}),
		WithLogger(s.logger),
	)
}

func (s *StreamDriverTestSuite) TearDownTest() {
	s.cancel()
}

func TestStreamDriverTestSuite(t *testing.T) {
	suite.Run(t, new(StreamDriverTestSuite))
}

func summary(shards int32, status types.StreamStatus, mode types.StreamMode) *kinesis.DescribeStreamSummaryOutput {
	return &kinesis.DescribeStreamSummaryOutput{
		StreamDescriptionSummary: &types.StreamDescriptionSummary{
			StreamName:           aws.String("clicks"),
			OpenShardCount:       aws.Int32(shards),
			StreamStatus:         status,
			StreamModeDetails:    &types.StreamModeDetails{StreamMode: mode},
			RetentionPeriodHours: aws.Int32(24),
		},
	}
}

func (s *StreamDriverTestSuite) expectSummary(shards int32, status types.StreamStatus) {
	s.client.On("DescribeStreamSummary", mock.Anything, &kinesis.DescribeStreamSummaryInput{StreamName: aws.String("clicks")}, mock.Anything).
		Return(summary(shards, status, types.StreamModeProvisioned), nil).Once()
}

func (s *StreamDriverTestSuite) expectUpdate(to int32, err error) {
	input := &kinesis.UpdateShardCountInput{
		StreamName:       aws.String("clicks"),
		TargetShardCount: aws.Int32(to),
		ScalingType:      types.ScalingTypeUniformScaling,
	}
	if err != nil {
		s.client.On("UpdateShardCount", mock.Anything, input, mock.Anything).Return(nil, err).Once()
		return
	}
	s.client.On("UpdateShardCount", mock.Anything, input, mock.Anything).Return(&kinesis.UpdateShardCountOutput{}, nil).Once()
}

func streamSnap(shards int32) domain.ResourceSnapshot {
	return domain.ResourceSnapshot{Kind: domain.KindStream, Identifier: "clicks", Present: true,
		Fields: domain.StreamFields{ShardCount: shards, StreamMode: domain.StreamModeProvisioned, RetentionHours: 24}}
}

func (s *StreamDriverTestSuite) TestDescribe() {
	s.expectSummary(2, types.StreamStatusActive)

	snap, err := s.driver.Describe(s.ctx)

	s.Require().NoError(err)
	s.Equal(streamSnap(2), snap)
}

func (s *StreamDriverTestSuite) TestDescribe_Missing() {
	s.client.On("DescribeStreamSummary", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "Stream clicks not found"}).Once()

	snap, err := s.driver.Describe(s.ctx)

	s.Require().NoError(err)
	s.False(snap.Present)
}

func (s *StreamDriverTestSuite) TestMinimalCostTarget() {
	s.Equal(streamSnap(1), s.driver.MinimalCostTarget(streamSnap(8)))
	s.Equal(streamSnap(1), s.driver.MinimalCostTarget(streamSnap(1)))

	onDemand := streamSnap(4)
	onDemand.Fields = domain.StreamFields{ShardCount: 4, StreamMode: domain.StreamModeOnDemand}
	s.Equal(onDemand, s.driver.MinimalCostTarget(onDemand))
}

func (s *StreamDriverTestSuite) TestApply_ScaleDownOneHop() {
	s.expectSummary(2, types.StreamStatusActive)
	s.expectUpdate(1, nil)

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().NoError(err)
	s.Equal(domain.ActionScaled, res.Action)
	s.Equal(int32(2), res.Previous.Fields.(domain.StreamFields).ShardCount)
	s.Equal(int32(1), res.New.Fields.(domain.StreamFields).ShardCount)
	s.Equal(int32(24), res.New.Fields.(domain.StreamFields).RetentionHours)
	s.client.AssertExpectations(s.T())
}

func (s *StreamDriverTestSuite) TestApply_AlreadyAtTargetIsNoOp() {
	s.expectSummary(1, types.StreamStatusActive)

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().NoError(err)
	s.Equal(domain.ActionNoOp, res.Action)
	s.client.AssertNotCalled(s.T(), "UpdateShardCount", mock.Anything, mock.Anything, mock.Anything)
}

func (s *StreamDriverTestSuite) TestApply_MultiHopWaitsForActive() {
	s.expectSummary(7, types.StreamStatusActive)
	s.expectUpdate(4, nil)
	s.expectSummary(4, types.StreamStatusUpdating)
	s.expectSummary(4, types.StreamStatusActive)
	s.expectUpdate(2, nil)
	s.expectSummary(2, types.StreamStatusActive)
	s.expectUpdate(1, nil)

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().NoError(err)
	s.Equal(domain.ActionScaled, res.Action)
	s.client.AssertNumberOfCalls(s.T(), "UpdateShardCount", 3)
	s.client.AssertExpectations(s.T())
}

func (s *StreamDriverTestSuite) TestApply_ScaleUpRestores() {
	s.expectSummary(1, types.StreamStatusActive)
	s.expectUpdate(2, nil)

	res, err := s.driver.Apply(s.ctx, streamSnap(2))

	s.Require().NoError(err)
	s.Equal(domain.ActionScaled, res.Action)
	s.Equal(int32(2), res.New.Fields.(domain.StreamFields).ShardCount)
}

func (s *StreamDriverTestSuite) TestApply_RejectedLegalHopIsConflict() {
	s.expectSummary(2, types.StreamStatusActive)
	s.expectUpdate(1, &smithy.GenericAPIError{Code: "InvalidArgumentException", Message: "TargetShardCount is invalid"})

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().Error(err)
	s.True(errors.Is(err, errors.CodeConflict))
	s.Equal(domain.PhaseFailed, res.Phase)
	s.client.AssertNumberOfCalls(s.T(), "UpdateShardCount", 1)
}

func (s *StreamDriverTestSuite) TestApply_ConcurrentChangeBetweenHops() {
	s.expectSummary(4, types.StreamStatusActive)
	s.expectUpdate(2, nil)
	s.expectSummary(3, types.StreamStatusActive)

	_, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.True(errors.Is(err, errors.CodeConflict))
	s.client.AssertNumberOfCalls(s.T(), "UpdateShardCount", 1)
}

func (s *StreamDriverTestSuite) TestApply_ThrottledIsRetried() {
	s.expectSummary(2, types.StreamStatusActive)
	s.expectUpdate(1, &smithy.GenericAPIError{Code: "LimitExceededException", Message: "Rate exceeded"})
	s.expectUpdate(1, nil)

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().NoError(err)
	s.Equal(domain.ActionScaled, res.Action)
	s.client.AssertNumberOfCalls(s.T(), "UpdateShardCount", 2)
}

func (s *StreamDriverTestSuite) TestApply_OnDemandUntouched() {
	s.client.On("DescribeStreamSummary", mock.Anything, mock.Anything, mock.Anything).
		Return(summary(4, types.StreamStatusActive, types.StreamModeOnDemand), nil).Once()

	res, err := s.driver.Apply(s.ctx, streamSnap(1))

	s.Require().NoError(err)
	s.Equal(domain.ActionNoOp, res.Action)
	s.Len(res.Warnings, 1)
	s.client.AssertNotCalled(s.T(), "UpdateShardCount", mock.Anything, mock.Anything, mock.Anything)
}

func (s *StreamDriverTestSuite) TestApply_MissingStreamFails() {
	s.client.On("DescribeStreamSummary", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "gone"}).Once()

	_, err := s.driver.Apply(s.ctx, streamSnap(2))

	s.True(errors.Is(err, errors.CodeResourceNotFound))
}

func (s *StreamDriverTestSuite) TestApply_BelowMinimumIsInvalid() {
	s.expectSummary(2, types.StreamStatusActive)

	_, err := s.driver.Apply(s.ctx, streamSnap(0))

	s.True(errors.Is(err, errors.CodeInvalidTarget))
	s.client.AssertNotCalled(s.T(), "UpdateShardCount", mock.Anything, mock.Anything, mock.Anything)
}
