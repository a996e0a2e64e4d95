package function

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
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

type FunctionDriverTestSuite struct {
	suite.Suite
	client *mocks.MockLambdaClient
	logger *portsmocks.Logger
	driver *Driver
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *FunctionDriverTestSuite) SetupTest() {
	s.client = new(mocks.MockLambdaClient)
	s.logger = portsmocks.NewPermissiveLogger(s.T())
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)

	s.driver = NewDriver(aws.Config{Region: "us-east-1"},
		Spec{Name: "api", Functions: []string{"ingest", "score"}},
		WithLambdaClient(s.client),
		WithRateLimiter(aws_limiter.Unlimited(s.logger)),
		WithRetryPolicy(retry.Policy{BaseDelay: time.Millisecond, Factor: 2, MaxAttempts: 2}),
		WithLogger(s.logger),
	)
}

func (s *FunctionDriverTestSuite) TearDownTest() {
	s.cancel()
}

func TestFunctionDriverTestSuite(t *testing.T) {
	suite.Run(t, new(FunctionDriverTestSuite))
}

func (s *FunctionDriverTestSuite) expectConcurrency(name string, limit *int32) {
	s.client.On("GetFunctionConcurrency", mock.Anything, &lambda.GetFunctionConcurrencyInput{FunctionName: aws.String(name)}, mock.Anything).
		Return(&lambda.GetFunctionConcurrencyOutput{ReservedConcurrentExecutions: limit}, nil).Once()
}

func (s *FunctionDriverTestSuite) expectMissing(name string) {
	s.client.On("GetFunctionConcurrency", mock.Anything, &lambda.GetFunctionConcurrencyInput{FunctionName: aws.String(name)}, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "Function not found"}).Once()
}

func group(limits ...domain.FunctionLimit) domain.ResourceSnapshot {
	return domain.ResourceSnapshot{Kind: domain.KindFunctionGroup, Identifier: "api", Present: true,
		Fields: domain.FunctionGroupFields{Functions: limits}}
}

func (s *FunctionDriverTestSuite) TestDescribe() {
	s.expectConcurrency("ingest", nil)
	s.expectConcurrency("score", aws.Int32(50))

	snap, err := s.driver.Describe(s.ctx)

	s.Require().NoError(err)
	s.Equal(group(
		domain.FunctionLimit{Function: "ingest"},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(50)},
	), snap)
}

func (s *FunctionDriverTestSuite) TestDescribe_SkipsMissingFunctions() {
	s.expectMissing("ingest")
	s.expectConcurrency("score", nil)

	snap, err := s.driver.Describe(s.ctx)

	s.Require().NoError(err)
	s.Len(snap.Fields.(domain.FunctionGroupFields).Functions, 1)
}

func (s *FunctionDriverTestSuite) TestMinimalCostTarget() {
	target := s.driver.MinimalCostTarget(group(
		domain.FunctionLimit{Function: "ingest"},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(50)},
	))

	for _, fl := range target.Fields.(domain.FunctionGroupFields).Functions {
		s.Require().NotNil(fl.ConcurrencyLimit)
		s.Equal(int32(0), *fl.ConcurrencyLimit)
	}
}

func (s *FunctionDriverTestSuite) TestApply_Throttle() {
	s.expectConcurrency("ingest", nil)
	s.expectConcurrency("score", aws.Int32(50))
	s.client.On("PutFunctionConcurrency", mock.Anything, &lambda.PutFunctionConcurrencyInput{FunctionName: aws.String("ingest"), ReservedConcurrentExecutions: aws.Int32(0)}, mock.Anything).
		Return(&lambda.PutFunctionConcurrencyOutput{}, nil).Once()
	s.client.On("PutFunctionConcurrency", mock.Anything, &lambda.PutFunctionConcurrencyInput{FunctionName: aws.String("score"), ReservedConcurrentExecutions: aws.Int32(0)}, mock.Anything).
		Return(&lambda.PutFunctionConcurrencyOutput{}, nil).Once()

	target := group(
		domain.FunctionLimit{Function: "ingest", ConcurrencyLimit: aws.Int32(0)},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(0)},
	)
	res, err := s.driver.Apply(s.ctx, target)

	s.Require().NoError(err)
	s.Equal(domain.ActionLimitApplied, res.Action)
	s.True(domain.FieldsEqual(target.Fields, res.New.Fields))
	s.client.AssertExpectations(s.T())
}

func (s *FunctionDriverTestSuite) TestApply_RestoreClearsNilLimits() {
	s.expectConcurrency("ingest", aws.Int32(0))
	s.expectConcurrency("score", aws.Int32(0))
	s.client.On("DeleteFunctionConcurrency", mock.Anything, &lambda.DeleteFunctionConcurrencyInput{FunctionName: aws.String("ingest")}, mock.Anything).
		Return(&lambda.DeleteFunctionConcurrencyOutput{}, nil).Once()
	s.client.On("PutFunctionConcurrency", mock.Anything, &lambda.PutFunctionConcurrencyInput{FunctionName: aws.String("score"), ReservedConcurrentExecutions: aws.Int32(50)}, mock.Anything).
		Return(&lambda.PutFunctionConcurrencyOutput{}, nil).Once()

	res, err := s.driver.Apply(s.ctx, group(
		domain.FunctionLimit{Function: "ingest"},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(50)},
	))

	s.Require().NoError(err)
	s.Equal(domain.ActionLimitCleared, res.Action)
	s.client.AssertExpectations(s.T())
}

func (s *FunctionDriverTestSuite) TestApply_SecondRunIsNoOp() {
	s.expectConcurrency("ingest", aws.Int32(0))
	s.expectConcurrency("score", aws.Int32(0))

	res, err := s.driver.Apply(s.ctx, group(
		domain.FunctionLimit{Function: "ingest", ConcurrencyLimit: aws.Int32(0)},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(0)},
	))

	s.Require().NoError(err)
	s.Equal(domain.ActionNoOp, res.Action)
	s.client.AssertNotCalled(s.T(), "PutFunctionConcurrency", mock.Anything, mock.Anything, mock.Anything)
	s.client.AssertNotCalled(s.T(), "DeleteFunctionConcurrency", mock.Anything, mock.Anything, mock.Anything)
}

func (s *FunctionDriverTestSuite) TestApply_MissingFunctionWarns() {
	s.expectMissing("ingest")
	s.expectConcurrency("score", nil)
	s.client.On("PutFunctionConcurrency", mock.Anything, mock.Anything, mock.Anything).
		Return(&lambda.PutFunctionConcurrencyOutput{}, nil).Once()

	res, err := s.driver.Apply(s.ctx, group(
		domain.FunctionLimit{Function: "ingest", ConcurrencyLimit: aws.Int32(0)},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(0)},
	))

	s.Require().NoError(err)
	s.Equal(domain.ActionLimitApplied, res.Action)
	s.Len(res.Warnings, 1)
	s.Contains(res.Warnings[0], "ingest")
}

func (s *FunctionDriverTestSuite) TestApply_PermissionDeniedFailsFast() {
	s.expectConcurrency("ingest", nil)
	s.expectConcurrency("score", nil)
	denied := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	s.client.On("PutFunctionConcurrency", mock.Anything, mock.Anything, mock.Anything).Return(nil, denied).Twice()

	res, err := s.driver.Apply(s.ctx, group(
		domain.FunctionLimit{Function: "ingest", ConcurrencyLimit: aws.Int32(0)},
		domain.FunctionLimit{Function: "score", ConcurrencyLimit: aws.Int32(0)},
	))

	s.Require().Error(err)
	s.True(errors.Is(err, errors.CodePlatformAuthError))
	s.Contains(err.Error(), "2 of 2 functions failed")
	s.Equal(domain.PhaseFailed, res.Phase)
	s.client.AssertNumberOfCalls(s.T(), "PutFunctionConcurrency", 2)
}
