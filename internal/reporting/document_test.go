package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/errors"
)

func TestNewDocument(t *testing.T) {
	started := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	before := domain.ResourceSnapshot{Kind: domain.KindStream, Identifier: "clicks", Present: true,
		Fields: domain.StreamFields{ShardCount: 2, StreamMode: domain.StreamModeProvisioned, RetentionHours: 24}}
	after := before
	after.Fields = domain.StreamFields{ShardCount: 1, StreamMode: domain.StreamModeProvisioned, RetentionHours: 24}

	report := &domain.OperationReport{
		Command: domain.CommandStop, RunID: "run-1", Project: "fraud-demo",
		StartedAt: started, FinishedAt: started.Add(1500 * time.Millisecond),
		Results: []domain.OperationResult{
			{Kind: domain.KindStream, Identifier: "clicks", Action: domain.ActionScaled, Phase: domain.PhaseApplied,
				Previous: &before, New: &after, CostDeltaPerHour: -0.015, NewHourlyCost: 0.015, Duration: 2 * time.Second},
			{Kind: domain.KindEndpoint, Identifier: "fraud-ep", Action: domain.ActionNoOp, Phase: domain.PhaseFailed,
				Err: errors.NewUserFacing(errors.CodePlatformAuthError, "access denied", "Grant sagemaker:DeleteEndpoint.")},
			{Kind: domain.KindAlarmGroup, Identifier: "checkout", Action: domain.ActionNoOp, Warnings: []string{"no alarms matched"}},
		},
	}
	report.Summarize()

	doc := NewDocument(report)

	assert.Equal(t, "2026-03-01T18:00:00Z", doc.StartedAt)
	assert.InDelta(t, 1.5, doc.DurationSeconds, 1e-9)
	savings := doc.Summary.Savings
	doc.Summary.Savings = Savings{}
	assert.Equal(t, Summary{
		Resources: 3, Changed: 1, Unchanged: 1, Failed: 1,
		TotalHourlyCost: 0.015, TotalCostDeltaPerHour: -0.015,
		PartialFailure: true, ExitCode: domain.ExitPartialFailure,
	}, doc.Summary)
	assert.InDelta(t, 0.015, savings.Hourly, 1e-9)
	assert.InDelta(t, 0.36, savings.Daily, 1e-9)
	assert.InDelta(t, 10.8, savings.Monthly, 1e-9)
	assert.InDelta(t, 131.4, savings.Annual, 1e-9)
	assert.InDelta(t, 50.0, savings.Percent, 1e-9)

	require.Len(t, doc.Results, 3)
	assert.Equal(t, int32(2), doc.Results[0].Previous.Fields[domain.StreamShardCountKey])
	assert.Equal(t, int32(1), doc.Results[0].New.Fields[domain.StreamShardCountKey])
	assert.Equal(t, int64(2000), doc.Results[0].DurationMillis)

	require.NotNil(t, doc.Results[1].Error)
	assert.Equal(t, errors.CodePlatformAuthError, doc.Results[1].Error.Code)
	assert.Equal(t, "access denied", doc.Results[1].Error.Message)
	assert.Equal(t, "Grant sagemaker:DeleteEndpoint.", doc.Results[1].Error.Suggestion)
	assert.Nil(t, doc.Results[1].Previous)

	assert.Equal(t, []string{"no alarms matched"}, doc.Results[2].Warnings)
}

func TestNewDocument_ZeroTimes(t *testing.T) {
	doc := NewDocument(&domain.OperationReport{Command: domain.CommandStatus})
	assert.Empty(t, doc.StartedAt)
	assert.Empty(t, doc.Results)
	assert.NotNil(t, doc.Results)
}

func TestSummarize_StartProjectsAddedCost(t *testing.T) {
	report := &domain.OperationReport{
		Command: domain.CommandStart,
		Results: []domain.OperationResult{
			{Kind: domain.KindEndpoint, Identifier: "fraud-ep", Action: domain.ActionRecreated,
				PreviousHourlyCost: 0, NewHourlyCost: 0.23, CostDeltaPerHour: 0.23},
			{Kind: domain.KindStream, Identifier: "clicks", Action: domain.ActionScaled,
				PreviousHourlyCost: 0.015, NewHourlyCost: 0.03, CostDeltaPerHour: 0.015},
		},
	}
	report.Summarize()

	s := Summarize(report).Savings

	assert.InDelta(t, -0.245, s.Hourly, 1e-9)
	assert.InDelta(t, -176.4, s.Monthly, 1e-9)
	assert.InDelta(t, -2146.2, s.Annual, 1e-9)
	assert.InDelta(t, -0.245/0.015*100, s.Percent, 1e-6)
}

func TestSummarize_StatusHasNoSavings(t *testing.T) {
	report := &domain.OperationReport{
		Command: domain.CommandStatus,
		Results: []domain.OperationResult{
			{Kind: domain.KindStream, Identifier: "clicks", Action: domain.ActionNoOp,
				PreviousHourlyCost: 0.03, NewHourlyCost: 0.03},
		},
	}
	report.Summarize()

	assert.Equal(t, Savings{}, Summarize(report).Savings)
}
