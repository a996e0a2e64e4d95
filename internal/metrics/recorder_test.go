package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/errors"
)

func TestObserveResult(t *testing.T) {
	r := NewRecorder("fraud-demo")

	r.ObserveResult(domain.CommandStop, domain.OperationResult{Kind: domain.KindStream, Action: domain.ActionScaled, Duration: time.Second})
	r.ObserveResult(domain.CommandStop, domain.OperationResult{Kind: domain.KindStream, Action: domain.ActionScaled})
	r.ObserveResult(domain.CommandStop, domain.OperationResult{
		Kind: domain.KindEndpoint, Action: domain.ActionNoOp,
		Err: errors.New(errors.CodeThrottled, "Rate exceeded"),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.results.WithLabelValues("stop", "Stream", "SCALED", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.results.WithLabelValues("stop", "Endpoint", "NO_OP", "THROTTLED")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestObserveRetry(t *testing.T) {
	r := NewRecorder("fraud-demo")

	r.ObserveRetry("kinesis:UpdateShardCount", errors.New(errors.CodeResourceBusy, "updating"), 2*time.Second)
	r.ObserveRetry("kinesis:UpdateShardCount", errors.New(errors.CodeResourceBusy, "updating"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.retries.WithLabelValues("kinesis:UpdateShardCount", "RESOURCE_BUSY")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.retryWait))
}

func TestObserveRun(t *testing.T) {
	r := NewRecorder("fraud-demo")
	finished := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	r.ObserveRun(&domain.OperationReport{
		Command: domain.CommandStop, TotalCostDeltaPerHour: -0.065, TotalHourlyCost: 0.015,
		PartialFailure: true, FinishedAt: finished,
	})
	r.ObserveRun(nil)

	assert.InDelta(t, -0.065, testutil.ToFloat64(r.costDelta.WithLabelValues("stop", "false")), 1e-9)
	assert.InDelta(t, 0.015, testutil.ToFloat64(r.hourlyCost.WithLabelValues("stop", "false")), 1e-9)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.lastRun.WithLabelValues("stop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.partialFails.WithLabelValues("stop")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder("fraud-demo")
	r.ObserveResult(domain.CommandStatus, domain.OperationResult{Kind: domain.KindAlarmGroup, Action: domain.ActionNoOp})
	path := filepath.Join(t.TempDir(), "cost_parker.prom")

	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `cost_parker_resource_results_total{action="NO_OP",command="status",kind="AlarmGroup",outcome="ok",project="fraud-demo"} 1`), body)
}

func TestWriteTextfile_BadDirectory(t *testing.T) {
	r := NewRecorder("fraud-demo")
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cost_parker.prom"))
	assert.Error(t, err)
}
