package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

func TestEstimateHourlyCost(t *testing.T) {
	m := NewModel(DefaultRates())

	testCases := []struct {
		name string
		snap domain.ResourceSnapshot
		want float64
	}{
		{
			name: "stream two shards",
			snap: domain.ResourceSnapshot{Kind: domain.KindStream, Present: true, Fields: domain.StreamFields{ShardCount: 2, StreamMode: domain.StreamModeProvisioned}},
			want: 0.03,
		},
		{
			name: "on demand stream",
			snap: domain.ResourceSnapshot{Kind: domain.KindStream, Present: true, Fields: domain.StreamFields{ShardCount: 4, StreamMode: domain.StreamModeOnDemand}},
			want: 0,
		},
		{
			name: "endpoint known class",
			snap: domain.ResourceSnapshot{Kind: domain.KindEndpoint, Present: true, Fields: domain.EndpointFields{InstanceClass: "ml.m5.xlarge", InstanceCount: 2}},
			want: 0.46,
		},
		{
			name: "endpoint unknown class uses default rate",
			snap: domain.ResourceSnapshot{Kind: domain.KindEndpoint, Present: true, Fields: domain.EndpointFields{InstanceClass: "ml.p3.2xlarge", InstanceCount: 1}},
			want: 0.115,
		},
		{
			name: "deleted endpoint",
			snap: domain.ResourceSnapshot{Kind: domain.KindEndpoint, Present: false, Fields: domain.EndpointFields{InstanceClass: "ml.m5.large", InstanceCount: 1}},
			want: 0,
		},
		{
			name: "alarm group counts enabled alarms",
			snap: domain.ResourceSnapshot{Kind: domain.KindAlarmGroup, Present: true, Fields: domain.AlarmGroupFields{AlarmsEnabled: true, Alarms: []domain.AlarmAction{{Name: "a", ActionsEnabled: true}, {Name: "b"}, {Name: "c", ActionsEnabled: true}}}},
			want: 2 * 0.10 / 720,
		},
		{
			name: "function group",
			snap: domain.ResourceSnapshot{Kind: domain.KindFunctionGroup, Present: true, Fields: domain.FunctionGroupFields{}},
			want: 0,
		},
		{
			name: "opaque kind",
			snap: domain.ResourceSnapshot{Kind: "Queue", Present: true, Fields: domain.OpaqueFields{OriginalKind: "Queue"}},
			want: 0,
		},
		{
			name: "nil fields",
			snap: domain.ResourceSnapshot{Kind: domain.KindStream, Present: true},
			want: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, m.EstimateHourlyCost(tc.snap), 1e-9)
		})
	}
}

func TestNewModel_MergesInstanceRates(t *testing.T) {
	rates := DefaultRates()
	rates.ShardHour = 0.02
	rates.EndpointInstance = map[string]float64{"ml.g4dn.xlarge": 0.736}
	m := NewModel(rates)

	assert.InDelta(t, 0.02, m.Rates().ShardHour, 1e-9)
	assert.InDelta(t, 0.736, m.Rates().EndpointInstance["ml.g4dn.xlarge"], 1e-9)
	assert.InDelta(t, 0.05, m.Rates().EndpointInstance["ml.t3.medium"], 1e-9)
}

func TestEstimateHourlyCost_MonotonicInQuantity(t *testing.T) {
	m := NewModel(DefaultRates())
	for shards := int32(1); shards < 64; shards++ {
		lower := domain.ResourceSnapshot{Kind: domain.KindStream, Present: true, Fields: domain.StreamFields{ShardCount: shards, StreamMode: domain.StreamModeProvisioned}}
		higher := domain.ResourceSnapshot{Kind: domain.KindStream, Present: true, Fields: domain.StreamFields{ShardCount: shards + 1, StreamMode: domain.StreamModeProvisioned}}
		assert.LessOrEqual(t, m.EstimateHourlyCost(lower), m.EstimateHourlyCost(higher))
	}
	for count := int32(0); count < 8; count++ {
		lower := domain.ResourceSnapshot{Kind: domain.KindEndpoint, Present: true, Fields: domain.EndpointFields{InstanceClass: "ml.m5.large", InstanceCount: count}}
		higher := lower
		higher.Fields = domain.EndpointFields{InstanceClass: "ml.m5.large", InstanceCount: count + 1}
		absent := lower
		absent.Present = false
		assert.LessOrEqual(t, m.EstimateHourlyCost(lower), m.EstimateHourlyCost(higher))
		assert.LessOrEqual(t, m.EstimateHourlyCost(absent), m.EstimateHourlyCost(lower))
	}
}

func TestNewModel_ZeroRatesAreKept(t *testing.T) {
	m := NewModel(Rates{DefaultEndpointRate: 0.2})

	stream := domain.ResourceSnapshot{Kind: domain.KindStream, Present: true, Fields: domain.StreamFields{ShardCount: 4, StreamMode: domain.StreamModeProvisioned}}
	alarms := domain.ResourceSnapshot{Kind: domain.KindAlarmGroup, Present: true, Fields: domain.AlarmGroupFields{AlarmsEnabled: true, Alarms: []domain.AlarmAction{{Name: "a", ActionsEnabled: true}}}}
	endpoint := domain.ResourceSnapshot{Kind: domain.KindEndpoint, Present: true, Fields: domain.EndpointFields{InstanceClass: "ml.p3.2xlarge", InstanceCount: 1}}

	assert.Zero(t, m.EstimateHourlyCost(stream))
	assert.Zero(t, m.EstimateHourlyCost(alarms))
	assert.InDelta(t, 0.2, m.EstimateHourlyCost(endpoint), 1e-9)
	assert.InDelta(t, 0.05, m.Rates().EndpointInstance["ml.t3.medium"], 1e-9)
}
