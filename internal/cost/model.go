// Package cost estimates the hourly cost of a resource from its live
// configuration. Estimates are linear in the configured quantities.
package cost

import (
	"github.com/olusolaa/cost-parker/internal/core/domain"
)

const (
	HoursPerDay   = 24
	HoursPerMonth = 720
	HoursPerYear  = 8760
)

// Rates holds the unit prices in USD.
type Rates struct {
	ShardHour           float64            `mapstructure:"shard_hour" validate:"gte=0"`
	AlarmMonth          float64            `mapstructure:"alarm_month" validate:"gte=0"`
	EndpointInstance    map[string]float64 `mapstructure:"endpoint_instance"`
	DefaultEndpointRate float64            `mapstructure:"default_endpoint_rate" validate:"gte=0"`
}

func DefaultRates() Rates {
	return Rates{
		ShardHour:  0.015,
		AlarmMonth: 0.10,
		EndpointInstance: map[string]float64{
			"ml.t3.medium": 0.05,
			"ml.m5.large":  0.115,
			"ml.m5.xlarge": 0.23,
		},
		DefaultEndpointRate: 0.115,
	}
}

type Model struct {
	rates Rates
}

// NewModel prices with rates as given; a zero rate makes that quantity free.
// Instance rates given in rates are merged over the default instance table.
func NewModel(rates Rates) *Model {
	def := DefaultRates()
	merged := make(map[string]float64, len(def.EndpointInstance)+len(rates.EndpointInstance))
	for k, v := range def.EndpointInstance {
		merged[k] = v
	}
	for k, v := range rates.EndpointInstance {
		merged[k] = v
	}
	rates.EndpointInstance = merged
	return &Model{rates: rates}
}

func (m *Model) Rates() Rates {
	return m.rates
}

// EstimateHourlyCost never fails. Absent resources and unknown kinds cost 0.
func (m *Model) EstimateHourlyCost(s domain.ResourceSnapshot) float64 {
	if !s.Present {
		return 0
	}
	switch f := s.Fields.(type) {
	case domain.StreamFields:
		if f.StreamMode == domain.StreamModeOnDemand || f.ShardCount <= 0 {
			return 0
		}
		return float64(f.ShardCount) * m.rates.ShardHour
	case domain.EndpointFields:
		if f.InstanceCount <= 0 {
			return 0
		}
		return m.instanceRate(f.InstanceClass) * float64(f.InstanceCount)
	case domain.AlarmGroupFields:
		return float64(f.EnabledCount()) * m.rates.AlarmMonth / HoursPerMonth
	case domain.FunctionGroupFields:
		// Reserved concurrency has no idle charge.
		return 0
	default:
		return 0
	}
}

func (m *Model) instanceRate(class string) float64 {
	if r, ok := m.rates.EndpointInstance[class]; ok {
		return r
	}
	return m.rates.DefaultEndpointRate
}
