package ports

import "github.com/olusolaa/cost-parker/internal/core/domain"

type CostModel interface {
	EstimateHourlyCost(snapshot domain.ResourceSnapshot) float64
}
