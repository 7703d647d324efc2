package quant

import (
	"math"

	"github.com/yanun0323/logs"

	"sorstream/internal/model"
)

// Allocator splits a target size across venue snapshots, weighting each by
// the inverse of its risk adjusted expected cost.
type Allocator struct {
	lambda float64
	target float64
}

func NewAllocator(params model.ExchangeParams) *Allocator {
	return &Allocator{
		lambda: params.Lambda,
		target: params.TargetAmount,
	}
}

// CostVariance is (temp² + perm²) × size².
func CostVariance(temp, perm, size float64) float64 {
	return (temp*temp + perm*perm) * size * size
}

// Compute returns one allocation per snapshot, in input order. Snapshots with
// a non-positive risk adjusted cost get no weight.
func (a *Allocator) Compute(venues []model.VenueSnapshot) []model.Allocation {
	if len(venues) == 0 {
		return nil
	}

	result := make([]model.Allocation, len(venues))
	inv := make([]float64, len(venues))
	var sumInv float64
	for i, v := range venues {
		expected := (v.VwapBid + v.VwapAsk) / 2
		variance := CostVariance(v.TempImpact, v.PermImpact, a.target)
		result[i] = model.Allocation{
			Venue:        v.Name,
			ExpectedCost: expected,
			CostVariance: variance,
		}

		denom := expected + a.lambda*variance
		if denom <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
			continue
		}
		inv[i] = 1 / denom
		sumInv += inv[i]
	}

	for i := range result {
		if sumInv > 0 {
			result[i].Weight = inv[i] / sumInv
		}
		result[i].Size = result[i].Weight * a.target
		logs.Infof("order result, name=%s, volume=%g, expected_cost=%g, cost_variance=%g",
			result[i].Venue, result[i].Size, result[i].ExpectedCost, result[i].CostVariance)
	}
	return result
}
