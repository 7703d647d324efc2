package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorstream/internal/model"
)

func TestAllocatorWeights(t *testing.T) {
	params := model.ExchangeParams{Lambda: 0.1, TargetAmount: 2}
	a := NewAllocator(params)

	venues := []model.VenueSnapshot{
		{Name: "a", VwapBid: 100, VwapAsk: 102, TempImpact: 0.1, PermImpact: 0.2},
		{Name: "b", VwapBid: 99, VwapAsk: 101, TempImpact: 1, PermImpact: 0},
		{Name: "c", VwapBid: 200, VwapAsk: 202},
	}
	got := a.Compute(venues)
	require.Len(t, got, 3)

	var sum float64
	for i, alloc := range got {
		assert.Equal(t, venues[i].Name, alloc.Venue)
		assert.GreaterOrEqual(t, alloc.Size, 0.0)
		assert.LessOrEqual(t, alloc.Size, params.TargetAmount)
		assert.InDelta(t, alloc.Weight*params.TargetAmount, alloc.Size, 1e-12)
		sum += alloc.Weight
	}
	assert.InDelta(t, 1, sum, 1e-9)

	assert.InDelta(t, 101, got[0].ExpectedCost, 1e-9)
	assert.InDelta(t, (0.01+0.04)*4, got[0].CostVariance, 1e-9)
	assert.InDelta(t, 4, got[1].CostVariance, 1e-9)
	// cheaper venue gets more
	assert.Greater(t, got[0].Weight, got[2].Weight)
}

func TestAllocatorNonPositiveCost(t *testing.T) {
	a := NewAllocator(model.ExchangeParams{Lambda: 0.1, TargetAmount: 2})

	got := a.Compute([]model.VenueSnapshot{{Name: "empty"}, {Name: "b", VwapBid: 10, VwapAsk: 10}})
	require.Len(t, got, 2)
	assert.Zero(t, got[0].Weight)
	assert.InDelta(t, 1, got[1].Weight, 1e-12)
	assert.InDelta(t, 2, got[1].Size, 1e-12)

	got = a.Compute([]model.VenueSnapshot{{Name: "empty"}})
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Size)

	assert.Empty(t, a.Compute(nil))
}
