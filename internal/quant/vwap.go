package quant

import (
	"sort"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
)

// BandPercents are the band widths around mid, narrowest first.
var BandPercents = [...]float64{0.01, 0.02, 0.05}

// Band is the fee adjusted volume weighted price of each side within one band.
// A side without volume in the band is 0.
type Band struct {
	Percent float64
	Bid     float64
	Ask     float64
}

// VWAP accumulates book events until Compute.
type VWAP struct {
	bids []model.Event
	asks []model.Event
}

func NewVWAP() *VWAP {
	return &VWAP{}
}

// Add buckets e by side. Events without a side are dropped.
func (v *VWAP) Add(e model.Event) {
	switch e.Type {
	case enum.TypeBid:
		v.bids = append(v.bids, e)
	case enum.TypeAsk:
		v.asks = append(v.asks, e)
	}
}

func (v *VWAP) Len() (bids, asks int) {
	return len(v.bids), len(v.asks)
}

func (v *VWAP) Clear() {
	v.bids = v.bids[:0]
	v.asks = v.asks[:0]
}

// Compute returns one Band per entry of BandPercents, or nil when either
// side is empty.
func (v *VWAP) Compute(takerFee float64) []Band {
	if len(v.bids) == 0 || len(v.asks) == 0 {
		return nil
	}

	sort.SliceStable(v.bids, func(i, j int) bool { return v.bids[i].Price > v.bids[j].Price })
	sort.SliceStable(v.asks, func(i, j int) bool { return v.asks[i].Price < v.asks[j].Price })

	mid := 0.5 * (v.bids[0].Price + v.asks[0].Price)
	feeFactor := 1 - takerFee

	bands := make([]Band, 0, len(BandPercents))
	for _, pct := range BandPercents {
		lower := mid * (1 - pct)
		upper := mid * (1 + pct)

		var volBid, sumBid float64
		for _, b := range v.bids {
			if b.Price < lower {
				break
			}
			volBid += b.Size
			sumBid += b.Price * b.Size
		}

		var volAsk, sumAsk float64
		for _, a := range v.asks {
			if a.Price > upper {
				break
			}
			volAsk += a.Size
			sumAsk += a.Price * a.Size
		}

		band := Band{Percent: pct * 100}
		if volBid > 0 {
			band.Bid = sumBid / volBid * feeFactor
		}
		if volAsk > 0 {
			band.Ask = sumAsk / volAsk * feeFactor
		}
		bands = append(bands, band)
	}
	return bands
}
