package model

import (
	"fmt"

	"sorstream/internal/model/enum"
)

// Event is one normalized book level or trade print.
type Event struct {
	Venue string
	// TsMicro is the receipt time in microseconds since epoch.
	TsMicro int64
	Price   float64
	Size    float64
	// Level is the book level, 0 is top of book. Only meaningful for depth.
	Level  int
	Type   enum.Type
	Source enum.Source
	// Aggressor is the side that initiated a trade. Bid is buyer initiated.
	Aggressor enum.Type
}

func (e Event) String() string {
	return fmt.Sprintf("venue=%s, ts=%d, source=%s, type=%s, level=%d, price=%g, size=%g, aggressor=%s",
		e.Venue, e.TsMicro, e.Source, e.Type, e.Level, e.Price, e.Size, e.Aggressor)
}

// ExchangeParams is the static per-venue parameter bundle.
type ExchangeParams struct {
	TakerFee float64
	// Lambda is the risk-aversion coefficient.
	Lambda       float64
	TargetAmount float64
}

// VenueSnapshot is one venue's state for a recompute cycle.
type VenueSnapshot struct {
	Name       string
	VwapBid    float64
	VwapAsk    float64
	TempImpact float64
	PermImpact float64
}

// ImpactSample is one point of the impact regression.
type ImpactSample struct {
	DeltaMid        float64
	SignedVolume    float64
	CumSignedVolume float64
}

// ImpactCoefficients is a fitted impact regression.
type ImpactCoefficients struct {
	Temporary float64
	Permanent float64
}

// Allocation is the recommendation for one venue.
type Allocation struct {
	Venue        string
	Weight       float64
	Size         float64
	ExpectedCost float64
	CostVariance float64
}

// Subscription is one stream target and the kind of messages it carries.
type Subscription struct {
	Target string
	Source enum.Source
}
