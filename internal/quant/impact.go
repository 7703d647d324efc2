package quant

import (
	"gonum.org/v1/gonum/mat"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
)

// ImpactTracker derives impact samples from the book mid and trade prints,
// and fits delta mid against signed and cumulative signed volume.
type ImpactTracker struct {
	bestBid     float64
	bestAsk     float64
	hasBid      bool
	hasAsk      bool
	initialized bool

	mid     float64
	lastMid float64
	cum     float64
	samples []model.ImpactSample
}

func NewImpactTracker() *ImpactTracker {
	return &ImpactTracker{}
}

// Add feeds one event. Only top of book depth levels move the mid. Trades
// are sampled once both sides of the book have been seen.
func (t *ImpactTracker) Add(e model.Event) {
	switch e.Source {
	case enum.SourceDepth:
		t.addDepth(e)
	case enum.SourceTrade:
		t.addTrade(e)
	}
}

func (t *ImpactTracker) addDepth(e model.Event) {
	if e.Level != 0 {
		return
	}
	switch e.Type {
	case enum.TypeBid:
		t.bestBid, t.hasBid = e.Price, true
	case enum.TypeAsk:
		t.bestAsk, t.hasAsk = e.Price, true
	default:
		return
	}
	if !t.hasBid || !t.hasAsk {
		return
	}

	t.mid = 0.5 * (t.bestBid + t.bestAsk)
	if !t.initialized {
		t.lastMid = t.mid
		t.initialized = true
	}
}

func (t *ImpactTracker) addTrade(e model.Event) {
	if !t.initialized {
		return
	}

	side := e.Aggressor
	if !side.IsSide() {
		side = e.Type
	}
	signed := -e.Size
	if side == enum.TypeBid {
		signed = e.Size
	}
	t.cum += signed

	t.samples = append(t.samples, model.ImpactSample{
		DeltaMid:        t.mid - t.lastMid,
		SignedVolume:    signed,
		CumSignedVolume: t.cum,
	})
	t.lastMid = t.mid
}

// Samples returns the samples recorded since the last Clear.
func (t *ImpactTracker) Samples() []model.ImpactSample {
	return t.samples
}

// Clear drops the samples and the cumulative volume. The book state is kept.
func (t *ImpactTracker) Clear() {
	t.samples = t.samples[:0]
	t.cum = 0
}

// Regression fits DeltaMid = Temporary*SignedVolume + Permanent*CumSignedVolume
// by least squares. It returns zero coefficients without samples.
func (t *ImpactTracker) Regression() model.ImpactCoefficients {
	n := len(t.samples)
	if n == 0 {
		return model.ImpactCoefficients{}
	}

	x := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range t.samples {
		x.Set(i, 0, s.SignedVolume)
		x.Set(i, 1, s.CumSignedVolume)
		y.SetVec(i, s.DeltaMid)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return t.fallback()
	}
	return model.ImpactCoefficients{
		Temporary: beta.AtVec(0),
		Permanent: beta.AtVec(1),
	}
}

// fallback fits the signed volume alone when the two regressors are collinear.
func (t *ImpactTracker) fallback() model.ImpactCoefficients {
	var sxy, sxx float64
	for _, s := range t.samples {
		sxy += s.SignedVolume * s.DeltaMid
		sxx += s.SignedVolume * s.SignedVolume
	}
	if sxx == 0 {
		return model.ImpactCoefficients{}
	}
	return model.ImpactCoefficients{Temporary: sxy / sxx}
}
