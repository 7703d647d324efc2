package binance

import (
	"sorstream/internal/model"
	"sorstream/internal/model/enum"
)

const (
	Venue = "binance"
	Host  = "data-stream.binance.vision"
	Port  = "9443"

	DepthTarget = "/ws/ethusdt@depth20@100ms"
	TradeTarget = "/ws/ethusdt@trade@50ms"
)

// DefaultParams returns the fee and sizing parameters used for Binance.
func DefaultParams() model.ExchangeParams {
	return model.ExchangeParams{
		TakerFee:     0.0004,
		Lambda:       0.1,
		TargetAmount: 2.0,
	}
}

// DefaultSubscriptions returns the public streams ingested by default.
func DefaultSubscriptions() []model.Subscription {
	return []model.Subscription{
		{Target: DepthTarget, Source: enum.SourceDepth},
		{Target: TradeTarget, Source: enum.SourceTrade},
	}
}
