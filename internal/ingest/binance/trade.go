package binance

import (
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/logs"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
)

type tradePayload struct {
	Price decimal.Decimal `json:"p"`
	Size  decimal.Decimal `json:"q"`
	// BuyerMaker is set when the sell side initiated the trade.
	BuyerMaker bool `json:"m"`
}

// TradeDecoder decodes trade prints. Each object is emitted on its own.
type TradeDecoder struct {
	venue string
	now   func() time.Time
}

func NewTradeDecoder(venue string, now func() time.Time) *TradeDecoder {
	return &TradeDecoder{venue: venue, now: now}
}

func (d *TradeDecoder) Decode(payload []byte, onEvents func([]model.Event), onFail func(exception.Code)) {
	ts := d.now().UnixMicro()
	objects, framed := frame(payload)
	for _, obj := range objects {
		var p tradePayload
		if err := unmarshal(obj, &p); err != nil {
			logs.Warnf("binance trade invalid json, venue=%s, err=%+v", d.venue, err)
			onFail(exception.CodeInvalidJson)
			return
		}
		price, size, err := row{p.Price, p.Size}.parse()
		if err != nil {
			logs.Warnf("binance trade invalid decimal, venue=%s, err=%+v", d.venue, err)
			onFail(exception.CodeInvalidJson)
			return
		}

		aggressor := enum.TypeBid
		if p.BuyerMaker {
			aggressor = enum.TypeAsk
		}
		onEvents([]model.Event{{
			Venue:     d.venue,
			TsMicro:   ts,
			Price:     price,
			Size:      size,
			Type:      enum.TypeUnspecified,
			Source:    enum.SourceTrade,
			Aggressor: aggressor,
		}})
	}

	if !framed {
		logs.Warnf("binance trade invalid json, venue=%s, reason=unframed payload, objects=%d, size=%d", d.venue, len(objects), len(payload))
		onFail(exception.CodeInvalidJson)
	}
}
