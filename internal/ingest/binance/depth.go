package binance

import (
	"time"

	"github.com/yanun0323/logs"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
	"sorstream/pkg/scanner"
)

var keyLastUpdateID = []byte(`"lastUpdateId"`)

type depthPayload struct {
	LastUpdateID uint64 `json:"lastUpdateId"`
	Bids         []row  `json:"bids"`
	Asks         []row  `json:"asks"`
}

// DepthDecoder decodes partial book snapshots and enforces that consecutive
// snapshots carry consecutive update ids.
type DepthDecoder struct {
	venue    string
	now      func() time.Time
	expected uint64
	hasNext  bool
}

func NewDepthDecoder(venue string, now func() time.Time) *DepthDecoder {
	return &DepthDecoder{venue: venue, now: now}
}

// Expected returns the next accepted update id, false when unset.
func (d *DepthDecoder) Expected() (uint64, bool) {
	return d.expected, d.hasNext
}

func (d *DepthDecoder) Decode(payload []byte, onEvents func([]model.Event), onFail func(exception.Code)) {
	ts := d.now().UnixMicro()
	objects, framed := frame(payload)
	for _, obj := range objects {
		id, ok := scanner.ScanUintField(obj, keyLastUpdateID)
		if !ok {
			logs.Warnf("binance depth invalid json, venue=%s, reason=missing lastUpdateId", d.venue)
			onFail(exception.CodeInvalidJson)
			return
		}

		if !d.hasNext {
			d.expected, d.hasNext = id, true
		} else if id != d.expected {
			code := exception.CodeDataGap
			if id < d.expected {
				code = exception.CodeDataDuplicate
			}
			logs.Warnf("binance depth out of sequence, venue=%s, expected=%d, got=%d, code=%s", d.venue, d.expected, id, code)
			d.expected, d.hasNext = 0, false
			onFail(code)
			return
		}

		var p depthPayload
		if err := unmarshal(obj, &p); err != nil {
			logs.Warnf("binance depth invalid json, venue=%s, err=%+v", d.venue, err)
			onFail(exception.CodeInvalidJson)
			return
		}

		events := make([]model.Event, 0, len(p.Bids)+len(p.Asks))
		events, ok = d.appendSide(events, p.Bids, enum.TypeBid, ts)
		if ok {
			events, ok = d.appendSide(events, p.Asks, enum.TypeAsk, ts)
		}
		if !ok {
			onFail(exception.CodeInvalidJson)
			return
		}

		onEvents(events)
		d.expected++
	}

	if !framed {
		logs.Warnf("binance depth invalid json, venue=%s, reason=unframed payload, objects=%d, size=%d", d.venue, len(objects), len(payload))
		onFail(exception.CodeInvalidJson)
	}
}

func (d *DepthDecoder) appendSide(events []model.Event, rows []row, side enum.Type, ts int64) ([]model.Event, bool) {
	for level, r := range rows {
		price, size, err := r.parse()
		if err != nil {
			logs.Warnf("binance depth invalid level, venue=%s, side=%s, level=%d, err=%+v", d.venue, side, level, err)
			return events, false
		}
		events = append(events, model.Event{
			Venue:   d.venue,
			TsMicro: ts,
			Price:   price,
			Size:    size,
			Level:   level,
			Type:    side,
			Source:  enum.SourceDepth,
		})
	}
	return events, true
}
