package binance

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
	"sorstream/pkg/scanner"
)

// Decoder turns one raw payload into normalized events.
//
// onEvents is invoked once per decoded object with that object's events.
// onFail is invoked at most once and stops processing of the payload.
type Decoder interface {
	Decode(payload []byte, onEvents func([]model.Event), onFail func(exception.Code))
}

// NewDecoder returns the decoder for the given stream kind.
func NewDecoder(source enum.Source, venue string, now func() time.Time) (Decoder, error) {
	if now == nil {
		now = time.Now
	}
	switch source {
	case enum.SourceDepth:
		return NewDepthDecoder(venue, now), nil
	case enum.SourceTrade:
		return NewTradeDecoder(venue, now), nil
	default:
		return nil, errors.Wrapf(exception.ErrUnknownKind, "source: %d", source)
	}
}

// row is a [price, size] pair. Binance sends both as quoted decimals.
type row [2]decimal.Decimal

func (r row) parse() (price, size float64, err error) {
	if price, err = toFloat(r[0]); err != nil {
		return 0, 0, errors.Wrap(err, "price")
	}
	if size, err = toFloat(r[1]); err != nil {
		return 0, 0, errors.Wrap(err, "size")
	}
	return price, size, nil
}

var errEmptyDecimal = errors.New("empty decimal")

func toFloat(raw decimal.Decimal) (float64, error) {
	if len(raw) == 0 {
		return 0, errEmptyDecimal
	}
	d, err := decimal.New(string(raw))
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// frame splits payload into objects. ok is false when the payload holds no
// complete object or leaves bytes outside of one.
func frame(payload []byte) (objects [][]byte, ok bool) {
	objects, clean := scanner.SplitObjects(payload)
	return objects, clean && len(objects) > 0
}

func unmarshal(obj []byte, v any) error {
	return sonic.Unmarshal(obj, v)
}
