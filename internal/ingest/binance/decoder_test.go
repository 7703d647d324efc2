package binance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
)

var fixedNow = time.UnixMicro(1_700_000_000_123_456)

func clock() time.Time { return fixedNow }

type collector struct {
	batches [][]model.Event
	fails   []exception.Code
}

func (c *collector) onEvents(events []model.Event) {
	c.batches = append(c.batches, events)
}

func (c *collector) onFail(code exception.Code) {
	c.fails = append(c.fails, code)
}

func depthObject(id uint64) string {
	return fmt.Sprintf(`{"lastUpdateId":%d,"bids":[["100.10","1.5"],["99","2"]],"asks":[["100.20","3"]]}`, id)
}

func TestDepthDecoderEvents(t *testing.T) {
	d := NewDepthDecoder(Venue, clock)
	c := &collector{}
	d.Decode([]byte(depthObject(160)), c.onEvents, c.onFail)

	if len(c.fails) != 0 {
		t.Fatalf("unexpected failures: %v", c.fails)
	}
	if len(c.batches) != 1 || len(c.batches[0]) != 3 {
		t.Fatalf("batches mismatch: %+v", c.batches)
	}
	want := []model.Event{
		{Venue: Venue, TsMicro: fixedNow.UnixMicro(), Price: 100.10, Size: 1.5, Level: 0, Type: enum.TypeBid, Source: enum.SourceDepth},
		{Venue: Venue, TsMicro: fixedNow.UnixMicro(), Price: 99, Size: 2, Level: 1, Type: enum.TypeBid, Source: enum.SourceDepth},
		{Venue: Venue, TsMicro: fixedNow.UnixMicro(), Price: 100.20, Size: 3, Level: 0, Type: enum.TypeAsk, Source: enum.SourceDepth},
	}
	assert.Equal(t, want, c.batches[0])

	next, ok := d.Expected()
	assert.True(t, ok)
	assert.Equal(t, uint64(161), next)
}

func TestDepthDecoderSequence(t *testing.T) {
	d := NewDepthDecoder(Venue, clock)

	testCases := []struct {
		id       uint64
		fail     exception.Code
		accepted bool
		expected uint64
		hasNext  bool
	}{
		{id: 10, accepted: true, expected: 11, hasNext: true},
		{id: 10, fail: exception.CodeDataDuplicate},
		{id: 10, accepted: true, expected: 11, hasNext: true},
		{id: 9, fail: exception.CodeDataDuplicate},
		{id: 30, accepted: true, expected: 31, hasNext: true},
		{id: 31, accepted: true, expected: 32, hasNext: true},
		{id: 40, fail: exception.CodeDataGap},
	}

	for i, tc := range testCases {
		c := &collector{}
		d.Decode([]byte(depthObject(tc.id)), c.onEvents, c.onFail)

		if tc.accepted {
			require.Empty(t, c.fails, "step %d", i)
			require.Len(t, c.batches, 1, "step %d", i)
		} else {
			require.Equal(t, []exception.Code{tc.fail}, c.fails, "step %d", i)
			require.Empty(t, c.batches, "step %d", i)
		}
		next, ok := d.Expected()
		assert.Equal(t, tc.hasNext, ok, "step %d", i)
		assert.Equal(t, tc.expected, next, "step %d", i)
	}
}

func TestDepthDecoderStopsChunkOnGap(t *testing.T) {
	d := NewDepthDecoder(Venue, clock)
	c := &collector{}
	chunk := depthObject(5) + depthObject(6) + depthObject(8) + depthObject(9)
	d.Decode([]byte(chunk), c.onEvents, c.onFail)

	assert.Len(t, c.batches, 2)
	assert.Equal(t, []exception.Code{exception.CodeDataGap}, c.fails)
	_, ok := d.Expected()
	assert.False(t, ok)
}

func TestDepthDecoderInvalidJson(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
	}{
		{desc: "missing id", payload: `{"bids":[],"asks":[]}`},
		{desc: "bad ladder", payload: `{"lastUpdateId":1,"bids":"x","asks":[]}`},
		{desc: "bad decimal", payload: `{"lastUpdateId":1,"bids":[["abc","1"]],"asks":[]}`},
		{desc: "empty decimal", payload: `{"lastUpdateId":1,"bids":[["","1"]],"asks":[]}`},
		{desc: "numeric level", payload: `{"lastUpdateId":1,"bids":[[100.1,1]],"asks":[]}`},
		{desc: "truncated", payload: `{"lastUpdateId":5,"bids":[["1","1"]`},
		{desc: "not json", payload: `not json`},
		{desc: "empty", payload: ``},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			d := NewDepthDecoder(Venue, clock)
			c := &collector{}
			d.Decode([]byte(tc.payload), c.onEvents, c.onFail)
			assert.Equal(t, []exception.Code{exception.CodeInvalidJson}, c.fails)
			assert.Empty(t, c.batches)
		})
	}
}

func TestDepthDecoderTruncatedTail(t *testing.T) {
	d := NewDepthDecoder(Venue, clock)
	c := &collector{}
	d.Decode([]byte(depthObject(7)+`{"lastUpdateId":8,"bids":[`), c.onEvents, c.onFail)

	assert.Len(t, c.batches, 1)
	assert.Equal(t, []exception.Code{exception.CodeInvalidJson}, c.fails)
	next, ok := d.Expected()
	assert.True(t, ok)
	assert.Equal(t, uint64(8), next)
}

func TestTradeDecoder(t *testing.T) {
	d := NewTradeDecoder(Venue, clock)
	c := &collector{}
	payload := `{"e":"trade","p":"2500.5","q":"0.25","m":false}{"e":"trade","p":"2500.4","q":"1","m":true}`
	d.Decode([]byte(payload), c.onEvents, c.onFail)

	require.Empty(t, c.fails)
	require.Len(t, c.batches, 2)
	for _, batch := range c.batches {
		require.Len(t, batch, 1)
		assert.Equal(t, enum.TypeUnspecified, batch[0].Type)
		assert.Equal(t, enum.SourceTrade, batch[0].Source)
		assert.Equal(t, 0, batch[0].Level)
		assert.Equal(t, fixedNow.UnixMicro(), batch[0].TsMicro)
	}
	assert.Equal(t, 2500.5, c.batches[0][0].Price)
	assert.Equal(t, 0.25, c.batches[0][0].Size)
	assert.Equal(t, enum.TypeBid, c.batches[0][0].Aggressor)
	assert.Equal(t, enum.TypeAsk, c.batches[1][0].Aggressor)

	c = &collector{}
	d.Decode([]byte(`{"p":"1","q":"1"}{"p":1}`), c.onEvents, c.onFail)
	assert.Len(t, c.batches, 1)
	assert.Equal(t, []exception.Code{exception.CodeInvalidJson}, c.fails)
}

func TestTradeDecoderUnframed(t *testing.T) {
	for _, payload := range []string{`{"p":"1","q":"1"`, `not json`, ``, `{"p":"1","q":"1"}]`} {
		d := NewTradeDecoder(Venue, clock)
		c := &collector{}
		d.Decode([]byte(payload), c.onEvents, c.onFail)
		if len(c.fails) != 1 || c.fails[0] != exception.CodeInvalidJson {
			t.Fatalf("payload %q: fails mismatch: %v", payload, c.fails)
		}
	}
}

func TestNewDecoder(t *testing.T) {
	d, err := NewDecoder(enum.SourceDepth, Venue, nil)
	require.NoError(t, err)
	assert.IsType(t, &DepthDecoder{}, d)

	d, err = NewDecoder(enum.SourceTrade, Venue, clock)
	require.NoError(t, err)
	assert.IsType(t, &TradeDecoder{}, d)

	_, err = NewDecoder(enum.ParseSource("quote"), Venue, clock)
	assert.ErrorIs(t, err, exception.ErrUnknownKind)
}

func TestDefaults(t *testing.T) {
	subs := DefaultSubscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, enum.SourceDepth, subs[0].Source)
	assert.Equal(t, TradeTarget, subs[1].Target)
	assert.Equal(t, 0.0004, DefaultParams().TakerFee)
}
