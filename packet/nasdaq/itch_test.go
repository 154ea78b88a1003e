package nasdaq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/feed"
	"my/mdbook/feed/feedtest"
	"my/mdbook/packet"
)

const (
	session = "0000012345"
	open    = uint64(9*time.Hour + 30*time.Minute)
)

var t0 = feed.TimestampFromTime(time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC))

func addOrder(locate uint16, ref uint64, side byte, shares uint32, price uint32) []byte {
	return MustPack(&ItchAddOrderWire{
		Type: 'A', Locate: locate, Timestamp: Time48(open),
		Ref: ref, Side: side, Shares: shares, Stock: Stock("AAPL"), Price: price,
	})
}

func mold(t *testing.T, seqNum uint64, msgs ...[]byte) []byte {
	t.Helper()
	bs, err := MoldPacket(session, seqNum, msgs...)
	require.NoError(t, err)
	return bs
}

func newDecoder() (*ItchDecoder, *feedtest.Recorder) {
	rec := &feedtest.Recorder{}
	return NewItchDecoder(feed.VenueXNAS, rec, packet.DecoderOptions{Timeout: time.Second}), rec
}

func TestItchMessageSizes(t *testing.T) {
	cases := []struct {
		msg interface{}
		typ ItchMessageType
	}{
		{&ItchSystemEventWire{}, ItchMessageTypeSystemEvent},
		{&ItchStockDirectoryWire{}, ItchMessageTypeStockDirectory},
		{&ItchStockTradingActionWire{}, ItchMessageTypeStockTradingAction},
		{&ItchAddOrderWire{}, ItchMessageTypeAddOrder},
		{&ItchOrderExecutedWire{}, ItchMessageTypeOrderExecuted},
		{&ItchOrderExecutedWithPriceWire{}, ItchMessageTypeOrderExecutedWithPrice},
		{&ItchOrderCancelWire{}, ItchMessageTypeOrderCancel},
		{&ItchOrderDeleteWire{}, ItchMessageTypeOrderDelete},
		{&ItchOrderReplaceWire{}, ItchMessageTypeOrderReplace},
		{&ItchTradeWire{}, ItchMessageTypeTrade},
		{&ItchCrossTradeWire{}, ItchMessageTypeCrossTrade},
		{&ItchNOIIWire{}, ItchMessageTypeNOII},
	}
	for _, c := range cases {
		assert.Len(t, MustPack(c.msg), c.typ.Size(), c.typ.String())
	}
}

func TestItchDecodeAll(t *testing.T) {
	d, rec := newDecoder()
	msgs := [][]byte{
		MustPack(&ItchStockDirectoryWire{Type: 'R', Locate: 5, Timestamp: Time48(open), Stock: Stock("AAPL"), RoundLotSize: 100}),
		MustPack(&ItchStockTradingActionWire{Type: 'H', Locate: 5, Timestamp: Time48(open), Stock: Stock("AAPL"), TradingState: 'T'}),
		addOrder(5, 1, 'B', 100, 506700),
		MustPack(&ItchOrderExecutedWire{Type: 'E', Locate: 5, Ref: 1, Shares: 30, Match: 77}),
		MustPack(&ItchOrderExecutedWithPriceWire{Type: 'C', Locate: 5, Ref: 1, Shares: 10, Match: 78, Printable: 'N', Price: 506800}),
		MustPack(&ItchOrderCancelWire{Type: 'X', Locate: 5, Ref: 1, Shares: 20}),
		MustPack(&ItchOrderReplaceWire{Type: 'U', Locate: 5, OrigRef: 1, NewRef: 2, Shares: 200, Price: 506600}),
		MustPack(&ItchOrderDeleteWire{Type: 'D', Locate: 5, Ref: 2}),
		MustPack(&ItchTradeWire{Type: 'P', Locate: 5, Side: 'S', Shares: 50, Stock: Stock("AAPL"), Price: 506700, Match: 79}),
		MustPack(&ItchCrossTradeWire{Type: 'Q', Locate: 5, Shares: 1000, Stock: Stock("AAPL"), Price: 506500, Match: 80, CrossType: 'O'}),
		MustPack(&ItchNOIIWire{Type: 'I', Locate: 5, Paired: 100, Imbalance: 50, Direction: 'B', Stock: Stock("AAPL"), Ref: 506700, CrossType: 'C'}),
		MustPack(&ItchSystemEventWire{Type: 'S', EventCode: 'Q'}),
	}
	n, err := d.Decode(mold(t, 1, msgs...), t0)
	require.NoError(t, err)
	assert.Greater(t, n, MoldUDP64HeaderLen)
	assert.Equal(t, []string{
		"sym 5 AAPL",
		"status 5 Trading",
		"add 5 1 B 100@506700",
		"exec 5 1 30@0",
		"exec 5 1 10@506800",
		"cancel 5 1 20",
		"replace 5 1->2 200@506600",
		"delete 5 2",
		"trade 5 S 50@506700 cross=None",
		"trade 5 ? 1000@506500 cross=Opening",
		"nsdqimb 5 paired=100 imb=50 B ref=506700",
		"feed System 0x53",
	}, rec.Events)
	assert.Equal(t, 1, rec.Packets)

	require.Len(t, rec.Symbols, 1)
	assert.EqualValues(t, 100, rec.Symbols[0].RoundLot)
	assert.Equal(t, t0, rec.Symbols[0].ExchTime, "time of day is offset from exchange midnight")
	require.Len(t, rec.Trades, 2)
	assert.True(t, rec.Trades[0].Printable)
	assert.Equal(t, feed.CrossOpening, rec.Trades[1].Cross)
	assert.Equal(t, byte('Q'), rec.Feed[0].Code)
	assert.EqualValues(t, 13, d.Streams()[0].Expected())
}

func TestItchIgnoredAndUnknown(t *testing.T) {
	d, rec := newDecoder()
	regSHO := make([]byte, 20)
	regSHO[0] = 'Y'
	unknown := make([]byte, 15)
	unknown[0] = 'z'
	_, err := d.Decode(mold(t, 1, regSHO, unknown), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"feed Unhandled 0x7a"}, rec.Events)
	assert.EqualValues(t, 3, d.Streams()[0].Expected(), "unknown messages still consume a sequence number")
}

func TestItchGap(t *testing.T) {
	d, rec := newDecoder()
	_, err := d.Decode(mold(t, 1, addOrder(1, 1, 'B', 100, 1000), addOrder(1, 2, 'B', 100, 1000)), t0)
	require.NoError(t, err)
	_, err = d.Decode(mold(t, 5, addOrder(1, 5, 'S', 100, 2000)), t0+1)
	require.NoError(t, err)
	require.Len(t, rec.Gaps, 1)
	assert.EqualValues(t, 3, rec.Gaps[0].Expected)
	assert.EqualValues(t, 5, rec.Gaps[0].Observed)
	assert.EqualValues(t, 2, rec.Gaps[0].Lost())
	assert.Equal(t, "add 1 5 S 100@2000", rec.Events[len(rec.Events)-1])
	assert.EqualValues(t, 6, d.Streams()[0].Expected())
}

func TestItchDuplicateAndOverlap(t *testing.T) {
	d, rec := newDecoder()
	p := mold(t, 1, addOrder(1, 1, 'B', 100, 1000), addOrder(1, 2, 'B', 100, 1000))
	_, err := d.Decode(p, t0)
	require.NoError(t, err)
	n, err := d.Decode(p, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, rec.Events, 2)

	_, err = d.Decode(mold(t, 2, addOrder(1, 2, 'B', 100, 1000), addOrder(1, 3, 'B', 100, 1000)), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"add 1 1 B 100@1000",
		"add 1 2 B 100@1000",
		"add 1 3 B 100@1000",
	}, rec.Events)
	assert.Empty(t, rec.Gaps)
}

func TestItchRunt(t *testing.T) {
	d, rec := newDecoder()
	short := addOrder(1, 2, 'B', 100, 1000)[:30]
	n, err := d.Decode(mold(t, 1, addOrder(1, 1, 'B', 100, 1000), short), t0)
	assert.ErrorIs(t, err, feed.ErrRunt)
	assert.Zero(t, n)
	assert.Equal(t, []string{"feed Runt 0x0"}, rec.Events, "nothing from a runt packet reaches the sink")
	assert.Zero(t, d.Streams()[0].Expected())

	_, err = d.Decode([]byte("short"), t0)
	assert.ErrorIs(t, err, feed.ErrRunt)

	p := mold(t, 1, addOrder(1, 1, 'B', 100, 1000))
	_, err = d.Decode(p[:len(p)-3], t0)
	assert.ErrorIs(t, err, feed.ErrRunt)
	assert.Equal(t, 3, rec.Packets)
}

func TestItchHeartbeatAndEndOfSession(t *testing.T) {
	d, rec := newDecoder()
	hb, err := MoldHeartbeat(session, 10)
	require.NoError(t, err)
	n, err := d.Decode(hb, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 10, d.Streams()[0].Expected())

	_, err = d.Decode(mold(t, 10, addOrder(1, 1, 'B', 100, 1000)), t0)
	require.NoError(t, err)
	assert.Empty(t, rec.Gaps)

	eos, err := MoldEndOfSession(session, 11)
	require.NoError(t, err)
	_, err = d.Decode(eos, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"add 1 1 B 100@1000",
		"feed SequenceReset 0x0",
		"feed EndOfSession 0x0",
	}, rec.Events)
}

func TestItchSessionChange(t *testing.T) {
	d, rec := newDecoder()
	_, err := d.Decode(mold(t, 100, addOrder(1, 1, 'B', 100, 1000)), t0)
	require.NoError(t, err)
	bs, err := MoldPacket("0000099999", 1, addOrder(1, 2, 'B', 100, 1000))
	require.NoError(t, err)
	_, err = d.Decode(bs, t0)
	require.NoError(t, err)
	assert.Empty(t, rec.Gaps)
	assert.Equal(t, []string{
		"add 1 1 B 100@1000",
		"feed SequenceReset 0x0",
		"add 1 2 B 100@1000",
	}, rec.Events)
}

func TestItchTimeout(t *testing.T) {
	d, rec := newDecoder()
	_, err := d.Decode(mold(t, 1, addOrder(1, 1, 'B', 100, 1000)), t0)
	require.NoError(t, err)
	d.CheckTimeouts(t0.Add(500 * time.Millisecond))
	assert.Empty(t, rec.Timeouts)
	d.CheckTimeouts(t0.Add(2 * time.Second))
	d.CheckTimeouts(t0.Add(3 * time.Second))
	require.Len(t, rec.Timeouts, 1)
	assert.True(t, rec.Timeouts[0].Start)
	_, err = d.Decode(mold(t, 2, addOrder(1, 2, 'B', 100, 1000)), t0.Add(4*time.Second))
	require.NoError(t, err)
	require.Len(t, rec.Timeouts, 2)
	assert.False(t, rec.Timeouts[1].Start)
}
