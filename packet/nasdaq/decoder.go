// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nasdaq

import (
	"fmt"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/seq"
)

// ItchDecoder decodes MoldUDP64 framed ITCH 5.0. Both lines of an A/B pair
// may feed the same decoder; the later copy is dropped as a duplicate.
type ItchDecoder struct {
	venue   feed.Venue
	sink    feed.L3Sink
	opts    packet.DecoderOptions
	streams *seq.Streams
	mold    MoldUDP64
	session string
	msgs    [256]ItchMessage
}

var _ packet.Decoder = &ItchDecoder{}

func NewItchDecoder(venue feed.Venue, sink feed.L3Sink, opts packet.DecoderOptions) *ItchDecoder {
	opts = opts.WithDefaults("itch50")
	return &ItchDecoder{
		venue:   venue,
		sink:    sink,
		opts:    opts,
		streams: seq.NewStreams(venue, opts.Feed, sink, opts.Timeout, opts.Logger),
	}
}

func (d *ItchDecoder) Streams() []*seq.Stream {
	return d.streams.All()
}
func (d *ItchDecoder) CheckTimeouts(now feed.Timestamp) {
	d.streams.CheckTimeouts(now)
}

func (d *ItchDecoder) Decode(payload []byte, t feed.Timestamp) (int, error) {
	d.sink.PacketStart(t)
	defer d.sink.PacketEnd(t)
	stream := d.streams.Unit(d.opts.Unit)

	if err := d.validate(payload); err != nil {
		packet.ReportRunt(d.sink, d.opts.Logger, stream.Id(), err, t)
		return 0, err
	}
	if d.session != d.mold.Session {
		if d.session != "" {
			stream.Reset(d.mold.SequenceNumber, t)
		}
		d.session = d.mold.Session
	}
	switch {
	case d.mold.IsHeartbeat():
		stream.Heartbeat(d.mold.SequenceNumber, t)
		return 0, nil
	case d.mold.IsEndOfSession():
		stream.Reset(d.mold.SequenceNumber, t)
		d.sink.FeedEvent(feed.FeedEvent{Stream: stream.Id(), Kind: feed.FeedEventEndOfSession, Time: t})
		return 0, nil
	}
	skip, ok := stream.Check(d.mold.SequenceNumber, uint64(d.mold.MessageCount), t)
	if !ok {
		return 0, nil
	}
	midnight := t.Midnight()
	for _, b := range d.mold.Blocks[skip:] {
		d.dispatch(stream.Id(), b, midnight, t)
	}
	return d.mold.Len(), nil
}

// validate checks the framing and every known message size before anything
// reaches the sink.
func (d *ItchDecoder) validate(payload []byte) error {
	if err := d.mold.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return err
	}
	for i, b := range d.mold.Blocks {
		if size := ItchMessageType(b[0]).Size(); len(b) < size {
			return fmt.Errorf("%w: block %d %s %d bytes, need %d", feed.ErrRunt, i, ItchMessageType(b[0]), len(b), size)
		}
	}
	return nil
}

func (d *ItchDecoder) message(typ ItchMessageType) ItchMessage {
	m := d.msgs[typ]
	if m == nil {
		m = ItchMessageTypeMetadata[typ].Create()
		d.msgs[typ] = m
	}
	return m
}

func (d *ItchDecoder) dispatch(stream feed.StreamId, b []byte, midnight, t feed.Timestamp) {
	typ := ItchMessageType(b[0])
	if !typ.Known() {
		packet.ReportUnhandled(d.sink, d.opts.Logger, stream, uint16(typ), t)
		return
	}
	m := d.message(typ)
	if err := m.DecodeFromBytes(b); err != nil {
		d.opts.Logger.Warn("decode", zap.Stringer("type", typ), zap.Error(err))
		return
	}
	c := m.Base()
	sym := feed.SymbolIndex(c.StockLocate)
	exch := midnight + feed.Timestamp(c.Timestamp)

	switch m := m.(type) {
	case *ItchMessageSystemEvent:
		d.sink.FeedEvent(feed.FeedEvent{Stream: stream, Kind: feed.FeedEventSystem, MsgType: uint16(typ), Code: m.EventCode, Time: t})
	case *ItchMessageStockDirectory:
		d.sink.DefineSymbol(feed.SymbolDef{
			Symbol:     sym,
			Name:       m.Stock,
			Unit:       d.opts.Unit,
			RoundLot:   m.RoundLotSize,
			PriceScale: feed.PriceDecimals,
			ExchTime:   exch,
		})
	case *ItchMessageStockTradingAction:
		d.sink.TradingStatus(sym, m.Status(), exch)
	case *ItchMessageAddOrder:
		d.sink.AddOrder(sym, m.OrderReferenceNumber, m.Side, m.Price, m.Shares, exch)
	case *ItchMessageOrderExecuted:
		d.sink.ExecuteOrder(sym, m.OrderReferenceNumber, m.ExecutedShares, m.ExecutionPrice, m.Printable, m.MatchNumber, exch)
	case *ItchMessageOrderCancel:
		d.sink.CancelOrder(sym, m.OrderReferenceNumber, m.CanceledShares, exch)
	case *ItchMessageOrderDelete:
		d.sink.DeleteOrder(sym, m.OrderReferenceNumber, exch)
	case *ItchMessageOrderReplace:
		d.sink.ReplaceOrder(sym, m.OriginalOrderReferenceNumber, m.NewOrderReferenceNumber, m.Price, m.Shares, exch)
	case *ItchMessageTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Ref:       m.OrderReferenceNumber,
			Side:      m.Side,
			Price:     m.Price,
			Size:      m.Shares,
			MatchId:   m.MatchNumber,
			Printable: true,
			ExchTime:  exch,
		})
	case *ItchMessageCrossTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Price:     m.CrossPrice,
			Size:      uint32(m.Shares),
			MatchId:   m.MatchNumber,
			Cross:     crossType(m.CrossType),
			Printable: true,
			ExchTime:  exch,
		})
	case *ItchMessageNOII:
		d.sink.NasdaqImbalance(feed.NasdaqImbalance{
			Symbol:       sym,
			PairedQty:    m.PairedShares,
			ImbalanceQty: m.ImbalanceShares,
			Direction:    feed.SideFromByte(m.ImbalanceDirection),
			FarPrice:     m.FarPrice,
			NearPrice:    m.NearPrice,
			RefPrice:     m.CurrentReferencePx,
			Cross:        crossType(m.CrossType),
			ExchTime:     exch,
		})
	default:
		// informational, no book or trade state
	}
}
