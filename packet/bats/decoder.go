// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bats

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/seq"
)

// DefaultRoundLot is reported for symbols first seen on an order or trade;
// Cboe feeds carry no lot size.
const DefaultRoundLot = 100

type protocol interface {
	size(typ uint8) (int, bool)
	handle(stream *seq.Stream, msg []byte, midnight, t feed.Timestamp)
}

// unitDecoder handles the sequenced unit framing shared by PITCH2 and
// NextGen. Messages that do not name a symbol are passed on with symbol 0.
type unitDecoder struct {
	venue   feed.Venue
	sink    feed.L3Sink
	opts    packet.DecoderOptions
	streams *seq.Streams
	bsu     BSU
	proto   protocol

	endOfSession bool
}

func (d *unitDecoder) init(venue feed.Venue, sink feed.L3Sink, opts packet.DecoderOptions, proto protocol) {
	d.venue = venue
	d.sink = sink
	d.opts = opts
	d.streams = seq.NewStreams(venue, opts.Feed, sink, opts.Timeout, opts.Logger)
	d.proto = proto
}

func (d *unitDecoder) Streams() []*seq.Stream {
	return d.streams.All()
}
func (d *unitDecoder) CheckTimeouts(now feed.Timestamp) {
	d.streams.CheckTimeouts(now)
}

func (d *unitDecoder) Decode(payload []byte, t feed.Timestamp) (int, error) {
	d.sink.PacketStart(t)
	defer d.sink.PacketEnd(t)

	if err := d.validate(payload); err != nil {
		id := feed.StreamId{Venue: d.venue, Feed: d.opts.Feed}
		if len(payload) >= BSUHeaderLen {
			id.Unit = uint32(payload[3])
		}
		packet.ReportRunt(d.sink, d.opts.Logger, id, err, t)
		return 0, err
	}
	stream := d.streams.Unit(uint32(d.bsu.Unit))
	if d.bsu.Count == 0 {
		if d.bsu.Sequence != 0 {
			stream.Heartbeat(uint64(d.bsu.Sequence), t)
		}
		return 0, nil
	}
	msgs := d.bsu.Messages
	if d.bsu.Sequence != 0 {
		skip, ok := stream.Check(uint64(d.bsu.Sequence), uint64(d.bsu.Count), t)
		if !ok {
			return 0, nil
		}
		msgs = msgs[skip:]
	}
	midnight := t.Midnight()
	d.endOfSession = false
	for _, m := range msgs {
		typ := m[1]
		if _, known := d.proto.size(typ); !known {
			packet.ReportUnhandled(d.sink, d.opts.Logger, stream.Id(), uint16(typ), t)
			continue
		}
		d.proto.handle(stream, m, midnight, t)
	}
	if d.endOfSession {
		d.sink.FeedEvent(feed.FeedEvent{Stream: stream.Id(), Kind: feed.FeedEventEndOfSession, Time: t})
		stream.Reset(1, t)
	}
	return int(d.bsu.Length), nil
}

func (d *unitDecoder) validate(payload []byte) error {
	if err := d.bsu.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return err
	}
	for i, m := range d.bsu.Messages {
		if size, known := d.proto.size(m[1]); known && len(m) < size {
			return fmt.Errorf("%w: message %d type %#x %d bytes, need %d", feed.ErrRunt, i, m[1], len(m), size)
		}
	}
	return nil
}

func (d *unitDecoder) clearUnit(stream *seq.Stream, exch, t feed.Timestamp) {
	d.opts.Logger.Info("unit clear", zap.Stringer("stream", stream.Id()))
	d.sink.FeedEvent(feed.FeedEvent{Stream: stream.Id(), Kind: feed.FeedEventUnitClear, Time: t})
	d.sink.ClearUnit(stream.Id(), exch)
}

/************************************************************************/
// PitchDecoder decodes PITCH 2.x. Symbols get decoder-local indices on
// first sight.
type PitchDecoder struct {
	unitDecoder
	seconds map[uint32]uint32
	symbols map[string]feed.SymbolIndex
	msgs    [256]PitchMessage
}

var _ packet.Decoder = &PitchDecoder{}

func NewPitchDecoder(venue feed.Venue, sink feed.L3Sink, opts packet.DecoderOptions) *PitchDecoder {
	d := &PitchDecoder{
		seconds: make(map[uint32]uint32),
		symbols: make(map[string]feed.SymbolIndex),
	}
	d.init(venue, sink, opts.WithDefaults("pitch2"), d)
	return d
}

func (d *PitchDecoder) size(typ uint8) (int, bool) {
	t := PitchMessageType(typ)
	return t.Size(), t.Known()
}

func (d *PitchDecoder) symbol(name string, unit uint32, exch feed.Timestamp) feed.SymbolIndex {
	if idx, ok := d.symbols[name]; ok {
		return idx
	}
	idx := feed.SymbolIndex(len(d.symbols) + 1)
	d.symbols[name] = idx
	d.sink.DefineSymbol(feed.SymbolDef{
		Symbol:     idx,
		Name:       name,
		Unit:       unit,
		RoundLot:   DefaultRoundLot,
		PriceScale: feed.PriceDecimals,
		ExchTime:   exch,
	})
	return idx
}

func (d *PitchDecoder) handle(stream *seq.Stream, b []byte, midnight, t feed.Timestamp) {
	typ := PitchMessageType(b[1])
	m := d.msgs[typ]
	if m == nil {
		m = PitchMessageTypeMetadata[typ].CreateLayer()
		d.msgs[typ] = m
	}
	if err := m.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		d.opts.Logger.Warn("decode", zap.Stringer("type", typ), zap.Error(err))
		return
	}
	unit := stream.Id().Unit
	exch := midnight + feed.Timestamp(time.Duration(d.seconds[unit])*time.Second) + feed.Timestamp(m.Base().TimeOffset)

	switch m := m.(type) {
	case *PitchMessageTime:
		d.seconds[unit] = m.Time
	case *PitchMessageAddOrder:
		sym := d.symbol(m.Symbol, unit, exch)
		d.sink.AddOrder(sym, m.OrderId, m.Side, m.Price, m.Size, exch)
	case *PitchMessageOrderExecutedAtPriceSize:
		d.sink.ExecuteOrder(feed.SymbolUnknown, m.OrderId, m.Size, m.Price, true, m.ExecutionId, exch)
	case *PitchMessageOrderExecuted:
		d.sink.ExecuteOrder(feed.SymbolUnknown, m.OrderId, m.Size, 0, true, m.ExecutionId, exch)
	case *PitchMessageReduceSize:
		d.sink.CancelOrder(feed.SymbolUnknown, m.OrderId, m.Size, exch)
	case *PitchMessageModifyOrder:
		d.sink.ModifyOrder(feed.SymbolUnknown, m.OrderId, m.Price, m.Size, exch)
	case *PitchMessageDeleteOrder:
		d.sink.DeleteOrder(feed.SymbolUnknown, m.OrderId, exch)
	case *PitchMessageTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    d.symbol(m.Symbol, unit, exch),
			Ref:       m.OrderId,
			Side:      m.Side,
			Price:     m.Price,
			Size:      m.Size,
			MatchId:   m.ExecutionId,
			Printable: true,
			ExchTime:  exch,
		})
	case *PitchMessageTradingStatus:
		d.sink.TradingStatus(d.symbol(m.Symbol, unit, exch), tradingStatus(m.TradingStatus), exch)
	case *PitchMessageAuctionUpdate:
		d.sink.NyseImbalance(m.Imbalance(d.symbol(m.Symbol, unit, exch), exch))
	case *PitchMessageAuctionSummary:
		d.sink.Trade(feed.Trade{
			Symbol:    d.symbol(m.Symbol, unit, exch),
			Price:     m.Price,
			Size:      m.Size,
			Cross:     auctionType(m.AuctionType),
			Printable: true,
			ExchTime:  exch,
		})
	case *PitchMessageUnknown:
		switch typ {
		case PitchMessageTypeUnitClear:
			d.clearUnit(stream, exch, t)
		case PitchMessageTypeEndOfSession:
			d.endOfSession = true
		}
	default:
		// trade breaks, retail price improvement
	}
}

/************************************************************************/
// NextGenDecoder decodes NextGen PITCH. Symbol ids are assigned by the
// exchange through symbol definition messages and used as indices.
type NextGenDecoder struct {
	unitDecoder
	msg NextGenMessage
}

var _ packet.Decoder = &NextGenDecoder{}

func NewNextGenDecoder(venue feed.Venue, sink feed.L3Sink, opts packet.DecoderOptions) *NextGenDecoder {
	d := &NextGenDecoder{}
	d.init(venue, sink, opts.WithDefaults("nextgen"), d)
	return d
}

func (d *NextGenDecoder) size(typ uint8) (int, bool) {
	t := NextGenMessageType(typ)
	return t.Size(), t.Known()
}

func (d *NextGenDecoder) handle(stream *seq.Stream, b []byte, midnight, t feed.Timestamp) {
	m := &d.msg
	if err := m.DecodeFromBytes(b); err != nil {
		d.opts.Logger.Warn("decode", zap.Stringer("type", NextGenMessageType(b[1])), zap.Error(err))
		return
	}
	sym := feed.SymbolIndex(m.SymbolId)
	exch := m.Timestamp
	switch m.Type {
	case NextGenMessageTypeSymbolDefinition:
		d.sink.DefineSymbol(feed.SymbolDef{
			Symbol:     sym,
			Name:       m.Symbol,
			Unit:       stream.Id().Unit,
			RoundLot:   DefaultRoundLot,
			PriceScale: feed.PriceDecimals,
			ExchTime:   exch,
		})
	case NextGenMessageTypeAddOrder:
		d.sink.AddOrder(sym, m.OrderId, m.Side, m.Price, m.Size, exch)
	case NextGenMessageTypeOrderExecuted:
		d.sink.ExecuteOrder(feed.SymbolUnknown, m.OrderId, m.Size, 0, true, m.ExecutionId, exch)
	case NextGenMessageTypeReduceSize:
		d.sink.CancelOrder(feed.SymbolUnknown, m.OrderId, m.Size, exch)
	case NextGenMessageTypeModifyOrder:
		d.sink.ModifyOrder(feed.SymbolUnknown, m.OrderId, m.Price, m.Size, exch)
	case NextGenMessageTypeDeleteOrder:
		d.sink.DeleteOrder(feed.SymbolUnknown, m.OrderId, exch)
	case NextGenMessageTypeTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Ref:       m.OrderId,
			Side:      m.Side,
			Price:     m.Price,
			Size:      m.Size,
			MatchId:   m.ExecutionId,
			Printable: true,
			ExchTime:  exch,
		})
	case NextGenMessageTypeTradingStatus:
		d.sink.TradingStatus(sym, tradingStatus(m.Status), exch)
	case NextGenMessageTypeAuctionSummary:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Price:     m.Price,
			Size:      m.Size,
			Cross:     auctionType(m.AuctionType),
			Printable: true,
			ExchTime:  exch,
		})
	case NextGenMessageTypeUnitClear:
		d.clearUnit(stream, exch, t)
	}
}
