// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nyse

import (
	"encoding/binary"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/seq"
)

// DefaultPriceScale applies to XDP symbols seen before their index mapping.
const DefaultPriceScale = 4

/************************************************************************/
// PdpDecoder decodes the PDP OpenBook feed into aggregated level updates.
// Each packet consumes one sequence number of its product's stream.
type PdpDecoder struct {
	venue   feed.Venue
	sink    feed.L2Sink
	opts    packet.DecoderOptions
	streams *seq.Streams
	pdp     PDP
	book    PdpBookUpdate
}

var _ packet.Decoder = &PdpDecoder{}

func NewPdpDecoder(venue feed.Venue, sink feed.L2Sink, opts packet.DecoderOptions) *PdpDecoder {
	opts = opts.WithDefaults("pdp")
	return &PdpDecoder{
		venue:   venue,
		sink:    sink,
		opts:    opts,
		streams: seq.NewStreams(venue, opts.Feed, sink, opts.Timeout, opts.Logger),
	}
}

func (d *PdpDecoder) Streams() []*seq.Stream {
	return d.streams.All()
}
func (d *PdpDecoder) CheckTimeouts(now feed.Timestamp) {
	d.streams.CheckTimeouts(now)
}

func (d *PdpDecoder) Decode(payload []byte, t feed.Timestamp) (int, error) {
	d.sink.PacketStart(t)
	defer d.sink.PacketEnd(t)

	if err := d.pdp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		id := feed.StreamId{Venue: d.venue, Feed: d.opts.Feed}
		if len(payload) >= PdpHeaderLen {
			id.Unit = uint32(payload[12])
		}
		packet.ReportRunt(d.sink, d.opts.Logger, id, err, t)
		return 0, err
	}
	stream := d.streams.Unit(uint32(d.pdp.ProductId))
	switch d.pdp.MsgType {
	case PdpMessageTypeHeartbeat:
		stream.Heartbeat(uint64(d.pdp.SeqNum), t)
		return 0, nil
	case PdpMessageTypeSequenceReset:
		stream.Reset(uint64(binary.BigEndian.Uint32(d.pdp.Entries[0])), t)
		return int(d.pdp.MsgSize), nil
	}
	if _, ok := stream.Check(uint64(d.pdp.SeqNum), 1, t); !ok {
		return 0, nil
	}
	midnight := t.Midnight()
	for _, e := range d.pdp.Entries {
		if !d.dispatch(stream.Id(), e, midnight, t) {
			break
		}
	}
	return int(d.pdp.MsgSize), nil
}

func (d *PdpDecoder) price(sym feed.SymbolIndex, num uint32, scale uint8) (feed.Price, bool) {
	p, err := feed.PriceFromScaled(int64(num), scale)
	if err != nil {
		d.opts.Logger.Warn("bad price", zap.Uint32("symbol", uint32(sym)), zap.Error(err))
		return 0, false
	}
	return p, true
}

func (d *PdpDecoder) dispatch(stream feed.StreamId, e []byte, midnight, t feed.Timestamp) bool {
	sendTime := midnight + feed.Timestamp(time.Duration(d.pdp.SendTime)*time.Millisecond)
	switch d.pdp.MsgType {
	case PdpMessageTypeSymbolMapping:
		var m PdpSymbolMapping
		m.DecodeFromBytes(e)
		d.sink.DefineSymbol(feed.SymbolDef{
			Symbol:     feed.SymbolIndex(m.SymbolIndex),
			Name:       m.Symbol,
			Unit:       stream.Unit,
			RoundLot:   uint32(m.RoundLot),
			PriceScale: m.PriceScaleCode,
			ExchTime:   sendTime,
		})
	case PdpMessageTypeFullUpdate, PdpMessageTypeDeltaUpdate:
		m := &d.book
		m.DecodeFromBytes(d.pdp.MsgType, e)
		sym := feed.SymbolIndex(m.SymbolIndex)
		exch := m.Since(midnight)
		reason := feed.L2ReasonRefresh
		if m.Full {
			d.sink.L2Clear(sym, exch)
		}
		for _, p := range m.Points {
			price, ok := d.price(sym, p.PriceNum, m.PriceScale)
			if !ok {
				continue
			}
			if !m.Full {
				reason = pdpReason(p.Reason)
			}
			d.sink.L2Level(sym, p.Side, price, uint64(p.Volume), uint32(p.NumOrders), reason, exch)
		}
	case PdpMessageTypeTrade:
		var m PdpTrade
		m.DecodeFromBytes(e)
		sym := feed.SymbolIndex(m.SymbolIndex)
		if price, ok := d.price(sym, m.PriceNum, m.PriceScale); ok {
			d.sink.Trade(feed.Trade{
				Symbol:    sym,
				Price:     price,
				Size:      m.Volume,
				MatchId:   uint64(m.TradeId),
				Printable: m.Printable(),
				ExchTime:  m.Since(midnight),
			})
		}
	case PdpMessageTypeImbalance:
		var m PdpImbalance
		m.DecodeFromBytes(e)
		sym := feed.SymbolIndex(m.SymbolIndex)
		ref, ok1 := d.price(sym, m.RefPriceNum, m.PriceScale)
		clearing, ok2 := d.price(sym, m.ClearingPriceNum, m.PriceScale)
		if ok1 && ok2 {
			d.sink.NyseImbalance(feed.NyseImbalance{
				Symbol:        sym,
				Auction:       auctionType(m.AuctionType),
				RefPrice:      ref,
				PairedQty:     m.PairedQty,
				ImbalanceQty:  m.TotalImbalanceQty,
				Side:          feed.SideFromByte(m.ImbalanceSide),
				ClearingPrice: clearing,
				ExchTime:      m.Since(midnight),
			})
		}
	case PdpMessageTypeSecurityStatus:
		var m PdpSecurityStatus
		m.DecodeFromBytes(e)
		d.sink.TradingStatus(feed.SymbolIndex(m.SymbolIndex), securityStatus(m.Status), m.Since(midnight))
	default:
		packet.ReportUnhandled(d.sink, d.opts.Logger, stream, uint16(d.pdp.MsgType), t)
		return false
	}
	return true
}

/************************************************************************/
// XdpDecoder decodes the XDP integrated feed into order-by-order updates.
// Every message consumes one sequence number.
type XdpDecoder struct {
	venue   feed.Venue
	sink    feed.L3Sink
	opts    packet.DecoderOptions
	streams *seq.Streams
	xdp     XDP
	msg     XdpMessage
	seconds uint32
	scales  map[uint32]uint8
}

var _ packet.Decoder = &XdpDecoder{}

func NewXdpDecoder(venue feed.Venue, sink feed.L3Sink, opts packet.DecoderOptions) *XdpDecoder {
	opts = opts.WithDefaults("xdp")
	return &XdpDecoder{
		venue:   venue,
		sink:    sink,
		opts:    opts,
		streams: seq.NewStreams(venue, opts.Feed, sink, opts.Timeout, opts.Logger),
		scales:  make(map[uint32]uint8),
	}
}

func (d *XdpDecoder) Streams() []*seq.Stream {
	return d.streams.All()
}
func (d *XdpDecoder) CheckTimeouts(now feed.Timestamp) {
	d.streams.CheckTimeouts(now)
}

func (d *XdpDecoder) Decode(payload []byte, t feed.Timestamp) (int, error) {
	d.sink.PacketStart(t)
	defer d.sink.PacketEnd(t)
	stream := d.streams.Unit(d.opts.Unit)

	if err := d.xdp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		packet.ReportRunt(d.sink, d.opts.Logger, stream.Id(), err, t)
		return 0, err
	}
	if d.seconds == 0 {
		d.seconds = d.xdp.SendTime
	}
	if d.xdp.IsHeartbeat() {
		stream.Heartbeat(uint64(d.xdp.SeqNum), t)
		return 0, nil
	}
	for _, b := range d.xdp.Messages {
		if XdpMessageType(binary.LittleEndian.Uint16(b[2:4])) == XdpMessageTypeSequenceReset {
			// the publisher restarted; books are rebuilt from refresh adds
			stream.Reset(uint64(d.xdp.SeqNum), t)
			d.sink.ClearUnit(stream.Id(), d.exch(0))
			break
		}
	}
	skip, ok := stream.Check(uint64(d.xdp.SeqNum), uint64(d.xdp.NumMsgs), t)
	if !ok {
		return 0, nil
	}
	for _, b := range d.xdp.Messages[skip:] {
		d.dispatch(stream.Id(), b, t)
	}
	return int(d.xdp.PktSize), nil
}

func (d *XdpDecoder) exch(ns uint32) feed.Timestamp {
	return feed.Timestamp(time.Duration(d.seconds)*time.Second) + feed.Timestamp(ns)
}

func (d *XdpDecoder) price(sym uint32, num uint32) feed.Price {
	scale, ok := d.scales[sym]
	if !ok {
		scale = DefaultPriceScale
	}
	p, err := feed.PriceFromScaled(int64(num), scale)
	if err != nil {
		// scale codes are checked when the mapping arrives
		panic(err)
	}
	return p
}

func (d *XdpDecoder) dispatch(stream feed.StreamId, b []byte, t feed.Timestamp) {
	m := &d.msg
	m.DecodeFromBytes(b)
	if !m.Type.Known() {
		packet.ReportUnhandled(d.sink, d.opts.Logger, stream, uint16(m.Type), t)
		return
	}
	sym := feed.SymbolIndex(m.SymbolIndex)
	exch := d.exch(m.SourceTimeNs)
	switch m.Type {
	case XdpMessageTypeSequenceReset:
		// handled before sequencing
	case XdpMessageTypeSourceTimeRef:
		d.seconds = m.SourceTime
	case XdpMessageTypeSymbolIndexMapping:
		if _, err := feed.PriceFromScaled(0, m.PriceScale); err != nil {
			d.opts.Logger.Warn("bad price scale", zap.String("symbol", m.Symbol), zap.Uint8("scale", m.PriceScale))
			return
		}
		d.scales[m.SymbolIndex] = m.PriceScale
		d.sink.DefineSymbol(feed.SymbolDef{
			Symbol:     sym,
			Name:       m.Symbol,
			Unit:       stream.Unit,
			RoundLot:   uint32(m.LotSize),
			PriceScale: m.PriceScale,
			ExchTime:   exch,
		})
	case XdpMessageTypeSecurityStatus:
		d.sink.TradingStatus(sym, securityStatus(m.Status), exch)
	case XdpMessageTypeAddOrder, XdpMessageTypeAddOrderRefresh:
		d.sink.AddOrder(sym, m.OrderId, m.Side, d.price(m.SymbolIndex, m.PriceNum), m.Volume, exch)
	case XdpMessageTypeModifyOrder:
		d.sink.ModifyOrder(sym, m.OrderId, d.price(m.SymbolIndex, m.PriceNum), m.Volume, exch)
	case XdpMessageTypeDeleteOrder:
		d.sink.DeleteOrder(sym, m.OrderId, exch)
	case XdpMessageTypeExecution:
		d.sink.ExecuteOrder(sym, m.OrderId, m.Volume, d.price(m.SymbolIndex, m.PriceNum), m.Printable, uint64(m.TradeId), exch)
	case XdpMessageTypeReplaceOrder:
		d.sink.ReplaceOrder(sym, m.OrderId, m.NewOrderId, d.price(m.SymbolIndex, m.PriceNum), m.Volume, exch)
	case XdpMessageTypeImbalance:
		im := m.Imbalance
		d.sink.NyseImbalance(feed.NyseImbalance{
			Symbol:        sym,
			Auction:       auctionType(im.AuctionType),
			RefPrice:      d.price(m.SymbolIndex, im.ReferencePrice),
			PairedQty:     im.PairedQty,
			ImbalanceQty:  im.TotalImbalanceQty,
			Side:          feed.SideFromByte(im.ImbalanceSide),
			ClearingPrice: d.price(m.SymbolIndex, im.IndicativeMatch),
			ExchTime:      exch,
		})
	case XdpMessageTypeNonDisplayedTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Price:     d.price(m.SymbolIndex, m.PriceNum),
			Size:      m.Volume,
			MatchId:   uint64(m.TradeId),
			Printable: m.Printable,
			ExchTime:  exch,
		})
	case XdpMessageTypeCrossTrade:
		d.sink.Trade(feed.Trade{
			Symbol:    sym,
			Price:     d.price(m.SymbolIndex, m.PriceNum),
			Size:      m.Volume,
			MatchId:   uint64(m.TradeId),
			Cross:     auctionType(m.CrossType),
			Printable: true,
			ExchTime:  exch,
		})
	}
}
