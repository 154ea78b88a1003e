// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bookmux

import (
	"my/mdbook/book"
	"my/mdbook/feed"
)

// BookEvent describes one order-level change on an L3 book.
type BookEvent struct {
	Venue  feed.Venue
	Symbol *SymbolState
	Ref    feed.RefNum
	Side   feed.Side
	Price  feed.Price
	// Size is the number of shares added, canceled or executed.
	Size uint32
	// Remaining is what is left on the order afterwards.
	Remaining uint32
	Flags     book.Flags
	Book      book.Depth
	Time      feed.Timestamp
	ExchTime  feed.Timestamp
}

type ExecEvent struct {
	BookEvent
	ExecPrice feed.Price
	Printable bool
	MatchId   uint64
}

type ModifyEvent struct {
	BookEvent
	Old book.Order
}

type L2Event struct {
	Venue    feed.Venue
	Symbol   *SymbolState
	Side     feed.Side
	Price    feed.Price
	Size     uint64
	PrevSize uint64
	Orders   uint32
	Reason   feed.L2Reason
	Flags    book.Flags
	Book     book.Depth
	Time     feed.Timestamp
	ExchTime feed.Timestamp
}

// Delta is the signed change in resting size at the level.
func (e *L2Event) Delta() int64 {
	return int64(e.Size) - int64(e.PrevSize)
}

type TradeEvent struct {
	Venue  feed.Venue
	Symbol *SymbolState
	feed.Trade
	Time feed.Timestamp
}

type CrossedEvent struct {
	Venue  feed.Venue
	Symbol *SymbolState
	Bid    book.Top
	Ask    book.Top
	Time   feed.Timestamp
}

// Listener receives every event of the muxes it is registered with, in
// registration order. Embed NopListener to implement a subset.
type Listener interface {
	OnPacketStart(venue feed.Venue, t feed.Timestamp)
	OnPacketEnd(venue feed.Venue, t feed.Timestamp)
	OnSymbolDefinition(sym *SymbolState)
	OnBookAdded(e *BookEvent)
	OnBookCanceled(e *BookEvent)
	OnBookModified(e *ModifyEvent)
	OnBookExecuted(e *ExecEvent)
	OnBookCrossed(e *CrossedEvent)
	OnL2Update(e *L2Event)
	OnTrade(e *TradeEvent)
	OnLastSale(sym *SymbolState, ls LastSale)
	OnNyseImbalance(sym *SymbolState, im feed.NyseImbalance)
	OnNasdaqImbalance(sym *SymbolState, im feed.NasdaqImbalance)
	OnTradingStatus(sym *SymbolState, status feed.TradingStatus)
	OnGap(g feed.Gap)
	OnFeedEvent(e feed.FeedEvent)
	OnTimeout(t feed.Timeout)
}

type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnPacketStart(feed.Venue, feed.Timestamp)             {}
func (NopListener) OnPacketEnd(feed.Venue, feed.Timestamp)               {}
func (NopListener) OnSymbolDefinition(*SymbolState)                      {}
func (NopListener) OnBookAdded(*BookEvent)                               {}
func (NopListener) OnBookCanceled(*BookEvent)                            {}
func (NopListener) OnBookModified(*ModifyEvent)                          {}
func (NopListener) OnBookExecuted(*ExecEvent)                            {}
func (NopListener) OnBookCrossed(*CrossedEvent)                          {}
func (NopListener) OnL2Update(*L2Event)                                  {}
func (NopListener) OnTrade(*TradeEvent)                                  {}
func (NopListener) OnLastSale(*SymbolState, LastSale)                    {}
func (NopListener) OnNyseImbalance(*SymbolState, feed.NyseImbalance)     {}
func (NopListener) OnNasdaqImbalance(*SymbolState, feed.NasdaqImbalance) {}
func (NopListener) OnTradingStatus(*SymbolState, feed.TradingStatus)     {}
func (NopListener) OnGap(feed.Gap)                                       {}
func (NopListener) OnFeedEvent(feed.FeedEvent)                           {}
func (NopListener) OnTimeout(feed.Timeout)                               {}
