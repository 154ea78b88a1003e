// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bookmux

import "my/mdbook/feed"

// Multi forwards every event to its members in order. It lets a group of
// listeners be registered with several muxes as one.
type Multi []Listener

var _ Listener = Multi{}

func (m Multi) OnPacketStart(v feed.Venue, t feed.Timestamp) {
	for _, l := range m {
		l.OnPacketStart(v, t)
	}
}
func (m Multi) OnPacketEnd(v feed.Venue, t feed.Timestamp) {
	for _, l := range m {
		l.OnPacketEnd(v, t)
	}
}
func (m Multi) OnSymbolDefinition(s *SymbolState) {
	for _, l := range m {
		l.OnSymbolDefinition(s)
	}
}
func (m Multi) OnBookAdded(e *BookEvent) {
	for _, l := range m {
		l.OnBookAdded(e)
	}
}
func (m Multi) OnBookCanceled(e *BookEvent) {
	for _, l := range m {
		l.OnBookCanceled(e)
	}
}
func (m Multi) OnBookModified(e *ModifyEvent) {
	for _, l := range m {
		l.OnBookModified(e)
	}
}
func (m Multi) OnBookExecuted(e *ExecEvent) {
	for _, l := range m {
		l.OnBookExecuted(e)
	}
}
func (m Multi) OnBookCrossed(e *CrossedEvent) {
	for _, l := range m {
		l.OnBookCrossed(e)
	}
}
func (m Multi) OnL2Update(e *L2Event) {
	for _, l := range m {
		l.OnL2Update(e)
	}
}
func (m Multi) OnTrade(e *TradeEvent) {
	for _, l := range m {
		l.OnTrade(e)
	}
}
func (m Multi) OnLastSale(s *SymbolState, ls LastSale) {
	for _, l := range m {
		l.OnLastSale(s, ls)
	}
}
func (m Multi) OnNyseImbalance(s *SymbolState, im feed.NyseImbalance) {
	for _, l := range m {
		l.OnNyseImbalance(s, im)
	}
}
func (m Multi) OnNasdaqImbalance(s *SymbolState, im feed.NasdaqImbalance) {
	for _, l := range m {
		l.OnNasdaqImbalance(s, im)
	}
}
func (m Multi) OnTradingStatus(s *SymbolState, status feed.TradingStatus) {
	for _, l := range m {
		l.OnTradingStatus(s, status)
	}
}
func (m Multi) OnGap(g feed.Gap) {
	for _, l := range m {
		l.OnGap(g)
	}
}
func (m Multi) OnFeedEvent(e feed.FeedEvent) {
	for _, l := range m {
		l.OnFeedEvent(e)
	}
}
func (m Multi) OnTimeout(t feed.Timeout) {
	for _, l := range m {
		l.OnTimeout(t)
	}
}
