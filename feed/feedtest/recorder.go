// Copyright (c) Ilia Kravets, 2014-2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package feedtest provides a sink that records every call, for tests.
package feedtest

import (
	"fmt"

	"my/mdbook/feed"
)

type Recorder struct {
	Events   []string
	Gaps     []feed.Gap
	Timeouts []feed.Timeout
	Feed     []feed.FeedEvent
	Symbols  []feed.SymbolDef
	Trades   []feed.Trade
	Packets  int
}

var (
	_ feed.L3Sink = &Recorder{}
	_ feed.L2Sink = &Recorder{}
)

func (r *Recorder) add(format string, args ...interface{}) {
	r.Events = append(r.Events, fmt.Sprintf(format, args...))
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	*r = Recorder{}
}

func (r *Recorder) Gap(g feed.Gap) {
	r.Gaps = append(r.Gaps, g)
	r.add("gap %s %d %d", g.Stream, g.Expected, g.Observed)
}
func (r *Recorder) Timeout(t feed.Timeout) {
	r.Timeouts = append(r.Timeouts, t)
	r.add("timeout %s %v", t.Stream, t.Start)
}
func (r *Recorder) FeedEvent(e feed.FeedEvent) {
	r.Feed = append(r.Feed, e)
	r.add("feed %s %#x", e.Kind, e.MsgType)
}
func (r *Recorder) PacketStart(t feed.Timestamp) {
	r.Packets++
}
func (r *Recorder) PacketEnd(t feed.Timestamp) {}
func (r *Recorder) DefineSymbol(def feed.SymbolDef) {
	r.Symbols = append(r.Symbols, def)
	r.add("sym %d %s", def.Symbol, def.Name)
}
func (r *Recorder) Trade(t feed.Trade) {
	r.Trades = append(r.Trades, t)
	r.add("trade %d %s %d@%d cross=%s", t.Symbol, t.Side, t.Size, t.Price, t.Cross)
}
func (r *Recorder) TradingStatus(sym feed.SymbolIndex, status feed.TradingStatus, exch feed.Timestamp) {
	r.add("status %d %s", sym, status)
}
func (r *Recorder) NyseImbalance(im feed.NyseImbalance) {
	r.add("nyseimb %d %s ref=%d paired=%d imb=%d %s", im.Symbol, im.Auction, im.RefPrice, im.PairedQty, im.ImbalanceQty, im.Side)
}
func (r *Recorder) NasdaqImbalance(im feed.NasdaqImbalance) {
	r.add("nsdqimb %d paired=%d imb=%d %s ref=%d", im.Symbol, im.PairedQty, im.ImbalanceQty, im.Direction, im.RefPrice)
}
func (r *Recorder) AddOrder(sym feed.SymbolIndex, ref feed.RefNum, side feed.Side, price feed.Price, size uint32, exch feed.Timestamp) {
	r.add("add %d %d %s %d@%d", sym, ref, side, size, price)
}
func (r *Recorder) ExecuteOrder(sym feed.SymbolIndex, ref feed.RefNum, size uint32, price feed.Price, printable bool, matchId uint64, exch feed.Timestamp) {
	r.add("exec %d %d %d@%d", sym, ref, size, price)
}
func (r *Recorder) CancelOrder(sym feed.SymbolIndex, ref feed.RefNum, size uint32, exch feed.Timestamp) {
	r.add("cancel %d %d %d", sym, ref, size)
}
func (r *Recorder) DeleteOrder(sym feed.SymbolIndex, ref feed.RefNum, exch feed.Timestamp) {
	r.add("delete %d %d", sym, ref)
}
func (r *Recorder) ReplaceOrder(sym feed.SymbolIndex, oldRef, newRef feed.RefNum, price feed.Price, size uint32, exch feed.Timestamp) {
	r.add("replace %d %d->%d %d@%d", sym, oldRef, newRef, size, price)
}
func (r *Recorder) ModifyOrder(sym feed.SymbolIndex, ref feed.RefNum, price feed.Price, size uint32, exch feed.Timestamp) {
	r.add("modify %d %d %d@%d", sym, ref, size, price)
}
func (r *Recorder) ClearUnit(stream feed.StreamId, exch feed.Timestamp) {
	r.add("clearunit %s", stream)
}
func (r *Recorder) L2Level(sym feed.SymbolIndex, side feed.Side, price feed.Price, size uint64, orders uint32, reason feed.L2Reason, exch feed.Timestamp) {
	r.add("l2 %d %s %d@%d n=%d r=%d", sym, side, size, price, orders, reason)
}
func (r *Recorder) L2Clear(sym feed.SymbolIndex, exch feed.Timestamp) {
	r.add("l2clear %d", sym)
}
