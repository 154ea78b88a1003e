// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package bookmux routes normalized decoder events to per-symbol books and
// republishes the resulting book changes to listeners.
package bookmux

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"my/mdbook/book"
	"my/mdbook/feed"
)

// Mux is the part shared by L3 and L2 muxes.
type Mux interface {
	Venue() feed.Venue
	Register(Listener)
	Symbol(idx feed.SymbolIndex) (*SymbolState, bool)
	SymbolByName(name string) (*SymbolState, bool)
	Symbols() []*SymbolState
	Depth(idx feed.SymbolIndex) (book.Depth, bool)
	Now() feed.Timestamp
}

type Option func(*base)

func WithLogger(logger *zap.Logger) Option {
	return func(b *base) { b.logger = logger }
}
func WithInstruments(im InstrumentMap) Option {
	return func(b *base) { b.instruments = im }
}

type base struct {
	venue       feed.Venue
	logger      *zap.Logger
	instruments InstrumentMap
	listeners   []Listener
	now         feed.Timestamp
	globalRefs  bool

	mu      sync.RWMutex
	symbols map[feed.SymbolIndex]*SymbolState
	byName  map[string]*SymbolState
}

func (b *base) init(venue feed.Venue, opts []Option) {
	b.venue = venue
	b.symbols = make(map[feed.SymbolIndex]*SymbolState)
	b.byName = make(map[string]*SymbolState)
	for _, o := range opts {
		o(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.With(zap.Stringer("venue", venue))
}

func (b *base) Venue() feed.Venue {
	return b.venue
}
func (b *base) Now() feed.Timestamp {
	return b.now
}

// Register appends a listener. Not safe once events flow.
func (b *base) Register(l Listener) {
	b.listeners = append(b.listeners, l)
}

func (b *base) Symbol(idx feed.SymbolIndex) (*SymbolState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.symbols[idx]
	return s, ok
}
func (b *base) SymbolByName(name string) (*SymbolState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.byName[name]
	return s, ok
}
func (b *base) Symbols() []*SymbolState {
	b.mu.RLock()
	ss := make([]*SymbolState, 0, len(b.symbols))
	for _, s := range b.symbols {
		ss = append(ss, s)
	}
	b.mu.RUnlock()
	sort.Slice(ss, func(i, j int) bool { return ss[i].Index < ss[j].Index })
	return ss
}

// symbol returns the state of idx, creating an anonymous one on first
// reference.
func (b *base) symbol(idx feed.SymbolIndex) *SymbolState {
	b.mu.RLock()
	s, ok := b.symbols[idx]
	b.mu.RUnlock()
	if ok {
		return s
	}
	s = &SymbolState{Venue: b.venue, Index: idx}
	b.mu.Lock()
	b.symbols[idx] = s
	b.mu.Unlock()
	return s
}

/************************************************************************/
// feed.Sink part common to both muxes

func (b *base) PacketStart(t feed.Timestamp) {
	b.now = t
	for _, l := range b.listeners {
		l.OnPacketStart(b.venue, t)
	}
}
func (b *base) PacketEnd(t feed.Timestamp) {
	for _, l := range b.listeners {
		l.OnPacketEnd(b.venue, t)
	}
}
func (b *base) DefineSymbol(def feed.SymbolDef) {
	if def.Symbol == feed.SymbolUnknown {
		return
	}
	name := strings.TrimSpace(def.Name)
	s := b.symbol(def.Symbol)
	b.mu.Lock()
	if s.Name != "" && s.Name != name {
		delete(b.byName, s.Name)
	}
	s.Name = name
	s.Unit = def.Unit
	s.RoundLot = def.RoundLot
	if name != "" {
		b.byName[name] = s
	}
	b.mu.Unlock()
	if b.instruments != nil {
		s.Instrument, s.HasInstr = b.instruments.Instrument(b.venue, name)
	}
	for _, l := range b.listeners {
		l.OnSymbolDefinition(s)
	}
}
func (b *base) Trade(t feed.Trade) {
	s := b.symbol(t.Symbol)
	e := &TradeEvent{Venue: b.venue, Symbol: s, Trade: t, Time: b.now}
	for _, l := range b.listeners {
		l.OnTrade(e)
	}
	if t.Printable {
		b.lastSale(s, t.Price, t.Size, t.Cross)
	}
}
func (b *base) lastSale(s *SymbolState, price feed.Price, size uint32, cross feed.CrossType) {
	ls := LastSale{Venue: b.venue, Price: price, Size: size, Cross: cross, Time: b.now}
	if !s.setLastSale(ls) {
		return
	}
	for _, l := range b.listeners {
		l.OnLastSale(s, ls)
	}
}
func (b *base) TradingStatus(sym feed.SymbolIndex, status feed.TradingStatus, exch feed.Timestamp) {
	s := b.symbol(sym)
	if !s.setStatus(status) {
		return
	}
	for _, l := range b.listeners {
		l.OnTradingStatus(s, status)
	}
}
func (b *base) NyseImbalance(im feed.NyseImbalance) {
	s := b.symbol(im.Symbol)
	for _, l := range b.listeners {
		l.OnNyseImbalance(s, im)
	}
}
func (b *base) NasdaqImbalance(im feed.NasdaqImbalance) {
	s := b.symbol(im.Symbol)
	for _, l := range b.listeners {
		l.OnNasdaqImbalance(s, im)
	}
}
func (b *base) Gap(g feed.Gap) {
	for _, l := range b.listeners {
		l.OnGap(g)
	}
}
func (b *base) Timeout(t feed.Timeout) {
	for _, l := range b.listeners {
		l.OnTimeout(t)
	}
}
func (b *base) FeedEvent(e feed.FeedEvent) {
	for _, l := range b.listeners {
		l.OnFeedEvent(e)
	}
}

func (b *base) checkCrossed(s *SymbolState, d book.Depth) {
	bid, ask := d.BestBid(), d.BestAsk()
	x := !bid.IsEmpty(feed.SideBuy) && !ask.IsEmpty(feed.SideSell) && bid.Price >= ask.Price
	was := s.crossed
	s.crossed = x
	if !x || was {
		return
	}
	b.logger.Debug("book crossed", zap.Stringer("symbol", s), zap.Stringer("bid", bid), zap.Stringer("ask", ask))
	e := &CrossedEvent{Venue: b.venue, Symbol: s, Bid: bid, Ask: ask, Time: b.now}
	for _, l := range b.listeners {
		l.OnBookCrossed(e)
	}
}
