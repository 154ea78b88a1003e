// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bookmux

import (
	"go.uber.org/zap"

	"my/mdbook/book"
	"my/mdbook/feed"
)

// WithGlobalRefs makes an L3 mux remember which symbol every order belongs
// to, for feeds that only carry the ref number after the add.
func WithGlobalRefs() Option {
	return func(b *base) { b.globalRefs = true }
}

type L3Stats struct {
	Unresolved uint64
	Duplicates uint64
	Unknown    uint64
}

// L3Mux owns the order-by-order books of one venue.
type L3Mux struct {
	base
	books map[feed.SymbolIndex]*book.OrderBook
	refs  map[feed.RefNum]feed.SymbolIndex
	stats L3Stats
}

var (
	_ feed.L3Sink = &L3Mux{}
	_ Mux         = &L3Mux{}
)

func NewL3Mux(venue feed.Venue, opts ...Option) *L3Mux {
	m := &L3Mux{
		books: make(map[feed.SymbolIndex]*book.OrderBook),
		refs:  make(map[feed.RefNum]feed.SymbolIndex),
	}
	m.init(venue, opts)
	return m
}

func (m *L3Mux) Stats() L3Stats {
	return m.stats
}

func (m *L3Mux) OrderBook(idx feed.SymbolIndex) (*book.OrderBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[idx]
	return b, ok
}
func (m *L3Mux) Depth(idx feed.SymbolIndex) (book.Depth, bool) {
	b, ok := m.OrderBook(idx)
	if !ok {
		return nil, false
	}
	return b, true
}

func (m *L3Mux) orderBook(idx feed.SymbolIndex) *book.OrderBook {
	if b, ok := m.OrderBook(idx); ok {
		return b
	}
	b := book.NewOrderBook()
	m.mu.Lock()
	m.books[idx] = b
	m.mu.Unlock()
	return b
}

func (m *L3Mux) resolve(sym feed.SymbolIndex, ref feed.RefNum) (feed.SymbolIndex, bool) {
	if sym != feed.SymbolUnknown {
		return sym, true
	}
	if m.globalRefs {
		if s, ok := m.refs[ref]; ok {
			return s, true
		}
	}
	m.stats.Unresolved++
	return feed.SymbolUnknown, false
}
func (m *L3Mux) forget(ref feed.RefNum) {
	if m.globalRefs {
		delete(m.refs, ref)
	}
}
func (m *L3Mux) unknown(op string, ref feed.RefNum) {
	m.stats.Unknown++
	m.logger.Debug("unknown order", zap.String("op", op), zap.Stringer("ref", ref))
}

func (m *L3Mux) AddOrder(sym feed.SymbolIndex, ref feed.RefNum, side feed.Side, price feed.Price, size uint32, exch feed.Timestamp) {
	if sym == feed.SymbolUnknown {
		m.stats.Unresolved++
		return
	}
	s := m.symbol(sym)
	b := m.orderBook(sym)
	o := book.Order{Ref: ref, Side: side, Price: price, Size: size, Created: m.now}
	if !b.Add(o) {
		m.stats.Duplicates++
		m.logger.Debug("add rejected", zap.Stringer("symbol", s), zap.Stringer("ref", ref))
		return
	}
	if m.globalRefs {
		m.refs[ref] = sym
	}
	e := &BookEvent{
		Venue:     m.venue,
		Symbol:    s,
		Ref:       ref,
		Side:      side,
		Price:     price,
		Size:      size,
		Remaining: size,
		Flags:     b.Flags(side),
		Book:      b,
		Time:      m.now,
		ExchTime:  exch,
	}
	for _, l := range m.listeners {
		l.OnBookAdded(e)
	}
	m.checkCrossed(s, b)
}

func (m *L3Mux) ExecuteOrder(sym feed.SymbolIndex, ref feed.RefNum, size uint32, price feed.Price, printable bool, matchId uint64, exch feed.Timestamp) {
	sym, ok := m.resolve(sym, ref)
	if !ok {
		return
	}
	s := m.symbol(sym)
	b := m.orderBook(sym)
	prev, ok := b.Reduce(ref, size, m.now)
	if !ok {
		m.unknown("execute", ref)
		return
	}
	if size > prev.Size {
		size = prev.Size
	}
	if price == 0 {
		price = prev.Price
	}
	remaining := prev.Size - size
	if remaining == 0 {
		m.forget(ref)
	}
	e := &ExecEvent{
		BookEvent: BookEvent{
			Venue:     m.venue,
			Symbol:    s,
			Ref:       ref,
			Side:      prev.Side,
			Price:     prev.Price,
			Size:      size,
			Remaining: remaining,
			Flags:     b.Flags(prev.Side),
			Book:      b,
			Time:      m.now,
			ExchTime:  exch,
		},
		ExecPrice: price,
		Printable: printable,
		MatchId:   matchId,
	}
	for _, l := range m.listeners {
		l.OnBookExecuted(e)
	}
	if printable {
		m.lastSale(s, price, size, feed.CrossNone)
	}
	m.checkCrossed(s, b)
}

func (m *L3Mux) CancelOrder(sym feed.SymbolIndex, ref feed.RefNum, size uint32, exch feed.Timestamp) {
	sym, ok := m.resolve(sym, ref)
	if !ok {
		return
	}
	b := m.orderBook(sym)
	prev, ok := b.Reduce(ref, size, m.now)
	if !ok {
		m.unknown("cancel", ref)
		return
	}
	if size > prev.Size {
		size = prev.Size
	}
	m.canceled(sym, b, prev, size, exch)
}

func (m *L3Mux) DeleteOrder(sym feed.SymbolIndex, ref feed.RefNum, exch feed.Timestamp) {
	sym, ok := m.resolve(sym, ref)
	if !ok {
		return
	}
	b := m.orderBook(sym)
	prev, ok := b.Remove(ref, m.now)
	if !ok {
		m.unknown("delete", ref)
		return
	}
	m.canceled(sym, b, prev, prev.Size, exch)
}

func (m *L3Mux) canceled(sym feed.SymbolIndex, b *book.OrderBook, prev book.Order, size uint32, exch feed.Timestamp) {
	remaining := prev.Size - size
	if remaining == 0 {
		m.forget(prev.Ref)
	}
	s := m.symbol(sym)
	e := &BookEvent{
		Venue:     m.venue,
		Symbol:    s,
		Ref:       prev.Ref,
		Side:      prev.Side,
		Price:     prev.Price,
		Size:      size,
		Remaining: remaining,
		Flags:     b.Flags(prev.Side),
		Book:      b,
		Time:      m.now,
		ExchTime:  exch,
	}
	for _, l := range m.listeners {
		l.OnBookCanceled(e)
	}
	m.checkCrossed(s, b)
}

// ReplaceOrder is published as a cancel of oldRef followed by an add of newRef.
func (m *L3Mux) ReplaceOrder(sym feed.SymbolIndex, oldRef, newRef feed.RefNum, price feed.Price, size uint32, exch feed.Timestamp) {
	sym, ok := m.resolve(sym, oldRef)
	if !ok {
		return
	}
	s := m.symbol(sym)
	b := m.orderBook(sym)
	old, found := b.Replace(oldRef, book.Order{Ref: newRef, Price: price, Size: size, Created: m.now})
	if !found {
		m.unknown("replace", oldRef)
		return
	}
	m.forget(oldRef)
	flags := b.Flags(old.Side)
	ce := &BookEvent{
		Venue:    m.venue,
		Symbol:   s,
		Ref:      oldRef,
		Side:     old.Side,
		Price:    old.Price,
		Size:     old.Size,
		Flags:    flags,
		Book:     b,
		Time:     m.now,
		ExchTime: exch,
	}
	for _, l := range m.listeners {
		l.OnBookCanceled(ce)
	}
	if _, ok := b.Order(newRef); !ok {
		m.stats.Duplicates++
		return
	}
	if m.globalRefs {
		m.refs[newRef] = sym
	}
	ae := &BookEvent{
		Venue:     m.venue,
		Symbol:    s,
		Ref:       newRef,
		Side:      old.Side,
		Price:     price,
		Size:      size,
		Remaining: size,
		Flags:     flags,
		Book:      b,
		Time:      m.now,
		ExchTime:  exch,
	}
	for _, l := range m.listeners {
		l.OnBookAdded(ae)
	}
	m.checkCrossed(s, b)
}

func (m *L3Mux) ModifyOrder(sym feed.SymbolIndex, ref feed.RefNum, price feed.Price, size uint32, exch feed.Timestamp) {
	sym, ok := m.resolve(sym, ref)
	if !ok {
		return
	}
	s := m.symbol(sym)
	b := m.orderBook(sym)
	old, ok := b.Update(ref, price, size, m.now)
	if !ok {
		m.unknown("modify", ref)
		return
	}
	if size == 0 {
		m.forget(ref)
	}
	e := &ModifyEvent{
		BookEvent: BookEvent{
			Venue:     m.venue,
			Symbol:    s,
			Ref:       ref,
			Side:      old.Side,
			Price:     price,
			Size:      size,
			Remaining: size,
			Flags:     b.Flags(old.Side),
			Book:      b,
			Time:      m.now,
			ExchTime:  exch,
		},
		Old: old,
	}
	for _, l := range m.listeners {
		l.OnBookModified(e)
	}
	m.checkCrossed(s, b)
}

// ClearUnit empties every book whose symbol was defined on the unit.
func (m *L3Mux) ClearUnit(stream feed.StreamId, exch feed.Timestamp) {
	for _, s := range m.Symbols() {
		if s.Unit != stream.Unit {
			continue
		}
		if b, ok := m.OrderBook(s.Index); ok {
			m.publishCleared(s, b, b.Clear(), exch)
		}
	}
}

// Clear empties one book.
func (m *L3Mux) Clear(sym feed.SymbolIndex) int {
	b, ok := m.OrderBook(sym)
	if !ok {
		return 0
	}
	return m.publishCleared(m.symbol(sym), b, b.Clear(), m.now)
}

// ClearNotIn drops orders not eligible for sessions from every book.
func (m *L3Mux) ClearNotIn(sessions feed.SessionFlags) int {
	n := 0
	for _, s := range m.Symbols() {
		if b, ok := m.OrderBook(s.Index); ok {
			n += m.publishCleared(s, b, b.ClearNotIn(sessions), m.now)
		}
	}
	return n
}

// ClearCrossed resolves a crossed book by dropping side's orders at or
// through trigger.
func (m *L3Mux) ClearCrossed(sym feed.SymbolIndex, side feed.Side, trigger feed.Price) int {
	b, ok := m.OrderBook(sym)
	if !ok {
		return 0
	}
	return m.publishCleared(m.symbol(sym), b, b.ClearCrossed(side, trigger), m.now)
}

func (m *L3Mux) publishCleared(s *SymbolState, b *book.OrderBook, orders []book.Order, exch feed.Timestamp) int {
	for _, o := range orders {
		m.forget(o.Ref)
		e := &BookEvent{
			Venue:    m.venue,
			Symbol:   s,
			Ref:      o.Ref,
			Side:     o.Side,
			Price:    o.Price,
			Size:     o.Size,
			Book:     b,
			Time:     m.now,
			ExchTime: exch,
		}
		for _, l := range m.listeners {
			l.OnBookCanceled(e)
		}
	}
	if len(orders) > 0 {
		m.checkCrossed(s, b)
	}
	return len(orders)
}
