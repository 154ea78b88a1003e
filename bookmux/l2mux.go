// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bookmux

import (
	"my/mdbook/book"
	"my/mdbook/feed"
)

// L2Mux owns the price-level books of one venue.
type L2Mux struct {
	base
	books map[feed.SymbolIndex]*book.L2Book
}

var (
	_ feed.L2Sink = &L2Mux{}
	_ Mux         = &L2Mux{}
)

func NewL2Mux(venue feed.Venue, opts ...Option) *L2Mux {
	m := &L2Mux{
		books: make(map[feed.SymbolIndex]*book.L2Book),
	}
	m.init(venue, opts)
	return m
}

func (m *L2Mux) L2Book(idx feed.SymbolIndex) (*book.L2Book, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[idx]
	return b, ok
}
func (m *L2Mux) Depth(idx feed.SymbolIndex) (book.Depth, bool) {
	b, ok := m.L2Book(idx)
	if !ok {
		return nil, false
	}
	return b, true
}
func (m *L2Mux) l2Book(idx feed.SymbolIndex) *book.L2Book {
	if b, ok := m.L2Book(idx); ok {
		return b
	}
	b := book.NewL2Book()
	m.mu.Lock()
	m.books[idx] = b
	m.mu.Unlock()
	return b
}

func (m *L2Mux) L2Level(sym feed.SymbolIndex, side feed.Side, price feed.Price, size uint64, orders uint32, reason feed.L2Reason, exch feed.Timestamp) {
	if sym == feed.SymbolUnknown || !side.Valid() {
		return
	}
	s := m.symbol(sym)
	b := m.l2Book(sym)
	prev, flags := b.Replace(side, price, size, orders, m.now)
	if flags&book.FlagNotFound != 0 {
		return
	}
	e := &L2Event{
		Venue:    m.venue,
		Symbol:   s,
		Side:     side,
		Price:    price,
		Size:     size,
		PrevSize: prev.Size,
		Orders:   orders,
		Reason:   reason,
		Flags:    flags,
		Book:     b,
		Time:     m.now,
		ExchTime: exch,
	}
	for _, l := range m.listeners {
		l.OnL2Update(e)
	}
	m.checkCrossed(s, b)
}

// L2Clear empties a book ahead of a full refresh. Every dropped level is
// published as an update to zero.
func (m *L2Mux) L2Clear(sym feed.SymbolIndex, exch feed.Timestamp) {
	b, ok := m.L2Book(sym)
	if !ok {
		return
	}
	s := m.symbol(sym)
	for _, side := range []feed.Side{feed.SideBuy, feed.SideSell} {
		for _, t := range b.Levels(side, 0) {
			m.L2Level(sym, side, t.Price, 0, 0, feed.L2ReasonRefresh, exch)
		}
	}
	m.checkCrossed(s, b)
}

// ClearCrossed drops side's levels at or through trigger.
func (m *L2Mux) ClearCrossed(sym feed.SymbolIndex, side feed.Side, trigger feed.Price) int {
	b, ok := m.L2Book(sym)
	if !ok {
		return 0
	}
	if !b.Crossed() {
		return 0
	}
	n := 0
	for _, t := range b.Levels(side, 0) {
		if !t.Price.Through(trigger, side) {
			break
		}
		m.L2Level(sym, side, t.Price, 0, 0, feed.L2ReasonCancel, m.now)
		n++
	}
	return n
}
