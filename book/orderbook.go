// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package book

import (
	"sync"

	"github.com/tidwall/btree"

	"my/mdbook/feed"
)

type Order struct {
	Ref      feed.RefNum
	Side     feed.Side
	Price    feed.Price
	Size     uint32
	Tif      feed.TimeInForce
	Sessions feed.SessionFlags
	Created  feed.Timestamp
	Modified feed.Timestamp
}

type entry struct {
	Order
	lvl        *level
	prev, next *entry
}

// level keeps its orders in arrival order.
type level struct {
	price      feed.Price
	size       uint64
	orders     uint32
	created    feed.Timestamp
	updated    feed.Timestamp
	head, tail *entry
}

func (l *level) top() Top {
	return Top{Price: l.price, Size: l.size, Orders: l.orders}
}
func (l *level) push(e *entry) {
	e.lvl = l
	e.prev, e.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.size += uint64(e.Size)
	l.orders++
}
func (l *level) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next, e.lvl = nil, nil, nil
	l.size -= uint64(e.Size)
	l.orders--
}

type halfBook struct {
	side   feed.Side
	levels *btree.Map[feed.Price, *level]
	flags  Flags
}

func newHalfBook(side feed.Side) *halfBook {
	return &halfBook{
		side:   side,
		levels: btree.NewMap[feed.Price, *level](32),
	}
}
func (h *halfBook) best() Top {
	var (
		l  *level
		ok bool
	)
	if h.side == feed.SideBuy {
		_, l, ok = h.levels.Max()
	} else {
		_, l, ok = h.levels.Min()
	}
	if !ok {
		return Empty(h.side)
	}
	return l.top()
}

// scan walks levels from the best price outwards.
func (h *halfBook) scan(iter func(l *level) bool) {
	f := func(_ feed.Price, l *level) bool { return iter(l) }
	if h.side == feed.SideBuy {
		h.levels.Reverse(f)
	} else {
		h.levels.Scan(f)
	}
}
func (h *halfBook) insert(e *entry, ts feed.Timestamp) {
	l, ok := h.levels.Get(e.Price)
	if !ok {
		l = &level{price: e.Price, created: ts}
		h.levels.Set(e.Price, l)
		h.flags |= FlagLevelAdded
	}
	l.push(e)
	l.updated = ts
}
func (h *halfBook) erase(e *entry, ts feed.Timestamp) {
	l := e.lvl
	l.unlink(e)
	l.updated = ts
	if l.orders == 0 {
		h.levels.Delete(l.price)
		h.flags |= FlagLevelDeleted
	}
}

/************************************************************************/
// OrderBook is the order-by-order book of one symbol. It is written by a
// single feed goroutine; the lock only guards concurrent readers.
type OrderBook struct {
	mu     sync.RWMutex
	orders map[feed.RefNum]*entry
	bid    *halfBook
	ask    *halfBook
}

var _ Depth = &OrderBook{}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders: make(map[feed.RefNum]*entry),
		bid:    newHalfBook(feed.SideBuy),
		ask:    newHalfBook(feed.SideSell),
	}
}

func (b *OrderBook) half(side feed.Side) *halfBook {
	if side == feed.SideBuy {
		return b.bid
	}
	return b.ask
}
func (b *OrderBook) resetFlags() {
	b.bid.flags, b.ask.flags = 0, 0
}

// Flags returns the transient flags of the last mutation on side.
func (b *OrderBook) Flags(side feed.Side) Flags {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.half(side).flags
}

// Add fails if ref is already resting or the order is malformed.
func (b *OrderBook) Add(o Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	return b.add(o)
}
func (b *OrderBook) add(o Order) bool {
	if _, ok := b.orders[o.Ref]; ok || !o.Side.Valid() || o.Size == 0 {
		return false
	}
	if o.Sessions == 0 {
		o.Sessions = feed.SessionAll
	}
	if o.Modified == 0 {
		o.Modified = o.Created
	}
	e := &entry{Order: o}
	b.orders[o.Ref] = e
	b.half(o.Side).insert(e, o.Created)
	return true
}

// Remove deletes a resting order. An unknown ref is not an error: it
// returns false and sets FlagNotFound on both sides.
func (b *OrderBook) Remove(ref feed.RefNum, ts feed.Timestamp) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	return b.remove(ref, ts)
}
func (b *OrderBook) remove(ref feed.RefNum, ts feed.Timestamp) (Order, bool) {
	e, ok := b.orders[ref]
	if !ok {
		b.bid.flags |= FlagNotFound
		b.ask.flags |= FlagNotFound
		return Order{}, false
	}
	delete(b.orders, ref)
	b.half(e.Side).erase(e, ts)
	return e.Order, true
}

// Modify changes size in place keeping queue priority. Zero size removes.
func (b *OrderBook) Modify(ref feed.RefNum, size uint32, ts feed.Timestamp) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	return b.modify(ref, size, ts)
}
func (b *OrderBook) modify(ref feed.RefNum, size uint32, ts feed.Timestamp) (Order, bool) {
	if size == 0 {
		return b.remove(ref, ts)
	}
	e, ok := b.orders[ref]
	if !ok {
		b.bid.flags |= FlagNotFound
		b.ask.flags |= FlagNotFound
		return Order{}, false
	}
	l := e.lvl
	if size < e.Size {
		b.half(e.Side).flags |= FlagSizeReduced
	}
	l.size = l.size - uint64(e.Size) + uint64(size)
	l.updated = ts
	e.Size = size
	e.Modified = ts
	return e.Order, true
}

// Reduce takes by shares off an order, for partial cancels and executions.
// It returns the order as it was before the reduction.
func (b *OrderBook) Reduce(ref feed.RefNum, by uint32, ts feed.Timestamp) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	e, ok := b.orders[ref]
	if !ok {
		b.bid.flags |= FlagNotFound
		b.ask.flags |= FlagNotFound
		return Order{}, false
	}
	prev := e.Order
	left := uint32(0)
	if by < e.Size {
		left = e.Size - by
	}
	b.modify(ref, left, ts)
	return prev, true
}

// Update moves an order to a new price and size. Like the exchanges do, a
// price change or a size increase loses queue priority.
func (b *OrderBook) Update(ref feed.RefNum, price feed.Price, size uint32, ts feed.Timestamp) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	e, ok := b.orders[ref]
	if !ok {
		b.bid.flags |= FlagNotFound
		b.ask.flags |= FlagNotFound
		return Order{}, false
	}
	if price == e.Price && size <= e.Size {
		return b.modify(ref, size, ts)
	}
	o := e.Order
	b.remove(ref, ts)
	if size == 0 {
		return o, true
	}
	o.Price, o.Size, o.Modified = price, size, ts
	b.add(o)
	return o, true
}

// Replace atomically removes oldRef and adds o. The add still happens if
// oldRef is unknown.
func (b *OrderBook) Replace(oldRef feed.RefNum, o Order) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	old, found := b.remove(oldRef, o.Created)
	if found {
		if o.Side == feed.SideUnknown {
			o.Side = old.Side
		}
		if o.Sessions == 0 {
			o.Sessions = old.Sessions
		}
		o.Tif = old.Tif
	}
	b.add(o)
	return old, found
}

func (b *OrderBook) Order(ref feed.RefNum) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.orders[ref]
	if !ok {
		return Order{}, false
	}
	return e.Order, true
}
func (b *OrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

func (b *OrderBook) BestBid() Top {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bid.best()
}
func (b *OrderBook) BestAsk() Top {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ask.best()
}
func (b *OrderBook) Best() (bid, ask Top) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bid.best(), b.ask.best()
}
func (b *OrderBook) Crossed() bool {
	bid, ask := b.Best()
	return crossed(bid, ask)
}
func (b *OrderBook) LevelAt(side feed.Side, price feed.Price) Top {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if l, ok := b.half(side).levels.Get(price); ok {
		return l.top()
	}
	return Top{}
}
func (b *OrderBook) Levels(side feed.Side, n int) []Top {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var tops []Top
	b.half(side).scan(func(l *level) bool {
		tops = append(tops, l.top())
		return len(tops) < n || n <= 0
	})
	return tops
}

// Orders returns the orders resting at a price in queue order.
func (b *OrderBook) Orders(side feed.Side, price feed.Price) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.half(side).levels.Get(price)
	if !ok {
		return nil
	}
	os := make([]Order, 0, l.orders)
	for e := l.head; e != nil; e = e.next {
		os = append(os, e.Order)
	}
	return os
}

// Clear empties the book and returns the removed orders.
func (b *OrderBook) Clear() []Order {
	return b.removeIf(func(*entry) bool { return true })
}

// ClearNotIn removes orders not eligible for any of the sessions.
func (b *OrderBook) ClearNotIn(sessions feed.SessionFlags) []Order {
	return b.removeIf(func(e *entry) bool { return e.Sessions&sessions == 0 })
}

// ClearCrossed removes side's orders at or through trigger while the book
// is crossed. It does nothing on a book that is not crossed.
func (b *OrderBook) ClearCrossed(side feed.Side, trigger feed.Price) []Order {
	if !b.Crossed() {
		return nil
	}
	return b.removeIf(func(e *entry) bool {
		return e.Side == side && e.Price.Through(trigger, side)
	})
}

func (b *OrderBook) removeIf(pred func(*entry) bool) []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetFlags()
	var victims []*entry
	for _, h := range []*halfBook{b.bid, b.ask} {
		h.scan(func(l *level) bool {
			for e := l.head; e != nil; e = e.next {
				if pred(e) {
					victims = append(victims, e)
				}
			}
			return true
		})
	}
	removed := make([]Order, 0, len(victims))
	for _, e := range victims {
		delete(b.orders, e.Ref)
		b.half(e.Side).erase(e, e.Modified)
		removed = append(removed, e.Order)
	}
	return removed
}
