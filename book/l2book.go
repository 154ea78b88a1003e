// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package book

import (
	"sync"

	"github.com/cznic/b"

	"my/mdbook/feed"
)

type priceLevel struct {
	price   feed.Price
	size    uint64
	orders  uint32
	created feed.Timestamp
	updated feed.Timestamp
}

func (pl *priceLevel) top() Top {
	return Top{Price: pl.price, Size: pl.size, Orders: pl.orders}
}

type l2HalfBook struct {
	side   feed.Side
	levels *b.Tree
	flags  Flags
}

func newL2HalfBook(side feed.Side) *l2HalfBook {
	ComparePrice := func(lhs, rhs interface{}) int {
		return comparePrice(lhs.(feed.Price), rhs.(feed.Price))
	}
	ComparePriceRev := func(lhs, rhs interface{}) int {
		return comparePrice(rhs.(feed.Price), lhs.(feed.Price))
	}
	var cmp b.Cmp
	if side == feed.SideBuy {
		cmp = ComparePriceRev
	} else {
		cmp = ComparePrice
	}
	return &l2HalfBook{
		side:   side,
		levels: b.TreeNew(cmp),
	}
}

func (h *l2HalfBook) replace(price feed.Price, size uint64, orders uint32, ts feed.Timestamp) {
	h.flags = 0
	if size == 0 {
		if !h.levels.Delete(price) {
			h.flags |= FlagNotFound
			return
		}
		h.flags |= FlagLevelDeleted
		return
	}
	upd := func(oldV interface{}, exists bool) (newV interface{}, write bool) {
		var pl *priceLevel
		if exists {
			pl = oldV.(*priceLevel)
			if size < pl.size {
				h.flags |= FlagSizeReduced
			}
		} else {
			pl = &priceLevel{price: price, created: ts}
			h.flags |= FlagLevelAdded
		}
		pl.size, pl.orders, pl.updated = size, orders, ts
		return pl, !exists
	}
	h.levels.Put(price, upd)
}
func (h *l2HalfBook) get(price feed.Price) (*priceLevel, bool) {
	v, ok := h.levels.Get(price)
	if !ok {
		return nil, false
	}
	return v.(*priceLevel), true
}
func (h *l2HalfBook) best() Top {
	_, v := h.levels.First()
	if v == nil {
		return Empty(h.side)
	}
	return v.(*priceLevel).top()
}
func (h *l2HalfBook) getTop(levels int) []Top {
	e, err := h.levels.SeekFirst()
	if err != nil {
		return nil
	}
	defer e.Close()
	var tops []Top
	for levels <= 0 || len(tops) < levels {
		_, v, err := e.Next()
		if err != nil {
			break
		}
		tops = append(tops, v.(*priceLevel).top())
	}
	return tops
}

/************************************************************************/
// L2Book is the price-level book of one symbol on an aggregated feed.
type L2Book struct {
	mu  sync.RWMutex
	bid *l2HalfBook
	ask *l2HalfBook
}

var _ Depth = &L2Book{}

func NewL2Book() *L2Book {
	return &L2Book{
		bid: newL2HalfBook(feed.SideBuy),
		ask: newL2HalfBook(feed.SideSell),
	}
}

func (lb *L2Book) half(side feed.Side) *l2HalfBook {
	if side == feed.SideBuy {
		return lb.bid
	}
	return lb.ask
}

// Replace sets the aggregate at a price. Zero size deletes the level.
// It returns the previous level, zero if there was none.
func (lb *L2Book) Replace(side feed.Side, price feed.Price, size uint64, orders uint32, ts feed.Timestamp) (Top, Flags) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	h := lb.half(side)
	var prev Top
	if pl, ok := h.get(price); ok {
		prev = pl.top()
	}
	h.replace(price, size, orders, ts)
	return prev, h.flags
}

func (lb *L2Book) Flags(side feed.Side) Flags {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.half(side).flags
}

func (lb *L2Book) BestBid() Top {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.bid.best()
}
func (lb *L2Book) BestAsk() Top {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.ask.best()
}
func (lb *L2Book) Best() (bid, ask Top) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.bid.best(), lb.ask.best()
}
func (lb *L2Book) Crossed() bool {
	bid, ask := lb.Best()
	return crossed(bid, ask)
}
func (lb *L2Book) LevelAt(side feed.Side, price feed.Price) Top {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	if pl, ok := lb.half(side).get(price); ok {
		return pl.top()
	}
	return Top{}
}
func (lb *L2Book) Levels(side feed.Side, n int) []Top {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.half(side).getTop(n)
}
func (lb *L2Book) Len(side feed.Side) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.half(side).levels.Len()
}

func (lb *L2Book) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.bid.levels.Clear()
	lb.ask.levels.Clear()
	lb.bid.flags, lb.ask.flags = 0, 0
}

// ClearCrossed drops side's levels at or through trigger while crossed.
func (lb *L2Book) ClearCrossed(side feed.Side, trigger feed.Price) []Top {
	if !lb.Crossed() {
		return nil
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	h := lb.half(side)
	var removed []Top
	for _, t := range h.getTop(0) {
		if !t.Price.Through(trigger, side) {
			break
		}
		h.levels.Delete(t.Price)
		removed = append(removed, t)
	}
	return removed
}
