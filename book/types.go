// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package book keeps per-symbol limit order books: order-by-order (L3) and
// price-level aggregated (L2).
package book

import (
	"fmt"
	"strings"

	"my/mdbook/feed"
)

// Top is an immutable snapshot of one price level.
type Top struct {
	Price  feed.Price
	Size   uint64
	Orders uint32
}

var (
	EmptyBid = Top{Price: feed.NoBidPrice}
	EmptyAsk = Top{Price: feed.NoAskPrice}
)

func Empty(side feed.Side) Top {
	if side == feed.SideBuy {
		return EmptyBid
	}
	return EmptyAsk
}

// IsEmpty checks for the empty-side sentinel, not for zero size.
func (t Top) IsEmpty(side feed.Side) bool {
	return t.Price == Empty(side).Price
}
func (t Top) String() string {
	return fmt.Sprintf("%d@%s(%d)", t.Size, t.Price, t.Orders)
}

// Flags report what the last mutating call did to the levels.
type Flags uint8

const (
	FlagLevelAdded Flags = 1 << iota
	FlagLevelDeleted
	FlagSizeReduced
	FlagNotFound
)

func (f Flags) String() string {
	var s []string
	names := []string{"LevelAdded", "LevelDeleted", "SizeReduced", "NotFound"}
	for i, n := range names {
		if f&(1<<uint(i)) != 0 {
			s = append(s, n)
		}
	}
	return strings.Join(s, "|")
}

// Depth is read access shared by both book kinds.
type Depth interface {
	BestBid() Top
	BestAsk() Top
	Crossed() bool
	// LevelAt returns a zero Top if nothing rests at price.
	LevelAt(side feed.Side, price feed.Price) Top
	Levels(side feed.Side, n int) []Top
}

func crossed(bid, ask Top) bool {
	return !bid.IsEmpty(feed.SideBuy) && !ask.IsEmpty(feed.SideSell) && bid.Price >= ask.Price
}

func comparePrice(l, r feed.Price) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}
