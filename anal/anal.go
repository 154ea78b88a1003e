// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package anal collects book shape statistics from replayed data.
package anal

import (
	"sort"

	"my/mdbook/book"
	"my/mdbook/bookmux"
	"my/mdbook/feed"
)

type bookStat struct {
	maxLevels int
}

type HashFunc func(uint64) uint64

type orderHashStat struct {
	f             HashFunc
	bucketSize    map[uint64]int
	maxBucketSize map[uint64]int
}

// Analyzer tracks the deepest each book side gets and, for every
// registered hash function, how many live orders share a bucket.
type Analyzer struct {
	bookmux.NopListener
	bookStats     map[SymbolSide]*bookStat
	orderHashStat []orderHashStat
}

var _ bookmux.Listener = &Analyzer{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		bookStats: make(map[SymbolSide]*bookStat),
	}
}

func (a *Analyzer) AddOrderHashFunction(f HashFunc) {
	ohs := orderHashStat{
		f:             f,
		bucketSize:    make(map[uint64]int),
		maxBucketSize: make(map[uint64]int),
	}
	a.orderHashStat = append(a.orderHashStat, ohs)
}

func (a *Analyzer) orderDelta(ref feed.RefNum, delta int) {
	for _, ohs := range a.orderHashStat {
		keyHash := ohs.f(uint64(ref))
		ohs.bucketSize[keyHash] += delta
		if ohs.bucketSize[keyHash] > ohs.maxBucketSize[keyHash] {
			ohs.maxBucketSize[keyHash] = ohs.bucketSize[keyHash]
		} else if ohs.bucketSize[keyHash] == 0 {
			delete(ohs.bucketSize, keyHash)
		}
	}
}

func (a *Analyzer) book(sym *bookmux.SymbolState, side feed.Side) (bs *bookStat) {
	key := SymbolSide{Symbol: sym.String(), Side: side}
	var ok bool
	if bs, ok = a.bookStats[key]; !ok {
		bs = &bookStat{}
		a.bookStats[key] = bs
	}
	return
}
func (a *Analyzer) afterUpdate(sym *bookmux.SymbolState, side feed.Side, d book.Depth) {
	if !side.Valid() || d == nil {
		return
	}
	bs := a.book(sym, side)
	if n := len(d.Levels(side, 0)); bs.maxLevels < n {
		bs.maxLevels = n
	}
}

func (a *Analyzer) OnBookAdded(e *bookmux.BookEvent) {
	a.orderDelta(e.Ref, 1)
	a.afterUpdate(e.Symbol, e.Side, e.Book)
}
func (a *Analyzer) OnBookCanceled(e *bookmux.BookEvent) {
	if e.Remaining == 0 {
		a.orderDelta(e.Ref, -1)
	}
}
func (a *Analyzer) OnBookExecuted(e *bookmux.ExecEvent) {
	if e.Remaining == 0 {
		a.orderDelta(e.Ref, -1)
	}
}
func (a *Analyzer) OnBookModified(e *bookmux.ModifyEvent) {
	if e.Remaining == 0 {
		a.orderDelta(e.Ref, -1)
	}
	a.afterUpdate(e.Symbol, e.Side, e.Book)
}
func (a *Analyzer) OnL2Update(e *bookmux.L2Event) {
	a.afterUpdate(e.Symbol, e.Side, e.Book)
}

type SymbolSide struct {
	Symbol string
	Side   feed.Side
}
type BSVal struct {
	Levels int
	Books  int
	Sample []SymbolSide
}
type BSHist []BSVal

// BookSizeHist counts book sides by their maximum depth, shallowest first.
func (a *Analyzer) BookSizeHist() BSHist {
	bsv := make(map[int]BSVal)
	var levels []int
	keys := make([]SymbolSide, 0, len(a.bookStats))
	for k := range a.bookStats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Side < keys[j].Side
	})
	for _, k := range keys {
		bs := a.bookStats[k]
		v := bsv[bs.maxLevels]
		v.Books++
		if len(v.Sample) < 10 {
			v.Sample = append(v.Sample, k)
		}
		if v.Books == 1 {
			v.Levels = bs.maxLevels
			levels = append(levels, v.Levels)
		}
		bsv[v.Levels] = v
	}
	sort.Ints(levels)

	var bsh BSHist
	for _, l := range levels {
		bsh = append(bsh, bsv[l])
	}
	return bsh
}

type HistVal struct {
	Bin   int
	Count int
}
type Hist []HistVal

func (a *Analyzer) OrdersHashCollisionHist() []Hist {
	var hists []Hist
	for _, ohs := range a.orderHashStat {
		collisionHist := make(map[int]int)
		for _, c := range ohs.maxBucketSize {
			collisionHist[c]++
		}
		var chKeys []int
		for k := range collisionHist {
			chKeys = append(chKeys, k)
		}
		sort.Ints(chKeys)
		var hist Hist
		for _, k := range chKeys {
			hist = append(hist, HistVal{k, collisionHist[k]})
		}
		hists = append(hists, hist)
	}
	return hists
}
