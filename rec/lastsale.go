// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package rec

import (
	"sync"

	"my/mdbook/bookmux"
)

// Consolidated is the latest print of an instrument across venues.
type Consolidated struct {
	bookmux.LastSale
	Symbol  *bookmux.SymbolState
	Changes int
}

// LastSales counts last sale changes per symbol and consolidates them per
// instrument. Queries may come from other goroutines.
type LastSales struct {
	bookmux.NopListener
	mu       sync.RWMutex
	changes  map[*bookmux.SymbolState]int
	byInstr  map[uint64]*Consolidated
	onChange func(Consolidated)
}

var _ bookmux.Listener = &LastSales{}

func NewLastSales() *LastSales {
	return &LastSales{
		changes: make(map[*bookmux.SymbolState]int),
		byInstr: make(map[uint64]*Consolidated),
	}
}

// OnChange sets a callback for consolidated price changes. It runs on the
// feed goroutine.
func (l *LastSales) OnChange(fn func(Consolidated)) {
	l.onChange = fn
}

func (l *LastSales) OnLastSale(s *bookmux.SymbolState, ls bookmux.LastSale) {
	l.mu.Lock()
	l.changes[s]++
	if !s.HasInstr {
		l.mu.Unlock()
		return
	}
	c, ok := l.byInstr[s.Instrument]
	if !ok {
		c = &Consolidated{}
		l.byInstr[s.Instrument] = c
	}
	// a print older than the consolidated one arrived late
	if ok && ls.Time < c.Time {
		l.mu.Unlock()
		return
	}
	moved := !ok || c.Price != ls.Price
	c.LastSale = ls
	c.Symbol = s
	if moved {
		c.Changes++
	}
	cc := *c
	l.mu.Unlock()
	if moved && l.onChange != nil {
		l.onChange(cc)
	}
}

// Changes is the number of last sale notifications of the symbol.
func (l *LastSales) Changes(s *bookmux.SymbolState) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changes[s]
}

func (l *LastSales) Instrument(id uint64) (Consolidated, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.byInstr[id]
	if !ok {
		return Consolidated{}, false
	}
	return *c, true
}
