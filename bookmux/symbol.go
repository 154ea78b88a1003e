// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bookmux

import (
	"fmt"
	"sync"

	"my/mdbook/feed"
)

type LastSale struct {
	Venue feed.Venue
	Price feed.Price
	Size  uint32
	Cross feed.CrossType
	Time  feed.Timestamp
}

func (ls LastSale) Valid() bool {
	return ls.Time != 0
}
func (ls LastSale) String() string {
	return fmt.Sprintf("%s %d@%s", ls.Venue, ls.Size, ls.Price)
}

// SymbolState is what a mux knows about one symbol besides its book.
// Status and last sale may be read from other goroutines.
type SymbolState struct {
	Venue      feed.Venue
	Index      feed.SymbolIndex
	Name       string
	Unit       uint32
	RoundLot   uint32
	Instrument uint64
	HasInstr   bool

	mu       sync.RWMutex
	status   feed.TradingStatus
	lastSale LastSale
	hasSale  bool
	crossed  bool
}

func (s *SymbolState) Status() feed.TradingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
func (s *SymbolState) LastSale() LastSale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSale
}
func (s *SymbolState) setStatus(status feed.TradingStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.status != status
	s.status = status
	return changed
}

// setLastSale records a print and reports whether the price moved.
func (s *SymbolState) setLastSale(ls LastSale) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.hasSale || s.lastSale.Price != ls.Price
	s.lastSale = ls
	s.hasSale = true
	return changed
}
func (s *SymbolState) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%s:%s", s.Venue, s.Name)
	}
	return fmt.Sprintf("%s:#%d", s.Venue, s.Index)
}

// InstrumentMap resolves venue-local symbol names to persistent ids.
type InstrumentMap interface {
	Instrument(venue feed.Venue, name string) (uint64, bool)
}
