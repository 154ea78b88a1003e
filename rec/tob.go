// Copyright (c) Ilia Kravets, 2014-2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package rec holds listeners that record what the books do.
package rec

import (
	"fmt"
	"io"

	"my/mdbook/book"
	"my/mdbook/bookmux"
	"my/mdbook/feed"
)

type Tob struct {
	Bid book.Top
	Ask book.Top
}

func (t Tob) String() string {
	return fmt.Sprintf("%s %s", side(t.Bid, feed.SideBuy), side(t.Ask, feed.SideSell))
}

func side(t book.Top, s feed.Side) string {
	if t.IsEmpty(s) {
		return "-"
	}
	return t.String()
}

// TobLogger writes the best bid and offer of every symbol whose top of
// book changed, once per packet.
type TobLogger struct {
	bookmux.NopListener
	w       io.Writer
	dirty   map[*bookmux.SymbolState]book.Depth
	order   []*bookmux.SymbolState
	tobs    map[*bookmux.SymbolState]Tob
	updates int
	err     error
}

var _ bookmux.Listener = &TobLogger{}

// NewTobLogger writes to w; a nil w only tracks.
func NewTobLogger(w io.Writer) *TobLogger {
	return &TobLogger{
		w:     w,
		dirty: make(map[*bookmux.SymbolState]book.Depth),
		tobs:  make(map[*bookmux.SymbolState]Tob),
	}
}

func (l *TobLogger) touch(s *bookmux.SymbolState, d book.Depth) {
	if d == nil {
		return
	}
	if _, ok := l.dirty[s]; !ok {
		l.order = append(l.order, s)
	}
	l.dirty[s] = d
}

func (l *TobLogger) OnBookAdded(e *bookmux.BookEvent)      { l.touch(e.Symbol, e.Book) }
func (l *TobLogger) OnBookCanceled(e *bookmux.BookEvent)   { l.touch(e.Symbol, e.Book) }
func (l *TobLogger) OnBookModified(e *bookmux.ModifyEvent) { l.touch(e.Symbol, e.Book) }
func (l *TobLogger) OnBookExecuted(e *bookmux.ExecEvent)   { l.touch(e.Symbol, e.Book) }
func (l *TobLogger) OnL2Update(e *bookmux.L2Event)         { l.touch(e.Symbol, e.Book) }

func (l *TobLogger) OnPacketEnd(venue feed.Venue, t feed.Timestamp) {
	for _, s := range l.order {
		d := l.dirty[s]
		tob := Tob{Bid: d.BestBid(), Ask: d.BestAsk()}
		old, ok := l.tobs[s]
		if ok && old == tob {
			continue
		}
		if !ok && tob.Bid.IsEmpty(feed.SideBuy) && tob.Ask.IsEmpty(feed.SideSell) {
			continue
		}
		l.tobs[s] = tob
		l.updates++
		if l.w != nil && l.err == nil {
			_, l.err = fmt.Fprintf(l.w, "%s %s %s\n", t, s, tob)
		}
	}
	for k := range l.dirty {
		delete(l.dirty, k)
	}
	l.order = l.order[:0]
}

// Tob returns the top of book as of the last packet end.
func (l *TobLogger) Tob(s *bookmux.SymbolState) (Tob, bool) {
	t, ok := l.tobs[s]
	return t, ok
}
func (l *TobLogger) Updates() int {
	return l.updates
}

// Err is the first write error.
func (l *TobLogger) Err() error {
	return l.err
}
