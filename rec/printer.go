// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package rec

import (
	"fmt"
	"io"

	"github.com/kr/pretty"

	"my/mdbook/bookmux"
	"my/mdbook/feed"
)

// Printer writes one line per event. Verbose adds a dump of the feed
// payload of imbalance, gap and feed events.
type Printer struct {
	w       io.Writer
	Verbose bool
	err     error
}

var _ bookmux.Listener = &Printer{}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Err is the first write error; later events are dropped.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
func (p *Printer) dump(v interface{}) {
	if p.Verbose && p.err == nil {
		_, p.err = pretty.Fprintf(p.w, "%# v\n", v)
	}
}

func (p *Printer) OnPacketStart(v feed.Venue, t feed.Timestamp) {}
func (p *Printer) OnPacketEnd(v feed.Venue, t feed.Timestamp)   {}
func (p *Printer) OnSymbolDefinition(s *bookmux.SymbolState) {
	p.printf("SYM %s instr=%d lot=%d unit=%d", s, s.Instrument, s.RoundLot, s.Unit)
}
func (p *Printer) OnBookAdded(e *bookmux.BookEvent) {
	p.printf("%s ADD %s %s %s %d@%s", e.Time, e.Symbol, e.Ref, e.Side, e.Size, e.Price)
}
func (p *Printer) OnBookCanceled(e *bookmux.BookEvent) {
	p.printf("%s CXL %s %s %s %d@%s left=%d", e.Time, e.Symbol, e.Ref, e.Side, e.Size, e.Price, e.Remaining)
}
func (p *Printer) OnBookModified(e *bookmux.ModifyEvent) {
	p.printf("%s MOD %s %s %s %d@%s -> %d@%s", e.Time, e.Symbol, e.Ref, e.Side, e.Old.Size, e.Old.Price, e.Remaining, e.Price)
}
func (p *Printer) OnBookExecuted(e *bookmux.ExecEvent) {
	p.printf("%s EXE %s %s %s %d@%s left=%d", e.Time, e.Symbol, e.Ref, e.Side, e.Size, e.ExecPrice, e.Remaining)
}
func (p *Printer) OnBookCrossed(e *bookmux.CrossedEvent) {
	p.printf("%s CROSSED %s %s %s", e.Time, e.Symbol, e.Bid, e.Ask)
}
func (p *Printer) OnL2Update(e *bookmux.L2Event) {
	p.printf("%s L2 %s %s %d@%s n=%d r=%d", e.Time, e.Symbol, e.Side, e.Size, e.Price, e.Orders, e.Reason)
}
func (p *Printer) OnTrade(e *bookmux.TradeEvent) {
	p.printf("%s TRD %s %d@%s cross=%s printable=%t", e.Time, e.Symbol, e.Size, e.Price, e.Cross, e.Printable)
}
func (p *Printer) OnLastSale(s *bookmux.SymbolState, ls bookmux.LastSale) {
	p.printf("%s LAST %s %s", ls.Time, s, ls)
}
func (p *Printer) OnNyseImbalance(s *bookmux.SymbolState, im feed.NyseImbalance) {
	p.printf("%s IMB %s", im.ExchTime, s)
	p.dump(im)
}
func (p *Printer) OnNasdaqImbalance(s *bookmux.SymbolState, im feed.NasdaqImbalance) {
	p.printf("%s NOII %s", im.ExchTime, s)
	p.dump(im)
}
func (p *Printer) OnTradingStatus(s *bookmux.SymbolState, status feed.TradingStatus) {
	p.printf("STATUS %s %s", s, status)
}
func (p *Printer) OnGap(g feed.Gap) {
	p.printf("%s GAP %s expected=%d observed=%d", g.Time, g.Stream, g.Expected, g.Observed)
	p.dump(g)
}
func (p *Printer) OnFeedEvent(e feed.FeedEvent) {
	p.printf("%s FEED %s %s type=%#x", e.Time, e.Stream, e.Kind, e.MsgType)
	p.dump(e)
}
func (p *Printer) OnTimeout(t feed.Timeout) {
	p.printf("%s TIMEOUT %s start=%t", t.Time, t.Stream, t.Start)
}
