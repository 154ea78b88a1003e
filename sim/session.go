// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package sim matches simulated orders against replayed market data. A
// resting order keeps an estimate of the real size queued ahead of it and
// fills only once that size is gone.
package sim

import (
	"container/heap"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"my/mdbook/book"
	"my/mdbook/bookmux"
	"my/mdbook/feed"
)

type order struct {
	Order
	seq uint64

	// as reported to the strategy
	state      OrderState
	filled     uint32
	lastReport feed.Timestamp

	// as the exchange would see it
	arriveAt feed.Timestamp
	live     bool
	leaves   uint32
	ahead    uint64
	behind   uint64
}

type symbol struct {
	resting   []*order
	auction   []*order
	imbalance feed.Side
}

func (s *symbol) remove(o *order) {
	s.resting = removeOrder(s.resting, o)
	s.auction = removeOrder(s.auction, o)
}
func removeOrder(os []*order, o *order) []*order {
	for i, x := range os {
		if x == o {
			return append(os[:i], os[i+1:]...)
		}
	}
	return os
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithHandler sets the receiver of order reports. It runs on the goroutine
// that feeds the session and may call Send and Cancel.
func WithHandler(fn func(Event)) Option {
	return func(s *Session) { s.handler = fn }
}

// Session is the simulated matching session of one venue. Register it with
// the venue's mux; all calls must come from the mux's goroutine.
type Session struct {
	bookmux.NopListener
	mux     bookmux.Mux
	cfg     Config
	logger  *zap.Logger
	handler func(Event)

	now      feed.Timestamp
	queue    eventQueue
	seq      uint64
	arrivals uint64
	orders   map[OrderId]*order
	symbols  map[string]*symbol
}

var _ bookmux.Listener = &Session{}

func New(mux bookmux.Mux, cfg Config, opts ...Option) *Session {
	s := &Session{
		mux:     mux,
		cfg:     cfg,
		orders:  make(map[OrderId]*order),
		symbols: make(map[string]*symbol),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.Stringer("venue", mux.Venue()))
	return s
}

func (s *Session) Now() feed.Timestamp {
	return s.now
}

// Pending is the number of scheduled arrivals, cancels and reports.
func (s *Session) Pending() int {
	return len(s.queue)
}

func (s *Session) schedule(ts feed.Timestamp, act action, o *order, ev Event) {
	s.seq++
	heap.Push(&s.queue, &item{ts: ts, seq: s.seq, act: act, o: o, ev: ev})
}
func (s *Session) after(d time.Duration) feed.Timestamp {
	return s.now + feed.Timestamp(d)
}

// Send submits an order at the current session time. An order that fails
// validation is locally rejected and never reaches the queue.
func (s *Session) Send(o Order) error {
	if _, ok := s.orders[o.Id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, o.Id)
	}
	so := &order{Order: o, state: StateNewAndUnsent, leaves: o.Size}
	s.orders[o.Id] = so
	if err := o.validate(); err != nil {
		so.state = StateLocallyRejected
		return err
	}
	so.state = StateSent
	so.arriveAt = s.after(s.cfg.AckLatency)
	s.schedule(so.arriveAt, actArrive, so, Event{})
	return nil
}

// Cancel requests the cancel of an open order. The outcome is reported as
// EventCancel or, if the order is gone by the time the cancel arrives,
// EventCancelReject.
func (s *Session) Cancel(id OrderId) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	if o.state.Terminal() || o.state == StatePendingCancel {
		return fmt.Errorf("%w: %d is %s", ErrOrderDone, id, o.state)
	}
	o.state = StatePendingCancel
	at := s.after(s.cfg.CancelLatency)
	if at < o.arriveAt {
		at = o.arriveAt
	}
	s.schedule(at, actCancel, o, Event{})
	return nil
}

func (s *Session) Order(id OrderId) (Status, bool) {
	o, ok := s.orders[id]
	if !ok {
		return Status{}, false
	}
	return Status{Order: o.Order, State: o.state, Filled: o.filled}, true
}

// QueuePosition is the real size estimated ahead of and behind a resting
// order.
func (s *Session) QueuePosition(id OrderId) (ahead, behind uint64, ok bool) {
	o, ok := s.orders[id]
	if !ok || !o.live {
		return 0, 0, false
	}
	return o.ahead, o.behind, true
}

// Advance runs everything scheduled at or before t.
func (s *Session) Advance(t feed.Timestamp) {
	for len(s.queue) > 0 && s.queue[0].ts <= t {
		s.pop()
	}
	if t > s.now {
		s.now = t
	}
}

// Flush runs everything scheduled, however far in the future.
func (s *Session) Flush() {
	for len(s.queue) > 0 {
		s.pop()
	}
}

func (s *Session) pop() {
	it := heap.Pop(&s.queue).(*item)
	if it.ts > s.now {
		s.now = it.ts
	}
	switch it.act {
	case actArrive:
		s.arrive(it.o, it.ts)
	case actCancel:
		s.cancelArrived(it.o, it.ts)
	case actReport:
		s.deliver(it.o, it.ev)
	}
}

// OnTimer lets the decoder mux drive the session between packets.
func (s *Session) OnTimer(now feed.Timestamp) {
	s.Advance(now)
}

/************************************************************************/
// exchange side

func (s *Session) report(o *order, ev Event, ts feed.Timestamp) {
	if ts < o.lastReport {
		ts = o.lastReport
	}
	o.lastReport = ts
	ev.Id = o.Id
	ev.Symbol = o.Symbol
	ev.Time = ts
	s.schedule(ts, actReport, o, ev)
}

func (s *Session) symbolOf(name string) *symbol {
	sym, ok := s.symbols[name]
	if !ok {
		sym = &symbol{}
		s.symbols[name] = sym
	}
	return sym
}

func (s *Session) depth(ss *bookmux.SymbolState) book.Depth {
	if d, ok := s.mux.Depth(ss.Index); ok {
		return d
	}
	return nil
}

func (s *Session) arrive(o *order, ts feed.Timestamp) {
	ss, ok := s.mux.SymbolByName(o.Symbol)
	if !ok {
		s.reject(o, ts, "unknown symbol")
		return
	}
	switch ss.Status() {
	case feed.StatusHalted, feed.StatusPaused, feed.StatusClosed:
		s.reject(o, ts, "trading "+ss.Status().String())
		return
	}
	s.arrivals++
	o.seq = s.arrivals
	o.live = true
	s.report(o, Event{Kind: EventAck, Leaves: o.leaves}, ts)
	sym := s.symbolOf(o.Symbol)
	if o.Tif.AuctionOnly() {
		sym.auction = append(sym.auction, o)
		return
	}
	d := s.depth(ss)
	if d != nil {
		s.take(o, d, ts)
	}
	if !o.live {
		return
	}
	if o.Tif == feed.TifIOC {
		s.expire(o, ts)
		return
	}
	if d != nil {
		o.ahead = d.LevelAt(o.Side, o.Price).Size
	}
	sym.resting = append(sym.resting, o)
}

// take fills a marketable order against the opposite side, best price
// first.
func (s *Session) take(o *order, d book.Depth, ts feed.Timestamp) {
	opp := o.Side.Opposite()
	for _, lvl := range d.Levels(opp, 0) {
		if o.leaves == 0 || !lvl.Price.Through(o.Price, opp) {
			break
		}
		s.fill(o, lvl.Price, min64(lvl.Size, uint64(o.leaves)), ts)
	}
}

func (s *Session) fill(o *order, price feed.Price, size uint64, ts feed.Timestamp) {
	if size == 0 {
		return
	}
	o.leaves -= uint32(size)
	s.report(o, Event{Kind: EventFill, Price: price, Size: uint32(size), Leaves: o.leaves}, ts)
	if o.leaves == 0 {
		o.live = false
		if sym, ok := s.symbols[o.Symbol]; ok {
			sym.remove(o)
		}
	}
}

func (s *Session) expire(o *order, ts feed.Timestamp) {
	size := o.leaves
	o.leaves = 0
	o.live = false
	if sym, ok := s.symbols[o.Symbol]; ok {
		sym.remove(o)
	}
	s.report(o, Event{Kind: EventCancel, Size: size}, ts)
}

func (s *Session) reject(o *order, ts feed.Timestamp, reason string) {
	s.logger.Debug("order rejected", zap.Stringer("order", o.Order), zap.String("reason", reason))
	o.leaves = 0
	s.report(o, Event{Kind: EventReject, Reason: reason}, ts)
}

func (s *Session) cancelArrived(o *order, ts feed.Timestamp) {
	if !o.live {
		s.report(o, Event{Kind: EventCancelReject, Reason: "too late to cancel"}, ts)
		return
	}
	s.expire(o, ts)
}

/************************************************************************/
// strategy side

func (s *Session) deliver(o *order, ev Event) {
	switch ev.Kind {
	case EventAck:
		if o.state == StateSent {
			o.state = StateAcked
		}
	case EventFill:
		o.filled += ev.Size
		if o.filled >= o.Size {
			o.state = StateFilled
		} else if o.state != StatePendingCancel {
			o.state = StatePartiallyFilled
		}
	case EventCancel:
		o.state = StateCancelled
	case EventReject:
		o.state = StateRemotelyRejected
	case EventCancelReject:
		if o.state == StatePendingCancel {
			if o.filled > 0 {
				o.state = StatePartiallyFilled
			} else {
				o.state = StateAcked
			}
		}
	}
	ev.State = o.state
	if s.handler != nil {
		s.handler(ev)
	}
}

/************************************************************************/
// market data

func (s *Session) OnPacketStart(v feed.Venue, t feed.Timestamp) {
	if v == s.mux.Venue() {
		s.Advance(t)
	}
}

func (s *Session) resting(ss *bookmux.SymbolState) *symbol {
	if ss.Venue != s.mux.Venue() || ss.Name == "" {
		return nil
	}
	return s.symbols[ss.Name]
}

// priority orders by price priority on the given side, then by arrival.
func priority(os []*order, side feed.Side) {
	sort.SliceStable(os, func(i, j int) bool {
		if os[i].Price != os[j].Price {
			return os[i].Price.Better(os[j].Price, side)
		}
		return os[i].seq < os[j].seq
	})
}

func (s *Session) added(ss *bookmux.SymbolState, side feed.Side, price feed.Price, size uint64, ts feed.Timestamp) {
	sym := s.resting(ss)
	if sym == nil {
		return
	}
	var crossed []*order
	for _, o := range sym.resting {
		switch {
		case o.Side == side && o.Price == price:
			o.behind += size
		case o.Side == side.Opposite() && price.Through(o.Price, side):
			o.ahead, o.behind = 0, 0
			crossed = append(crossed, o)
		}
	}
	// a real order through a resting simulated one would have traded with it
	priority(crossed, side.Opposite())
	for _, o := range crossed {
		f := min64(size, uint64(o.leaves))
		size -= f
		s.fill(o, o.Price, f, ts+feed.Timestamp(s.cfg.FillLatency))
	}
}

func (s *Session) canceled(ss *bookmux.SymbolState, side feed.Side, price feed.Price, size uint64) {
	sym := s.resting(ss)
	if sym == nil {
		return
	}
	for _, o := range sym.resting {
		if o.Side == side && o.Price == price {
			s.drawDown(o, size)
		}
	}
}

// refreshed reconciles queue positions with a republished level. A level
// dropped by the refresh keeps the positions until it comes back.
func (s *Session) refreshed(ss *bookmux.SymbolState, side feed.Side, price feed.Price, size uint64) {
	sym := s.resting(ss)
	if sym == nil || size == 0 {
		return
	}
	for _, o := range sym.resting {
		if o.Side != side || o.Price != price {
			continue
		}
		if total := o.ahead + o.behind; size > total {
			o.behind += size - total
		} else {
			s.drawDown(o, total-size)
		}
	}
}

func (s *Session) drawDown(o *order, size uint64) {
	if s.cfg.CancelPolicy == CancelProportional {
		total := o.ahead + o.behind
		if total == 0 {
			return
		}
		if size >= total {
			o.ahead, o.behind = 0, 0
			return
		}
		a := size * o.ahead / total
		o.ahead -= a
		o.behind -= min64(o.behind, size-a)
		return
	}
	d := min64(o.ahead, size)
	o.ahead -= d
	o.behind -= min64(o.behind, size-d)
}

// executed consumes the real size ahead of each simulated order at or
// through the execution price. Whatever an execution leaves over fills the
// simulated orders, earlier arrivals first.
func (s *Session) executed(ss *bookmux.SymbolState, side feed.Side, price feed.Price, size uint64, ts feed.Timestamp) {
	sym := s.resting(ss)
	if sym == nil {
		return
	}
	var hit []*order
	for _, o := range sym.resting {
		if o.Side == side && o.Price.Through(price, side) {
			hit = append(hit, o)
		}
	}
	priority(hit, side)
	var used uint64
	for _, o := range hit {
		excess := size
		if o.Price == price {
			d := min64(o.ahead, size)
			o.ahead -= d
			excess = size - d
			o.behind -= min64(o.behind, excess)
		} else {
			// traded through: the whole level would have gone first
			o.ahead, o.behind = 0, 0
		}
		if excess <= used {
			continue
		}
		f := min64(excess-used, uint64(o.leaves))
		used += f
		s.fill(o, o.Price, f, ts+feed.Timestamp(s.cfg.FillLatency))
	}
}

func crossJoins(tif feed.TimeInForce, cross feed.CrossType) bool {
	switch tif {
	case feed.TifOnOpen:
		return cross == feed.CrossOpening
	case feed.TifOnClose:
		return cross == feed.CrossClosing
	case feed.TifImbalanceOnly:
		return cross == feed.CrossOpening || cross == feed.CrossClosing
	}
	return true
}

// crossed matches an auction print in one pass: every order at or through
// the cross price, by price priority, up to the crossed size on each side.
// Auction-only orders of the cross that are left over are canceled.
func (s *Session) crossed(ss *bookmux.SymbolState, t feed.Trade, ts feed.Timestamp) {
	sym := s.resting(ss)
	if sym == nil {
		return
	}
	var buys, sells []*order
	eligible := func(o *order) {
		if !crossJoins(o.Tif, t.Cross) || !o.Price.Through(t.Price, o.Side) {
			return
		}
		// imbalance-only orders offset the stated imbalance
		if o.Tif == feed.TifImbalanceOnly && sym.imbalance != o.Side.Opposite() {
			return
		}
		if o.Side == feed.SideBuy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	for _, o := range sym.resting {
		eligible(o)
	}
	for _, o := range sym.auction {
		eligible(o)
	}
	match := func(os []*order, side feed.Side) {
		priority(os, side)
		budget := uint64(t.Size)
		for _, o := range os {
			f := min64(budget, uint64(o.leaves))
			budget -= f
			s.fill(o, t.Price, f, ts+feed.Timestamp(s.cfg.FillLatency))
		}
	}
	match(buys, feed.SideBuy)
	match(sells, feed.SideSell)

	var left []*order
	for _, o := range sym.auction {
		if crossJoins(o.Tif, t.Cross) {
			left = append(left, o)
		}
	}
	for _, o := range left {
		s.expire(o, ts)
	}
}

func (s *Session) OnBookAdded(e *bookmux.BookEvent) {
	s.added(e.Symbol, e.Side, e.Price, uint64(e.Size), e.Time)
}
func (s *Session) OnBookCanceled(e *bookmux.BookEvent) {
	s.canceled(e.Symbol, e.Side, e.Price, uint64(e.Size))
}
func (s *Session) OnBookExecuted(e *bookmux.ExecEvent) {
	s.executed(e.Symbol, e.Side, e.Price, uint64(e.Size), e.Time)
}

// OnBookModified keeps priority only for a size reduction at the same price.
func (s *Session) OnBookModified(e *bookmux.ModifyEvent) {
	if e.Price == e.Old.Price && e.Size <= e.Old.Size {
		if e.Size < e.Old.Size {
			s.canceled(e.Symbol, e.Side, e.Price, uint64(e.Old.Size-e.Size))
		}
		return
	}
	s.canceled(e.Symbol, e.Old.Side, e.Old.Price, uint64(e.Old.Size))
	s.added(e.Symbol, e.Side, e.Price, uint64(e.Size), e.Time)
}

func (s *Session) OnL2Update(e *bookmux.L2Event) {
	switch d := e.Delta(); {
	case e.Reason == feed.L2ReasonRefresh:
		s.refreshed(e.Symbol, e.Side, e.Price, e.Size)
	case d > 0:
		s.added(e.Symbol, e.Side, e.Price, uint64(d), e.Time)
	case d < 0 && e.Reason == feed.L2ReasonExecution:
		s.executed(e.Symbol, e.Side, e.Price, uint64(-d), e.Time)
	case d < 0:
		s.canceled(e.Symbol, e.Side, e.Price, uint64(-d))
	}
}

func (s *Session) OnTrade(e *bookmux.TradeEvent) {
	if e.Cross != feed.CrossNone && e.Cross != feed.CrossIntraday {
		s.crossed(e.Symbol, e.Trade, e.Time)
	}
}

// the imbalance is kept for symbols without orders yet, so an
// imbalance-only order sent later still sees it
func (s *Session) imbalance(ss *bookmux.SymbolState, side feed.Side) {
	if ss.Venue != s.mux.Venue() || ss.Name == "" {
		return
	}
	s.symbolOf(ss.Name).imbalance = side
}
func (s *Session) OnNasdaqImbalance(ss *bookmux.SymbolState, im feed.NasdaqImbalance) {
	s.imbalance(ss, im.Direction)
}
func (s *Session) OnNyseImbalance(ss *bookmux.SymbolState, im feed.NyseImbalance) {
	s.imbalance(ss, im.Side)
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
