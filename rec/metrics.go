// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package rec

import (
	"github.com/prometheus/client_golang/prometheus"

	"my/mdbook/bookmux"
	"my/mdbook/feed"
)

const namespace = "mdbook"

// Metrics counts feed and book activity per venue.
type Metrics struct {
	bookmux.NopListener
	packets    *prometheus.CounterVec
	events     *prometheus.CounterVec
	gaps       *prometheus.CounterVec
	gapMsgs    *prometheus.CounterVec
	timeouts   *prometheus.CounterVec
	crossed    *prometheus.CounterVec
	feedEvents *prometheus.CounterVec
	symbols    *prometheus.GaugeVec
	defined    map[*bookmux.SymbolState]struct{}
}

var _ bookmux.Listener = &Metrics{}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	venue := []string{"venue"}
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packets decoded",
		}, venue),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_events_total",
			Help:      "Book and trade events by kind",
		}, []string{"venue", "event"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gaps_total",
			Help:      "Sequence gaps detected",
		}, venue),
		gapMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gap_messages_total",
			Help:      "Messages lost in sequence gaps",
		}, venue),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeouts_total",
			Help:      "Data timeouts started",
		}, venue),
		crossed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossed_total",
			Help:      "Books becoming crossed",
		}, venue),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Feed events by kind",
		}, []string{"venue", "kind"}),
		symbols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "symbols",
			Help:      "Symbols defined",
		}, venue),
		defined: make(map[*bookmux.SymbolState]struct{}),
	}
	for _, c := range []prometheus.Collector{m.packets, m.events, m.gaps, m.gapMsgs, m.timeouts, m.crossed, m.feedEvents, m.symbols} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) event(v feed.Venue, kind string) {
	m.events.WithLabelValues(v.String(), kind).Inc()
}

func (m *Metrics) OnPacketStart(v feed.Venue, t feed.Timestamp) {
	m.packets.WithLabelValues(v.String()).Inc()
}
func (m *Metrics) OnSymbolDefinition(s *bookmux.SymbolState) {
	if _, ok := m.defined[s]; ok {
		return
	}
	m.defined[s] = struct{}{}
	m.symbols.WithLabelValues(s.Venue.String()).Inc()
}
func (m *Metrics) OnBookAdded(e *bookmux.BookEvent)      { m.event(e.Venue, "add") }
func (m *Metrics) OnBookCanceled(e *bookmux.BookEvent)   { m.event(e.Venue, "cancel") }
func (m *Metrics) OnBookModified(e *bookmux.ModifyEvent) { m.event(e.Venue, "modify") }
func (m *Metrics) OnBookExecuted(e *bookmux.ExecEvent)   { m.event(e.Venue, "execute") }
func (m *Metrics) OnL2Update(e *bookmux.L2Event)         { m.event(e.Venue, "l2") }
func (m *Metrics) OnTrade(e *bookmux.TradeEvent)         { m.event(e.Venue, "trade") }
func (m *Metrics) OnBookCrossed(e *bookmux.CrossedEvent) {
	m.crossed.WithLabelValues(e.Venue.String()).Inc()
}
func (m *Metrics) OnGap(g feed.Gap) {
	v := g.Stream.Venue.String()
	m.gaps.WithLabelValues(v).Inc()
	m.gapMsgs.WithLabelValues(v).Add(float64(g.Lost()))
}
func (m *Metrics) OnTimeout(t feed.Timeout) {
	if t.Start {
		m.timeouts.WithLabelValues(t.Stream.Venue.String()).Inc()
	}
}
func (m *Metrics) OnFeedEvent(e feed.FeedEvent) {
	m.feedEvents.WithLabelValues(e.Stream.Venue.String(), e.Kind.String()).Inc()
}
