// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package datamgr builds decoders and books from configuration and feeds
// them from captures or live multicast.
package datamgr

import (
	"context"
	"fmt"
	"net/netip"
	"sort"

	"go.uber.org/zap"

	"my/mdbook/bookmux"
	"my/mdbook/config"
	"my/mdbook/decmux"
	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/packet/bats"
	"my/mdbook/packet/nasdaq"
	"my/mdbook/packet/nyse"
	"my/mdbook/universe"
)

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithUniverse replaces the universe read from configuration.
func WithUniverse(u *universe.Universe) Option {
	return func(m *Manager) { m.universe = u }
}

// Feed is a configured feed with its decoder.
type Feed struct {
	FeedConfig
	Decoder packet.Decoder
}

// Manager owns one mux per venue and protocol family and a decoder per
// feed. Decoders of one poller group run on one goroutine.
type Manager struct {
	logger   *zap.Logger
	universe *universe.Universe
	feeds    []*Feed
	routes   map[netip.AddrPort]*Feed
	l3       map[feed.Venue]*bookmux.L3Mux
	l2       map[feed.Venue]*bookmux.L2Mux
	timers   []decmux.Timer
	files    []string
	lat      decmux.Latencies
	errors   []error
}

// New builds every usable feed of the "feeds" domain. Feeds with
// configuration errors are skipped and reported by Errors; New fails only
// when nothing is left.
func New(s *config.Snapshot, opts ...Option) (*Manager, error) {
	m := &Manager{
		routes: make(map[netip.AddrPort]*Feed),
		l3:     make(map[feed.Venue]*bookmux.L3Mux),
		l2:     make(map[feed.Venue]*bookmux.L2Mux),
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.universe == nil {
		u, err := universe.FromConfig(s)
		if err != nil {
			m.skip(err)
			u = universe.New()
		}
		m.universe = u
	}
	fcs, errs := FeedsFromConfig(s)
	for _, err := range errs {
		m.skip(err)
	}
	globalRefs := make(map[feed.Venue]bool)
	for _, fc := range fcs {
		if fc.GlobalRefs && !fc.Protocol.L2() {
			globalRefs[fc.Venue] = true
		}
	}
	for _, fc := range fcs {
		if err := m.addFeed(fc, globalRefs[fc.Venue]); err != nil {
			m.skip(fmt.Errorf("feeds.%s: %w", fc.Name, err))
		}
	}
	if len(m.feeds) == 0 {
		return nil, ErrNoFeeds
	}
	return m, nil
}

func (m *Manager) skip(err error) {
	m.logger.Warn("configuration error, skipped", zap.Error(err))
	m.errors = append(m.errors, err)
}

func (m *Manager) addFeed(fc FeedConfig, globalRefs bool) error {
	for _, l := range fc.Lines {
		if other, ok := m.routes[l]; ok {
			return fmt.Errorf("%w: %s used by feeds.%s", decmux.ErrDuplicateRoute, l, other.Name)
		}
	}
	dopts := packet.DecoderOptions{
		Feed:    fc.Name,
		Timeout: fc.Timeout,
		Unit:    fc.Unit,
		Logger:  m.logger.With(zap.String("feed", fc.Name)),
	}
	f := &Feed{FeedConfig: fc}
	if fc.Protocol.L2() {
		sink := m.l2Mux(fc.Venue)
		f.Decoder = nyse.NewPdpDecoder(fc.Venue, sink, dopts)
	} else {
		sink := m.l3Mux(fc.Venue, globalRefs)
		switch fc.Protocol {
		case ProtocolItch50:
			f.Decoder = nasdaq.NewItchDecoder(fc.Venue, sink, dopts)
		case ProtocolPitch2:
			f.Decoder = bats.NewPitchDecoder(fc.Venue, sink, dopts)
		case ProtocolNextGen:
			f.Decoder = bats.NewNextGenDecoder(fc.Venue, sink, dopts)
		case ProtocolXdp:
			f.Decoder = nyse.NewXdpDecoder(fc.Venue, sink, dopts)
		default:
			return fmt.Errorf("%w: %s", ErrUnknownProtocol, fc.Protocol)
		}
	}
	for _, l := range fc.Lines {
		m.routes[l] = f
	}
	m.feeds = append(m.feeds, f)
	m.logger.Info("feed",
		zap.String("name", fc.Name),
		zap.Stringer("venue", fc.Venue),
		zap.String("protocol", string(fc.Protocol)),
		zap.Int("lines", len(fc.Lines)),
		zap.String("poller", fc.Poller))
	return nil
}

func (m *Manager) muxOptions() []bookmux.Option {
	return []bookmux.Option{
		bookmux.WithLogger(m.logger),
		bookmux.WithInstruments(m.universe),
	}
}

func (m *Manager) l3Mux(venue feed.Venue, globalRefs bool) *bookmux.L3Mux {
	if mux, ok := m.l3[venue]; ok {
		return mux
	}
	opts := m.muxOptions()
	if globalRefs {
		opts = append(opts, bookmux.WithGlobalRefs())
	}
	mux := bookmux.NewL3Mux(venue, opts...)
	m.l3[venue] = mux
	return mux
}
func (m *Manager) l2Mux(venue feed.Venue) *bookmux.L2Mux {
	if mux, ok := m.l2[venue]; ok {
		return mux
	}
	mux := bookmux.NewL2Mux(venue, m.muxOptions()...)
	m.l2[venue] = mux
	return mux
}

func (m *Manager) GetL3(venue feed.Venue) (*bookmux.L3Mux, bool) {
	mux, ok := m.l3[venue]
	return mux, ok
}
func (m *Manager) GetL2(venue feed.Venue) (*bookmux.L2Mux, bool) {
	mux, ok := m.l2[venue]
	return mux, ok
}

// Muxes lists every mux, L3 before L2, by venue.
func (m *Manager) Muxes() []bookmux.Mux {
	var muxes []bookmux.Mux
	for _, v := range feed.Venues() {
		if mux, ok := m.l3[v]; ok {
			muxes = append(muxes, mux)
		}
	}
	for _, v := range feed.Venues() {
		if mux, ok := m.l2[v]; ok {
			muxes = append(muxes, mux)
		}
	}
	return muxes
}

func (m *Manager) Feeds() []*Feed {
	return m.feeds
}
func (m *Manager) Universe() *universe.Universe {
	return m.universe
}

// Errors lists the configuration errors of skipped feeds.
func (m *Manager) Errors() []error {
	return m.errors
}

// Register adds l to every mux. Call before ReadData.
func (m *Manager) Register(l bookmux.Listener) {
	for _, mux := range m.Muxes() {
		mux.Register(l)
	}
}

// AddTimer fires t once per interval of capture time when replaying. Live,
// t runs on a goroutine of its own.
func (m *Manager) AddTimer(t decmux.Timer) {
	m.timers = append(m.timers, t)
}

// UseFiles switches ReadData to replaying the captures.
func (m *Manager) UseFiles(files []string, lat decmux.Latencies) {
	m.files = files
	m.lat = lat
}

// ReadData replays the captures set by UseFiles on the calling goroutine,
// or reads live multicast until ctx is done.
func (m *Manager) ReadData(ctx context.Context) error {
	if len(m.files) > 0 {
		dm := m.decoderMux(m.feeds)
		return dm.ReplayFiles(ctx, m.files, m.lat)
	}
	return m.readLive(ctx)
}

func (m *Manager) decoderMux(feeds []*Feed) *decmux.DecoderMux {
	dm := decmux.New(decmux.WithLogger(m.logger))
	for _, f := range feeds {
		for _, l := range f.Lines {
			// lines are unique across feeds
			_ = dm.AddRoute(l, f.Decoder)
		}
	}
	for _, t := range m.timers {
		dm.AddTimer(t)
	}
	return dm
}

// pollerGroups returns the feeds of every poller group, by group name.
func (m *Manager) pollerGroups() ([]string, map[string][]*Feed) {
	groups := make(map[string][]*Feed)
	for _, f := range m.feeds {
		groups[f.Poller] = append(groups[f.Poller], f)
	}
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, groups
}
