// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package decmux routes UDP datagrams to feed decoders by destination and
// merges capture files into one time-ordered stream.
package decmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"my/mdbook/feed"
	"my/mdbook/packet"
)

var ErrDuplicateRoute = errors.New("destination already routed")

// Timer is fired with the time of the latest dispatched datagram, so that
// timeouts follow capture time when replaying.
type Timer interface {
	OnTimer(now feed.Timestamp)
}

type TimerFunc func(now feed.Timestamp)

func (f TimerFunc) OnTimer(now feed.Timestamp) {
	f(now)
}

type Stats struct {
	Packets  uint64
	Bytes    uint64
	Unrouted uint64
	Errors   uint64
}

type Option func(*DecoderMux)

func WithLogger(logger *zap.Logger) Option {
	return func(m *DecoderMux) { m.logger = logger }
}

// WithTimerInterval sets how much datagram time passes between timer
// firings. Zero fires after every datagram.
func WithTimerInterval(d time.Duration) Option {
	return func(m *DecoderMux) { m.timerInterval = d }
}

const DefaultTimerInterval = 100 * time.Millisecond

// DecoderMux is not safe for concurrent use: one goroutine dispatches.
type DecoderMux struct {
	logger        *zap.Logger
	routes        map[netip.AddrPort]packet.Decoder
	decoders      []packet.Decoder
	timers        []Timer
	timerInterval time.Duration
	lastTimer     feed.Timestamp
	now           feed.Timestamp
	stats         Stats
	unrouted      map[netip.AddrPort]struct{}
}

func New(opts ...Option) *DecoderMux {
	m := &DecoderMux{
		routes:        make(map[netip.AddrPort]packet.Decoder),
		unrouted:      make(map[netip.AddrPort]struct{}),
		timerInterval: DefaultTimerInterval,
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// AddRoute sends datagrams for dst to d. Redundant lines of a feed route
// to the same decoder.
func (m *DecoderMux) AddRoute(dst netip.AddrPort, d packet.Decoder) error {
	if _, ok := m.routes[dst]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, dst)
	}
	m.routes[dst] = d
	for _, known := range m.decoders {
		if known == d {
			return nil
		}
	}
	m.decoders = append(m.decoders, d)
	return nil
}

func (m *DecoderMux) Routes() []netip.AddrPort {
	rs := make([]netip.AddrPort, 0, len(m.routes))
	for dst := range m.routes {
		rs = append(rs, dst)
	}
	return rs
}
func (m *DecoderMux) Decoders() []packet.Decoder {
	return m.decoders
}
func (m *DecoderMux) AddTimer(t Timer) {
	m.timers = append(m.timers, t)
}
func (m *DecoderMux) Stats() Stats {
	return m.stats
}
func (m *DecoderMux) Now() feed.Timestamp {
	return m.now
}

// Dispatch decodes one datagram and reports whether it had a route.
func (m *DecoderMux) Dispatch(dg packet.Datagram) bool {
	if dg.Time > m.now {
		m.now = dg.Time
	}
	d, ok := m.routes[dg.Dst]
	if !ok {
		m.stats.Unrouted++
		if _, seen := m.unrouted[dg.Dst]; !seen {
			m.unrouted[dg.Dst] = struct{}{}
			m.logger.Debug("unrouted destination", zap.Stringer("dst", dg.Dst))
		}
	} else {
		m.stats.Packets++
		m.stats.Bytes += uint64(len(dg.Payload))
		if _, err := d.Decode(dg.Payload, dg.Time); err != nil {
			m.stats.Errors++
		}
	}
	if m.now-m.lastTimer >= feed.Timestamp(m.timerInterval) {
		m.Tick(m.now)
	}
	return ok
}

// Tick runs timeout checks of every decoder and then the timers.
func (m *DecoderMux) Tick(now feed.Timestamp) {
	m.lastTimer = now
	for _, d := range m.decoders {
		d.CheckTimeouts(now)
	}
	for _, t := range m.timers {
		t.OnTimer(now)
	}
}

// Run dispatches everything the merger yields. Cancellation is checked
// between datagrams.
func (m *DecoderMux) Run(ctx context.Context, src *Merger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		dg, _, err := src.Next()
		if err == io.EOF {
			m.Tick(m.now)
			return nil
		}
		if err != nil {
			return err
		}
		m.Dispatch(dg)
	}
}

// ReplayFiles merges the captures, delaying each by its latency, and
// dispatches them.
func (m *DecoderMux) ReplayFiles(ctx context.Context, files []string, lat Latencies) (err error) {
	inputs := make([]Input, 0, len(files))
	var sources []*packet.Source
	defer func() {
		for _, s := range sources {
			s.Close()
		}
	}()
	for _, name := range files {
		s, err := packet.OpenSource(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		sources = append(sources, s)
		l := lat.For(name)
		m.logger.Info("replay", zap.String("file", name), zap.Duration("latency", l))
		inputs = append(inputs, Input{Name: name, Source: s, Latency: l})
	}
	mg, err := NewMerger(inputs)
	if err != nil {
		return err
	}
	return m.Run(ctx, mg)
}
