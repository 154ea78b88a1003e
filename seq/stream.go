// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package seq tracks per-unit sequence numbers of exchange feeds and reports
// gaps and data timeouts.
package seq

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"my/mdbook/feed"
)

type State uint8

const (
	StateUninitialized State = iota
	StateActive
	StateInTimeout
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateInTimeout:
		return "InTimeout"
	default:
		return "?"
	}
}

type Stats struct {
	Packets    uint64
	Messages   uint64
	Duplicates uint64
	Gaps       uint64
	Lost       uint64
}

// Stream is the sequencing state of one (venue, feed, unit).
type Stream struct {
	id       feed.StreamId
	notifier feed.Notifier
	logger   *zap.Logger
	timeout  time.Duration

	state    State
	expected uint64
	lastTime feed.Timestamp
	stats    Stats
}

func NewStream(id feed.StreamId, notifier feed.Notifier, timeout time.Duration, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		id:       id,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
	}
}

func (s *Stream) Id() feed.StreamId {
	return s.id
}
func (s *Stream) State() State {
	return s.state
}
func (s *Stream) Expected() uint64 {
	return s.expected
}
func (s *Stream) LastTime() feed.Timestamp {
	return s.lastTime
}
func (s *Stream) Stats() Stats {
	return s.stats
}

// Check sequences count messages starting at seq, received at now.
// It returns how many leading messages are already seen and must be skipped,
// and false if the whole block is a duplicate.
func (s *Stream) Check(seq uint64, count uint64, now feed.Timestamp) (skip uint64, ok bool) {
	s.stats.Packets++
	if count == 0 {
		count = 1
	}
	switch {
	case s.state == StateUninitialized:
		s.expected = seq
	case seq+count <= s.expected:
		// duplicates keep the line alive
		s.stats.Duplicates += count
		s.touch(now)
		return 0, false
	case seq < s.expected:
		skip = s.expected - seq
		s.stats.Duplicates += skip
	case seq > s.expected:
		s.gap(seq, now)
	}
	s.touch(now)
	s.expected = seq + count
	s.stats.Messages += count - skip
	return skip, true
}

// Heartbeat handles a keepalive carrying the next sequence number the
// sender will use. It never advances past what was announced.
func (s *Stream) Heartbeat(next uint64, now feed.Timestamp) {
	s.stats.Packets++
	if s.state == StateUninitialized {
		s.expected = next
	} else if next > s.expected {
		s.gap(next, now)
		s.expected = next
	}
	s.touch(now)
}

// Reset forces the expected sequence, for sequence-reset and end-of-session
// messages.
func (s *Stream) Reset(next uint64, now feed.Timestamp) {
	s.logger.Info("sequence reset",
		zap.Stringer("stream", s.id),
		zap.Uint64("expected", s.expected),
		zap.Uint64("next", next))
	s.expected = next
	s.notifier.FeedEvent(feed.FeedEvent{
		Stream: s.id,
		Kind:   feed.FeedEventSequenceReset,
		Time:   now,
	})
	s.touch(now)
}

// CheckTimeout is driven by a timer, with now being wall clock time live or
// the last dispatched packet time on replay.
func (s *Stream) CheckTimeout(now feed.Timestamp) {
	if s.timeout <= 0 || s.state == StateUninitialized {
		return
	}
	stale := now.Sub(s.lastTime) > s.timeout
	switch {
	case s.state == StateActive && stale:
		s.state = StateInTimeout
		s.logger.Warn("data timeout", zap.Stringer("stream", s.id), zap.Stringer("last", s.lastTime))
		s.notifier.Timeout(feed.Timeout{Stream: s.id, Start: true, LastTime: s.lastTime, Time: now})
	case s.state == StateInTimeout && !stale:
		s.leaveTimeout(now)
	}
}

func (s *Stream) touch(now feed.Timestamp) {
	if now > s.lastTime {
		s.lastTime = now
	}
	switch s.state {
	case StateUninitialized:
		s.state = StateActive
	case StateInTimeout:
		s.leaveTimeout(now)
	}
}
func (s *Stream) leaveTimeout(now feed.Timestamp) {
	s.state = StateActive
	s.logger.Info("data resumed", zap.Stringer("stream", s.id))
	s.notifier.Timeout(feed.Timeout{Stream: s.id, Start: false, LastTime: s.lastTime, Time: now})
}
func (s *Stream) gap(observed uint64, now feed.Timestamp) {
	g := feed.Gap{
		Stream:   s.id,
		Expected: s.expected,
		Observed: observed,
		LastTime: s.lastTime,
		Time:     now,
	}
	s.stats.Gaps++
	s.stats.Lost += g.Lost()
	s.logger.Warn("sequence gap",
		zap.Stringer("venue", s.id.Venue),
		zap.String("feed", s.id.Feed),
		zap.Uint32("unit", s.id.Unit),
		zap.Uint64("expected", g.Expected),
		zap.Uint64("observed", g.Observed))
	s.notifier.Gap(g)
}

/************************************************************************/
// Streams holds the lazily created per-unit streams of one feed.
type Streams struct {
	venue    feed.Venue
	feedName string
	notifier feed.Notifier
	timeout  time.Duration
	logger   *zap.Logger
	units    map[uint32]*Stream
}

func NewStreams(venue feed.Venue, feedName string, notifier feed.Notifier, timeout time.Duration, logger *zap.Logger) *Streams {
	return &Streams{
		venue:    venue,
		feedName: feedName,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		units:    make(map[uint32]*Stream),
	}
}

func (ss *Streams) Unit(unit uint32) *Stream {
	s, ok := ss.units[unit]
	if !ok {
		id := feed.StreamId{Venue: ss.venue, Feed: ss.feedName, Unit: unit}
		s = NewStream(id, ss.notifier, ss.timeout, ss.logger)
		ss.units[unit] = s
	}
	return s
}

// All returns the known streams ordered by unit.
func (ss *Streams) All() []*Stream {
	all := make([]*Stream, 0, len(ss.units))
	for _, s := range ss.units {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].id.Unit < all[j].id.Unit })
	return all
}

func (ss *Streams) CheckTimeouts(now feed.Timestamp) {
	for _, s := range ss.All() {
		s.CheckTimeout(now)
	}
}
