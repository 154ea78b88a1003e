// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package datamgr

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"my/mdbook/config"
	"my/mdbook/feed"
)

var (
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrNoLines         = errors.New("no lines")
	ErrNoFeeds         = errors.New("no usable feeds")
)

type Protocol string

const (
	ProtocolItch50  Protocol = "itch50"
	ProtocolPitch2  Protocol = "pitch2"
	ProtocolNextGen Protocol = "nextgen"
	ProtocolPdp     Protocol = "pdp"
	ProtocolXdp     Protocol = "xdp"
)

// L2 reports whether the protocol publishes price levels rather than
// orders.
func (p Protocol) L2() bool {
	return p == ProtocolPdp
}

func (p Protocol) known() bool {
	switch p {
	case ProtocolItch50, ProtocolPitch2, ProtocolNextGen, ProtocolPdp, ProtocolXdp:
		return true
	}
	return false
}

// globalRefs is true for protocols whose order messages carry no symbol.
func (p Protocol) globalRefs() bool {
	return p == ProtocolPitch2 || p == ProtocolNextGen
}

// FeedConfig is one feeds.<name> entry.
type FeedConfig struct {
	Name       string
	Venue      feed.Venue
	Protocol   Protocol
	Lines      []netip.AddrPort
	Interface  string
	Timeout    time.Duration
	Poller     string
	GlobalRefs bool
	Unit       uint32
}

func feedFromConfig(name string, s *config.Snapshot) (fc FeedConfig, err error) {
	fc.Name = name
	mic, err := s.String("venue")
	if err != nil {
		return
	}
	if fc.Venue, err = feed.VenueFromMIC(mic); err != nil {
		return
	}
	proto, err := s.String("protocol")
	if err != nil {
		return
	}
	fc.Protocol = Protocol(proto)
	if !fc.Protocol.known() {
		return fc, fmt.Errorf("%w: %s", ErrUnknownProtocol, proto)
	}
	names, err := s.Strings("lines")
	if err != nil {
		return
	}
	if fc.Lines, err = ParseLines(names); err != nil {
		return
	}
	if len(fc.Lines) == 0 {
		return fc, ErrNoLines
	}
	if fc.Interface, err = s.StringOr("interface", ""); err != nil {
		return
	}
	if fc.Timeout, err = s.DurationOr("timeout", 0); err != nil {
		return
	}
	if fc.Poller, err = s.StringOr("poller", name); err != nil {
		return
	}
	if fc.GlobalRefs, err = s.BoolOr("global_refs", fc.Protocol.globalRefs()); err != nil {
		return
	}
	if s.Has("unit") {
		var unit int64
		if unit, err = s.Int64("unit"); err != nil {
			return
		}
		fc.Unit = uint32(unit)
	}
	return
}

// FeedsFromConfig reads every feeds.<name> domain. A malformed feed is
// returned among the errors and left out; the rest stay usable.
func FeedsFromConfig(s *config.Snapshot) ([]FeedConfig, []error) {
	var (
		fcs  []FeedConfig
		errs []error
	)
	feeds := s.Domain("feeds")
	for _, name := range feeds.Children() {
		fc, err := feedFromConfig(name, feeds.Domain(name))
		if err != nil {
			errs = append(errs, fmt.Errorf("feeds.%s: %w", name, err))
			continue
		}
		fcs = append(fcs, fc)
	}
	return fcs, errs
}
