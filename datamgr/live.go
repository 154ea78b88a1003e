// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package datamgr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"my/mdbook/decmux"
	"my/mdbook/feed"
	"my/mdbook/packet"
)

var ErrSplitVenue = errors.New("venue spans poller groups")

const (
	maxDatagram  = 65536
	queueLen     = 4096
	liveTickRate = 100 * time.Millisecond
)

// checkGroups enforces a single writer per book: all feeds of a venue
// must share a poller group.
func (m *Manager) checkGroups() error {
	owner := make(map[feed.Venue]string)
	for _, f := range m.feeds {
		if g, ok := owner[f.Venue]; ok && g != f.Poller {
			return fmt.Errorf("%w: %s in %s and %s", ErrSplitVenue, f.Venue, g, f.Poller)
		}
		owner[f.Venue] = f.Poller
	}
	return nil
}

type socket struct {
	conn  *net.UDPConn
	group netip.AddrPort
}

type poller struct {
	name    string
	dm      *decmux.DecoderMux
	sockets []socket
}

func (p *poller) close() {
	for _, s := range p.sockets {
		s.conn.Close()
	}
}

// readLive runs a goroutine per poller group that decodes everything its
// sockets receive. Sockets are read by goroutines of their own and handed
// over in arrival order.
func (m *Manager) readLive(ctx context.Context) (err error) {
	if err := m.checkGroups(); err != nil {
		return err
	}
	var pollers []*poller
	defer func() {
		if err != nil {
			for _, p := range pollers {
				p.close()
			}
		}
	}()
	names, groups := m.pollerGroups()
	for _, name := range names {
		p := &poller{
			name: name,
			dm:   decmux.New(decmux.WithLogger(m.logger.With(zap.String("poller", name)))),
		}
		pollers = append(pollers, p)
		for _, f := range groups[name] {
			for _, l := range f.Lines {
				if err := p.dm.AddRoute(l, f.Decoder); err != nil {
					return err
				}
				conn, err := listen(f.Interface, l)
				if err != nil {
					return fmt.Errorf("feeds.%s: join %s: %w", f.Name, l, err)
				}
				p.sockets = append(p.sockets, socket{conn: conn, group: l})
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pollers {
		p := p
		m.logger.Info("poller started", zap.String("poller", p.name), zap.Int("sockets", len(p.sockets)))
		ch := make(chan packet.Datagram, queueLen)
		readers, rctx := errgroup.WithContext(ctx)
		for _, s := range p.sockets {
			s := s
			readers.Go(func() error { return readSocket(rctx, s, ch) })
		}
		g.Go(func() error {
			<-rctx.Done()
			p.close()
			err := readers.Wait()
			close(ch)
			return err
		})
		g.Go(func() error { return poll(ctx, p.dm, ch) })
	}
	if len(m.timers) > 0 {
		g.Go(func() error { return m.runTimers(ctx) })
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func listen(iface string, group netip.AddrPort) (*net.UDPConn, error) {
	var ifi *net.Interface
	if iface != "" {
		var err error
		if ifi, err = net.InterfaceByName(iface); err != nil {
			return nil, err
		}
	}
	addr := net.UDPAddrFromAddrPort(group)
	if !group.Addr().IsMulticast() {
		return net.ListenUDP("udp4", addr)
	}
	return net.ListenMulticastUDP("udp4", ifi, addr)
}

func readSocket(ctx context.Context, s socket, ch chan<- packet.Datagram) error {
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		dg := packet.Datagram{
			Time:    feed.TimestampFromTime(time.Now()),
			Src:     src,
			Dst:     s.group,
			Payload: append([]byte(nil), buf[:n]...),
		}
		select {
		case ch <- dg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// poll owns the decoders of one group. Timeouts are checked on wall time
// when the feeds are quiet.
func poll(ctx context.Context, dm *decmux.DecoderMux, ch <-chan packet.Datagram) error {
	tick := time.NewTicker(liveTickRate)
	defer tick.Stop()
	for {
		select {
		case dg, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			dm.Dispatch(dg)
		case now := <-tick.C:
			dm.Tick(feed.TimestampFromTime(now))
		}
	}
}

func (m *Manager) runTimers(ctx context.Context) error {
	tick := time.NewTicker(decmux.DefaultTimerInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			ts := feed.TimestampFromTime(now)
			for _, t := range m.timers {
				t.OnTimer(ts)
			}
		}
	}
}
