// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package packet

import (
	"io"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"my/mdbook/feed"
)

// Datagram is one UDP payload with its capture time and destination.
type Datagram struct {
	Time    feed.Timestamp
	Src     netip.AddrPort
	Dst     netip.AddrPort
	Payload []byte
}

// PayloadExtractor peels link, VLAN, IPv4 and UDP headers off a frame.
type PayloadExtractor struct {
	parser  *gopacket.DecodingLayerParser
	eth     layers.Ethernet
	sll     layers.LinuxSLL
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	udp     layers.UDP
	payload gopacket.Payload
	decoded []gopacket.LayerType
}

func NewPayloadExtractor(link layers.LinkType) *PayloadExtractor {
	p := &PayloadExtractor{}
	first := layers.LayerTypeEthernet
	switch link {
	case layers.LinkTypeLinuxSLL:
		first = layers.LayerTypeLinuxSLL
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	}
	p.parser = gopacket.NewDecodingLayerParser(first, &p.eth, &p.sll, &p.dot1q, &p.ip4, &p.udp, &p.payload)
	p.parser.IgnoreUnsupported = true
	p.decoded = make([]gopacket.LayerType, 0, 8)
	return p
}

// Extract returns false for anything but an unfragmented IPv4 UDP datagram.
// The payload aliases data.
func (p *PayloadExtractor) Extract(data []byte) (src, dst netip.AddrPort, payload []byte, ok bool) {
	if err := p.parser.DecodeLayers(data, &p.decoded); err != nil {
		return
	}
	var seenIP, seenUDP bool
	for _, lt := range p.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			seenIP = true
		case layers.LayerTypeUDP:
			seenUDP = true
		}
	}
	if !seenIP || !seenUDP {
		return
	}
	if p.ip4.Flags&layers.IPv4MoreFragments != 0 || p.ip4.FragOffset != 0 {
		return
	}
	srcIP, ok1 := netip.AddrFromSlice(p.ip4.SrcIP.To4())
	dstIP, ok2 := netip.AddrFromSlice(p.ip4.DstIP.To4())
	if !ok1 || !ok2 {
		return
	}
	src = netip.AddrPortFrom(srcIP, uint16(p.udp.SrcPort))
	dst = netip.AddrPortFrom(dstIP, uint16(p.udp.DstPort))
	return src, dst, p.udp.Payload, true
}

// Source yields the UDP datagrams of an obtainer in capture order.
type Source struct {
	Name    string
	ob      Obtainer
	closer  io.Closer
	ex      *PayloadExtractor
	Skipped int
}

func NewSource(name string, ob Obtainer) *Source {
	s := &Source{
		Name: name,
		ob:   ob,
		ex:   NewPayloadExtractor(ob.LinkType()),
	}
	if c, ok := ob.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func OpenSource(name string) (*Source, error) {
	ob, err := OpenFile(name)
	if err != nil {
		return nil, err
	}
	return NewSource(name, ob), nil
}

// Next returns io.EOF after the last datagram.
func (s *Source) Next() (Datagram, error) {
	for {
		data, ci, err := s.ob.ReadPacketData()
		if err != nil {
			return Datagram{}, err
		}
		src, dst, payload, ok := s.ex.Extract(data)
		if !ok {
			s.Skipped++
			continue
		}
		return Datagram{
			Time:    feed.TimestampFromTime(ci.Timestamp),
			Src:     src,
			Dst:     dst,
			Payload: payload,
		}, nil
	}
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
