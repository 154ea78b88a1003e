// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package packet

import (
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"my/mdbook/errs"
)

// Writer wraps UDP payloads into Ethernet frames and writes a nanosecond
// pcap, for synthesized captures.
type Writer struct {
	w   *pcapgo.Writer
	buf gopacket.SerializeBuffer
	Src netip.AddrPort
}

func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriterNanos(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return &Writer{
		w:   pw,
		buf: gopacket.NewSerializeBuffer(),
		Src: netip.MustParseAddrPort("10.0.0.1:10000"),
	}, nil
}

func multicastMAC(ip netip.Addr) net.HardwareAddr {
	b := ip.As4()
	return net.HardwareAddr{0x01, 0x00, 0x5e, b[1] & 0x7f, b[2], b[3]}
}

func (w *Writer) WriteUDP(ts time.Time, dst netip.AddrPort, payload []byte) (err error) {
	defer errs.PassE(&err)
	srcIP := w.Src.Addr().As4()
	dstIP := dst.Addr().As4()
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       multicastMAC(dst.Addr()),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(srcIP[:]),
		DstIP:    net.IP(dstIP[:]),
	}
	udp := layers.UDP{
		SrcPort: layers.UDPPort(w.Src.Port()),
		DstPort: layers.UDPPort(dst.Port()),
	}
	errs.CheckE(udp.SetNetworkLayerForChecksum(&ip))
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	errs.CheckE(gopacket.SerializeLayers(w.buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)))
	data := w.buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	errs.CheckE(w.w.WritePacket(ci, data))
	return
}
