// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nasdaq

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"my/mdbook/errs"
	"my/mdbook/feed"
)

var LayerTypeMoldUDP64 = gopacket.RegisterLayerType(10000, gopacket.LayerTypeMetadata{Name: "MoldUDP64", Decoder: gopacket.DecodeFunc(decodeMoldUDP64)})

const (
	MoldUDP64HeaderLen    = 20
	MoldUDP64EndOfSession = 0xffff
)

/************************************************************************/
// MoldUDP64 is the downstream packet header. Blocks holds the message
// payloads without their length prefixes.
type MoldUDP64 struct {
	layers.BaseLayer
	Session        string
	SequenceNumber uint64
	MessageCount   uint16
	Blocks         [][]byte
}

var (
	_ gopacket.Layer         = &MoldUDP64{}
	_ gopacket.DecodingLayer = &MoldUDP64{}
)

func (m *MoldUDP64) LayerType() gopacket.LayerType {
	return LayerTypeMoldUDP64
}

// DecodeFromBytes validates every block length before accepting the packet.
func (m *MoldUDP64) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < MoldUDP64HeaderLen {
		return fmt.Errorf("%w: moldUDP64 header %d bytes", feed.ErrRunt, len(data))
	}
	*m = MoldUDP64{
		Session:        string(data[0:10]),
		SequenceNumber: binary.BigEndian.Uint64(data[10:18]),
		MessageCount:   binary.BigEndian.Uint16(data[18:20]),
		BaseLayer:      layers.BaseLayer{Contents: data[:MoldUDP64HeaderLen], Payload: data[MoldUDP64HeaderLen:]},
		Blocks:         m.Blocks[:0], // reuse the slice storage
	}
	if m.IsHeartbeat() || m.IsEndOfSession() {
		return nil
	}
	data = m.Payload
	for i := 0; i < int(m.MessageCount); i++ {
		if len(data) < 2 {
			return fmt.Errorf("%w: block %d header", feed.ErrRunt, i)
		}
		length := int(binary.BigEndian.Uint16(data[0:2]))
		if length == 0 || len(data) < 2+length {
			return fmt.Errorf("%w: block %d length %d, %d left", feed.ErrRunt, i, length, len(data)-2)
		}
		m.Blocks = append(m.Blocks, data[2:2+length])
		data = data[2+length:]
	}
	return nil
}
func (m *MoldUDP64) IsHeartbeat() bool {
	return m.MessageCount == 0
}
func (m *MoldUDP64) IsEndOfSession() bool {
	return m.MessageCount == MoldUDP64EndOfSession
}

// Len is the number of bytes covered by the header and its blocks.
func (m *MoldUDP64) Len() int {
	n := MoldUDP64HeaderLen
	for _, b := range m.Blocks {
		n += 2 + len(b)
	}
	return n
}
func (m *MoldUDP64) CanDecode() gopacket.LayerClass {
	return LayerTypeMoldUDP64
}
func (m *MoldUDP64) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func decodeMoldUDP64(data []byte, p gopacket.PacketBuilder) error {
	m := &MoldUDP64{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	return p.NextDecoder(m.NextLayerType())
}

func (m *MoldUDP64) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) (err error) {
	defer errs.PassE(&err)
	bytes, err := b.PrependBytes(MoldUDP64HeaderLen)
	errs.CheckE(err)
	session := fmt.Sprintf("%-10s", m.Session)
	copy(bytes[0:10], session)
	binary.BigEndian.PutUint64(bytes[10:18], m.SequenceNumber)
	binary.BigEndian.PutUint16(bytes[18:20], m.MessageCount)
	return
}
