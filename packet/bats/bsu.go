// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bats

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"my/mdbook/errs"
	"my/mdbook/feed"
)

var LayerTypeBSU = gopacket.RegisterLayerType(12000, gopacket.LayerTypeMetadata{Name: "BatsSequencedUnit", Decoder: gopacket.DecodeFunc(decodeBSU)})

const BSUHeaderLen = 8

// BSU is the Cboe sequenced unit header. Sequence 0 marks an unsequenced
// unit that bypasses gap detection.
type BSU struct {
	layers.BaseLayer
	Length   uint16
	Count    uint8
	Unit     uint8
	Sequence uint32
	Messages [][]byte
}

var (
	_ gopacket.Layer         = &BSU{}
	_ gopacket.DecodingLayer = &BSU{}
)

func (m *BSU) LayerType() gopacket.LayerType {
	return LayerTypeBSU
}

// DecodeFromBytes splits the payload into messages, checking only that each
// declared message length fits.
func (m *BSU) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < BSUHeaderLen {
		return fmt.Errorf("%w: sequenced unit header %d bytes", feed.ErrRunt, len(data))
	}
	*m = BSU{
		Length:   binary.LittleEndian.Uint16(data[0:2]),
		Count:    data[2],
		Unit:     data[3],
		Sequence: binary.LittleEndian.Uint32(data[4:8]),
		Messages: m.Messages[:0], // reuse the slice storage
	}
	if int(m.Length) < BSUHeaderLen || int(m.Length) > len(data) {
		return fmt.Errorf("%w: sequenced unit length %d, have %d", feed.ErrRunt, m.Length, len(data))
	}
	data = data[:m.Length]
	m.BaseLayer = layers.BaseLayer{Contents: data[:BSUHeaderLen], Payload: data[BSUHeaderLen:]}
	data = m.Payload
	for i := 0; i < int(m.Count); i++ {
		if len(data) < 2 {
			return fmt.Errorf("%w: message %d header", feed.ErrRunt, i)
		}
		length := int(data[0])
		if length < 2 || length > len(data) {
			return fmt.Errorf("%w: message %d length %d, %d left", feed.ErrRunt, i, length, len(data))
		}
		m.Messages = append(m.Messages, data[:length])
		data = data[length:]
	}
	return nil
}
func (m *BSU) CanDecode() gopacket.LayerClass {
	return LayerTypeBSU
}
func (m *BSU) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}
func (m *BSU) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) (err error) {
	defer errs.PassE(&err)
	payloadLen := len(b.Bytes())
	bytes, err := b.PrependBytes(BSUHeaderLen)
	errs.CheckE(err)
	length := m.Length
	if opts.FixLengths {
		length = uint16(BSUHeaderLen + payloadLen)
	}
	binary.LittleEndian.PutUint16(bytes[0:2], length)
	bytes[2] = m.Count
	bytes[3] = m.Unit
	binary.LittleEndian.PutUint32(bytes[4:8], m.Sequence)
	return
}

func decodeBSU(data []byte, p gopacket.PacketBuilder) error {
	m := &BSU{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	return p.NextDecoder(m.NextLayerType())
}
