// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nyse

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"my/mdbook/feed"
)

var LayerTypeXDP = gopacket.RegisterLayerType(13001, gopacket.LayerTypeMetadata{Name: "NyseXDP", Decoder: gopacket.DecodeFunc(decodeXDP)})

type XdpMessageType uint16

const (
	XdpMessageTypeSequenceReset      XdpMessageType = 1
	XdpMessageTypeSourceTimeRef      XdpMessageType = 2
	XdpMessageTypeSymbolIndexMapping XdpMessageType = 3
	XdpMessageTypeSecurityStatus     XdpMessageType = 34
	XdpMessageTypeAddOrder           XdpMessageType = 100
	XdpMessageTypeModifyOrder        XdpMessageType = 101
	XdpMessageTypeDeleteOrder        XdpMessageType = 102
	XdpMessageTypeExecution          XdpMessageType = 103
	XdpMessageTypeReplaceOrder       XdpMessageType = 104
	XdpMessageTypeImbalance          XdpMessageType = 105
	XdpMessageTypeAddOrderRefresh    XdpMessageType = 106
	XdpMessageTypeNonDisplayedTrade  XdpMessageType = 110
	XdpMessageTypeCrossTrade         XdpMessageType = 113
)

const (
	XdpHeaderLen        = 16
	XdpMessageHeaderLen = 4
)

var xdpMessageTypes = map[XdpMessageType]struct {
	Name string
	Size int
}{
	XdpMessageTypeSequenceReset:      {"XdpSequenceReset", 14},
	XdpMessageTypeSourceTimeRef:      {"XdpSourceTimeRef", 16},
	XdpMessageTypeSymbolIndexMapping: {"XdpSymbolIndexMapping", 44},
	XdpMessageTypeSecurityStatus:     {"XdpSecurityStatus", 46},
	XdpMessageTypeAddOrder:           {"XdpAddOrder", 39},
	XdpMessageTypeModifyOrder:        {"XdpModifyOrder", 35},
	XdpMessageTypeDeleteOrder:        {"XdpDeleteOrder", 25},
	XdpMessageTypeExecution:          {"XdpExecution", 42},
	XdpMessageTypeReplaceOrder:       {"XdpReplaceOrder", 42},
	XdpMessageTypeImbalance:          {"XdpImbalance", 74},
	XdpMessageTypeAddOrderRefresh:    {"XdpAddOrderRefresh", 39},
	XdpMessageTypeNonDisplayedTrade:  {"XdpNonDisplayedTrade", 32},
	XdpMessageTypeCrossTrade:         {"XdpCrossTrade", 35},
}

func (t XdpMessageType) String() string {
	if i, ok := xdpMessageTypes[t]; ok {
		return i.Name
	}
	return fmt.Sprintf("XdpUnknown(%d)", uint16(t))
}
func (t XdpMessageType) Known() bool {
	_, ok := xdpMessageTypes[t]
	return ok
}
func (t XdpMessageType) Size() int {
	return xdpMessageTypes[t].Size
}

/************************************************************************/
// XDP is the packet header with its messages split out. Each message keeps
// its 4 byte header.
type XDP struct {
	layers.BaseLayer
	PktSize      uint16
	DeliveryFlag uint8
	NumMsgs      uint8
	SeqNum       uint32
	SendTime     uint32 // seconds since epoch
	SendTimeNs   uint32
	Messages     [][]byte
}

var (
	_ gopacket.Layer         = &XDP{}
	_ gopacket.DecodingLayer = &XDP{}
)

func (m *XDP) LayerType() gopacket.LayerType {
	return LayerTypeXDP
}

// DecodeFromBytes checks every message against its declared and, for known
// types, its fixed size.
func (m *XDP) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < XdpHeaderLen {
		return fmt.Errorf("%w: xdp header %d bytes", feed.ErrRunt, len(data))
	}
	*m = XDP{
		PktSize:      binary.LittleEndian.Uint16(data[0:2]),
		DeliveryFlag: data[2],
		NumMsgs:      data[3],
		SeqNum:       binary.LittleEndian.Uint32(data[4:8]),
		SendTime:     binary.LittleEndian.Uint32(data[8:12]),
		SendTimeNs:   binary.LittleEndian.Uint32(data[12:16]),
		Messages:     m.Messages[:0], // reuse the slice storage
	}
	if int(m.PktSize) < XdpHeaderLen || int(m.PktSize) > len(data) {
		return fmt.Errorf("%w: xdp size %d, have %d", feed.ErrRunt, m.PktSize, len(data))
	}
	data = data[:m.PktSize]
	m.BaseLayer = layers.BaseLayer{Contents: data[:XdpHeaderLen], Payload: data[XdpHeaderLen:]}
	data = m.Payload
	for i := 0; i < int(m.NumMsgs); i++ {
		if len(data) < XdpMessageHeaderLen {
			return fmt.Errorf("%w: message %d header", feed.ErrRunt, i)
		}
		size := int(binary.LittleEndian.Uint16(data[0:2]))
		typ := XdpMessageType(binary.LittleEndian.Uint16(data[2:4]))
		if size < XdpMessageHeaderLen || size > len(data) {
			return fmt.Errorf("%w: message %d size %d, %d left", feed.ErrRunt, i, size, len(data))
		}
		if typ.Known() && size < typ.Size() {
			return fmt.Errorf("%w: message %d %s size %d, need %d", feed.ErrRunt, i, typ, size, typ.Size())
		}
		m.Messages = append(m.Messages, data[:size])
		data = data[size:]
	}
	return nil
}
func (m *XDP) IsHeartbeat() bool {
	return m.NumMsgs == 0
}
func (m *XDP) CanDecode() gopacket.LayerClass {
	return LayerTypeXDP
}
func (m *XDP) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}
func decodeXDP(data []byte, p gopacket.PacketBuilder) error {
	m := &XDP{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	return p.NextDecoder(m.NextLayerType())
}

/************************************************************************/
// XdpMessage is a decoded XDP message. Fields not carried by Type are zero.
type XdpMessage struct {
	Size         uint16
	Type         XdpMessageType
	SourceTimeNs uint32
	SourceTime   uint32 // seconds, source time reference only
	SymbolIndex  uint32
	SymbolSeqNum uint32
	OrderId      feed.RefNum
	NewOrderId   feed.RefNum
	PriceNum     uint32
	Volume       uint32
	Side         feed.Side
	TradeId      uint32
	Printable    bool
	Status       byte
	CrossType    byte
	ProductId    uint8
	ChannelId    uint8
	Symbol       string
	PriceScale   uint8
	LotSize      uint16
	Imbalance    XdpImbalance
}

type XdpImbalance struct {
	ReferencePrice     uint32
	PairedQty          uint32
	TotalImbalanceQty  uint32
	MarketImbalanceQty uint32
	AuctionTime        uint16
	AuctionType        byte
	ImbalanceSide      byte
	IndicativeMatch    uint32
}

// DecodeFromBytes expects a message checked by XDP.DecodeFromBytes.
func (m *XdpMessage) DecodeFromBytes(data []byte) {
	*m = XdpMessage{
		Size: binary.LittleEndian.Uint16(data[0:2]),
		Type: XdpMessageType(binary.LittleEndian.Uint16(data[2:4])),
	}
	le := binary.LittleEndian
	switch m.Type {
	case XdpMessageTypeSequenceReset:
		m.SourceTime = le.Uint32(data[4:8])
		m.SourceTimeNs = le.Uint32(data[8:12])
		m.ProductId = data[12]
		m.ChannelId = data[13]
		return
	case XdpMessageTypeSourceTimeRef:
		m.SymbolIndex = le.Uint32(data[4:8])
		m.SymbolSeqNum = le.Uint32(data[8:12])
		m.SourceTime = le.Uint32(data[12:16])
		return
	case XdpMessageTypeSymbolIndexMapping:
		m.SymbolIndex = le.Uint32(data[4:8])
		m.Symbol = parseSymbol(data[8:19])
		m.PriceScale = data[24]
		m.LotSize = le.Uint16(data[26:28])
		return
	}
	if !m.Type.Known() {
		return
	}
	m.SourceTimeNs = le.Uint32(data[4:8])
	m.SymbolIndex = le.Uint32(data[8:12])
	m.SymbolSeqNum = le.Uint32(data[12:16])
	switch m.Type {
	case XdpMessageTypeSecurityStatus:
		m.Status = data[16]
	case XdpMessageTypeAddOrder, XdpMessageTypeAddOrderRefresh:
		m.OrderId = feed.RefNum(le.Uint64(data[16:24]))
		m.PriceNum = le.Uint32(data[24:28])
		m.Volume = le.Uint32(data[28:32])
		m.Side = feed.SideFromByte(data[32])
	case XdpMessageTypeModifyOrder:
		m.OrderId = feed.RefNum(le.Uint64(data[16:24]))
		m.PriceNum = le.Uint32(data[24:28])
		m.Volume = le.Uint32(data[28:32])
		m.Side = feed.SideFromByte(data[33])
	case XdpMessageTypeDeleteOrder:
		m.OrderId = feed.RefNum(le.Uint64(data[16:24]))
		m.Side = feed.SideFromByte(data[24])
	case XdpMessageTypeExecution:
		m.OrderId = feed.RefNum(le.Uint64(data[16:24]))
		m.TradeId = le.Uint32(data[24:28])
		m.PriceNum = le.Uint32(data[28:32])
		m.Volume = le.Uint32(data[32:36])
		m.Printable = data[36] == 1
	case XdpMessageTypeReplaceOrder:
		m.OrderId = feed.RefNum(le.Uint64(data[16:24]))
		m.NewOrderId = feed.RefNum(le.Uint64(data[24:32]))
		m.PriceNum = le.Uint32(data[32:36])
		m.Volume = le.Uint32(data[36:40])
		m.Side = feed.SideFromByte(data[40])
	case XdpMessageTypeImbalance:
		m.Imbalance = XdpImbalance{
			ReferencePrice:     le.Uint32(data[16:20]),
			PairedQty:          le.Uint32(data[20:24]),
			TotalImbalanceQty:  le.Uint32(data[24:28]),
			MarketImbalanceQty: le.Uint32(data[28:32]),
			AuctionTime:        le.Uint16(data[32:34]),
			AuctionType:        data[34],
			ImbalanceSide:      data[35],
			IndicativeMatch:    le.Uint32(data[48:52]),
		}
	case XdpMessageTypeNonDisplayedTrade:
		m.TradeId = le.Uint32(data[16:20])
		m.PriceNum = le.Uint32(data[20:24])
		m.Volume = le.Uint32(data[24:28])
		m.Printable = data[28] == 1
	case XdpMessageTypeCrossTrade:
		m.TradeId = le.Uint32(data[16:20])
		m.PriceNum = le.Uint32(data[20:24])
		m.Volume = le.Uint32(data[24:28])
		m.CrossType = data[28]
	}
}
