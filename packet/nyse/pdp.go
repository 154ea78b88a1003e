// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nyse

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"my/mdbook/feed"
)

var LayerTypePDP = gopacket.RegisterLayerType(13000, gopacket.LayerTypeMetadata{Name: "NysePDP", Decoder: gopacket.DecodeFunc(decodePDP)})

// PDP message types, carried in the packet header. Every body entry of a
// packet has the packet's type.
type PdpMessageType uint16

const (
	PdpMessageTypeSequenceReset  PdpMessageType = 1
	PdpMessageTypeHeartbeat      PdpMessageType = 2
	PdpMessageTypeSecurityStatus PdpMessageType = 34
	PdpMessageTypeSymbolMapping  PdpMessageType = 35
	PdpMessageTypeTrade          PdpMessageType = 220
	PdpMessageTypeImbalance      PdpMessageType = 240
	PdpMessageTypeFullUpdate     PdpMessageType = 230
	PdpMessageTypeDeltaUpdate    PdpMessageType = 231
)

const (
	PdpHeaderLen            = 16
	PdpSequenceResetLen     = 4
	PdpSecurityStatusLen    = 20
	PdpSymbolMappingLen     = 24
	PdpTradeLen             = 32
	PdpImbalanceLen         = 40
	PdpFullUpdateHeaderLen  = 31
	PdpPricePointLen        = 12
	PdpDeltaUpdateHeaderLen = 18
	PdpDeltaPointLen        = 20
)

var pdpMessageTypeNames = map[PdpMessageType]string{
	PdpMessageTypeSequenceReset:  "PdpSequenceReset",
	PdpMessageTypeHeartbeat:      "PdpHeartbeat",
	PdpMessageTypeSecurityStatus: "PdpSecurityStatus",
	PdpMessageTypeSymbolMapping:  "PdpSymbolMapping",
	PdpMessageTypeTrade:          "PdpTrade",
	PdpMessageTypeImbalance:      "PdpImbalance",
	PdpMessageTypeFullUpdate:     "PdpFullUpdate",
	PdpMessageTypeDeltaUpdate:    "PdpDeltaUpdate",
}

func (t PdpMessageType) String() string {
	if n, ok := pdpMessageTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("PdpUnknown(%d)", uint16(t))
}

// fixedSize is the size of each body entry, 0 for variable sized entries
// and unknown types.
func (t PdpMessageType) fixedSize() int {
	switch t {
	case PdpMessageTypeSecurityStatus:
		return PdpSecurityStatusLen
	case PdpMessageTypeSymbolMapping:
		return PdpSymbolMappingLen
	case PdpMessageTypeTrade:
		return PdpTradeLen
	case PdpMessageTypeImbalance:
		return PdpImbalanceLen
	default:
		return 0
	}
}

/************************************************************************/
// PDP is the packet header with its body entries split out.
type PDP struct {
	layers.BaseLayer
	MsgSize        uint16
	MsgType        PdpMessageType
	SeqNum         uint32
	SendTime       uint32 // ms since midnight
	ProductId      uint8
	RetransFlag    uint8
	NumBodyEntries uint8
	LinkFlag       uint8
	Entries        [][]byte
}

var (
	_ gopacket.Layer         = &PDP{}
	_ gopacket.DecodingLayer = &PDP{}
)

func (m *PDP) LayerType() gopacket.LayerType {
	return LayerTypePDP
}

// DecodeFromBytes validates the sizes of all body entries.
func (m *PDP) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < PdpHeaderLen {
		return fmt.Errorf("%w: pdp header %d bytes", feed.ErrRunt, len(data))
	}
	*m = PDP{
		MsgSize:        binary.BigEndian.Uint16(data[0:2]),
		MsgType:        PdpMessageType(binary.BigEndian.Uint16(data[2:4])),
		SeqNum:         binary.BigEndian.Uint32(data[4:8]),
		SendTime:       binary.BigEndian.Uint32(data[8:12]),
		ProductId:      data[12],
		RetransFlag:    data[13],
		NumBodyEntries: data[14],
		LinkFlag:       data[15],
		Entries:        m.Entries[:0], // reuse the slice storage
	}
	if int(m.MsgSize) < PdpHeaderLen || int(m.MsgSize) > len(data) {
		return fmt.Errorf("%w: pdp size %d, have %d", feed.ErrRunt, m.MsgSize, len(data))
	}
	data = data[:m.MsgSize]
	m.BaseLayer = layers.BaseLayer{Contents: data[:PdpHeaderLen], Payload: data[PdpHeaderLen:]}
	data = m.Payload
	switch m.MsgType {
	case PdpMessageTypeHeartbeat:
		return nil
	case PdpMessageTypeSequenceReset:
		if len(data) < PdpSequenceResetLen {
			return fmt.Errorf("%w: %s body %d bytes", feed.ErrRunt, m.MsgType, len(data))
		}
		m.Entries = append(m.Entries, data[:PdpSequenceResetLen])
		return nil
	}
	fixed := m.MsgType.fixedSize()
	for i := 0; i < int(m.NumBodyEntries); i++ {
		size := fixed
		switch m.MsgType {
		case PdpMessageTypeFullUpdate, PdpMessageTypeDeltaUpdate:
			if len(data) < 2 {
				return fmt.Errorf("%w: %s entry %d size", feed.ErrRunt, m.MsgType, i)
			}
			size = int(binary.BigEndian.Uint16(data[0:2]))
			if err := checkBookEntrySize(m.MsgType, size); err != nil {
				return fmt.Errorf("%w: entry %d", err, i)
			}
		}
		if size == 0 {
			// unknown type, entries cannot be delimited
			m.Entries = append(m.Entries, data)
			return nil
		}
		if len(data) < size {
			return fmt.Errorf("%w: %s entry %d needs %d bytes, %d left", feed.ErrRunt, m.MsgType, i, size, len(data))
		}
		m.Entries = append(m.Entries, data[:size])
		data = data[size:]
	}
	return nil
}
func checkBookEntrySize(t PdpMessageType, size int) error {
	hdr, point := PdpFullUpdateHeaderLen, PdpPricePointLen
	if t == PdpMessageTypeDeltaUpdate {
		hdr, point = PdpDeltaUpdateHeaderLen, PdpDeltaPointLen
	}
	if size < hdr || (size-hdr)%point != 0 {
		return fmt.Errorf("%w: %s entry size %d", feed.ErrRunt, t, size)
	}
	return nil
}

func (m *PDP) CanDecode() gopacket.LayerClass {
	return LayerTypePDP
}
func (m *PDP) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}
func decodePDP(data []byte, p gopacket.PacketBuilder) error {
	m := &PDP{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	return p.NextDecoder(m.NextLayerType())
}

/************************************************************************/
type PdpSymbolMapping struct {
	SymbolIndex    uint16
	Symbol         string
	PriceScaleCode uint8
	MarketId       uint8
	RoundLot       uint16
}

func (m *PdpSymbolMapping) DecodeFromBytes(data []byte) {
	*m = PdpSymbolMapping{
		SymbolIndex:    binary.BigEndian.Uint16(data[0:2]),
		Symbol:         parseSymbol(data[2:13]),
		PriceScaleCode: data[14],
		MarketId:       data[15],
		RoundLot:       binary.BigEndian.Uint16(data[16:18]),
	}
}

/************************************************************************/
// PdpSourceTime is the per-entry source time: ms since midnight plus a
// microsecond fraction of that ms.
type PdpSourceTime struct {
	SourceTime uint32
	SourceUs   uint16
}

func (t PdpSourceTime) Since(midnight feed.Timestamp) feed.Timestamp {
	return midnight + feed.Timestamp(t.SourceTime)*1000000 + feed.Timestamp(t.SourceUs)*1000
}

type PdpPricePoint struct {
	PriceNum  uint32
	Volume    uint32
	NumOrders uint16
	Side      feed.Side
	Reason    byte
	ChgQty    uint32
	LinkId    uint32
}

type PdpBookUpdate struct {
	PdpSourceTime
	Full        bool
	SymbolIndex uint16
	SymbolSeq   uint32
	Session     uint8
	Symbol      string
	PriceScale  uint8
	QuoteCond   byte
	Status      byte
	MPV         uint16
	Points      []PdpPricePoint
}

// DecodeFromBytes expects an entry already checked by PDP.DecodeFromBytes.
func (m *PdpBookUpdate) DecodeFromBytes(t PdpMessageType, data []byte) {
	*m = PdpBookUpdate{
		PdpSourceTime: PdpSourceTime{
			SourceTime: binary.BigEndian.Uint32(data[4:8]),
			SourceUs:   binary.BigEndian.Uint16(data[8:10]),
		},
		Full:        t == PdpMessageTypeFullUpdate,
		SymbolIndex: binary.BigEndian.Uint16(data[2:4]),
		SymbolSeq:   binary.BigEndian.Uint32(data[10:14]),
		Session:     data[14],
		Points:      m.Points[:0],
	}
	if m.Full {
		m.Symbol = parseSymbol(data[15:26])
		m.PriceScale = data[26]
		m.QuoteCond = data[27]
		m.Status = data[28]
		m.MPV = binary.BigEndian.Uint16(data[29:31])
		for p := data[PdpFullUpdateHeaderLen:]; len(p) >= PdpPricePointLen; p = p[PdpPricePointLen:] {
			m.Points = append(m.Points, PdpPricePoint{
				PriceNum:  binary.BigEndian.Uint32(p[0:4]),
				Volume:    binary.BigEndian.Uint32(p[4:8]),
				NumOrders: binary.BigEndian.Uint16(p[8:10]),
				Side:      feed.SideFromByte(p[10]),
			})
		}
		return
	}
	m.QuoteCond = data[15]
	m.Status = data[16]
	m.PriceScale = data[17]
	for p := data[PdpDeltaUpdateHeaderLen:]; len(p) >= PdpDeltaPointLen; p = p[PdpDeltaPointLen:] {
		m.Points = append(m.Points, PdpPricePoint{
			PriceNum:  binary.BigEndian.Uint32(p[0:4]),
			Volume:    binary.BigEndian.Uint32(p[4:8]),
			ChgQty:    binary.BigEndian.Uint32(p[8:12]),
			NumOrders: binary.BigEndian.Uint16(p[12:14]),
			Side:      feed.SideFromByte(p[14]),
			Reason:    p[15],
			LinkId:    binary.BigEndian.Uint32(p[16:20]),
		})
	}
}

func pdpReason(b byte) feed.L2Reason {
	switch b {
	case 'O':
		return feed.L2ReasonNew
	case 'C':
		return feed.L2ReasonCancel
	case 'E':
		return feed.L2ReasonExecution
	case 'X':
		return feed.L2ReasonChange
	default:
		return feed.L2ReasonUnknown
	}
}

/************************************************************************/
type PdpTrade struct {
	PdpSourceTime
	SymbolIndex uint16
	SymbolSeq   uint32
	TradeId     uint32
	PriceNum    uint32
	Volume      uint32
	PriceScale  uint8
	TradeCond   [4]byte
}

func (m *PdpTrade) DecodeFromBytes(data []byte) {
	*m = PdpTrade{
		SymbolIndex: binary.BigEndian.Uint16(data[0:2]),
		PdpSourceTime: PdpSourceTime{
			SourceTime: binary.BigEndian.Uint32(data[2:6]),
			SourceUs:   binary.BigEndian.Uint16(data[6:8]),
		},
		SymbolSeq:  binary.BigEndian.Uint32(data[8:12]),
		TradeId:    binary.BigEndian.Uint32(data[12:16]),
		PriceNum:   binary.BigEndian.Uint32(data[16:20]),
		Volume:     binary.BigEndian.Uint32(data[20:24]),
		PriceScale: data[24],
	}
	copy(m.TradeCond[:], data[25:29])
}

// Printable is false for trades flagged as not updating last sale.
func (m *PdpTrade) Printable() bool {
	return m.TradeCond[3] != 'N'
}

/************************************************************************/
type PdpImbalance struct {
	PdpSourceTime
	SymbolIndex        uint16
	SymbolSeq          uint32
	RefPriceNum        uint32
	PairedQty          uint32
	TotalImbalanceQty  uint32
	MarketImbalanceQty uint32
	AuctionTime        uint16
	AuctionType        byte
	ImbalanceSide      byte
	PriceScale         uint8
	ClearingPriceNum   uint32
}

func (m *PdpImbalance) DecodeFromBytes(data []byte) {
	*m = PdpImbalance{
		SymbolIndex: binary.BigEndian.Uint16(data[0:2]),
		PdpSourceTime: PdpSourceTime{
			SourceTime: binary.BigEndian.Uint32(data[2:6]),
			SourceUs:   binary.BigEndian.Uint16(data[6:8]),
		},
		SymbolSeq:          binary.BigEndian.Uint32(data[8:12]),
		RefPriceNum:        binary.BigEndian.Uint32(data[12:16]),
		PairedQty:          binary.BigEndian.Uint32(data[16:20]),
		TotalImbalanceQty:  binary.BigEndian.Uint32(data[20:24]),
		MarketImbalanceQty: binary.BigEndian.Uint32(data[24:28]),
		AuctionTime:        binary.BigEndian.Uint16(data[28:30]),
		AuctionType:        data[30],
		ImbalanceSide:      data[31],
		PriceScale:         data[32],
		ClearingPriceNum:   binary.BigEndian.Uint32(data[33:37]),
	}
}

/************************************************************************/
type PdpSecurityStatus struct {
	PdpSourceTime
	SymbolIndex   uint16
	SymbolSeq     uint32
	Status        byte
	HaltCondition byte
}

func (m *PdpSecurityStatus) DecodeFromBytes(data []byte) {
	*m = PdpSecurityStatus{
		SymbolIndex: binary.BigEndian.Uint16(data[0:2]),
		PdpSourceTime: PdpSourceTime{
			SourceTime: binary.BigEndian.Uint32(data[2:6]),
			SourceUs:   binary.BigEndian.Uint16(data[6:8]),
		},
		SymbolSeq:     binary.BigEndian.Uint32(data[8:12]),
		Status:        data[12],
		HaltCondition: data[13],
	}
}

/************************************************************************/
func parseSymbol(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func auctionType(b byte) feed.CrossType {
	switch b {
	case 'O':
		return feed.CrossOpening
	case 'C':
		return feed.CrossClosing
	case 'H':
		return feed.CrossHalt
	case 'I':
		return feed.CrossIPO
	case 'R':
		return feed.CrossIntraday
	default:
		return feed.CrossNone
	}
}

func securityStatus(b byte) feed.TradingStatus {
	switch b {
	case 'O', 'T':
		return feed.StatusTrading
	case 'H':
		return feed.StatusHalted
	case 'S':
		return feed.StatusPaused
	case 'Q':
		return feed.StatusQuoteOnly
	case 'P':
		return feed.StatusPreOpen
	case 'C':
		return feed.StatusClosed
	default:
		return feed.StatusUnknown
	}
}
