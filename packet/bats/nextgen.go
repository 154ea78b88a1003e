// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bats

import (
	"encoding/binary"
	"fmt"

	"my/mdbook/feed"
)

// NextGen PITCH shares the sequenced unit framing but stamps every message
// with nanoseconds since the epoch and refers to symbols by numeric id.

type NextGenMessageType uint8

const (
	NextGenMessageTypeUnknown          NextGenMessageType = 0
	NextGenMessageTypeAddOrder         NextGenMessageType = 0x37
	NextGenMessageTypeOrderExecuted    NextGenMessageType = 0x38
	NextGenMessageTypeReduceSize       NextGenMessageType = 0x39
	NextGenMessageTypeSymbolDefinition NextGenMessageType = 0x3a
	NextGenMessageTypeModifyOrder      NextGenMessageType = 0x3b
	NextGenMessageTypeDeleteOrder      NextGenMessageType = 0x3c
	NextGenMessageTypeTrade            NextGenMessageType = 0x3d
	NextGenMessageTypeTradingStatus    NextGenMessageType = 0x3e
	NextGenMessageTypeAuctionSummary   NextGenMessageType = 0x3f
	NextGenMessageTypeUnitClear        NextGenMessageType = 0x40
)

const NextGenCommonLen = 10

var nextGenMessageTypes = [256]struct {
	Name string
	Size int
}{
	NextGenMessageTypeAddOrder:         {"NextGenAddOrder", 36},
	NextGenMessageTypeOrderExecuted:    {"NextGenOrderExecuted", 30},
	NextGenMessageTypeReduceSize:       {"NextGenReduceSize", 22},
	NextGenMessageTypeSymbolDefinition: {"NextGenSymbolDefinition", 22},
	NextGenMessageTypeModifyOrder:      {"NextGenModifyOrder", 31},
	NextGenMessageTypeDeleteOrder:      {"NextGenDeleteOrder", 18},
	NextGenMessageTypeTrade:            {"NextGenTrade", 43},
	NextGenMessageTypeTradingStatus:    {"NextGenTradingStatus", 18},
	NextGenMessageTypeAuctionSummary:   {"NextGenAuctionSummary", 27},
	NextGenMessageTypeUnitClear:        {"NextGenUnitClear", 10},
}

func (t NextGenMessageType) String() string {
	if n := nextGenMessageTypes[t].Name; n != "" {
		return n
	}
	return fmt.Sprintf("NextGenUnknown(%#x)", uint8(t))
}
func (t NextGenMessageType) Known() bool {
	return nextGenMessageTypes[t].Size != 0
}
func (t NextGenMessageType) Size() int {
	return nextGenMessageTypes[t].Size
}

/************************************************************************/
// NextGenMessage is a decoded NextGen message. Fields not carried by Type
// are zero.
type NextGenMessage struct {
	Length      uint8
	Type        NextGenMessageType
	Timestamp   feed.Timestamp
	OrderId     feed.RefNum
	Side        feed.Side
	Size        uint32
	SymbolId    uint32
	Symbol      string
	Price       feed.Price
	Flags       byte
	ExecutionId uint64
	Status      byte
	AuctionType byte
}

// DecodeFromBytes expects data to be at least Type.Size() long.
func (m *NextGenMessage) DecodeFromBytes(data []byte) error {
	if len(data) < NextGenCommonLen {
		return fmt.Errorf("%w: nextgen message %d bytes", feed.ErrRunt, len(data))
	}
	*m = NextGenMessage{
		Length:    data[0],
		Type:      NextGenMessageType(data[1]),
		Timestamp: feed.Timestamp(binary.LittleEndian.Uint64(data[2:10])),
	}
	if len(data) < m.Type.Size() {
		return fmt.Errorf("%w: %s %d bytes", feed.ErrRunt, m.Type, len(data))
	}
	switch m.Type {
	case NextGenMessageTypeSymbolDefinition:
		m.SymbolId = binary.LittleEndian.Uint32(data[10:14])
		m.Symbol = parseSymbol(data[14:22])
	case NextGenMessageTypeAddOrder:
		m.OrderId = refNum(data[10:18])
		m.Side = feed.SideFromByte(data[18])
		m.Size = binary.LittleEndian.Uint32(data[19:23])
		m.SymbolId = binary.LittleEndian.Uint32(data[23:27])
		m.Price = price8(data[27:35])
		m.Flags = data[35]
	case NextGenMessageTypeOrderExecuted:
		m.OrderId = refNum(data[10:18])
		m.Size = binary.LittleEndian.Uint32(data[18:22])
		m.ExecutionId = binary.LittleEndian.Uint64(data[22:30])
	case NextGenMessageTypeReduceSize:
		m.OrderId = refNum(data[10:18])
		m.Size = binary.LittleEndian.Uint32(data[18:22])
	case NextGenMessageTypeModifyOrder:
		m.OrderId = refNum(data[10:18])
		m.Size = binary.LittleEndian.Uint32(data[18:22])
		m.Price = price8(data[22:30])
		m.Flags = data[30]
	case NextGenMessageTypeDeleteOrder:
		m.OrderId = refNum(data[10:18])
	case NextGenMessageTypeTrade:
		m.OrderId = refNum(data[10:18])
		m.Side = feed.SideFromByte(data[18])
		m.Size = binary.LittleEndian.Uint32(data[19:23])
		m.SymbolId = binary.LittleEndian.Uint32(data[23:27])
		m.Price = price8(data[27:35])
		m.ExecutionId = binary.LittleEndian.Uint64(data[35:43])
	case NextGenMessageTypeTradingStatus:
		m.SymbolId = binary.LittleEndian.Uint32(data[10:14])
		m.Status = data[14]
	case NextGenMessageTypeAuctionSummary:
		m.SymbolId = binary.LittleEndian.Uint32(data[10:14])
		m.AuctionType = data[14]
		m.Price = price8(data[15:23])
		m.Size = binary.LittleEndian.Uint32(data[23:27])
	}
	return nil
}
