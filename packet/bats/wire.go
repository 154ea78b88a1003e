// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/lunixbochs/struc"

	"my/mdbook/errs"
)

// Wire structs encode PITCH and NextGen messages for synthetic captures.
// Length is filled in by PackMessage.

var wireOptions = &struc.Options{Order: binary.LittleEndian}

func Symbol6(s string) (b [6]byte) {
	copy(b[:], fmt.Sprintf("%-6s", s))
	return
}
func Symbol8(s string) (b [8]byte) {
	copy(b[:], fmt.Sprintf("%-8s", s))
	return
}

type PitchCommonWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
}

type PitchTimeWire struct {
	Length uint8
	Type   uint8
	Time   uint32
}

type PitchAddOrderLongWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Side       byte
	Size       uint32
	Symbol     [6]byte
	Price      uint64
	Flags      byte
}

type PitchAddOrderShortWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Side       byte
	Size       uint16
	Symbol     [6]byte
	Price      uint16
	Flags      byte
}

type PitchAddOrderExpandedWire struct {
	Length        uint8
	Type          uint8
	TimeOffset    uint32
	OrderId       uint64
	Side          byte
	Size          uint32
	Symbol        [8]byte
	Price         uint64
	Flags         byte
	ParticipantId [4]byte
}

type PitchOrderExecutedWire struct {
	Length      uint8
	Type        uint8
	TimeOffset  uint32
	OrderId     uint64
	Size        uint32
	ExecutionId uint64
}

type PitchOrderExecutedAtPriceSizeWire struct {
	Length        uint8
	Type          uint8
	TimeOffset    uint32
	OrderId       uint64
	Size          uint32
	RemainingSize uint32
	ExecutionId   uint64
	Price         uint64
}

type PitchReduceSizeLongWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Size       uint32
}

type PitchReduceSizeShortWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Size       uint16
}

type PitchModifyOrderLongWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Size       uint32
	Price      uint64
	Flags      byte
}

type PitchModifyOrderShortWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
	Size       uint16
	Price      uint16
	Flags      byte
}

type PitchDeleteOrderWire struct {
	Length     uint8
	Type       uint8
	TimeOffset uint32
	OrderId    uint64
}

type PitchTradeLongWire struct {
	Length      uint8
	Type        uint8
	TimeOffset  uint32
	OrderId     uint64
	Side        byte
	Size        uint32
	Symbol      [6]byte
	Price       uint64
	ExecutionId uint64
}

type PitchTradeShortWire struct {
	Length      uint8
	Type        uint8
	TimeOffset  uint32
	OrderId     uint64
	Side        byte
	Size        uint16
	Symbol      [6]byte
	Price       uint16
	ExecutionId uint64
}

type PitchTradingStatusWire struct {
	Length        uint8
	Type          uint8
	TimeOffset    uint32
	Symbol        [8]byte
	TradingStatus byte
	RegShoAction  byte
	Reserved      [2]byte
}

type PitchAuctionUpdateWire struct {
	Length           uint8
	Type             uint8
	TimeOffset       uint32
	Symbol           [8]byte
	AuctionType      byte
	ReferencePrice   uint64
	BuySize          uint32
	SellSize         uint32
	IndicativePrice  uint64
	AuctionOnlyPrice uint64
}

type PitchAuctionSummaryWire struct {
	Length      uint8
	Type        uint8
	TimeOffset  uint32
	Symbol      [8]byte
	AuctionType byte
	Price       uint64
	Size        uint32
}

/************************************************************************/
type NextGenCommonWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
}

type NextGenSymbolDefinitionWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	SymbolId  uint32
	Symbol    [8]byte
}

type NextGenAddOrderWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	OrderId   uint64
	Side      byte
	Size      uint32
	SymbolId  uint32
	Price     uint64
	Flags     byte
}

type NextGenOrderExecutedWire struct {
	Length      uint8
	Type        uint8
	Timestamp   uint64
	OrderId     uint64
	Size        uint32
	ExecutionId uint64
}

type NextGenReduceSizeWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	OrderId   uint64
	Size      uint32
}

type NextGenModifyOrderWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	OrderId   uint64
	Size      uint32
	Price     uint64
	Flags     byte
}

type NextGenDeleteOrderWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	OrderId   uint64
}

type NextGenTradeWire struct {
	Length      uint8
	Type        uint8
	Timestamp   uint64
	OrderId     uint64
	Side        byte
	Size        uint32
	SymbolId    uint32
	Price       uint64
	ExecutionId uint64
}

type NextGenTradingStatusWire struct {
	Length    uint8
	Type      uint8
	Timestamp uint64
	SymbolId  uint32
	Status    byte
	Reserved  [3]byte
}

type NextGenAuctionSummaryWire struct {
	Length      uint8
	Type        uint8
	Timestamp   uint64
	SymbolId    uint32
	AuctionType byte
	Price       uint64
	Size        uint32
}

/************************************************************************/
// PackMessage encodes one wire struct and sets its length byte.
func PackMessage(m interface{}) (bs []byte, err error) {
	defer errs.PassE(&err)
	var bb bytes.Buffer
	errs.CheckE(struc.PackWithOptions(&bb, m, wireOptions))
	bs = bb.Bytes()
	errs.Check(len(bs) >= 2 && len(bs) < 256, "message size", len(bs))
	bs[0] = uint8(len(bs))
	return
}

func MustPackMessage(m interface{}) []byte {
	bs, err := PackMessage(m)
	if err != nil {
		panic(err)
	}
	return bs
}

// UnitPacket frames packed messages as one sequenced unit.
func UnitPacket(unit uint8, seqNum uint32, msgs ...[]byte) (bs []byte, err error) {
	defer errs.PassE(&err)
	errs.Check(len(msgs) < 256, "too many messages", len(msgs))
	bsu := BSU{
		Count:    uint8(len(msgs)),
		Unit:     unit,
		Sequence: seqNum,
	}
	buf := gopacket.NewSerializeBuffer()
	errs.CheckE(gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, &bsu, gopacket.Payload(bytes.Join(msgs, nil))))
	return buf.Bytes(), nil
}
