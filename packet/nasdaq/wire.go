// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nasdaq

import (
	"bytes"
	"fmt"

	"github.com/google/gopacket"
	"github.com/lunixbochs/struc"

	"my/mdbook/errs"
)

// Wire structs encode ITCH messages for synthetic captures. Field order
// follows the message layout; struc packs big-endian by default.

func Stock(s string) (b [8]byte) {
	copy(b[:], fmt.Sprintf("%-8s", s))
	return
}
func Time48(ns uint64) (b [6]byte) {
	for i := 5; i >= 0; i-- {
		b[i] = byte(ns)
		ns >>= 8
	}
	return
}

type ItchSystemEventWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	EventCode byte
}

type ItchStockDirectoryWire struct {
	Type                     byte
	Locate                   uint16
	Tracking                 uint16
	Timestamp                [6]byte
	Stock                    [8]byte
	MarketCategory           byte
	FinancialStatusIndicator byte
	RoundLotSize             uint32
	RoundLotsOnly            byte
	IssueClassification      byte
	IssueSubType             [2]byte
	Authenticity             byte
	ShortSaleThreshold       byte
	IPOFlag                  byte
	LULDTier                 byte
	ETPFlag                  byte
	ETPLeverageFactor        uint32
	InverseIndicator         byte
}

type ItchStockTradingActionWire struct {
	Type         byte
	Locate       uint16
	Tracking     uint16
	Timestamp    [6]byte
	Stock        [8]byte
	TradingState byte
	Reserved     byte
	Reason       [4]byte
}

type ItchAddOrderWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
	Side      byte
	Shares    uint32
	Stock     [8]byte
	Price     uint32
}

type ItchOrderExecutedWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
	Shares    uint32
	Match     uint64
}

type ItchOrderExecutedWithPriceWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
	Shares    uint32
	Match     uint64
	Printable byte
	Price     uint32
}

type ItchOrderCancelWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
	Shares    uint32
}

type ItchOrderDeleteWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
}

type ItchOrderReplaceWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	OrigRef   uint64
	NewRef    uint64
	Shares    uint32
	Price     uint32
}

type ItchTradeWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Ref       uint64
	Side      byte
	Shares    uint32
	Stock     [8]byte
	Price     uint32
	Match     uint64
}

type ItchCrossTradeWire struct {
	Type      byte
	Locate    uint16
	Tracking  uint16
	Timestamp [6]byte
	Shares    uint64
	Stock     [8]byte
	Price     uint32
	Match     uint64
	CrossType byte
}

type ItchNOIIWire struct {
	Type           byte
	Locate         uint16
	Tracking       uint16
	Timestamp      [6]byte
	Paired         uint64
	Imbalance      uint64
	Direction      byte
	Stock          [8]byte
	Far            uint32
	Near           uint32
	Ref            uint32
	CrossType      byte
	PriceVariation byte
}

// Pack encodes one wire struct.
func Pack(m interface{}) (bs []byte, err error) {
	defer errs.PassE(&err)
	var bb bytes.Buffer
	errs.CheckE(struc.Pack(&bb, m))
	return bb.Bytes(), nil
}

// MustPack is Pack for fixtures, where a failure is a programming error.
func MustPack(m interface{}) []byte {
	bs, err := Pack(m)
	if err != nil {
		panic(err)
	}
	return bs
}

// MoldPacket frames already packed messages starting at seqNum.
func MoldPacket(session string, seqNum uint64, msgs ...[]byte) (bs []byte, err error) {
	defer errs.PassE(&err)
	type moldUDP64MessageBlock struct {
		MessageLength uint16 `struc:"sizeof=Payload"`
		Payload       []uint8
	}
	errs.Check(len(msgs) < MoldUDP64EndOfSession, "too many messages", len(msgs))
	var bb bytes.Buffer
	for _, m := range msgs {
		mb := moldUDP64MessageBlock{Payload: m}
		errs.CheckE(struc.Pack(&bb, &mb))
	}
	return serializeMold(session, seqNum, uint16(len(msgs)), bb.Bytes())
}

// MoldHeartbeat announces next as the next sequence number.
func MoldHeartbeat(session string, next uint64) ([]byte, error) {
	return serializeMold(session, next, 0, nil)
}
func MoldEndOfSession(session string, next uint64) ([]byte, error) {
	return serializeMold(session, next, MoldUDP64EndOfSession, nil)
}

func serializeMold(session string, seqNum uint64, count uint16, blocks []byte) (bs []byte, err error) {
	defer errs.PassE(&err)
	mold := MoldUDP64{
		Session:        session,
		SequenceNumber: seqNum,
		MessageCount:   count,
	}
	buf := gopacket.NewSerializeBuffer()
	errs.CheckE(gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &mold, gopacket.Payload(blocks)))
	return buf.Bytes(), nil
}
