// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nyse

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"

	"my/mdbook/errs"
)

// Wire structs encode PDP (big-endian) and XDP (little-endian) messages for
// synthetic captures.

var xdpWireOptions = &struc.Options{Order: binary.LittleEndian}

func Symbol11(s string) (b [11]byte) {
	copy(b[:], fmt.Sprintf("%-11s", s))
	return
}

/************************************************************************/
type PdpHeaderWire struct {
	MsgSize        uint16
	MsgType        uint16
	SeqNum         uint32
	SendTime       uint32
	ProductId      uint8
	RetransFlag    uint8
	NumBodyEntries uint8
	LinkFlag       uint8
}

type PdpSymbolMappingWire struct {
	SymbolIndex uint16
	Symbol      [11]byte
	Reserved    byte
	PriceScale  uint8
	MarketId    uint8
	RoundLot    uint16
	Filler      [6]byte
}

type PdpSecurityStatusWire struct {
	SymbolIndex   uint16
	SourceTime    uint32
	SourceUs      uint16
	SymbolSeq     uint32
	Status        byte
	HaltCondition byte
	Filler        [6]byte
}

type PdpTradeWire struct {
	SymbolIndex uint16
	SourceTime  uint32
	SourceUs    uint16
	SymbolSeq   uint32
	TradeId     uint32
	Price       uint32
	Volume      uint32
	PriceScale  uint8
	TradeCond   [4]byte
	Filler      [3]byte
}

type PdpImbalanceWire struct {
	SymbolIndex        uint16
	SourceTime         uint32
	SourceUs           uint16
	SymbolSeq          uint32
	RefPrice           uint32
	PairedQty          uint32
	TotalImbalanceQty  uint32
	MarketImbalanceQty uint32
	AuctionTime        uint16
	AuctionType        byte
	ImbalanceSide      byte
	PriceScale         uint8
	ClearingPrice      uint32
	Filler             [3]byte
}

type PdpFullUpdateWire struct {
	Size        uint16
	SymbolIndex uint16
	SourceTime  uint32
	SourceUs    uint16
	SymbolSeq   uint32
	Session     uint8
	Symbol      [11]byte
	PriceScale  uint8
	QuoteCond   byte
	Status      byte
	MPV         uint16
}

type PdpPricePointWire struct {
	Price     uint32
	Volume    uint32
	NumOrders uint16
	Side      byte
	Reserved  byte
}

type PdpDeltaUpdateWire struct {
	Size        uint16
	SymbolIndex uint16
	SourceTime  uint32
	SourceUs    uint16
	SymbolSeq   uint32
	Session     uint8
	QuoteCond   byte
	Status      byte
	PriceScale  uint8
}

type PdpDeltaPointWire struct {
	Price     uint32
	Volume    uint32
	ChgQty    uint32
	NumOrders uint16
	Side      byte
	Reason    byte
	LinkId    uint32
}

// PackPdp encodes fixed size PDP entries.
func PackPdp(ms ...interface{}) (bs []byte, err error) {
	defer errs.PassE(&err)
	var bb bytes.Buffer
	for _, m := range ms {
		errs.CheckE(struc.Pack(&bb, m))
	}
	return bb.Bytes(), nil
}

func MustPackPdp(ms ...interface{}) []byte {
	bs, err := PackPdp(ms...)
	if err != nil {
		panic(err)
	}
	return bs
}

// PdpBookEntry encodes a book update header followed by its price points
// and sets the entry size.
func PdpBookEntry(hdr interface{}, points ...interface{}) []byte {
	bs := MustPackPdp(append([]interface{}{hdr}, points...)...)
	binary.BigEndian.PutUint16(bs[0:2], uint16(len(bs)))
	return bs
}

// PdpPacket frames entries of one message type.
func PdpPacket(typ PdpMessageType, seqNum uint32, sendTime uint32, product uint8, entries ...[]byte) (bs []byte, err error) {
	defer errs.PassE(&err)
	body := bytes.Join(entries, nil)
	errs.Check(len(entries) < 256, "too many entries", len(entries))
	errs.Check(PdpHeaderLen+len(body) <= 0xffff, "packet too long", len(body))
	hdr := PdpHeaderWire{
		MsgSize:        uint16(PdpHeaderLen + len(body)),
		MsgType:        uint16(typ),
		SeqNum:         seqNum,
		SendTime:       sendTime,
		ProductId:      product,
		NumBodyEntries: uint8(len(entries)),
	}
	var bb bytes.Buffer
	errs.CheckE(struc.Pack(&bb, &hdr))
	bb.Write(body)
	return bb.Bytes(), nil
}

/************************************************************************/
type XdpHeaderWire struct {
	PktSize      uint16
	DeliveryFlag uint8
	NumMsgs      uint8
	SeqNum       uint32
	SendTime     uint32
	SendTimeNs   uint32
}

type XdpSequenceResetWire struct {
	Size       uint16
	Type       uint16
	SourceTime uint32
	SourceNs   uint32
	ProductId  uint8
	ChannelId  uint8
}

type XdpSourceTimeRefWire struct {
	Size       uint16
	Type       uint16
	Id         uint32
	SymbolSeq  uint32
	SourceTime uint32
}

type XdpSymbolIndexMappingWire struct {
	Size            uint16
	Type            uint16
	SymbolIndex     uint32
	Symbol          [11]byte
	Reserved        byte
	MarketId        uint16
	SystemId        uint8
	ExchangeCode    byte
	PriceScale      uint8
	SecurityType    byte
	LotSize         uint16
	PrevClosePrice  uint32
	PrevCloseVolume uint32
	PriceResolution uint8
	RoundLot        byte
	MPV             uint16
	UnitOfTrade     uint16
	Reserved2       uint16
}

type XdpCommonWire struct {
	Size        uint16
	Type        uint16
	SourceNs    uint32
	SymbolIndex uint32
	SymbolSeq   uint32
}

type XdpSecurityStatusWire struct {
	XdpCommonWire
	Status        byte
	HaltCondition byte
	Filler        [28]byte
}

type XdpAddOrderWire struct {
	XdpCommonWire
	OrderId  uint64
	Price    uint32
	Volume   uint32
	Side     byte
	FirmId   [5]byte
	Reserved byte
}

type XdpModifyOrderWire struct {
	XdpCommonWire
	OrderId        uint64
	Price          uint32
	Volume         uint32
	PositionChange uint8
	Side           byte
	Reserved       byte
}

type XdpDeleteOrderWire struct {
	XdpCommonWire
	OrderId uint64
	Side    byte
}

type XdpExecutionWire struct {
	XdpCommonWire
	OrderId   uint64
	TradeId   uint32
	Price     uint32
	Volume    uint32
	Printable uint8
	TradeCond [4]byte
	Reserved  byte
}

type XdpReplaceOrderWire struct {
	XdpCommonWire
	OrderId    uint64
	NewOrderId uint64
	Price      uint32
	Volume     uint32
	Side       byte
	Reserved   byte
}

type XdpImbalanceWire struct {
	XdpCommonWire
	RefPrice           uint32
	PairedQty          uint32
	TotalImbalanceQty  uint32
	MarketImbalanceQty uint32
	AuctionTime        uint16
	AuctionType        byte
	ImbalanceSide      byte
	ContinuousBook     uint32
	ClosingOnly        uint32
	SSRFilingPrice     byte
	Reserved           [3]byte
	IndicativeMatch    uint32
	Filler             [22]byte
}

type XdpNonDisplayedTradeWire struct {
	XdpCommonWire
	TradeId   uint32
	Price     uint32
	Volume    uint32
	Printable uint8
	Filler    [3]byte
}

type XdpCrossTradeWire struct {
	XdpCommonWire
	CrossId   uint32
	Price     uint32
	Volume    uint32
	CrossType byte
	Filler    [6]byte
}

// PackXdpMessage encodes one XDP message and sets its size.
func PackXdpMessage(m interface{}) (bs []byte, err error) {
	defer errs.PassE(&err)
	var bb bytes.Buffer
	errs.CheckE(struc.PackWithOptions(&bb, m, xdpWireOptions))
	bs = bb.Bytes()
	errs.Check(len(bs) >= XdpMessageHeaderLen && len(bs) <= 0xffff, "message size", len(bs))
	binary.LittleEndian.PutUint16(bs[0:2], uint16(len(bs)))
	return
}

func MustPackXdpMessage(m interface{}) []byte {
	bs, err := PackXdpMessage(m)
	if err != nil {
		panic(err)
	}
	return bs
}

// XdpPacket frames packed messages starting at seqNum.
func XdpPacket(seqNum uint32, sendTime uint32, sendNs uint32, msgs ...[]byte) (bs []byte, err error) {
	defer errs.PassE(&err)
	body := bytes.Join(msgs, nil)
	errs.Check(len(msgs) < 256, "too many messages", len(msgs))
	errs.Check(XdpHeaderLen+len(body) <= 0xffff, "packet too long", len(body))
	hdr := XdpHeaderWire{
		PktSize:    uint16(XdpHeaderLen + len(body)),
		NumMsgs:    uint8(len(msgs)),
		SeqNum:     seqNum,
		SendTime:   sendTime,
		SendTimeNs: sendNs,
	}
	var bb bytes.Buffer
	errs.CheckE(struc.PackWithOptions(&bb, &hdr, xdpWireOptions))
	bb.Write(body)
	return bb.Bytes(), nil
}
