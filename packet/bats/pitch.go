// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package bats

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/gopacket"

	"my/mdbook/feed"
)

/************************************************************************/
type PitchMessageType uint8

func (a PitchMessageType) String() string {
	if n := PitchMessageTypeMetadata[a].Name; n != "" {
		return n
	}
	return fmt.Sprintf("PitchUnknown(%#x)", uint8(a))
}
func (a PitchMessageType) LayerType() gopacket.LayerType {
	return PitchMessageTypeMetadata[a].LayerType
}

// Known reports whether a has a defined layout.
func (a PitchMessageType) Known() bool {
	return a != PitchMessageTypeUnknown && PitchMessageTypeMetadata[a].Size != 0
}
func (a PitchMessageType) Size() int {
	return PitchMessageTypeMetadata[a].Size
}

/************************************************************************/
const (
	PitchMessageTypeUnknown                  PitchMessageType = 0 // not a protocol message, catch-all
	PitchMessageTypeTime                     PitchMessageType = 0x20
	PitchMessageTypeAddOrderLong             PitchMessageType = 0x21
	PitchMessageTypeAddOrderShort            PitchMessageType = 0x22
	PitchMessageTypeOrderExecuted            PitchMessageType = 0x23
	PitchMessageTypeOrderExecutedAtPriceSize PitchMessageType = 0x24
	PitchMessageTypeReduceSizeLong           PitchMessageType = 0x25
	PitchMessageTypeReduceSizeShort          PitchMessageType = 0x26
	PitchMessageTypeModifyOrderLong          PitchMessageType = 0x27
	PitchMessageTypeModifyOrderShort         PitchMessageType = 0x28
	PitchMessageTypeDeleteOrder              PitchMessageType = 0x29
	PitchMessageTypeTradeLong                PitchMessageType = 0x2a
	PitchMessageTypeTradeShort               PitchMessageType = 0x2b
	PitchMessageTypeTradeBreak               PitchMessageType = 0x2c
	PitchMessageTypeEndOfSession             PitchMessageType = 0x2d
	PitchMessageTypeAddOrderExpanded         PitchMessageType = 0x2f
	PitchMessageTypeTradeExpanded            PitchMessageType = 0x30
	PitchMessageTypeTradingStatus            PitchMessageType = 0x31
	PitchMessageTypeAuctionUpdate            PitchMessageType = 0x95
	PitchMessageTypeAuctionSummary           PitchMessageType = 0x96
	PitchMessageTypeUnitClear                PitchMessageType = 0x97
	PitchMessageTypeRetailPriceImprovement   PitchMessageType = 0x98
)

type pitchMessageTypeInfo struct {
	Name    string
	Size    int
	Creator func() PitchMessage
}

var pitchMessageTypes = [256]pitchMessageTypeInfo{
	PitchMessageTypeUnknown:                  {"PitchUnknown", 0, func() PitchMessage { return &PitchMessageUnknown{} }},
	PitchMessageTypeTime:                     {"PitchTime", 6, func() PitchMessage { return &PitchMessageTime{} }},
	PitchMessageTypeAddOrderLong:             {"PitchAddOrderLong", 34, func() PitchMessage { return &PitchMessageAddOrder{} }},
	PitchMessageTypeAddOrderShort:            {"PitchAddOrderShort", 26, func() PitchMessage { return &PitchMessageAddOrder{} }},
	PitchMessageTypeOrderExecuted:            {"PitchOrderExecuted", 26, func() PitchMessage { return &PitchMessageOrderExecuted{} }},
	PitchMessageTypeOrderExecutedAtPriceSize: {"PitchOrderExecutedAtPriceSize", 38, func() PitchMessage { return &PitchMessageOrderExecutedAtPriceSize{} }},
	PitchMessageTypeReduceSizeLong:           {"PitchReduceSizeLong", 18, func() PitchMessage { return &PitchMessageReduceSize{} }},
	PitchMessageTypeReduceSizeShort:          {"PitchReduceSizeShort", 16, func() PitchMessage { return &PitchMessageReduceSize{} }},
	PitchMessageTypeModifyOrderLong:          {"PitchModifyOrderLong", 27, func() PitchMessage { return &PitchMessageModifyOrder{} }},
	PitchMessageTypeModifyOrderShort:         {"PitchModifyOrderShort", 19, func() PitchMessage { return &PitchMessageModifyOrder{} }},
	PitchMessageTypeDeleteOrder:              {"PitchDeleteOrder", 14, func() PitchMessage { return &PitchMessageDeleteOrder{} }},
	PitchMessageTypeTradeLong:                {"PitchTradeLong", 41, func() PitchMessage { return &PitchMessageTrade{} }},
	PitchMessageTypeTradeShort:               {"PitchTradeShort", 33, func() PitchMessage { return &PitchMessageTrade{} }},
	PitchMessageTypeTradeBreak:               {"PitchTradeBreak", 14, func() PitchMessage { return &PitchMessageTradeBreak{} }},
	PitchMessageTypeEndOfSession:             {"PitchEndOfSession", 6, func() PitchMessage { return &PitchMessageUnknown{} }},
	PitchMessageTypeAddOrderExpanded:         {"PitchAddOrderExpanded", 40, func() PitchMessage { return &PitchMessageAddOrder{} }},
	PitchMessageTypeTradeExpanded:            {"PitchTradeExpanded", 43, func() PitchMessage { return &PitchMessageTrade{} }},
	PitchMessageTypeTradingStatus:            {"PitchTradingStatus", 18, func() PitchMessage { return &PitchMessageTradingStatus{} }},
	PitchMessageTypeAuctionUpdate:            {"PitchAuctionUpdate", 47, func() PitchMessage { return &PitchMessageAuctionUpdate{} }},
	PitchMessageTypeAuctionSummary:           {"PitchAuctionSummary", 27, func() PitchMessage { return &PitchMessageAuctionSummary{} }},
	PitchMessageTypeUnitClear:                {"PitchUnitClear", 6, func() PitchMessage { return &PitchMessageUnknown{} }},
	PitchMessageTypeRetailPriceImprovement:   {"PitchRetailPriceImprovement", 15, func() PitchMessage { return &PitchMessageRetailPriceImprovement{} }},
}

type PitchMessageTypeInfo struct {
	Name        string
	Size        int
	LayerType   gopacket.LayerType
	CreateLayer func() PitchMessage
}

var PitchMessageTypeMetadata [256]PitchMessageTypeInfo
var LayerClassPitch gopacket.LayerClass

const PITCH_LAYERS_BASE_NUM = 12100

func init() {
	layerTypes := make([]gopacket.LayerType, 0, 256)
	for i := 0; i < 256; i++ {
		info := pitchMessageTypes[i]
		if info.Name == "" {
			continue
		}
		pitchMessageType := PitchMessageType(i)
		layerType := gopacket.RegisterLayerType(PITCH_LAYERS_BASE_NUM+i, gopacket.LayerTypeMetadata{
			Name:    info.Name,
			Decoder: gopacket.DecodeFunc(decodePitch),
		})
		layerTypes = append(layerTypes, layerType)
		creator := info.Creator
		PitchMessageTypeMetadata[i] = PitchMessageTypeInfo{
			Name:      info.Name,
			Size:      info.Size,
			LayerType: layerType,
			CreateLayer: func() PitchMessage {
				m := creator()
				m.Base().Type = pitchMessageType
				return m
			},
		}
	}
	for i := 0; i < 256; i++ {
		if PitchMessageTypeMetadata[i].Name == "" {
			// unknown message type
			PitchMessageTypeMetadata[i] = PitchMessageTypeMetadata[PitchMessageTypeUnknown]
			PitchMessageTypeMetadata[i].Name = ""
		}
	}
	LayerClassPitch = gopacket.NewLayerClass(layerTypes)
}

func decodePitch(data []byte, p gopacket.PacketBuilder) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: pitch message %d bytes", feed.ErrRunt, len(data))
	}
	t := PitchMessageType(data[1])
	if len(data) < t.Size() {
		return fmt.Errorf("%w: %s %d bytes", feed.ErrRunt, t, len(data))
	}
	layer := PitchMessageTypeMetadata[t].CreateLayer()
	if err := layer.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(layer)
	return p.NextDecoder(layer.NextLayerType())
}

/************************************************************************/
type PitchMessage interface {
	gopacket.DecodingLayer
	//embed gopacket.Layer by "inlining"
	//workaround for https://github.com/golang/go/issues/6977
	LayerType() gopacket.LayerType
	LayerContents() []byte

	Base() *PitchMessageCommon
}

type PitchMessageCommon struct {
	Contents   []byte
	Length     uint8
	Type       PitchMessageType
	TimeOffset uint32
}

func (m *PitchMessageCommon) CanDecode() gopacket.LayerClass {
	return m.LayerType()
}
func (m *PitchMessageCommon) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}
func (m *PitchMessageCommon) LayerContents() []byte {
	return m.Contents
}
func (m *PitchMessageCommon) LayerPayload() []byte {
	return nil
}
func (m *PitchMessageCommon) LayerType() gopacket.LayerType {
	return m.Type.LayerType()
}
func (m *PitchMessageCommon) Base() *PitchMessageCommon {
	return m
}

func decodePitchMessage(data []byte) PitchMessageCommon {
	m := PitchMessageCommon{
		Contents: data,
		Length:   data[0],
		Type:     PitchMessageType(data[1]),
	}
	if m.Type != PitchMessageTypeTime && len(data) >= 6 {
		m.TimeOffset = binary.LittleEndian.Uint32(data[2:6])
	}
	return m
}

/************************************************************************/
type PitchMessageUnknown struct {
	PitchMessageCommon
}

func (m *PitchMessageUnknown) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageUnknown{
		PitchMessageCommon: decodePitchMessage(data),
	}
	return nil
}

/************************************************************************/
type PitchMessageTime struct {
	PitchMessageCommon
	Time uint32 // seconds since midnight
}

func (m *PitchMessageTime) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageTime{
		PitchMessageCommon: decodePitchMessage(data),
		Time:               binary.LittleEndian.Uint32(data[2:6]),
	}
	return nil
}

/************************************************************************/
type PitchMessageAddOrder struct {
	PitchMessageCommon
	OrderId       feed.RefNum
	Side          feed.Side
	Size          uint32
	Symbol        string
	Price         feed.Price
	Flags         byte
	ParticipantId [4]byte
}

func (m *PitchMessageAddOrder) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageAddOrder{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
		Side:               feed.SideFromByte(data[14]),
	}
	switch m.Type {
	case PitchMessageTypeAddOrderShort:
		m.Size = uint32(binary.LittleEndian.Uint16(data[15:17]))
		m.Symbol = parseSymbol(data[17:23])
		m.Price = price2(data[23:25])
		m.Flags = data[25]
	case PitchMessageTypeAddOrderLong:
		m.Size = binary.LittleEndian.Uint32(data[15:19])
		m.Symbol = parseSymbol(data[19:25])
		m.Price = price8(data[25:33])
		m.Flags = data[33]
	case PitchMessageTypeAddOrderExpanded:
		m.Size = binary.LittleEndian.Uint32(data[15:19])
		m.Symbol = parseSymbol(data[19:27])
		m.Price = price8(data[27:35])
		m.Flags = data[35]
		copy(m.ParticipantId[:], data[36:40])
	}
	return nil
}

/************************************************************************/
type PitchMessageOrderExecuted struct {
	PitchMessageCommon
	OrderId     feed.RefNum
	Size        uint32
	ExecutionId uint64
}

func (m *PitchMessageOrderExecuted) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageOrderExecuted{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
		Size:               binary.LittleEndian.Uint32(data[14:18]),
		ExecutionId:        binary.LittleEndian.Uint64(data[18:26]),
	}
	return nil
}

/************************************************************************/
type PitchMessageOrderExecutedAtPriceSize struct {
	PitchMessageOrderExecuted
	RemainingSize uint32
	Price         feed.Price
}

func (m *PitchMessageOrderExecutedAtPriceSize) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageOrderExecutedAtPriceSize{
		PitchMessageOrderExecuted: PitchMessageOrderExecuted{
			PitchMessageCommon: decodePitchMessage(data),
			OrderId:            refNum(data[6:14]),
			Size:               binary.LittleEndian.Uint32(data[14:18]),
			ExecutionId:        binary.LittleEndian.Uint64(data[22:30]),
		},
		RemainingSize: binary.LittleEndian.Uint32(data[18:22]),
		Price:         price8(data[30:38]),
	}
	return nil
}

/************************************************************************/
type PitchMessageReduceSize struct {
	PitchMessageCommon
	OrderId feed.RefNum
	Size    uint32
}

func (m *PitchMessageReduceSize) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageReduceSize{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
	}
	switch m.Type {
	case PitchMessageTypeReduceSizeLong:
		m.Size = binary.LittleEndian.Uint32(data[14:18])
	case PitchMessageTypeReduceSizeShort:
		m.Size = uint32(binary.LittleEndian.Uint16(data[14:16]))
	}
	return nil
}

/************************************************************************/
type PitchMessageModifyOrder struct {
	PitchMessageCommon
	OrderId feed.RefNum
	Size    uint32
	Price   feed.Price
	Flags   byte
}

func (m *PitchMessageModifyOrder) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageModifyOrder{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
	}
	switch m.Type {
	case PitchMessageTypeModifyOrderLong:
		m.Size = binary.LittleEndian.Uint32(data[14:18])
		m.Price = price8(data[18:26])
		m.Flags = data[26]
	case PitchMessageTypeModifyOrderShort:
		m.Size = uint32(binary.LittleEndian.Uint16(data[14:16]))
		m.Price = price2(data[16:18])
		m.Flags = data[18]
	}
	return nil
}

/************************************************************************/
type PitchMessageDeleteOrder struct {
	PitchMessageCommon
	OrderId feed.RefNum
}

func (m *PitchMessageDeleteOrder) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageDeleteOrder{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
	}
	return nil
}

/************************************************************************/
type PitchMessageTrade struct {
	PitchMessageCommon
	OrderId     feed.RefNum
	Side        feed.Side
	Size        uint32
	Symbol      string
	Price       feed.Price
	ExecutionId uint64
}

func (m *PitchMessageTrade) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageTrade{
		PitchMessageCommon: decodePitchMessage(data),
		OrderId:            refNum(data[6:14]),
		Side:               feed.SideFromByte(data[14]),
	}
	switch m.Type {
	case PitchMessageTypeTradeShort:
		m.Size = uint32(binary.LittleEndian.Uint16(data[15:17]))
		m.Symbol = parseSymbol(data[17:23])
		m.Price = price2(data[23:25])
		m.ExecutionId = binary.LittleEndian.Uint64(data[25:33])
	case PitchMessageTypeTradeLong:
		m.Size = binary.LittleEndian.Uint32(data[15:19])
		m.Symbol = parseSymbol(data[19:25])
		m.Price = price8(data[25:33])
		m.ExecutionId = binary.LittleEndian.Uint64(data[33:41])
	case PitchMessageTypeTradeExpanded:
		m.Size = binary.LittleEndian.Uint32(data[15:19])
		m.Symbol = parseSymbol(data[19:27])
		m.Price = price8(data[27:35])
		m.ExecutionId = binary.LittleEndian.Uint64(data[35:43])
	}
	return nil
}

/************************************************************************/
type PitchMessageTradeBreak struct {
	PitchMessageCommon
	ExecutionId uint64
}

func (m *PitchMessageTradeBreak) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageTradeBreak{
		PitchMessageCommon: decodePitchMessage(data),
		ExecutionId:        binary.LittleEndian.Uint64(data[6:14]),
	}
	return nil
}

/************************************************************************/
type PitchMessageTradingStatus struct {
	PitchMessageCommon
	Symbol        string
	TradingStatus byte
	RegShoAction  byte
	Reserved      [2]byte
}

func (m *PitchMessageTradingStatus) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageTradingStatus{
		PitchMessageCommon: decodePitchMessage(data),
		Symbol:             parseSymbol(data[6:14]),
		TradingStatus:      data[14],
		RegShoAction:       data[15],
		Reserved:           [2]byte{data[16], data[17]},
	}
	return nil
}

/************************************************************************/
type PitchMessageAuctionUpdate struct {
	PitchMessageCommon
	Symbol           string
	AuctionType      byte
	ReferencePrice   feed.Price
	BuySize          uint32
	SellSize         uint32
	IndicativePrice  feed.Price
	AuctionOnlyPrice feed.Price
}

func (m *PitchMessageAuctionUpdate) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageAuctionUpdate{
		PitchMessageCommon: decodePitchMessage(data),
		Symbol:             parseSymbol(data[6:14]),
		AuctionType:        data[14],
		ReferencePrice:     price8(data[15:23]),
		BuySize:            binary.LittleEndian.Uint32(data[23:27]),
		SellSize:           binary.LittleEndian.Uint32(data[27:31]),
		IndicativePrice:    price8(data[31:39]),
		AuctionOnlyPrice:   price8(data[39:47]),
	}
	return nil
}

// Imbalance folds the buy and sell interest into paired and imbalance
// quantities.
func (m *PitchMessageAuctionUpdate) Imbalance(sym feed.SymbolIndex, exch feed.Timestamp) feed.NyseImbalance {
	im := feed.NyseImbalance{
		Symbol:        sym,
		Auction:       auctionType(m.AuctionType),
		RefPrice:      m.ReferencePrice,
		ClearingPrice: m.IndicativePrice,
		ExchTime:      exch,
	}
	switch {
	case m.BuySize > m.SellSize:
		im.PairedQty, im.ImbalanceQty, im.Side = m.SellSize, m.BuySize-m.SellSize, feed.SideBuy
	case m.SellSize > m.BuySize:
		im.PairedQty, im.ImbalanceQty, im.Side = m.BuySize, m.SellSize-m.BuySize, feed.SideSell
	default:
		im.PairedQty = m.BuySize
	}
	return im
}

/************************************************************************/
type PitchMessageAuctionSummary struct {
	PitchMessageCommon
	Symbol      string
	AuctionType byte
	Price       feed.Price
	Size        uint32
}

func (m *PitchMessageAuctionSummary) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageAuctionSummary{
		PitchMessageCommon: decodePitchMessage(data),
		Symbol:             parseSymbol(data[6:14]),
		AuctionType:        data[14],
		Price:              price8(data[15:23]),
		Size:               binary.LittleEndian.Uint32(data[23:27]),
	}
	return nil
}

/************************************************************************/
type PitchMessageRetailPriceImprovement struct {
	PitchMessageCommon
	Symbol                 string
	RetailPriceImprovement byte
}

func (m *PitchMessageRetailPriceImprovement) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	*m = PitchMessageRetailPriceImprovement{
		PitchMessageCommon:     decodePitchMessage(data),
		Symbol:                 parseSymbol(data[6:14]),
		RetailPriceImprovement: data[14],
	}
	return nil
}

/************************************************************************/
func parseSymbol(data []byte) string {
	return strings.TrimRight(string(data), " \x00")
}
func refNum(b []byte) feed.RefNum {
	return feed.RefNum(binary.LittleEndian.Uint64(b))
}
func price2(b []byte) feed.Price {
	return feed.PriceFrom2Dec(int64(binary.LittleEndian.Uint16(b)))
}
func price8(b []byte) feed.Price {
	return feed.PriceFrom4Dec(int64(binary.LittleEndian.Uint64(b)))
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
	default:
		return feed.CrossNone
	}
}
func tradingStatus(b byte) feed.TradingStatus {
	switch b {
	case 'T':
		return feed.StatusTrading
	case 'H':
		return feed.StatusHalted
	case 'Q':
		return feed.StatusQuoteOnly
	case 'S':
		return feed.StatusPaused
	default:
		return feed.StatusUnknown
	}
}
