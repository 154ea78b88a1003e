// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package nasdaq

import (
	"encoding/binary"
	"fmt"
	"strings"

	"my/mdbook/feed"
)

/************************************************************************/
type ItchMessageType uint8

const (
	ItchMessageTypeUnknown                ItchMessageType = 0 // not a protocol message, catch-all
	ItchMessageTypeSystemEvent            ItchMessageType = 'S'
	ItchMessageTypeStockDirectory         ItchMessageType = 'R'
	ItchMessageTypeStockTradingAction     ItchMessageType = 'H'
	ItchMessageTypeRegSHO                 ItchMessageType = 'Y'
	ItchMessageTypeParticipantPosition    ItchMessageType = 'L'
	ItchMessageTypeMWCBDecline            ItchMessageType = 'V'
	ItchMessageTypeMWCBStatus             ItchMessageType = 'W'
	ItchMessageTypeIPOQuotingPeriod       ItchMessageType = 'K'
	ItchMessageTypeLULDCollar             ItchMessageType = 'J'
	ItchMessageTypeOperationalHalt        ItchMessageType = 'h'
	ItchMessageTypeAddOrder               ItchMessageType = 'A'
	ItchMessageTypeAddOrderMPID           ItchMessageType = 'F'
	ItchMessageTypeOrderExecuted          ItchMessageType = 'E'
	ItchMessageTypeOrderExecutedWithPrice ItchMessageType = 'C'
	ItchMessageTypeOrderCancel            ItchMessageType = 'X'
	ItchMessageTypeOrderDelete            ItchMessageType = 'D'
	ItchMessageTypeOrderReplace           ItchMessageType = 'U'
	ItchMessageTypeTrade                  ItchMessageType = 'P'
	ItchMessageTypeCrossTrade             ItchMessageType = 'Q'
	ItchMessageTypeBrokenTrade            ItchMessageType = 'B'
	ItchMessageTypeNOII                   ItchMessageType = 'I'
	ItchMessageTypeRPII                   ItchMessageType = 'N'
)

type itchMessageTypeMetadata struct {
	Name   string
	Size   int
	Create func() ItchMessage
}

var ItchMessageTypeMetadata = [256]itchMessageTypeMetadata{
	ItchMessageTypeUnknown:                {"ItchUnknown", ItchCommonLen, func() ItchMessage { return &ItchMessageUnknown{} }},
	ItchMessageTypeSystemEvent:            {"ItchSystemEvent", 12, func() ItchMessage { return &ItchMessageSystemEvent{} }},
	ItchMessageTypeStockDirectory:         {"ItchStockDirectory", 39, func() ItchMessage { return &ItchMessageStockDirectory{} }},
	ItchMessageTypeStockTradingAction:     {"ItchStockTradingAction", 25, func() ItchMessage { return &ItchMessageStockTradingAction{} }},
	ItchMessageTypeRegSHO:                 {"ItchRegSHO", 20, func() ItchMessage { return &ItchMessageStockInfo{} }},
	ItchMessageTypeParticipantPosition:    {"ItchParticipantPosition", 26, func() ItchMessage { return &ItchMessageParticipantPosition{} }},
	ItchMessageTypeMWCBDecline:            {"ItchMWCBDecline", 35, func() ItchMessage { return &ItchMessageUnknown{} }},
	ItchMessageTypeMWCBStatus:             {"ItchMWCBStatus", 12, func() ItchMessage { return &ItchMessageUnknown{} }},
	ItchMessageTypeIPOQuotingPeriod:       {"ItchIPOQuotingPeriod", 28, func() ItchMessage { return &ItchMessageStockInfo{} }},
	ItchMessageTypeLULDCollar:             {"ItchLULDCollar", 35, func() ItchMessage { return &ItchMessageStockInfo{} }},
	ItchMessageTypeOperationalHalt:        {"ItchOperationalHalt", 21, func() ItchMessage { return &ItchMessageOperationalHalt{} }},
	ItchMessageTypeAddOrder:               {"ItchAddOrder", 36, func() ItchMessage { return &ItchMessageAddOrder{} }},
	ItchMessageTypeAddOrderMPID:           {"ItchAddOrderMPID", 40, func() ItchMessage { return &ItchMessageAddOrder{} }},
	ItchMessageTypeOrderExecuted:          {"ItchOrderExecuted", 31, func() ItchMessage { return &ItchMessageOrderExecuted{} }},
	ItchMessageTypeOrderExecutedWithPrice: {"ItchOrderExecutedWithPrice", 36, func() ItchMessage { return &ItchMessageOrderExecuted{} }},
	ItchMessageTypeOrderCancel:            {"ItchOrderCancel", 23, func() ItchMessage { return &ItchMessageOrderCancel{} }},
	ItchMessageTypeOrderDelete:            {"ItchOrderDelete", 19, func() ItchMessage { return &ItchMessageOrderDelete{} }},
	ItchMessageTypeOrderReplace:           {"ItchOrderReplace", 35, func() ItchMessage { return &ItchMessageOrderReplace{} }},
	ItchMessageTypeTrade:                  {"ItchTrade", 44, func() ItchMessage { return &ItchMessageTrade{} }},
	ItchMessageTypeCrossTrade:             {"ItchCrossTrade", 40, func() ItchMessage { return &ItchMessageCrossTrade{} }},
	ItchMessageTypeBrokenTrade:            {"ItchBrokenTrade", 19, func() ItchMessage { return &ItchMessageBrokenTrade{} }},
	ItchMessageTypeNOII:                   {"ItchNOII", 50, func() ItchMessage { return &ItchMessageNOII{} }},
	ItchMessageTypeRPII:                   {"ItchRPII", 20, func() ItchMessage { return &ItchMessageStockInfo{} }},
}

func (t ItchMessageType) String() string {
	if n := ItchMessageTypeMetadata[t].Name; n != "" {
		return n
	}
	return fmt.Sprintf("ItchUnknown(%#x)", uint8(t))
}

// Known reports whether t has a defined layout.
func (t ItchMessageType) Known() bool {
	return t != ItchMessageTypeUnknown && ItchMessageTypeMetadata[t].Create != nil
}

// Size is the fixed length of the message, 0 if unknown.
func (t ItchMessageType) Size() int {
	if !t.Known() {
		return 0
	}
	return ItchMessageTypeMetadata[t].Size
}

/************************************************************************/
type ItchMessage interface {
	Base() *ItchMessageCommon
	DecodeFromBytes(data []byte) error
}

const ItchCommonLen = 11

type ItchMessageCommon struct {
	Type           ItchMessageType
	StockLocate    uint16
	TrackingNumber uint16
	Timestamp      uint64 // ns since midnight
}

func (m *ItchMessageCommon) Base() *ItchMessageCommon {
	return m
}

func decodeItchMessage(data []byte) ItchMessageCommon {
	return ItchMessageCommon{
		Type:           ItchMessageType(data[0]),
		StockLocate:    binary.BigEndian.Uint16(data[1:3]),
		TrackingNumber: binary.BigEndian.Uint16(data[3:5]),
		Timestamp:      uint48(data[5:11]),
	}
}

func uint48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 | uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}
func parseStock(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
func refNum(b []byte) feed.RefNum {
	return feed.RefNum(binary.BigEndian.Uint64(b))
}
func price4(b []byte) feed.Price {
	return feed.PriceFrom4Dec(int64(binary.BigEndian.Uint32(b)))
}

/************************************************************************/
type ItchMessageUnknown struct {
	ItchMessageCommon
}

func (m *ItchMessageUnknown) DecodeFromBytes(data []byte) error {
	*m = ItchMessageUnknown{
		ItchMessageCommon: decodeItchMessage(data),
	}
	return nil
}

/************************************************************************/
type ItchMessageSystemEvent struct {
	ItchMessageCommon
	EventCode byte
}

func (m *ItchMessageSystemEvent) DecodeFromBytes(data []byte) error {
	*m = ItchMessageSystemEvent{
		ItchMessageCommon: decodeItchMessage(data),
		EventCode:         data[11],
	}
	return nil
}

/************************************************************************/
type ItchMessageStockDirectory struct {
	ItchMessageCommon
	Stock                       string
	MarketCategory              byte
	FinancialStatusIndicator    byte
	RoundLotSize                uint32
	RoundLotsOnly               byte
	IssueClassification         byte
	IssueSubType                [2]byte
	Authenticity                byte
	ShortSaleThresholdIndicator byte
	IPOFlag                     byte
	LULDReferencePriceTier      byte
	ETPFlag                     byte
	ETPLeverageFactor           uint32
	InverseIndicator            byte
}

func (m *ItchMessageStockDirectory) DecodeFromBytes(data []byte) error {
	*m = ItchMessageStockDirectory{
		ItchMessageCommon:           decodeItchMessage(data),
		Stock:                       parseStock(data[11:19]),
		MarketCategory:              data[19],
		FinancialStatusIndicator:    data[20],
		RoundLotSize:                binary.BigEndian.Uint32(data[21:25]),
		RoundLotsOnly:               data[25],
		IssueClassification:         data[26],
		Authenticity:                data[29],
		ShortSaleThresholdIndicator: data[30],
		IPOFlag:                     data[31],
		LULDReferencePriceTier:      data[32],
		ETPFlag:                     data[33],
		ETPLeverageFactor:           binary.BigEndian.Uint32(data[34:38]),
		InverseIndicator:            data[38],
	}
	copy(m.IssueSubType[:], data[27:29])
	return nil
}

/************************************************************************/
type ItchMessageStockTradingAction struct {
	ItchMessageCommon
	Stock        string
	TradingState byte
	Reason       string
}

func (m *ItchMessageStockTradingAction) DecodeFromBytes(data []byte) error {
	*m = ItchMessageStockTradingAction{
		ItchMessageCommon: decodeItchMessage(data),
		Stock:             parseStock(data[11:19]),
		TradingState:      data[19],
		Reason:            parseStock(data[21:25]),
	}
	return nil
}
func (m *ItchMessageStockTradingAction) Status() feed.TradingStatus {
	switch m.TradingState {
	case 'T':
		return feed.StatusTrading
	case 'H':
		return feed.StatusHalted
	case 'P':
		return feed.StatusPaused
	case 'Q':
		return feed.StatusQuoteOnly
	default:
		return feed.StatusUnknown
	}
}

/************************************************************************/
// ItchMessageStockInfo covers the per-stock informational messages that do
// not affect the book (Reg SHO, IPO quoting, LULD collars, RPII).
type ItchMessageStockInfo struct {
	ItchMessageCommon
	Stock string
}

func (m *ItchMessageStockInfo) DecodeFromBytes(data []byte) error {
	*m = ItchMessageStockInfo{
		ItchMessageCommon: decodeItchMessage(data),
		Stock:             parseStock(data[11:19]),
	}
	return nil
}

/************************************************************************/
type ItchMessageParticipantPosition struct {
	ItchMessageCommon
	MPID  string
	Stock string
	State byte
}

func (m *ItchMessageParticipantPosition) DecodeFromBytes(data []byte) error {
	*m = ItchMessageParticipantPosition{
		ItchMessageCommon: decodeItchMessage(data),
		MPID:              parseStock(data[11:15]),
		Stock:             parseStock(data[15:23]),
		State:             data[25],
	}
	return nil
}

/************************************************************************/
type ItchMessageOperationalHalt struct {
	ItchMessageCommon
	Stock      string
	MarketCode byte
	Action     byte
}

func (m *ItchMessageOperationalHalt) DecodeFromBytes(data []byte) error {
	*m = ItchMessageOperationalHalt{
		ItchMessageCommon: decodeItchMessage(data),
		Stock:             parseStock(data[11:19]),
		MarketCode:        data[19],
		Action:            data[20],
	}
	return nil
}

/************************************************************************/
type ItchMessageAddOrder struct {
	ItchMessageCommon
	OrderReferenceNumber feed.RefNum
	Side                 feed.Side
	Shares               uint32
	Stock                string
	Price                feed.Price
	Attribution          string
}

func (m *ItchMessageAddOrder) DecodeFromBytes(data []byte) error {
	*m = ItchMessageAddOrder{
		ItchMessageCommon:    decodeItchMessage(data),
		OrderReferenceNumber: refNum(data[11:19]),
		Side:                 feed.SideFromByte(data[19]),
		Shares:               binary.BigEndian.Uint32(data[20:24]),
		Stock:                parseStock(data[24:32]),
		Price:                price4(data[32:36]),
	}
	if m.Type == ItchMessageTypeAddOrderMPID {
		m.Attribution = parseStock(data[36:40])
	}
	return nil
}

/************************************************************************/
type ItchMessageOrderExecuted struct {
	ItchMessageCommon
	OrderReferenceNumber feed.RefNum
	ExecutedShares       uint32
	MatchNumber          uint64
	Printable            bool
	ExecutionPrice       feed.Price
}

func (m *ItchMessageOrderExecuted) DecodeFromBytes(data []byte) error {
	*m = ItchMessageOrderExecuted{
		ItchMessageCommon:    decodeItchMessage(data),
		OrderReferenceNumber: refNum(data[11:19]),
		ExecutedShares:       binary.BigEndian.Uint32(data[19:23]),
		MatchNumber:          binary.BigEndian.Uint64(data[23:31]),
		Printable:            true,
	}
	if m.Type == ItchMessageTypeOrderExecutedWithPrice {
		m.Printable = data[31] == 'Y'
		m.ExecutionPrice = price4(data[32:36])
	}
	return nil
}

/************************************************************************/
type ItchMessageOrderCancel struct {
	ItchMessageCommon
	OrderReferenceNumber feed.RefNum
	CanceledShares       uint32
}

func (m *ItchMessageOrderCancel) DecodeFromBytes(data []byte) error {
	*m = ItchMessageOrderCancel{
		ItchMessageCommon:    decodeItchMessage(data),
		OrderReferenceNumber: refNum(data[11:19]),
		CanceledShares:       binary.BigEndian.Uint32(data[19:23]),
	}
	return nil
}

/************************************************************************/
type ItchMessageOrderDelete struct {
	ItchMessageCommon
	OrderReferenceNumber feed.RefNum
}

func (m *ItchMessageOrderDelete) DecodeFromBytes(data []byte) error {
	*m = ItchMessageOrderDelete{
		ItchMessageCommon:    decodeItchMessage(data),
		OrderReferenceNumber: refNum(data[11:19]),
	}
	return nil
}

/************************************************************************/
type ItchMessageOrderReplace struct {
	ItchMessageCommon
	OriginalOrderReferenceNumber feed.RefNum
	NewOrderReferenceNumber      feed.RefNum
	Shares                       uint32
	Price                        feed.Price
}

func (m *ItchMessageOrderReplace) DecodeFromBytes(data []byte) error {
	*m = ItchMessageOrderReplace{
		ItchMessageCommon:            decodeItchMessage(data),
		OriginalOrderReferenceNumber: refNum(data[11:19]),
		NewOrderReferenceNumber:      refNum(data[19:27]),
		Shares:                       binary.BigEndian.Uint32(data[27:31]),
		Price:                        price4(data[31:35]),
	}
	return nil
}

/************************************************************************/
type ItchMessageTrade struct {
	ItchMessageCommon
	OrderReferenceNumber feed.RefNum
	Side                 feed.Side
	Shares               uint32
	Stock                string
	Price                feed.Price
	MatchNumber          uint64
}

func (m *ItchMessageTrade) DecodeFromBytes(data []byte) error {
	*m = ItchMessageTrade{
		ItchMessageCommon:    decodeItchMessage(data),
		OrderReferenceNumber: refNum(data[11:19]),
		Side:                 feed.SideFromByte(data[19]),
		Shares:               binary.BigEndian.Uint32(data[20:24]),
		Stock:                parseStock(data[24:32]),
		Price:                price4(data[32:36]),
		MatchNumber:          binary.BigEndian.Uint64(data[36:44]),
	}
	return nil
}

/************************************************************************/
type ItchMessageCrossTrade struct {
	ItchMessageCommon
	Shares      uint64
	Stock       string
	CrossPrice  feed.Price
	MatchNumber uint64
	CrossType   byte
}

func (m *ItchMessageCrossTrade) DecodeFromBytes(data []byte) error {
	*m = ItchMessageCrossTrade{
		ItchMessageCommon: decodeItchMessage(data),
		Shares:            binary.BigEndian.Uint64(data[11:19]),
		Stock:             parseStock(data[19:27]),
		CrossPrice:        price4(data[27:31]),
		MatchNumber:       binary.BigEndian.Uint64(data[31:39]),
		CrossType:         data[39],
	}
	return nil
}

func crossType(b byte) feed.CrossType {
	switch b {
	case 'O':
		return feed.CrossOpening
	case 'C':
		return feed.CrossClosing
	case 'H':
		return feed.CrossHalt
	case 'I':
		return feed.CrossIntraday
	case 'A':
		return feed.CrossIPO
	default:
		return feed.CrossNone
	}
}

/************************************************************************/
type ItchMessageBrokenTrade struct {
	ItchMessageCommon
	MatchNumber uint64
}

func (m *ItchMessageBrokenTrade) DecodeFromBytes(data []byte) error {
	*m = ItchMessageBrokenTrade{
		ItchMessageCommon: decodeItchMessage(data),
		MatchNumber:       binary.BigEndian.Uint64(data[11:19]),
	}
	return nil
}

/************************************************************************/
type ItchMessageNOII struct {
	ItchMessageCommon
	PairedShares        uint64
	ImbalanceShares     uint64
	ImbalanceDirection  byte
	Stock               string
	FarPrice            feed.Price
	NearPrice           feed.Price
	CurrentReferencePx  feed.Price
	CrossType           byte
	PriceVariationIndic byte
}

func (m *ItchMessageNOII) DecodeFromBytes(data []byte) error {
	*m = ItchMessageNOII{
		ItchMessageCommon:   decodeItchMessage(data),
		PairedShares:        binary.BigEndian.Uint64(data[11:19]),
		ImbalanceShares:     binary.BigEndian.Uint64(data[19:27]),
		ImbalanceDirection:  data[27],
		Stock:               parseStock(data[28:36]),
		FarPrice:            price4(data[36:40]),
		NearPrice:           price4(data[40:44]),
		CurrentReferencePx:  price4(data[44:48]),
		CrossType:           data[48],
		PriceVariationIndic: data[49],
	}
	return nil
}
