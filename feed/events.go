// Copyright (c) Ilia Kravets, 2014-2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package feed

import (
	"errors"
	"fmt"
)

var (
	ErrRunt           = errors.New("runt packet")
	ErrUnknownMessage = errors.New("unknown message type")
)

// StreamId names one sequenced stream: a unit of a feed of a venue.
type StreamId struct {
	Venue Venue
	Feed  string
	Unit  uint32
}

func (s StreamId) String() string {
	return fmt.Sprintf("%s/%s/%d", s.Venue, s.Feed, s.Unit)
}

type Gap struct {
	Stream   StreamId
	Expected uint64
	Observed uint64
	LastTime Timestamp
	Time     Timestamp
}

// Lost is the number of messages inferred missing.
func (g Gap) Lost() uint64 {
	return g.Observed - g.Expected
}

type Timeout struct {
	Stream   StreamId
	Start    bool
	LastTime Timestamp
	Time     Timestamp
}

type FeedEventKind uint8

const (
	FeedEventUnhandled FeedEventKind = iota
	FeedEventRunt
	FeedEventSequenceReset
	FeedEventEndOfSession
	FeedEventUnitClear
	FeedEventSystem
)

func (k FeedEventKind) String() string {
	switch k {
	case FeedEventUnhandled:
		return "Unhandled"
	case FeedEventRunt:
		return "Runt"
	case FeedEventSequenceReset:
		return "SequenceReset"
	case FeedEventEndOfSession:
		return "EndOfSession"
	case FeedEventUnitClear:
		return "UnitClear"
	case FeedEventSystem:
		return "System"
	default:
		return "?"
	}
}

type FeedEvent struct {
	Stream  StreamId
	Kind    FeedEventKind
	MsgType uint16
	Code    byte
	Time    Timestamp
}

type SymbolDef struct {
	Symbol     SymbolIndex
	Name       string
	Unit       uint32
	RoundLot   uint32
	PriceScale uint8
	ExchTime   Timestamp
}

type Trade struct {
	Symbol    SymbolIndex
	Ref       RefNum
	Side      Side
	Price     Price
	Size      uint32
	MatchId   uint64
	Cross     CrossType
	Printable bool
	ExchTime  Timestamp
}

// NyseImbalance is an opening/closing auction imbalance (PDP, XDP, PITCH auction update).
type NyseImbalance struct {
	Symbol        SymbolIndex
	Auction       CrossType
	RefPrice      Price
	PairedQty     uint32
	ImbalanceQty  uint32
	Side          Side
	ClearingPrice Price
	ExchTime      Timestamp
}

// NasdaqImbalance is an ITCH net order imbalance indicator.
type NasdaqImbalance struct {
	Symbol       SymbolIndex
	PairedQty    uint64
	ImbalanceQty uint64
	Direction    Side
	FarPrice     Price
	NearPrice    Price
	RefPrice     Price
	Cross        CrossType
	ExchTime     Timestamp
}

type L2Reason uint8

const (
	L2ReasonUnknown L2Reason = iota
	L2ReasonNew
	L2ReasonChange
	L2ReasonCancel
	L2ReasonExecution
	L2ReasonRefresh
)
