// Copyright (c) Ilia Kravets, 2014-2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package feed

// Notifier receives sequencing conditions.
type Notifier interface {
	Gap(Gap)
	Timeout(Timeout)
	FeedEvent(FeedEvent)
}

// Sink is what a decoder drives. Calls between PacketStart and PacketEnd
// belong to one physical packet.
type Sink interface {
	Notifier
	PacketStart(t Timestamp)
	PacketEnd(t Timestamp)
	DefineSymbol(def SymbolDef)
	Trade(t Trade)
	TradingStatus(sym SymbolIndex, status TradingStatus, exch Timestamp)
	NyseImbalance(im NyseImbalance)
	NasdaqImbalance(im NasdaqImbalance)
}

// L3Sink takes order-by-order updates. Zero sym means the decoder does not
// know the symbol and the mux must resolve it from ref.
type L3Sink interface {
	Sink
	AddOrder(sym SymbolIndex, ref RefNum, side Side, price Price, size uint32, exch Timestamp)
	ExecuteOrder(sym SymbolIndex, ref RefNum, size uint32, price Price, printable bool, matchId uint64, exch Timestamp)
	CancelOrder(sym SymbolIndex, ref RefNum, size uint32, exch Timestamp)
	DeleteOrder(sym SymbolIndex, ref RefNum, exch Timestamp)
	ReplaceOrder(sym SymbolIndex, oldRef, newRef RefNum, price Price, size uint32, exch Timestamp)
	ModifyOrder(sym SymbolIndex, ref RefNum, price Price, size uint32, exch Timestamp)
	ClearUnit(stream StreamId, exch Timestamp)
}

// L2Sink takes aggregated post-update level sizes.
type L2Sink interface {
	Sink
	L2Level(sym SymbolIndex, side Side, price Price, size uint64, orders uint32, reason L2Reason, exch Timestamp)
	L2Clear(sym SymbolIndex, exch Timestamp)
}
