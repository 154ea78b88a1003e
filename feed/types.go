// Copyright (c) Ilia Kravets, 2014-2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package feed

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

/************************************************************************/
type Venue uint8

const (
	VenueUnknown Venue = iota
	VenueXNAS
	VenueXBOS
	VenueXPSX
	VenueXNYS
	VenueARCX
	VenueXASE
	VenueXCIS
	VenueBATS
	VenueBATY
	VenueEDGA
	VenueEDGX
	venues
)

var venueMICs = [venues]string{
	VenueUnknown: "????",
	VenueXNAS:    "XNAS",
	VenueXBOS:    "XBOS",
	VenueXPSX:    "XPSX",
	VenueXNYS:    "XNYS",
	VenueARCX:    "ARCX",
	VenueXASE:    "XASE",
	VenueXCIS:    "XCIS",
	VenueBATS:    "BATS",
	VenueBATY:    "BATY",
	VenueEDGA:    "EDGA",
	VenueEDGX:    "EDGX",
}

var ErrUnknownVenue = errors.New("unknown venue")

func (v Venue) String() string {
	if v >= venues {
		return venueMICs[VenueUnknown]
	}
	return venueMICs[v]
}
func VenueFromMIC(mic string) (Venue, error) {
	mic = strings.ToUpper(strings.TrimSpace(mic))
	for v := VenueUnknown + 1; v < venues; v++ {
		if venueMICs[v] == mic {
			return v, nil
		}
	}
	return VenueUnknown, fmt.Errorf("%w: %q", ErrUnknownVenue, mic)
}

// Venues returns every known venue in enumeration order.
func Venues() []Venue {
	vs := make([]Venue, 0, venues-1)
	for v := VenueUnknown + 1; v < venues; v++ {
		vs = append(vs, v)
	}
	return vs
}

func (v *Venue) UnmarshalFlag(value string) (err error) {
	*v, err = VenueFromMIC(value)
	return
}

/************************************************************************/
type Side byte

const (
	SideUnknown Side = 0
	SideBuy     Side = 'B'
	SideSell    Side = 'S'
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "B"
	case SideSell:
		return "S"
	default:
		return "?"
	}
}

// SideFromByte maps a wire side code. Anything unrecognized is SideUnknown.
func SideFromByte(b byte) Side {
	switch b {
	case 'B', 'b':
		return SideBuy
	case 'S', 's', 'A', 'a':
		return SideSell
	default:
		return SideUnknown
	}
}
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

/************************************************************************/
// Price is a fixed point value with PriceDecimals implied decimals.
type Price int64

const (
	PriceDecimals = 4
	PriceScale    = 10000

	// empty-side sentinels
	NoBidPrice Price = 0
	NoAskPrice Price = math.MaxInt64
)

var priceMult = [...]int64{
	1,
	10,
	100,
	1000,
	10000,
	100000,
	1000000,
	10000000,
	100000000,
	1000000000,
	10000000000,
}

var ErrPriceScale = errors.New("price scale code out of range")

// PriceFromScaled converts num / 10^scale to the canonical representation.
// Digits below PriceDecimals are truncated.
func PriceFromScaled(num int64, scale uint8) (Price, error) {
	if int(scale) >= len(priceMult) {
		return 0, fmt.Errorf("%w: %d", ErrPriceScale, scale)
	}
	if scale <= PriceDecimals {
		return Price(num * priceMult[PriceDecimals-scale]), nil
	}
	return Price(num / priceMult[scale-PriceDecimals]), nil
}
func PriceFrom2Dec(price2d int64) Price {
	return Price(price2d * 100)
}
func PriceFrom4Dec(price4d int64) Price {
	return Price(price4d)
}
func (p Price) ToInt(decimals int) int64 {
	if decimals >= PriceDecimals {
		return int64(p) * priceMult[decimals-PriceDecimals]
	}
	return int64(p) / priceMult[PriceDecimals-decimals]
}
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceDecimals)
}
func (p Price) String() string {
	switch p {
	case NoAskPrice:
		return "NoAsk"
	default:
		return p.Decimal().StringFixed(PriceDecimals)
	}
}
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return Price(d.Shift(PriceDecimals).IntPart()), nil
}

// Better reports whether p has matching priority over q on side s.
func (p Price) Better(q Price, s Side) bool {
	if s == SideBuy {
		return p > q
	}
	return p < q
}

// Through reports whether p is at or better than limit on side s.
func (p Price) Through(limit Price, s Side) bool {
	return p == limit || p.Better(limit, s)
}

/************************************************************************/
// Timestamp is nanoseconds since the unix epoch.
type Timestamp int64

func TimestampFromTime(t time.Time) Timestamp {
	if t.IsZero() {
		return 0
	}
	return Timestamp(t.UnixNano())
}
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d)
}
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t - u)
}
func (t Timestamp) String() string {
	return t.Time().Format("15:04:05.000000000")
}

var exchangeZone = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Midnight is the start of t's trading day in exchange local time. Feeds
// stamping messages with time of day are offset from it.
func (t Timestamp) Midnight() Timestamp {
	lt := t.Time().In(exchangeZone)
	y, m, d := lt.Date()
	return TimestampFromTime(time.Date(y, m, d, 0, 0, 0, 0, exchangeZone))
}

/************************************************************************/
// SymbolIndex is the per-venue, per-session dense symbol identifier.
// Zero is never assigned.
type SymbolIndex uint32

const SymbolUnknown SymbolIndex = 0

type RefNum uint64

func (r RefNum) String() string {
	return fmt.Sprintf("%#x", uint64(r))
}

/************************************************************************/
type TradingStatus uint8

const (
	StatusUnknown TradingStatus = iota
	StatusTrading
	StatusHalted
	StatusPaused
	StatusQuoteOnly
	StatusPreOpen
	StatusClosed
)

var tradingStatusNames = [...]string{
	StatusUnknown:   "Unknown",
	StatusTrading:   "Trading",
	StatusHalted:    "Halted",
	StatusPaused:    "Paused",
	StatusQuoteOnly: "QuoteOnly",
	StatusPreOpen:   "PreOpen",
	StatusClosed:    "Closed",
}

func (s TradingStatus) String() string {
	if int(s) < len(tradingStatusNames) {
		return tradingStatusNames[s]
	}
	return tradingStatusNames[StatusUnknown]
}

/************************************************************************/
type CrossType uint8

const (
	CrossNone CrossType = iota
	CrossOpening
	CrossClosing
	CrossHalt
	CrossIPO
	CrossIntraday
)

func (c CrossType) String() string {
	switch c {
	case CrossNone:
		return "None"
	case CrossOpening:
		return "Opening"
	case CrossClosing:
		return "Closing"
	case CrossHalt:
		return "Halt"
	case CrossIPO:
		return "IPO"
	case CrossIntraday:
		return "Intraday"
	default:
		return "?"
	}
}

/************************************************************************/
// SessionFlags mark which trading sessions an order participates in.
type SessionFlags uint8

const (
	SessionPreMarket SessionFlags = 1 << iota
	SessionRegular
	SessionPostMarket

	SessionAll = SessionPreMarket | SessionRegular | SessionPostMarket
)

type TimeInForce uint8

const (
	TifDay TimeInForce = iota
	TifIOC
	TifGTC
	TifOnOpen
	TifOnClose
	TifImbalanceOnly
)

func (t TimeInForce) AuctionOnly() bool {
	return t == TifOnOpen || t == TifOnClose || t == TifImbalanceOnly
}
