// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package sim

import (
	"errors"
	"fmt"

	"my/mdbook/feed"
)

var (
	ErrUnknownOrder   = errors.New("unknown order")
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrOrderDone      = errors.New("order is not open")
)

type OrderId uint64

type Order struct {
	Id     OrderId
	Symbol string
	Side   feed.Side
	Price  feed.Price
	Size   uint32
	Tif    feed.TimeInForce
}

func (o Order) String() string {
	return fmt.Sprintf("#%d %s %s %d@%s", o.Id, o.Symbol, o.Side, o.Size, o.Price)
}

func (o Order) validate() error {
	switch {
	case o.Symbol == "":
		return fmt.Errorf("%w: no symbol", ErrInvalidOrder)
	case !o.Side.Valid():
		return fmt.Errorf("%w: side %s", ErrInvalidOrder, o.Side)
	case o.Size == 0:
		return fmt.Errorf("%w: zero size", ErrInvalidOrder)
	case o.Price <= feed.NoBidPrice || o.Price >= feed.NoAskPrice:
		return fmt.Errorf("%w: price %s", ErrInvalidOrder, o.Price)
	}
	return nil
}

type OrderState uint8

const (
	StateNewAndUnsent OrderState = iota
	StateSent
	StateAcked
	StatePartiallyFilled
	StatePendingCancel
	StateFilled
	StateCancelled
	StateRemotelyRejected
	StateLocallyRejected
)

var orderStateNames = [...]string{
	StateNewAndUnsent:     "NewAndUnsent",
	StateSent:             "Sent",
	StateAcked:            "Acked",
	StatePartiallyFilled:  "PartiallyFilled",
	StatePendingCancel:    "PendingCancel",
	StateFilled:           "Filled",
	StateCancelled:        "Cancelled",
	StateRemotelyRejected: "RemotelyRejected",
	StateLocallyRejected:  "LocallyRejected",
}

func (s OrderState) String() string {
	if int(s) < len(orderStateNames) {
		return orderStateNames[s]
	}
	return fmt.Sprintf("OrderState(%d)", s)
}
func (s OrderState) Terminal() bool {
	return s >= StateFilled
}

// Status is an order as the strategy sees it: only reports delivered so far
// are reflected.
type Status struct {
	Order
	State  OrderState
	Filled uint32
}

type EventKind uint8

const (
	EventAck EventKind = iota
	EventFill
	EventCancel
	EventReject
	EventCancelReject
)

var eventKindNames = [...]string{
	EventAck:          "Ack",
	EventFill:         "Fill",
	EventCancel:       "Cancel",
	EventReject:       "Reject",
	EventCancelReject: "CancelReject",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// Event is an order report delivered to the strategy.
type Event struct {
	Kind   EventKind
	Id     OrderId
	Symbol string
	// State is the order state after the report is applied.
	State OrderState
	// Price and Size describe the fill, or the canceled size.
	Price  feed.Price
	Size   uint32
	Leaves uint32
	Reason string
	Time   feed.Timestamp
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s #%d %s", e.Time, e.Kind, e.Id, e.State)
	switch e.Kind {
	case EventFill:
		s += fmt.Sprintf(" %d@%s leaves=%d", e.Size, e.Price, e.Leaves)
	case EventCancel:
		s += fmt.Sprintf(" %d", e.Size)
	case EventReject, EventCancelReject:
		s += " " + e.Reason
	}
	return s
}
