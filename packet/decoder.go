// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package packet

import (
	"time"

	"go.uber.org/zap"

	"my/mdbook/feed"
	"my/mdbook/seq"
)

// Decoder turns the payloads of one feed into sink calls.
//
// Decode returns the number of bytes consumed, zero for heartbeats and other
// packets that carry no book state. A packet failing length validation is
// dropped as a whole and reported with feed.ErrRunt.
type Decoder interface {
	Decode(payload []byte, t feed.Timestamp) (int, error)
	CheckTimeouts(now feed.Timestamp)
	Streams() []*seq.Stream
}

type DecoderOptions struct {
	Feed    string        // stream name, defaults to the protocol name
	Timeout time.Duration // data timeout, 0 disables
	Unit    uint32        // stream unit for framings that carry none
	Logger  *zap.Logger
}

func (o DecoderOptions) WithDefaults(protocol string) DecoderOptions {
	if o.Feed == "" {
		o.Feed = protocol
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ReportRunt logs a dropped packet and surfaces it to the sink.
func ReportRunt(sink feed.Notifier, logger *zap.Logger, stream feed.StreamId, err error, t feed.Timestamp) {
	logger.Warn("runt packet dropped",
		zap.Stringer("venue", stream.Venue),
		zap.String("feed", stream.Feed),
		zap.Uint32("unit", stream.Unit),
		zap.Error(err))
	sink.FeedEvent(feed.FeedEvent{Stream: stream, Kind: feed.FeedEventRunt, Time: t})
}

// ReportUnhandled surfaces a message the decoder has no layout for.
func ReportUnhandled(sink feed.Notifier, logger *zap.Logger, stream feed.StreamId, msgType uint16, t feed.Timestamp) {
	logger.Debug("unhandled message",
		zap.Stringer("venue", stream.Venue),
		zap.String("feed", stream.Feed),
		zap.Uint32("unit", stream.Unit),
		zap.Uint16("type", msgType))
	sink.FeedEvent(feed.FeedEvent{Stream: stream, Kind: feed.FeedEventUnhandled, MsgType: msgType, Time: t})
}
