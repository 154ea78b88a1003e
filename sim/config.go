// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package sim

import (
	"errors"
	"fmt"
	"time"

	"my/mdbook/config"
)

var ErrUnknownPolicy = errors.New("unknown cancel policy")

// CancelPolicy decides how a canceled real size is split between the real
// liquidity ahead of and behind a simulated order. Intra-level priority is
// not observable, so both are approximations.
type CancelPolicy uint8

const (
	// CancelAheadFirst takes canceled size from the front of the queue.
	CancelAheadFirst CancelPolicy = iota
	// CancelProportional splits it by the ahead/behind ratio.
	CancelProportional
)

func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch s {
	case "", "ahead_first":
		return CancelAheadFirst, nil
	case "proportional":
		return CancelProportional, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}
func (p CancelPolicy) String() string {
	if p == CancelProportional {
		return "proportional"
	}
	return "ahead_first"
}

type Config struct {
	// AckLatency is the time from Send until the order is live and the ack
	// is reported.
	AckLatency time.Duration
	// CancelLatency is the time from Cancel until the cancel takes effect.
	CancelLatency time.Duration
	// FillLatency delays the report of a passive fill after the market event
	// that caused it.
	FillLatency  time.Duration
	CancelPolicy CancelPolicy
}

var DefaultConfig = Config{
	AckLatency:    100 * time.Microsecond,
	CancelLatency: 100 * time.Microsecond,
	FillLatency:   50 * time.Microsecond,
}

// ConfigFromSnapshot reads the sim.* keys; absent keys keep their defaults.
func ConfigFromSnapshot(s *config.Snapshot) (cfg Config, err error) {
	cfg = DefaultConfig
	d := s.Domain("sim")
	if cfg.AckLatency, err = d.DurationOr("latency.ack", cfg.AckLatency); err != nil {
		return
	}
	if cfg.CancelLatency, err = d.DurationOr("latency.cancel", cfg.CancelLatency); err != nil {
		return
	}
	if cfg.FillLatency, err = d.DurationOr("latency.fill", cfg.FillLatency); err != nil {
		return
	}
	policy, err := d.StringOr("cancel_policy", "")
	if err != nil {
		return
	}
	cfg.CancelPolicy, err = ParseCancelPolicy(policy)
	return
}
