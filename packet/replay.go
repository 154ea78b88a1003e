// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package packet

import (
	"context"
	"io"
	"time"

	"my/mdbook/errs"
)

type PacketWriter interface {
	WritePacketData(data []byte) error
}

// Replay re-sends the frames of a capture, optionally paced to Pps packets
// per second.
type Replay struct {
	DumpName string
	Limit    int
	Pps      int
	Loop     int
	Out      PacketWriter
}

func (r *Replay) Run(ctx context.Context) (sent int, err error) {
	defer errs.PassE(&err)
	loop := r.Loop
	if loop == 0 {
		loop = 1
	}
	for j := 0; j < loop; j++ {
		n, err := r.runOnce(ctx)
		sent += n
		errs.CheckE(err)
		if ctx.Err() != nil {
			return sent, nil
		}
	}
	return
}

func (r *Replay) runOnce(ctx context.Context) (sent int, err error) {
	in, err := OpenFile(r.DumpName)
	if err != nil {
		return
	}
	defer in.Close()

	start := time.Now()
	for i := 0; i < r.Limit || r.Limit == 0; i++ {
		select {
		case <-ctx.Done():
			return sent, nil
		default:
		}
		data, _, err := in.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sent, err
		}
		if err := r.Out.WritePacketData(data); err != nil {
			return sent, err
		}
		sent++
		if r.Pps != 0 {
			expected := time.Duration(i) * time.Second / time.Duration(r.Pps)
			if diff := expected - time.Since(start); diff > 0 {
				time.Sleep(diff)
			}
		}
	}
	return sent, nil
}
