// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package decmux

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"time"

	"my/mdbook/feed"
	"my/mdbook/packet"
)

type DatagramSource interface {
	Next() (packet.Datagram, error)
}

// Input is one capture of a merge. Latency is added to every timestamp
// of the input.
type Input struct {
	Name    string
	Source  DatagramSource
	Latency time.Duration
}

type mergeItem struct {
	dg    packet.Datagram
	input int
	seq   uint64
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].dg.Time != h[j].dg.Time {
		return h[i].dg.Time < h[j].dg.Time
	}
	if h[i].input != h[j].input {
		return h[i].input < h[j].input
	}
	return h[i].seq < h[j].seq
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(mergeItem))
}
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Merger yields datagrams of all inputs in non-decreasing time order. A
// capture whose clock steps back is clamped to its latest time, so the
// order within each input is preserved.
type Merger struct {
	inputs []Input
	last   []feed.Timestamp
	h      mergeHeap
	seq    uint64
}

func NewMerger(inputs []Input) (*Merger, error) {
	m := &Merger{
		inputs: inputs,
		last:   make([]feed.Timestamp, len(inputs)),
		h:      make(mergeHeap, 0, len(inputs)),
	}
	for i := range inputs {
		if err := m.fill(i); err != nil {
			return nil, err
		}
	}
	heap.Init(&m.h)
	return m, nil
}

func (m *Merger) fill(i int) error {
	dg, err := m.inputs[i].Source.Next()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", m.inputs[i].Name, err)
	}
	if dg.Time < m.last[i] {
		dg.Time = m.last[i]
	}
	m.last[i] = dg.Time
	dg.Time += feed.Timestamp(m.inputs[i].Latency)
	m.seq++
	heap.Push(&m.h, mergeItem{dg: dg, input: i, seq: m.seq})
	return nil
}

// Next returns the earliest pending datagram, its input index, and io.EOF
// once every input is drained. The returned time includes the latency.
func (m *Merger) Next() (packet.Datagram, int, error) {
	if len(m.h) == 0 {
		return packet.Datagram{}, -1, io.EOF
	}
	it := heap.Pop(&m.h).(mergeItem)
	if err := m.fill(it.input); err != nil {
		return packet.Datagram{}, -1, err
	}
	return it.dg, it.input, nil
}

func (m *Merger) Inputs() []Input {
	return m.inputs
}
