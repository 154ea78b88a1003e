// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package sim

import (
	"container/heap"

	"my/mdbook/feed"
)

type action uint8

const (
	actArrive action = iota
	actCancel
	actReport
)

type item struct {
	ts  feed.Timestamp
	seq uint64
	act action
	o   *order
	ev  Event
}

// eventQueue is a min-heap by (ts, seq); seq keeps items of equal time in
// the order they were scheduled.
type eventQueue []*item

var _ heap.Interface = &eventQueue{}

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].ts != q[j].ts {
		return q[i].ts < q[j].ts
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) {
	*q = append(*q, x.(*item))
}
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
