// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package packet

import (
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// BufferedObtainer holds a whole capture in memory so it can be read
// repeatedly, e.g. by backtests sweeping parameters.
type BufferedObtainer struct {
	index    int
	data     [][]byte
	ci       []gopacket.CaptureInfo
	linkType layers.LinkType
}

var _ Obtainer = &BufferedObtainer{}

func NewBufferedObtainer(p Obtainer) (*BufferedObtainer, error) {
	b := &BufferedObtainer{linkType: p.LinkType()}
	for {
		data, ci, err := p.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b.data = append(b.data, data)
		b.ci = append(b.ci, ci)
	}
	return b, nil
}
func (b *BufferedObtainer) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	if b.index >= len(b.data) {
		err = io.EOF
		return
	}
	data = b.data[b.index]
	ci = b.ci[b.index]
	b.index++
	return
}
func (b *BufferedObtainer) Reset() {
	b.index = 0
}
func (b *BufferedObtainer) LinkType() layers.LinkType {
	return b.linkType
}
func (b *BufferedObtainer) Packets() int {
	return len(b.ci)
}
