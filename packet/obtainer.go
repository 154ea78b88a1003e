// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package packet reads captured and live frames and extracts the UDP
// datagrams carrying exchange feeds.
package packet

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pierrec/lz4"

	"my/mdbook/errs"
)

type Obtainer interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

var ErrUnknownCaptureFormat = errors.New("unknown capture file format")

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// NewObtainer detects pcap or pcapng on r.
func NewObtainer(r io.Reader) (ob Obtainer, err error) {
	defer errs.PassE(&err)
	br := bufio.NewReaderSize(r, 1<<16)
	magic, err := br.Peek(4)
	errs.CheckE(err)
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		errs.CheckE(err)
		return ng, nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, ErrUnknownCaptureFormat
	}
	return pr, nil
}

type fileObtainer struct {
	Obtainer
	file *os.File
}

func (f *fileObtainer) Close() error {
	return f.file.Close()
}

// ObtainerCloser is an obtainer owning an open file.
type ObtainerCloser interface {
	Obtainer
	io.Closer
}

// OpenFile opens a pcap or pcapng capture, LZ4 framed if the name ends
// with .lz4.
func OpenFile(name string) (oc ObtainerCloser, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()
	var r io.Reader = f
	if strings.HasSuffix(name, ".lz4") {
		r = lz4.NewReader(f)
	}
	ob, err := NewObtainer(r)
	if err != nil {
		return nil, err
	}
	return &fileObtainer{Obtainer: ob, file: f}, nil
}
