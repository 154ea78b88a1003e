// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

//go:build linux && cgo

package packet

import (
	"github.com/google/gopacket/afpacket"
)

type ifaceWriter struct {
	*afpacket.TPacket
}

func (w ifaceWriter) Close() error {
	w.TPacket.Close()
	return nil
}

// OpenInterface opens an AF_PACKET socket for sending frames on iface.
func OpenInterface(iface string) (interface {
	PacketWriter
	Close() error
}, error) {
	h, err := afpacket.NewTPacket(afpacket.OptInterface(iface))
	if err != nil {
		return nil, err
	}
	return ifaceWriter{h}, nil
}
