// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

//go:build !linux || !cgo

package packet

import "errors"

func OpenInterface(iface string) (interface {
	PacketWriter
	Close() error
}, error) {
	return nil, errors.New("raw interface output is only supported on linux with cgo")
}
