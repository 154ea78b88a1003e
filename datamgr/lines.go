// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package datamgr

import (
	"fmt"
	"net/netip"
)

// presets name the multicast groups of whole feeds.
var presets = map[string]func() []string{
	"nasdaq": func() (addrs []string) {
		for i := 0; i < 4; i++ {
			addrs = append(addrs, fmt.Sprintf("233.54.12.%d:%d", 1+i, 18001+i))
		}
		return
	},
	"bats": func() (addrs []string) {
		for i := 0; i < 32; i++ {
			addrs = append(addrs, fmt.Sprintf("224.0.131.%d:%d", i/4, 30101+i))
		}
		return
	},
	"bats-b": func() (addrs []string) {
		for i := 0; i < 32; i++ {
			addrs = append(addrs, fmt.Sprintf("233.130.124.%d:%d", i/4, 30101+i))
		}
		return
	},
}

// ParseLines expands every entry, a preset name or a group:port address.
func ParseLines(names []string) ([]netip.AddrPort, error) {
	var lines []netip.AddrPort
	for _, name := range names {
		addrs := []string{name}
		if p, ok := presets[name]; ok {
			addrs = p()
		}
		for _, a := range addrs {
			ap, err := netip.ParseAddrPort(a)
			if err != nil {
				return nil, err
			}
			if !ap.Addr().Is4() {
				return nil, fmt.Errorf("%s: not an IPv4 address", a)
			}
			lines = append(lines, ap)
		}
	}
	return lines, nil
}
