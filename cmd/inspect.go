// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/jessevdk/go-flags"
	"github.com/kr/pretty"

	"my/mdbook/decmux"
	"my/mdbook/errs"
	"my/mdbook/packet"
	"my/mdbook/packet/bats"
	"my/mdbook/packet/nasdaq"
	"my/mdbook/packet/nyse"
)

var framings = map[string]gopacket.LayerType{
	"mold": nasdaq.LayerTypeMoldUDP64,
	"bsu":  bats.LayerTypeBSU,
	"pdp":  nyse.LayerTypePDP,
	"xdp":  nyse.LayerTypeXDP,
}

type cmdInspect struct {
	InputFileName  string `long:"input" short:"i" required:"y" value-name:"PCAP_FILE" description:"capture to read"`
	OutputFileName string `long:"output" short:"o" value-name:"FILE" default:"/dev/stdout" default-mask:"stdout" description:"output file"`
	Framing        string `long:"framing" short:"f" default:"mold" choice:"mold" choice:"bsu" choice:"pdp" choice:"xdp" description:"packet framing"`
	Limit          int    `long:"limit" short:"L" value-name:"NUM" description:"stop after NUM datagrams"`
	shouldExecute  bool
}

func (c *cmdInspect) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdInspect) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("inspect", "dump the framing of every datagram", "", c)
}

func init() {
	var c cmdInspect
	Registry.Register(&c)
}

func (c *cmdInspect) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	src, err := packet.OpenSource(c.InputFileName)
	errs.CheckE(err)
	defer src.Close()
	out, err := os.OpenFile(c.OutputFileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	errs.CheckE(err)
	defer func() { errs.CheckE(out.Close()) }()
	w := bufio.NewWriter(out)
	defer func() { errs.CheckE(w.Flush()) }()
	_, err = inspect(w, src, framings[c.Framing], c.Limit)
	errs.CheckE(err)
	return
}

func inspect(w io.Writer, src decmux.DatagramSource, framing gopacket.LayerType, limit int) (n int, err error) {
	defer errs.PassE(&err)
	for ; limit == 0 || n < limit; n++ {
		dg, err := src.Next()
		if err == io.EOF {
			break
		}
		errs.CheckE(err)
		_, err = fmt.Fprintf(w, "%s %s -> %s %d bytes\n", dg.Time, dg.Src, dg.Dst, len(dg.Payload))
		errs.CheckE(err)
		p := gopacket.NewPacket(dg.Payload, framing, gopacket.NoCopy)
		if l := p.Layer(framing); l != nil {
			_, err = pretty.Fprintf(w, "%# v\n", l)
			errs.CheckE(err)
		} else if el := p.ErrorLayer(); el != nil {
			_, err = fmt.Fprintf(w, "error: %v\n", el.Error())
			errs.CheckE(err)
		}
	}
	return
}
