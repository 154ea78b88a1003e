// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"my/mdbook/errs"
	"my/mdbook/packet"
)

type cmdReplay struct {
	InputFileName   string `long:"input" short:"i" required:"y" value-name:"PCAP_FILE" description:"input pcap file to read"`
	OutputInterface string `long:"iface" required:"y" value-name:"IFACE" description:"output interface name"`
	Pps             int    `long:"pps"   short:"p" value-name:"NUM" description:"packets per second"`
	Limit           int    `long:"limit" short:"L" value-name:"NUM" description:"stop after NUM packets"`
	Loop            int    `long:"loop"  short:"l" value-name:"NUM" description:"loop NUM times"`
	shouldExecute   bool
}

func (c *cmdReplay) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdReplay) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("replay", "replay pcap dump", "", c)
}

func (c *cmdReplay) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	out, err := packet.OpenInterface(c.OutputInterface)
	errs.CheckE(err)
	defer out.Close()
	r := packet.Replay{
		DumpName: c.InputFileName,
		Limit:    c.Limit,
		Pps:      c.Pps,
		Loop:     c.Loop,
		Out:      out,
	}
	ctx, cancel := interruptible()
	defer cancel()
	sent, err := r.Run(ctx)
	logger.Info("replay done", zap.String("iface", c.OutputInterface), zap.Int("sent", sent))
	errs.CheckE(err)
	return
}

func init() {
	var c cmdReplay
	Registry.Register(&c)
}
