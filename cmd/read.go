// Copyright (c) Ilia Kravets, 2015. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"bufio"
	"io"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"my/mdbook/anal"
	"my/mdbook/bookmux"
	"my/mdbook/errs"
	"my/mdbook/rec"
)

type cmdRead struct {
	configOpts
	inputOpts
	TobFileName   string `long:"tob" value-name:"FILE" description:"write top of book changes"`
	PrintFileName string `long:"print" short:"p" value-name:"FILE" description:"write every book event"`
	Verbose       bool   `long:"verbose-print" description:"dump payloads of feed events"`
	AnalDir       string `long:"anal" value-name:"DIR" description:"write book statistics"`
	shouldExecute bool
}

func (c *cmdRead) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdRead) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("read", "replay captures through the books", "", c)
}

func init() {
	var c cmdRead
	Registry.Register(&c)
}

func (c *cmdRead) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	s, err := c.load()
	errs.CheckE(err)
	files, lat, err := c.files(s)
	errs.CheckE(err)
	dm, err := newManager(s)
	errs.CheckE(err)
	dm.UseFiles(files, lat)

	var flush []func() error
	output := func(name string, newListener func(io.Writer) bookmux.Listener) {
		out, err := createOutput(name)
		errs.CheckE(err)
		if out == nil {
			return
		}
		w := bufio.NewWriter(out)
		flush = append(flush, w.Flush, out.Close)
		dm.Register(newListener(w))
	}
	output(c.TobFileName, func(w io.Writer) bookmux.Listener { return rec.NewTobLogger(w) })
	output(c.PrintFileName, func(w io.Writer) bookmux.Listener {
		p := rec.NewPrinter(w)
		p.Verbose = c.Verbose
		return p
	})
	defer func() {
		for _, f := range flush {
			errs.CheckE(f())
		}
	}()
	ls := rec.NewLastSales()
	dm.Register(ls)
	var a *anal.Analyzer
	if c.AnalDir != "" {
		a = anal.NewAnalyzer()
		a.AddOrderHashFunction(func(ref uint64) uint64 { return ref & 0xffff })
		dm.Register(a)
	}

	ctx, cancel := interruptible()
	defer cancel()
	errs.CheckE(dm.ReadData(ctx))

	for _, m := range dm.Muxes() {
		changes := 0
		for _, sym := range m.Symbols() {
			changes += ls.Changes(sym)
		}
		logger.Info("replayed",
			zap.Stringer("venue", m.Venue()),
			zap.Int("symbols", len(m.Symbols())),
			zap.Int("last_sale_changes", changes))
	}
	if a != nil {
		r := anal.NewReporter(a)
		errs.CheckE(r.SetOutputDir(c.AnalDir))
		errs.CheckE(r.SaveAll())
	}
	return
}
