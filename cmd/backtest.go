// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"my/mdbook/bookmux"
	"my/mdbook/datamgr"
	"my/mdbook/errs"
	"my/mdbook/feed"
	"my/mdbook/sim"
)

type cmdBacktest struct {
	configOpts
	inputOpts
	OrdersFileName string     `long:"orders" required:"y" value-name:"FILE" description:"yaml script of orders and cancels"`
	Venue          feed.Venue `long:"venue" required:"y" value-name:"MIC" description:"venue to simulate"`
	OutputFileName string     `long:"output" short:"o" value-name:"FILE" description:"order reports, stdout if not set"`
	shouldExecute  bool
}

func (c *cmdBacktest) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdBacktest) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("backtest", "simulate orders against replayed data", "", c)
}

func init() {
	var c cmdBacktest
	Registry.Register(&c)
}

func (c *cmdBacktest) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	s, err := c.load()
	errs.CheckE(err)
	cfg, err := sim.ConfigFromSnapshot(s)
	errs.CheckE(err)
	in, err := os.Open(c.OrdersFileName)
	errs.CheckE(err)
	steps, err := readScript(in)
	in.Close()
	errs.CheckE(err)

	files, lat, err := c.files(s)
	errs.CheckE(err)
	dm, err := newManager(s)
	errs.CheckE(err)
	dm.UseFiles(files, lat)

	var w io.Writer = os.Stdout
	out, err := createOutput(c.OutputFileName)
	errs.CheckE(err)
	if out != nil {
		defer out.Close()
		w = out
	}
	bw := bufio.NewWriter(w)
	defer func() {
		errs.CheckE(bw.Flush())
	}()

	ctx, cancel := interruptible()
	defer cancel()
	_, err = backtest(ctx, dm, c.Venue, cfg, steps, bw)
	errs.CheckE(err)
	return
}

// backtest replays the manager's data through a session on venue, running
// the script against it. Reports are written to w one per line.
func backtest(ctx context.Context, dm *datamgr.Manager, venue feed.Venue, cfg sim.Config, steps []scriptStep, w io.Writer) (sess *sim.Session, err error) {
	var mux bookmux.Mux
	if m, ok := dm.GetL3(venue); ok {
		mux = m
	} else if m, ok := dm.GetL2(venue); ok {
		mux = m
	} else {
		return nil, fmt.Errorf("no feed configured for %s", venue)
	}
	var werr error
	sess = sim.New(mux, cfg,
		sim.WithLogger(logger),
		sim.WithHandler(func(e sim.Event) {
			if werr == nil {
				_, werr = fmt.Fprintln(w, e)
			}
		}))
	runner := newScriptRunner(sess, mux.Venue(), steps)
	mux.Register(sess)
	mux.Register(runner)
	dm.AddTimer(sess)
	dm.AddTimer(runner)

	if err = dm.ReadData(ctx); err != nil {
		return
	}
	sess.Flush()
	if n := runner.remaining(); n > 0 {
		logger.Warn("script steps not reached", zap.Int("steps", n))
	}
	return sess, werr
}

var errBadStep = errors.New("bad script step")

// scriptEntry is one element of the orders file. A non-zero Cancel makes it
// a cancel request; otherwise it is a new order.
type scriptEntry struct {
	At     string `yaml:"at"`
	Id     uint64 `yaml:"id"`
	Cancel uint64 `yaml:"cancel"`
	Symbol string `yaml:"symbol"`
	Side   string `yaml:"side"`
	Price  string `yaml:"price"`
	Size   uint32 `yaml:"size"`
	Tif    string `yaml:"tif"`
}

type scriptStep struct {
	at     time.Duration
	order  sim.Order
	cancel sim.OrderId
}

var tifNames = map[string]feed.TimeInForce{
	"":      feed.TifDay,
	"day":   feed.TifDay,
	"ioc":   feed.TifIOC,
	"gtc":   feed.TifGTC,
	"open":  feed.TifOnOpen,
	"close": feed.TifOnClose,
	"io":    feed.TifImbalanceOnly,
}

// parseTimeOfDay parses "15:04:05" with an optional fraction into the offset
// from midnight.
func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05.999999999", s)
	if err != nil {
		return 0, err
	}
	return t.Sub(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)), nil
}

func (e *scriptEntry) step() (st scriptStep, err error) {
	if st.at, err = parseTimeOfDay(e.At); err != nil {
		return
	}
	if e.Cancel != 0 {
		st.cancel = sim.OrderId(e.Cancel)
		return
	}
	if e.Id == 0 {
		return st, fmt.Errorf("%w: order at %s has no id", errBadStep, e.At)
	}
	tif, ok := tifNames[strings.ToLower(e.Tif)]
	if !ok {
		return st, fmt.Errorf("%w: tif %q", errBadStep, e.Tif)
	}
	var side feed.Side
	if e.Side != "" {
		side = feed.SideFromByte(e.Side[0])
	}
	price, err := feed.ParsePrice(e.Price)
	if err != nil {
		return st, fmt.Errorf("%w: order %d: %v", errBadStep, e.Id, err)
	}
	st.order = sim.Order{
		Id:     sim.OrderId(e.Id),
		Symbol: e.Symbol,
		Side:   side,
		Price:  price,
		Size:   e.Size,
		Tif:    tif,
	}
	return
}

// readScript decodes the orders file; steps are returned in time order,
// keeping file order for equal times.
func readScript(r io.Reader) ([]scriptStep, error) {
	var entries []scriptEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, err
	}
	steps := make([]scriptStep, 0, len(entries))
	for i := range entries {
		st, err := entries[i].step()
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].at < steps[j].at })
	return steps, nil
}

// scriptRunner submits the script to the session as market time passes.
// Register it after the session so the session clock is current.
type scriptRunner struct {
	bookmux.NopListener
	sess  *sim.Session
	venue feed.Venue
	steps []scriptStep
	next  int
}

func newScriptRunner(sess *sim.Session, venue feed.Venue, steps []scriptStep) *scriptRunner {
	return &scriptRunner{sess: sess, venue: venue, steps: steps}
}

func (r *scriptRunner) remaining() int {
	return len(r.steps) - r.next
}

func (r *scriptRunner) run(now feed.Timestamp) {
	midnight := now.Midnight()
	for ; r.next < len(r.steps); r.next++ {
		st := r.steps[r.next]
		if midnight.Add(st.at) > now {
			return
		}
		var err error
		if st.cancel != 0 {
			err = r.sess.Cancel(st.cancel)
		} else {
			err = r.sess.Send(st.order)
		}
		if err != nil {
			logger.Warn("script step failed", zap.Stringer("at", now), zap.Error(err))
		}
	}
}

func (r *scriptRunner) OnPacketStart(v feed.Venue, t feed.Timestamp) {
	if v == r.venue {
		r.run(t)
	}
}
func (r *scriptRunner) OnTimer(now feed.Timestamp) {
	r.run(now)
}
