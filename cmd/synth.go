// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"my/mdbook/errs"
	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/packet/bats"
	"my/mdbook/packet/nasdaq"
)

type cmdSynth struct {
	ScenarioFileName string `long:"scenario" short:"s" required:"y" value-name:"FILE" description:"yaml scenario"`
	OutputFileName   string `long:"output" short:"o" required:"y" value-name:"PCAP_FILE" description:"capture to write"`
	shouldExecute    bool
}

func (c *cmdSynth) Execute(args []string) error {
	c.shouldExecute = true
	return nil
}

func (c *cmdSynth) ConfigParser(parser *flags.Parser) {
	parser.AddCommand("synth", "write a capture from a scenario", "", c)
}

func init() {
	var c cmdSynth
	Registry.Register(&c)
}

func (c *cmdSynth) ParsingFinished() (err error) {
	if !c.shouldExecute {
		return
	}
	defer errs.PassE(&err)
	in, err := os.Open(c.ScenarioFileName)
	errs.CheckE(err)
	sc, err := readScenario(in)
	in.Close()
	errs.CheckE(err)
	out, err := createOutput(c.OutputFileName)
	errs.CheckE(err)
	n, err := synthesize(out, sc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	errs.CheckE(err)
	logger.Info("capture written", zap.String("file", c.OutputFileName), zap.Int("packets", n))
	return
}

var errBadEvent = errors.New("bad scenario event")

type scenarioFeed struct {
	Protocol string `yaml:"protocol"`
	Dst      string `yaml:"dst"`
	Session  string `yaml:"session"`
	Unit     uint8  `yaml:"unit"`
}

type scenarioEvent struct {
	At     string `yaml:"at"`
	Feed   string `yaml:"feed"`
	Type   string `yaml:"type"`
	Symbol string `yaml:"symbol"`
	Locate uint16 `yaml:"locate"`
	Ref    uint64 `yaml:"ref"`
	Side   string `yaml:"side"`
	Size   uint32 `yaml:"size"`
	Price  string `yaml:"price"`
	Match  uint64 `yaml:"match"`
}

// scenario is a day of hand-written feed traffic. Every event becomes one
// packet on its feed.
type scenario struct {
	Date   string                  `yaml:"date"`
	Feeds  map[string]scenarioFeed `yaml:"feeds"`
	Events []scenarioEvent         `yaml:"events"`
}

func readScenario(r io.Reader) (*scenario, error) {
	var sc scenario
	if err := yaml.NewDecoder(r).Decode(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// synthFeed keeps the framing state of one feed.
type synthFeed struct {
	scenarioFeed
	dst    netip.AddrPort
	seqNum uint64
	second int64
}

func (f *synthFeed) itch(ev *scenarioEvent, sinceMidnight time.Duration) (msg []byte, err error) {
	ts := nasdaq.Time48(uint64(sinceMidnight))
	switch ev.Type {
	case "symbol":
		return nasdaq.Pack(&nasdaq.ItchStockDirectoryWire{Type: 'R', Locate: ev.Locate, Timestamp: ts, Stock: nasdaq.Stock(ev.Symbol), RoundLotSize: 100})
	case "add":
		price, err := feed.ParsePrice(ev.Price)
		if err != nil {
			return nil, err
		}
		return nasdaq.Pack(&nasdaq.ItchAddOrderWire{Type: 'A', Locate: ev.Locate, Timestamp: ts, Ref: ev.Ref, Side: ev.Side[0], Shares: ev.Size, Stock: nasdaq.Stock(ev.Symbol), Price: uint32(price)})
	case "exec":
		return nasdaq.Pack(&nasdaq.ItchOrderExecutedWire{Type: 'E', Locate: ev.Locate, Timestamp: ts, Ref: ev.Ref, Shares: ev.Size, Match: ev.Match})
	case "cancel":
		return nasdaq.Pack(&nasdaq.ItchOrderCancelWire{Type: 'X', Locate: ev.Locate, Timestamp: ts, Ref: ev.Ref, Shares: ev.Size})
	case "delete":
		return nasdaq.Pack(&nasdaq.ItchOrderDeleteWire{Type: 'D', Locate: ev.Locate, Timestamp: ts, Ref: ev.Ref})
	}
	return nil, fmt.Errorf("%w: itch50 %q", errBadEvent, ev.Type)
}

func (f *synthFeed) pitch(ev *scenarioEvent, sinceMidnight time.Duration) (msgs [][]byte, err error) {
	defer errs.PassE(&err)
	sec := int64(sinceMidnight / time.Second)
	if sec != f.second {
		f.second = sec
		msgs = append(msgs, bats.MustPackMessage(&bats.PitchTimeWire{Type: uint8(bats.PitchMessageTypeTime), Time: uint32(sec)}))
	}
	offset := uint32(sinceMidnight % time.Second)
	var m interface{}
	switch ev.Type {
	case "add":
		price, err := feed.ParsePrice(ev.Price)
		errs.CheckE(err)
		m = &bats.PitchAddOrderLongWire{Type: uint8(bats.PitchMessageTypeAddOrderLong), TimeOffset: offset, OrderId: ev.Ref, Side: ev.Side[0], Size: ev.Size, Symbol: bats.Symbol6(ev.Symbol), Price: uint64(price)}
	case "exec":
		m = &bats.PitchOrderExecutedWire{Type: uint8(bats.PitchMessageTypeOrderExecuted), TimeOffset: offset, OrderId: ev.Ref, Size: ev.Size, ExecutionId: ev.Match}
	case "cancel":
		m = &bats.PitchReduceSizeLongWire{Type: uint8(bats.PitchMessageTypeReduceSizeLong), TimeOffset: offset, OrderId: ev.Ref, Size: ev.Size}
	case "delete":
		m = &bats.PitchDeleteOrderWire{Type: uint8(bats.PitchMessageTypeDeleteOrder), TimeOffset: offset, OrderId: ev.Ref}
	default:
		return nil, fmt.Errorf("%w: pitch2 %q", errBadEvent, ev.Type)
	}
	bs, err := bats.PackMessage(m)
	errs.CheckE(err)
	return append(msgs, bs), nil
}

// packet frames ev as the next packet of the feed.
func (f *synthFeed) packet(ev *scenarioEvent, sinceMidnight time.Duration) (bs []byte, err error) {
	if (ev.Type == "add" || ev.Type == "symbol") && ev.Symbol == "" {
		return nil, fmt.Errorf("%w: %s without symbol", errBadEvent, ev.Type)
	}
	if ev.Type == "add" && ev.Side == "" {
		return nil, fmt.Errorf("%w: add without side", errBadEvent)
	}
	switch f.Protocol {
	case "itch50":
		var msg []byte
		if msg, err = f.itch(ev, sinceMidnight); err != nil {
			return
		}
		bs, err = nasdaq.MoldPacket(f.Session, f.seqNum, msg)
		f.seqNum++
	case "pitch2":
		var msgs [][]byte
		if msgs, err = f.pitch(ev, sinceMidnight); err != nil {
			return
		}
		bs, err = bats.UnitPacket(f.Unit, uint32(f.seqNum), msgs...)
		f.seqNum += uint64(len(msgs))
	default:
		err = fmt.Errorf("%w: protocol %q", errBadEvent, f.Protocol)
	}
	return
}

// synthesize writes the scenario to w as a pcap capture, events in time
// order, and returns the number of packets written.
func synthesize(w io.Writer, sc *scenario) (n int, err error) {
	defer errs.PassE(&err)
	date, err := time.Parse("2006-01-02", sc.Date)
	errs.CheckE(err)
	midnight := feed.TimestampFromTime(date.Add(12 * time.Hour)).Midnight()

	feeds := make(map[string]*synthFeed, len(sc.Feeds))
	for name, fc := range sc.Feeds {
		dst, err := netip.ParseAddrPort(fc.Dst)
		errs.CheckE(err)
		if fc.Session == "" {
			fc.Session = "0000000001"
		}
		if fc.Unit == 0 {
			fc.Unit = 1
		}
		feeds[name] = &synthFeed{scenarioFeed: fc, dst: dst, seqNum: 1, second: -1}
	}

	type timed struct {
		at time.Duration
		ev *scenarioEvent
	}
	events := make([]timed, len(sc.Events))
	for i := range sc.Events {
		ev := &sc.Events[i]
		at, err := parseTimeOfDay(ev.At)
		errs.CheckE(err)
		events[i] = timed{at, ev}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	pw, err := packet.NewWriter(w)
	errs.CheckE(err)
	for _, e := range events {
		f, ok := feeds[e.ev.Feed]
		if !ok {
			return n, fmt.Errorf("%w: unknown feed %q", errBadEvent, e.ev.Feed)
		}
		bs, err := f.packet(e.ev, e.at)
		errs.CheckE(err)
		errs.CheckE(pw.WriteUDP(midnight.Add(e.at).Time(), f.dst, bs))
		n++
	}
	return
}
