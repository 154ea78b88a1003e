package rec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/bookmux"
	"my/mdbook/feed"
	"my/mdbook/universe"
)

var t0 = feed.TimestampFromTime(time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC))

func define(m feed.L3Sink, idx feed.SymbolIndex, name string) {
	m.DefineSymbol(feed.SymbolDef{Symbol: idx, Name: name, RoundLot: 100, PriceScale: 4, ExchTime: t0})
}

func packet(m feed.L3Sink, t feed.Timestamp, fn func()) {
	m.PacketStart(t)
	fn()
	m.PacketEnd(t)
}

func TestTobLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewTobLogger(&buf)
	m := bookmux.NewL3Mux(feed.VenueXNAS)
	m.Register(l)
	define(m, 1, "AAPL")

	packet(m, t0, func() {
		m.AddOrder(1, 1, feed.SideBuy, 506700, 100, t0)
		m.AddOrder(1, 2, feed.SideBuy, 506600, 100, t0)
	})
	packet(m, t0+1, func() {
		// behind the top, nothing to log
		m.AddOrder(1, 3, feed.SideBuy, 506500, 100, t0)
	})
	packet(m, t0+2, func() {
		m.AddOrder(1, 4, feed.SideSell, 506800, 200, t0)
		m.ExecuteOrder(1, 1, 100, 0, true, 1, t0)
	})
	assert.Equal(t, []string{
		"14:30:00.000000000 XNAS:AAPL 100@50.6700(1) -",
		"14:30:00.000000002 XNAS:AAPL 100@50.6600(1) 200@50.6800(1)",
	}, strings.Split(strings.TrimSpace(buf.String()), "\n"))
	assert.Equal(t, 2, l.Updates())
	s, ok := m.SymbolByName("AAPL")
	require.True(t, ok)
	tob, ok := l.Tob(s)
	require.True(t, ok)
	assert.Equal(t, feed.Price(506600), tob.Bid.Price)
	assert.NoError(t, l.Err())
}

func TestLastSales(t *testing.T) {
	u := universe.New()
	u.Add(feed.VenueXNAS, "AAPL", 1001)
	u.Add(feed.VenueEDGA, "AAPL", 1001)
	xnas := bookmux.NewL3Mux(feed.VenueXNAS, bookmux.WithInstruments(u))
	edga := bookmux.NewL3Mux(feed.VenueEDGA, bookmux.WithInstruments(u))
	ls := NewLastSales()
	var changes []Consolidated
	ls.OnChange(func(c Consolidated) { changes = append(changes, c) })
	xnas.Register(ls)
	edga.Register(ls)
	define(xnas, 5, "AAPL")
	define(edga, 1, "AAPL")
	define(edga, 2, "IBM")

	trade := func(m *bookmux.L3Mux, t feed.Timestamp, sym feed.SymbolIndex, price feed.Price) {
		packet(m, t, func() {
			m.Trade(feed.Trade{Symbol: sym, Side: feed.SideBuy, Price: price, Size: 100, Printable: true, ExchTime: t})
		})
	}
	trade(xnas, t0, 5, 506500)
	trade(edga, t0+1, 1, 506500)
	trade(edga, t0+2, 1, 506600)
	trade(xnas, t0+3, 5, 506700)
	trade(edga, t0+4, 2, 1400000)

	xs, _ := xnas.Symbol(5)
	es, _ := edga.Symbol(1)
	assert.Equal(t, 2, ls.Changes(xs))
	assert.Equal(t, 2, ls.Changes(es))
	c, ok := ls.Instrument(1001)
	require.True(t, ok)
	assert.Equal(t, feed.Price(506700), c.Price)
	assert.Equal(t, feed.VenueXNAS, c.Venue)
	assert.Same(t, xs, c.Symbol)
	assert.Equal(t, 3, c.Changes, "the same price on another venue is not a change")
	require.Len(t, changes, 3)
	assert.Equal(t, feed.Price(506600), changes[1].Price)
	_, ok = ls.Instrument(2)
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, err := NewMetrics(reg)
	require.NoError(t, err)
	m := bookmux.NewL3Mux(feed.VenueEDGA)
	m.Register(mt)
	define(m, 1, "AAPL")
	define(m, 1, "AAPL")
	packet(m, t0, func() {
		m.AddOrder(1, 1, feed.SideBuy, 506700, 100, t0)
		m.AddOrder(1, 2, feed.SideSell, 506600, 100, t0)
		m.Gap(feed.Gap{Stream: feed.StreamId{Venue: feed.VenueEDGA, Feed: "pitch2", Unit: 1}, Expected: 5, Observed: 9})
		m.Timeout(feed.Timeout{Stream: feed.StreamId{Venue: feed.VenueEDGA}, Start: true})
		m.Timeout(feed.Timeout{Stream: feed.StreamId{Venue: feed.VenueEDGA}, Start: false})
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(mt.packets.WithLabelValues("EDGA")))
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.events.WithLabelValues("EDGA", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.crossed.WithLabelValues("EDGA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.gaps.WithLabelValues("EDGA")))
	assert.Equal(t, 4.0, testutil.ToFloat64(mt.gapMsgs.WithLabelValues("EDGA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.timeouts.WithLabelValues("EDGA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.symbols.WithLabelValues("EDGA")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors are already registered")
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Verbose = true
	m := bookmux.NewL3Mux(feed.VenueXNAS)
	m.Register(p)
	define(m, 1, "AAPL")
	packet(m, t0, func() {
		m.AddOrder(1, 7, feed.SideBuy, 506700, 100, t0)
		m.Gap(feed.Gap{Stream: feed.StreamId{Venue: feed.VenueXNAS, Feed: "itch50"}, Expected: 1, Observed: 3, Time: t0})
	})
	out := buf.String()
	assert.Contains(t, out, "SYM XNAS:AAPL instr=0 lot=100 unit=0\n")
	assert.Contains(t, out, "14:30:00.000000000 ADD XNAS:AAPL 0x7 B 100@50.6700\n")
	assert.Contains(t, out, "GAP XNAS/itch50/0 expected=1 observed=3\n")
	assert.Contains(t, out, "Expected:")
	assert.NoError(t, p.Err())
}
