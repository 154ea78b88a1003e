package datamgr

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/bookmux"
	"my/mdbook/config"
	"my/mdbook/decmux"
	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/packet/bats"
	"my/mdbook/packet/nasdaq"
	"my/mdbook/rec"
)

var (
	t0      = time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC)
	xnasDst = netip.MustParseAddrPort("233.54.12.1:18001")
	edgaDst = netip.MustParseAddrPort("224.0.131.0:30101")
)

func testConfig() map[string]interface{} {
	return map[string]interface{}{
		"feeds": map[string]interface{}{
			"xnas": map[string]interface{}{
				"venue":    "XNAS",
				"protocol": "itch50",
				"lines":    []string{xnasDst.String()},
				"timeout":  "5s",
			},
			"edga": map[string]interface{}{
				"venue":    "EDGA",
				"protocol": "pitch2",
				"lines":    []string{edgaDst.String()},
			},
			"bad": map[string]interface{}{
				"venue":    "XNAS",
				"protocol": "fix",
				"lines":    []string{"233.54.12.2:18002"},
			},
			"zdup": map[string]interface{}{
				"venue":    "XNYS",
				"protocol": "xdp",
				"lines":    []string{xnasDst.String()},
			},
		},
		"universe": map[string]interface{}{
			"map": map[string]interface{}{
				"xnas": map[string]interface{}{"aapl": 1001},
				"edga": map[string]interface{}{"aapl": 1001},
			},
		},
	}
}

type capture struct {
	t       *testing.T
	w       *packet.Writer
	dst     netip.AddrPort
	f       *os.File
	seqNum  uint64
	session string
}

func newCapture(t *testing.T, name string, dst netip.AddrPort) *capture {
	f, err := os.Create(name)
	require.NoError(t, err)
	w, err := packet.NewWriter(f)
	require.NoError(t, err)
	return &capture{t: t, w: w, dst: dst, f: f, seqNum: 1, session: "0000012345"}
}

func (c *capture) mold(at time.Duration, msgs ...[]byte) {
	bs, err := nasdaq.MoldPacket(c.session, c.seqNum, msgs...)
	require.NoError(c.t, err)
	c.seqNum += uint64(len(msgs))
	require.NoError(c.t, c.w.WriteUDP(t0.Add(at), c.dst, bs))
}
func (c *capture) unit(at time.Duration, msgs ...[]byte) {
	bs, err := bats.UnitPacket(1, uint32(c.seqNum), msgs...)
	require.NoError(c.t, err)
	c.seqNum += uint64(len(msgs))
	require.NoError(c.t, c.w.WriteUDP(t0.Add(at), c.dst, bs))
}
func (c *capture) close() {
	require.NoError(c.t, c.f.Close())
}

// writeCaptures records 30 seconds of AAPL on XNAS (ITCH) and EDGA (PITCH).
func writeCaptures(t *testing.T, dir string) (xnasFile, edgaFile string) {
	xnasFile = filepath.Join(dir, "xnas_20160301.pcap")
	edgaFile = filepath.Join(dir, "edga_20160301.pcap")

	x := newCapture(t, xnasFile, xnasDst)
	open := uint64(9*time.Hour + 30*time.Minute)
	x.mold(0,
		nasdaq.MustPack(&nasdaq.ItchStockDirectoryWire{Type: 'R', Locate: 7, Timestamp: nasdaq.Time48(open), Stock: nasdaq.Stock("AAPL"), RoundLotSize: 100}),
		nasdaq.MustPack(&nasdaq.ItchAddOrderWire{Type: 'A', Locate: 7, Timestamp: nasdaq.Time48(open), Ref: 1, Side: 'S', Shares: 300, Stock: nasdaq.Stock("AAPL"), Price: 506800}),
	)
	x.mold(5*time.Second, nasdaq.MustPack(&nasdaq.ItchOrderExecutedWire{Type: 'E', Locate: 7, Ref: 1, Shares: 100, Match: 1}))
	x.mold(20*time.Second, nasdaq.MustPack(&nasdaq.ItchOrderExecutedWire{Type: 'E', Locate: 7, Ref: 1, Shares: 100, Match: 2}))
	x.close()

	const openSeconds = 9*3600 + 30*60
	e := newCapture(t, edgaFile, edgaDst)
	e.unit(1*time.Second,
		bats.MustPackMessage(&bats.PitchTimeWire{Type: uint8(bats.PitchMessageTypeTime), Time: openSeconds}),
		bats.MustPackMessage(&bats.PitchAddOrderLongWire{Type: uint8(bats.PitchMessageTypeAddOrderLong), OrderId: 1, Side: 'B', Size: 500, Symbol: bats.Symbol6("AAPL"), Price: 506500}),
	)
	e.unit(2*time.Second, bats.MustPackMessage(&bats.PitchOrderExecutedWire{Type: uint8(bats.PitchMessageTypeOrderExecuted), OrderId: 1, Size: 100, ExecutionId: 1}))
	e.unit(3*time.Second, bats.MustPackMessage(&bats.PitchOrderExecutedWire{Type: uint8(bats.PitchMessageTypeOrderExecuted), OrderId: 1, Size: 100, ExecutionId: 2}))
	e.unit(10*time.Second, bats.MustPackMessage(&bats.PitchModifyOrderLongWire{Type: uint8(bats.PitchMessageTypeModifyOrderLong), OrderId: 1, Size: 300, Price: 506600}))
	e.unit(11*time.Second, bats.MustPackMessage(&bats.PitchOrderExecutedWire{Type: uint8(bats.PitchMessageTypeOrderExecuted), OrderId: 1, Size: 100, ExecutionId: 3}))
	e.unit(25*time.Second, bats.MustPackMessage(&bats.PitchOrderExecutedAtPriceSizeWire{Type: uint8(bats.PitchMessageTypeOrderExecutedAtPriceSize), OrderId: 1, Size: 50, RemainingSize: 150, ExecutionId: 4, Price: 506700}))
	e.close()
	return
}

func TestNewSkipsBadFeeds(t *testing.T) {
	m, err := New(config.NewStore(testConfig()).Snapshot())
	require.NoError(t, err)
	require.Len(t, m.Feeds(), 2)
	require.Len(t, m.Errors(), 2)
	assert.ErrorIs(t, m.Errors()[0], ErrUnknownProtocol)
	assert.ErrorIs(t, m.Errors()[1], decmux.ErrDuplicateRoute)

	_, ok := m.GetL3(feed.VenueXNAS)
	assert.True(t, ok)
	_, ok = m.GetL3(feed.VenueEDGA)
	assert.True(t, ok)
	_, ok = m.GetL3(feed.VenueXNYS)
	assert.False(t, ok)
	_, ok = m.GetL2(feed.VenueXNAS)
	assert.False(t, ok)
	assert.Len(t, m.Muxes(), 2)

	for _, f := range m.Feeds() {
		switch f.Name {
		case "edga":
			assert.True(t, f.GlobalRefs)
			assert.Equal(t, "edga", f.Poller)
		case "xnas":
			assert.False(t, f.GlobalRefs)
			assert.Equal(t, 5*time.Second, f.Timeout)
		}
	}

	_, err = New(config.NewStore(nil).Snapshot())
	assert.ErrorIs(t, err, ErrNoFeeds)
}

func TestFeedsFromConfig(t *testing.T) {
	st := config.NewStore(map[string]interface{}{
		"feeds": map[string]interface{}{
			"itch": map[string]interface{}{"venue": "XNAS", "protocol": "itch50", "lines": []string{"nasdaq"}, "poller": "p1"},
			"pdp":  map[string]interface{}{"venue": "XNYS", "protocol": "pdp", "lines": []string{"224.0.59.76:11076"}, "global_refs": true},
			"xdp":  map[string]interface{}{"venue": "ARCX", "protocol": "xdp", "lines": []string{"224.0.59.1:11001"}, "unit": 3},
			"nov":  map[string]interface{}{"venue": "XXXX", "protocol": "itch50", "lines": []string{"224.0.0.1:1"}},
			"nol":  map[string]interface{}{"venue": "XNAS", "protocol": "itch50", "lines": []string{}},
			"bad":  map[string]interface{}{"venue": "XNAS", "protocol": "itch50", "lines": []string{"::1:5"}},
		},
	})
	fcs, errs := FeedsFromConfig(st.Snapshot())
	require.Len(t, fcs, 3)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[2], feed.ErrUnknownVenue)
	assert.ErrorIs(t, errs[1], ErrNoLines)

	byName := make(map[string]FeedConfig)
	for _, fc := range fcs {
		byName[fc.Name] = fc
	}
	assert.Len(t, byName["itch"].Lines, 4)
	assert.Equal(t, netip.MustParseAddrPort("233.54.12.4:18004"), byName["itch"].Lines[3])
	assert.Equal(t, "p1", byName["itch"].Poller)
	assert.True(t, byName["pdp"].Protocol.L2())
	assert.EqualValues(t, 3, byName["xdp"].Unit)

	m, err := New(st.Snapshot())
	require.NoError(t, err)
	_, ok := m.GetL2(feed.VenueXNYS)
	assert.True(t, ok)
	_, ok = m.GetL3(feed.VenueXNYS)
	assert.False(t, ok, "pdp books are price levels")
}

func TestSplitVenue(t *testing.T) {
	st := config.NewStore(map[string]interface{}{
		"feeds": map[string]interface{}{
			"a": map[string]interface{}{"venue": "XNAS", "protocol": "itch50", "lines": []string{"233.54.12.1:18001"}},
			"b": map[string]interface{}{"venue": "XNAS", "protocol": "itch50", "lines": []string{"233.54.12.2:18002"}},
		},
	})
	m, err := New(st.Snapshot())
	require.NoError(t, err)
	assert.ErrorIs(t, m.ReadData(context.Background()), ErrSplitVenue)
}

type lastSaleCounter struct {
	bookmux.NopListener
	prices []feed.Price
}

func (c *lastSaleCounter) OnLastSale(s *bookmux.SymbolState, ls bookmux.LastSale) {
	if s.Venue == feed.VenueEDGA && s.Name == "AAPL" {
		c.prices = append(c.prices, ls.Price)
	}
}

func TestReplayTwoVenues(t *testing.T) {
	xnasFile, edgaFile := writeCaptures(t, t.TempDir())

	m, err := New(config.NewStore(testConfig()).Snapshot())
	require.NoError(t, err)
	sales := rec.NewLastSales()
	counter := &lastSaleCounter{}
	m.Register(sales)
	m.Register(counter)
	var ticks int
	m.AddTimer(decmux.TimerFunc(func(feed.Timestamp) { ticks++ }))
	lat := decmux.Latencies{Overrides: []decmux.LatencyOverride{{Match: regexp.MustCompile(`^edga_`), Latency: time.Millisecond}}}
	m.UseFiles([]string{xnasFile, edgaFile}, lat)
	require.NoError(t, m.ReadData(context.Background()))

	edga, ok := m.GetL3(feed.VenueEDGA)
	require.True(t, ok)
	s, ok := edga.SymbolByName("AAPL")
	require.True(t, ok)
	last := s.LastSale()
	assert.Equal(t, feed.Price(506700), last.Price)
	assert.Equal(t, feed.VenueEDGA, last.Venue)
	assert.Equal(t, 3, sales.Changes(s))
	assert.Equal(t, []feed.Price{506500, 506600, 506700}, counter.prices)

	c, ok := sales.Instrument(1001)
	require.True(t, ok)
	assert.Equal(t, feed.Price(506700), c.Price)
	assert.Equal(t, feed.VenueEDGA, c.Venue)

	xnas, _ := m.GetL3(feed.VenueXNAS)
	xs, ok := xnas.SymbolByName("AAPL")
	require.True(t, ok)
	assert.Equal(t, feed.Price(506800), xs.LastSale().Price)
	assert.EqualValues(t, 1001, xs.Instrument)
	d, ok := xnas.Depth(xs.Index)
	require.True(t, ok)
	assert.Equal(t, uint64(100), d.BestAsk().Size)

	d, ok = edga.Depth(s.Index)
	require.True(t, ok)
	assert.Equal(t, uint64(150), d.BestBid().Size)
	assert.Equal(t, feed.Price(506600), d.BestBid().Price)
	assert.Greater(t, ticks, 0)
}
