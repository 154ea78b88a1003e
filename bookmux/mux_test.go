package bookmux

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/book"
	"my/mdbook/feed"
)

type recListener struct {
	NopListener
	name   string
	log    *[]string
	sales  []LastSale
	l2     []L2Event
	crosss int
}

func (r *recListener) add(format string, args ...interface{}) {
	*r.log = append(*r.log, r.name+" "+fmt.Sprintf(format, args...))
}
func (r *recListener) OnSymbolDefinition(s *SymbolState) {
	r.add("def %s", s)
}
func (r *recListener) OnBookAdded(e *BookEvent) {
	r.add("add %d %s %d@%d", e.Ref, e.Side, e.Size, e.Price)
}
func (r *recListener) OnBookCanceled(e *BookEvent) {
	r.add("cancel %d %d left %d", e.Ref, e.Size, e.Remaining)
}
func (r *recListener) OnBookExecuted(e *ExecEvent) {
	r.add("exec %d %d@%d left %d", e.Ref, e.Size, e.ExecPrice, e.Remaining)
}
func (r *recListener) OnBookModified(e *ModifyEvent) {
	r.add("modify %d %d@%d", e.Ref, e.Size, e.Price)
}
func (r *recListener) OnBookCrossed(e *CrossedEvent) {
	r.crosss++
}
func (r *recListener) OnLastSale(s *SymbolState, ls LastSale) {
	r.sales = append(r.sales, ls)
}
func (r *recListener) OnL2Update(e *L2Event) {
	r.l2 = append(r.l2, *e)
}

type instruments map[string]uint64

func (im instruments) Instrument(v feed.Venue, name string) (uint64, bool) {
	id, ok := im[v.String()+":"+name]
	return id, ok
}

func TestL3MuxFanOut(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueXNAS, WithInstruments(instruments{"XNAS:AAPL": 7}))
	first := &recListener{name: "first", log: &log}
	second := &recListener{name: "second", log: &log}
	m.Register(first)
	m.Register(second)

	m.PacketStart(100)
	m.DefineSymbol(feed.SymbolDef{Symbol: 3, Name: "AAPL    "})
	m.AddOrder(3, 11, feed.SideBuy, 1000000, 100, 0)
	m.PacketEnd(100)

	assert.Equal(t, []string{
		"first def XNAS:AAPL",
		"second def XNAS:AAPL",
		"first add 11 B 100@1000000",
		"second add 11 B 100@1000000",
	}, log)

	s, ok := m.SymbolByName("AAPL")
	require.True(t, ok)
	assert.Equal(t, feed.SymbolIndex(3), s.Index)
	assert.True(t, s.HasInstr)
	assert.Equal(t, uint64(7), s.Instrument)
	assert.Equal(t, feed.Timestamp(100), m.Now())
}

func TestL3MuxOrderLifecycle(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueXNAS)
	r := &recListener{name: "r", log: &log}
	m.Register(r)

	m.PacketStart(1)
	m.AddOrder(1, 10, feed.SideSell, 500, 100, 0)
	m.ExecuteOrder(1, 10, 30, 0, true, 1, 0)
	m.CancelOrder(1, 10, 20, 0)
	m.ReplaceOrder(1, 10, 11, 505, 40, 0)
	m.ModifyOrder(1, 11, 505, 25, 0)
	m.DeleteOrder(1, 11, 0)
	m.DeleteOrder(1, 11, 0)

	assert.Equal(t, []string{
		"r add 10 S 100@500",
		"r exec 10 30@500 left 70",
		"r cancel 10 20 left 50",
		"r cancel 10 50 left 0",
		"r add 11 S 40@505",
		"r modify 11 25@505",
		"r cancel 11 25 left 0",
	}, log)
	assert.Equal(t, uint64(1), m.Stats().Unknown)
	require.Len(t, r.sales, 1)
	assert.Equal(t, feed.Price(500), r.sales[0].Price)
	assert.Equal(t, feed.VenueXNAS, r.sales[0].Venue)

	d, ok := m.Depth(1)
	require.True(t, ok)
	assert.True(t, d.BestAsk().IsEmpty(feed.SideSell))
}

func TestL3MuxGlobalRefs(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueEDGA, WithGlobalRefs())
	m.Register(&recListener{name: "r", log: &log})
	m.AddOrder(2, 77, feed.SideBuy, 100, 10, 0)
	m.ExecuteOrder(feed.SymbolUnknown, 77, 10, 0, true, 0, 0)
	m.DeleteOrder(feed.SymbolUnknown, 77, 0)
	assert.Equal(t, []string{"r add 77 B 10@100", "r exec 77 10@100 left 0"}, log)
	assert.Equal(t, uint64(1), m.Stats().Unresolved)

	plain := NewL3Mux(feed.VenueEDGA)
	plain.AddOrder(2, 77, feed.SideBuy, 100, 10, 0)
	plain.DeleteOrder(feed.SymbolUnknown, 77, 0)
	assert.Equal(t, uint64(1), plain.Stats().Unresolved)
}

func TestL3MuxLastSaleChanges(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueXNAS)
	r := &recListener{name: "r", log: &log}
	m.Register(r)
	m.Trade(feed.Trade{Symbol: 1, Price: 100, Size: 1, Printable: true})
	m.Trade(feed.Trade{Symbol: 1, Price: 100, Size: 5, Printable: true})
	m.Trade(feed.Trade{Symbol: 1, Price: 101, Size: 1, Printable: false})
	m.Trade(feed.Trade{Symbol: 1, Price: 102, Size: 1, Printable: true})
	require.Len(t, r.sales, 2)
	s, _ := m.Symbol(1)
	assert.Equal(t, uint32(1), s.LastSale().Size)
	assert.Equal(t, feed.Price(102), s.LastSale().Price)
	assert.False(t, s.LastSale().Valid())
}

func TestL3MuxLastSaleTimestamped(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueXNAS)
	r := &recListener{name: "r", log: &log}
	m.Register(r)
	t0 := feed.TimestampFromTime(time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC))
	m.PacketStart(t0)
	m.Trade(feed.Trade{Symbol: 1, Price: 100, Size: 1, Printable: true})
	m.PacketStart(t0.Add(time.Millisecond))
	m.Trade(feed.Trade{Symbol: 1, Price: 100, Size: 5, Printable: true})
	m.Trade(feed.Trade{Symbol: 1, Price: 99, Size: 2, Printable: true})
	require.Len(t, r.sales, 2)
	assert.Equal(t, t0, r.sales[0].Time)
	assert.Equal(t, t0.Add(time.Millisecond), r.sales[1].Time)
	s, _ := m.Symbol(1)
	assert.True(t, s.LastSale().Valid())
	assert.Equal(t, feed.Price(99), s.LastSale().Price)
}

func TestL3MuxCrossedAndClear(t *testing.T) {
	var log []string
	m := NewL3Mux(feed.VenueXNAS)
	r := &recListener{name: "r", log: &log}
	m.Register(r)
	m.DefineSymbol(feed.SymbolDef{Symbol: 1, Name: "A", Unit: 2})
	m.DefineSymbol(feed.SymbolDef{Symbol: 2, Name: "B", Unit: 3})
	m.AddOrder(1, 1, feed.SideSell, 100, 10, 0)
	m.AddOrder(1, 2, feed.SideBuy, 101, 10, 0)
	m.AddOrder(1, 3, feed.SideBuy, 102, 10, 0)
	assert.Equal(t, 1, r.crosss)

	assert.Equal(t, 2, m.ClearCrossed(1, feed.SideBuy, 100))
	assert.Zero(t, m.ClearCrossed(1, feed.SideBuy, 100))
	m.AddOrder(1, 4, feed.SideBuy, 103, 10, 0)
	assert.Equal(t, 2, r.crosss)

	m.AddOrder(2, 5, feed.SideBuy, 50, 10, 0)
	m.ClearUnit(feed.StreamId{Venue: feed.VenueXNAS, Unit: 2}, 0)
	b1, _ := m.OrderBook(1)
	b2, _ := m.OrderBook(2)
	assert.Zero(t, b1.Len())
	assert.Equal(t, 1, b2.Len())
}

func TestL2Mux(t *testing.T) {
	var log []string
	m := NewL2Mux(feed.VenueXNYS)
	r := &recListener{name: "r", log: &log}
	m.Register(r)

	m.PacketStart(5)
	m.L2Level(1, feed.SideBuy, 100, 300, 2, feed.L2ReasonNew, 0)
	m.L2Level(1, feed.SideBuy, 100, 200, 1, feed.L2ReasonCancel, 0)
	m.L2Level(1, feed.SideSell, 101, 100, 1, feed.L2ReasonNew, 0)
	m.L2Level(1, feed.SideSell, 105, 0, 0, feed.L2ReasonCancel, 0)

	require.Len(t, r.l2, 3)
	assert.Equal(t, int64(300), r.l2[0].Delta())
	assert.Equal(t, book.FlagLevelAdded, r.l2[0].Flags)
	assert.Equal(t, int64(-100), r.l2[1].Delta())
	assert.Equal(t, book.FlagSizeReduced, r.l2[1].Flags)
	assert.Equal(t, feed.Timestamp(5), r.l2[1].Time)

	d, ok := m.Depth(1)
	require.True(t, ok)
	assert.Equal(t, book.Top{Price: 100, Size: 200, Orders: 1}, d.BestBid())

	m.L2Clear(1, 0)
	require.Len(t, r.l2, 5)
	assert.Equal(t, uint64(0), r.l2[4].Size)
	assert.True(t, d.BestBid().IsEmpty(feed.SideBuy))
	assert.True(t, d.BestAsk().IsEmpty(feed.SideSell))
}

func TestMulti(t *testing.T) {
	var log []string
	a := &recListener{name: "a", log: &log}
	b := &recListener{name: "b", log: &log}
	m := NewL3Mux(feed.VenueXNAS)
	m.Register(Multi{a, b})
	m.AddOrder(1, 1, feed.SideBuy, 1, 1, 0)
	assert.Equal(t, []string{"a add 1 B 1@1", "b add 1 B 1@1"}, log)
}
