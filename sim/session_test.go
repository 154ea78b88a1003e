package sim

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/bookmux"
	"my/mdbook/config"
	"my/mdbook/feed"
)

var t0 = feed.TimestampFromTime(time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC))

func us(n int) feed.Timestamp {
	return t0 + feed.Timestamp(n)*feed.Timestamp(time.Microsecond)
}

var testConfig = Config{
	AckLatency:    10 * time.Microsecond,
	CancelLatency: 10 * time.Microsecond,
	FillLatency:   5 * time.Microsecond,
}

type fixture struct {
	mux    *bookmux.L3Mux
	sess   *Session
	events []Event
}

func newFixture(t *testing.T, cfg Config) *fixture {
	f := &fixture{mux: bookmux.NewL3Mux(feed.VenueXNAS)}
	f.sess = New(f.mux, cfg, WithHandler(func(e Event) { f.events = append(f.events, e) }))
	f.mux.Register(f.sess)
	f.mux.DefineSymbol(feed.SymbolDef{Symbol: 1, Name: "AAPL", RoundLot: 100, ExchTime: t0})
	return f
}

func (f *fixture) packet(ts feed.Timestamp, fn func(m *bookmux.L3Mux)) {
	f.mux.PacketStart(ts)
	fn(f.mux)
	f.mux.PacketEnd(ts)
}

func (f *fixture) of(id OrderId) []Event {
	var es []Event
	for _, e := range f.events {
		if e.Id == id {
			es = append(es, e)
		}
	}
	return es
}

func kinds(es []Event) []EventKind {
	var ks []EventKind
	for _, e := range es {
		ks = append(ks, e.Kind)
	}
	return ks
}

func buy(id OrderId, price feed.Price, size uint32) Order {
	return Order{Id: id, Symbol: "AAPL", Side: feed.SideBuy, Price: price, Size: size}
}
func sell(id OrderId, price feed.Price, size uint32) Order {
	return Order{Id: id, Symbol: "AAPL", Side: feed.SideSell, Price: price, Size: size}
}

func TestQueuePosition(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 1, feed.SideBuy, 506700, 100, 0)
		m.AddOrder(1, 2, feed.SideBuy, 506700, 200, 0)
	})
	require.NoError(t, f.sess.Send(buy(1, 506700, 100)))
	st, ok := f.sess.Order(1)
	require.True(t, ok)
	assert.Equal(t, StateSent, st.State)

	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 3, feed.SideBuy, 506700, 100, 0)
	})
	ahead, behind, ok := f.sess.QueuePosition(1)
	require.True(t, ok)
	assert.Equal(t, uint64(300), ahead)
	assert.Equal(t, uint64(100), behind)

	f.packet(us(30), func(m *bookmux.L3Mux) { m.DeleteOrder(1, 2, 0) })
	ahead, behind, _ = f.sess.QueuePosition(1)
	assert.Equal(t, uint64(100), ahead)
	assert.Equal(t, uint64(100), behind)

	f.packet(us(40), func(m *bookmux.L3Mux) { m.ExecuteOrder(1, 1, 100, 0, true, 1, 0) })
	ahead, behind, _ = f.sess.QueuePosition(1)
	assert.Equal(t, uint64(0), ahead)
	assert.Equal(t, uint64(100), behind)
	require.Len(t, f.events, 1)

	f.packet(us(50), func(m *bookmux.L3Mux) { m.ExecuteOrder(1, 3, 50, 0, true, 2, 0) })
	f.sess.Advance(us(54))
	require.Len(t, f.events, 1, "the fill is not visible before its latency")
	f.sess.Advance(us(55))
	require.Len(t, f.events, 2)

	assert.Equal(t, EventAck, f.events[0].Kind)
	assert.Equal(t, us(10), f.events[0].Time)
	assert.Equal(t, StateAcked, f.events[0].State)
	fill := f.events[1]
	assert.Equal(t, EventFill, fill.Kind)
	assert.Equal(t, feed.Price(506700), fill.Price)
	assert.Equal(t, uint32(50), fill.Size)
	assert.Equal(t, uint32(50), fill.Leaves)
	assert.Equal(t, us(55), fill.Time)
	assert.Equal(t, StatePartiallyFilled, fill.State)

	st, _ = f.sess.Order(1)
	assert.Equal(t, StatePartiallyFilled, st.State)
	assert.Equal(t, uint32(50), st.Filled)
}

func TestCancelPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy        CancelPolicy
		ahead, behind uint64
	}{
		{CancelAheadFirst, 100, 100},
		{CancelProportional, 150, 50},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			cfg := testConfig
			cfg.CancelPolicy = tc.policy
			f := newFixture(t, cfg)
			f.packet(us(0), func(m *bookmux.L3Mux) {
				m.AddOrder(1, 1, feed.SideBuy, 506700, 100, 0)
				m.AddOrder(1, 2, feed.SideBuy, 506700, 200, 0)
			})
			require.NoError(t, f.sess.Send(buy(1, 506700, 100)))
			f.packet(us(20), func(m *bookmux.L3Mux) {
				m.AddOrder(1, 3, feed.SideBuy, 506700, 100, 0)
			})
			f.packet(us(30), func(m *bookmux.L3Mux) { m.DeleteOrder(1, 2, 0) })
			ahead, behind, ok := f.sess.QueuePosition(1)
			require.True(t, ok)
			assert.Equal(t, tc.ahead, ahead)
			assert.Equal(t, tc.behind, behind)
		})
	}
}

func TestEarlierArrivalFillsFirst(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 1, feed.SideBuy, 506700, 100, 0)
	})
	require.NoError(t, f.sess.Send(buy(1, 506700, 100)))
	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 2, feed.SideBuy, 506700, 50, 0)
	})
	require.NoError(t, f.sess.Send(buy(2, 506700, 100)))
	f.packet(us(40), func(m *bookmux.L3Mux) {
		m.ExecuteOrder(1, 1, 100, 0, true, 1, 0)
		m.ExecuteOrder(1, 2, 50, 0, true, 2, 0)
	})
	f.sess.Flush()

	assert.Equal(t, []EventKind{EventAck, EventFill}, kinds(f.of(1)))
	assert.Equal(t, uint32(50), f.of(1)[1].Size)
	assert.Equal(t, []EventKind{EventAck}, kinds(f.of(2)))
	ahead, _, ok := f.sess.QueuePosition(2)
	require.True(t, ok)
	assert.Equal(t, uint64(0), ahead)
}

func TestMarketable(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 10, feed.SideSell, 506800, 100, 0)
		m.AddOrder(1, 11, feed.SideSell, 506900, 200, 0)
	})
	ioc := buy(1, 506900, 250)
	ioc.Tif = feed.TifIOC
	require.NoError(t, f.sess.Send(ioc))
	require.NoError(t, f.sess.Send(buy(2, 506800, 150)))
	miss := buy(3, 506700, 50)
	miss.Tif = feed.TifIOC
	require.NoError(t, f.sess.Send(miss))
	f.sess.Flush()

	es := f.of(1)
	require.Equal(t, []EventKind{EventAck, EventFill, EventFill}, kinds(es))
	assert.Equal(t, feed.Price(506800), es[1].Price)
	assert.Equal(t, uint32(100), es[1].Size)
	assert.Equal(t, feed.Price(506900), es[2].Price)
	assert.Equal(t, uint32(150), es[2].Size)
	assert.Equal(t, StateFilled, es[2].State)
	assert.Equal(t, us(10), es[2].Time)

	es = f.of(2)
	require.Equal(t, []EventKind{EventAck, EventFill}, kinds(es))
	assert.Equal(t, uint32(50), es[1].Leaves)

	es = f.of(3)
	require.Equal(t, []EventKind{EventAck, EventCancel}, kinds(es))
	assert.Equal(t, uint32(50), es[1].Size)
	assert.Equal(t, StateCancelled, es[1].State)

	// a real sell through the resting buy trades with it at the buy's price
	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 12, feed.SideSell, 506800, 30, 0)
	})
	f.sess.Flush()
	es = f.of(2)
	require.Len(t, es, 3)
	assert.Equal(t, uint32(30), es[2].Size)
	assert.Equal(t, feed.Price(506800), es[2].Price)
	assert.Equal(t, us(25), es[2].Time)
	st, _ := f.sess.Order(2)
	assert.Equal(t, StatePartiallyFilled, st.State)
	assert.Equal(t, uint32(130), st.Filled)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {})
	require.NoError(t, f.sess.Send(buy(1, 506000, 100)))
	f.sess.Advance(us(10))
	require.NoError(t, f.sess.Cancel(1))
	st, _ := f.sess.Order(1)
	assert.Equal(t, StatePendingCancel, st.State)
	assert.ErrorIs(t, f.sess.Cancel(1), ErrOrderDone)
	assert.ErrorIs(t, f.sess.Cancel(99), ErrUnknownOrder)

	f.sess.Flush()
	es := f.of(1)
	require.Equal(t, []EventKind{EventAck, EventCancel}, kinds(es))
	assert.Equal(t, us(20), es[1].Time)
	assert.Equal(t, uint32(100), es[1].Size)
	assert.Equal(t, StateCancelled, es[1].State)
	_, _, ok := f.sess.QueuePosition(1)
	assert.False(t, ok)

	// the cancel arrives after the order has traded
	require.NoError(t, f.sess.Send(buy(2, 506000, 100)))
	f.sess.Advance(us(30))
	require.NoError(t, f.sess.Cancel(2))
	f.packet(us(35), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 5, feed.SideSell, 505900, 100, 0)
	})
	f.sess.Flush()
	es = f.of(2)
	require.Equal(t, []EventKind{EventAck, EventFill, EventCancelReject}, kinds(es))
	assert.Equal(t, us(40), es[1].Time)
	assert.Equal(t, feed.Price(506000), es[1].Price)
	assert.Equal(t, StateFilled, es[1].State)
	assert.Equal(t, StateFilled, es[2].State)
	assert.ErrorIs(t, f.sess.Cancel(2), ErrOrderDone)
}

func TestRejects(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {})

	assert.ErrorIs(t, f.sess.Send(buy(1, 506000, 0)), ErrInvalidOrder)
	st, ok := f.sess.Order(1)
	require.True(t, ok)
	assert.Equal(t, StateLocallyRejected, st.State)
	assert.ErrorIs(t, f.sess.Send(buy(1, 506000, 100)), ErrDuplicateOrder)

	unknown := buy(2, 506000, 100)
	unknown.Symbol = "MSFT"
	require.NoError(t, f.sess.Send(unknown))
	f.sess.Flush()
	es := f.of(2)
	require.Equal(t, []EventKind{EventReject}, kinds(es))
	assert.Equal(t, "unknown symbol", es[0].Reason)
	assert.Equal(t, StateRemotelyRejected, es[0].State)

	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.TradingStatus(1, feed.StatusHalted, 0)
	})
	require.NoError(t, f.sess.Send(buy(3, 506000, 100)))
	f.sess.Flush()
	require.Equal(t, []EventKind{EventReject}, kinds(f.of(3)))
	st, _ = f.sess.Order(3)
	assert.Equal(t, StateRemotelyRejected, st.State)
	assert.Zero(t, f.sess.Pending())
}

func TestClosingCross(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {})
	onClose := sell(2, 506000, 100)
	onClose.Tif = feed.TifOnClose
	ioBuy := buy(3, 507000, 100)
	ioBuy.Tif = feed.TifImbalanceOnly
	ioSell := sell(4, 506000, 100)
	ioSell.Tif = feed.TifImbalanceOnly
	onOpen := buy(5, 507000, 100)
	onOpen.Tif = feed.TifOnOpen
	for _, o := range []Order{buy(1, 507000, 100), onClose, ioBuy, ioSell, onOpen} {
		require.NoError(t, f.sess.Send(o))
	}
	f.sess.Flush()

	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.NasdaqImbalance(feed.NasdaqImbalance{Symbol: 1, Direction: feed.SideSell})
		m.Trade(feed.Trade{Symbol: 1, Price: 506500, Size: 150, Cross: feed.CrossClosing, Printable: true})
	})
	f.sess.Flush()

	for _, tc := range []struct {
		id     OrderId
		state  OrderState
		filled uint32
	}{
		{1, StateFilled, 100},
		{2, StateFilled, 100},
		{3, StateCancelled, 50},
		{4, StateCancelled, 0},
		{5, StateAcked, 0},
	} {
		st, ok := f.sess.Order(tc.id)
		require.True(t, ok)
		assert.Equal(t, tc.state, st.State, "order %d", tc.id)
		assert.Equal(t, tc.filled, st.Filled, "order %d", tc.id)
	}
	es := f.of(3)
	require.Equal(t, []EventKind{EventAck, EventFill, EventCancel}, kinds(es))
	assert.Equal(t, feed.Price(506500), es[1].Price)
	assert.Equal(t, us(25), es[2].Time, "reports of one order stay in order")
}

func TestImbalanceBeforeFirstOrder(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {
		m.NasdaqImbalance(feed.NasdaqImbalance{Symbol: 1, Direction: feed.SideSell})
	})
	ioBuy := buy(1, 507000, 100)
	ioBuy.Tif = feed.TifImbalanceOnly
	require.NoError(t, f.sess.Send(ioBuy))
	f.sess.Flush()
	f.packet(us(20), func(m *bookmux.L3Mux) {
		m.Trade(feed.Trade{Symbol: 1, Price: 506500, Size: 150, Cross: feed.CrossClosing, Printable: true})
	})
	f.sess.Flush()
	st, ok := f.sess.Order(1)
	require.True(t, ok)
	assert.Equal(t, StateFilled, st.State)
	assert.Equal(t, uint32(100), st.Filled)
}

func TestTradeThroughClearsQueue(t *testing.T) {
	f := newFixture(t, testConfig)
	f.packet(us(0), func(m *bookmux.L3Mux) {
		m.AddOrder(1, 1, feed.SideBuy, 506700, 100, 0)
		m.AddOrder(1, 2, feed.SideBuy, 506700, 200, 0)
		m.AddOrder(1, 3, feed.SideBuy, 506600, 100, 0)
	})
	require.NoError(t, f.sess.Send(buy(1, 506700, 100)))
	f.sess.Advance(us(10))
	ahead, _, ok := f.sess.QueuePosition(1)
	require.True(t, ok)
	assert.Equal(t, uint64(300), ahead)

	f.packet(us(20), func(m *bookmux.L3Mux) { m.ExecuteOrder(1, 3, 50, 0, true, 1, 0) })
	ahead, behind, ok := f.sess.QueuePosition(1)
	require.True(t, ok)
	assert.Zero(t, ahead)
	assert.Zero(t, behind)
	f.sess.Flush()
	es := f.of(1)
	require.Equal(t, []EventKind{EventAck, EventFill}, kinds(es))
	assert.Equal(t, uint32(50), es[1].Size)
	assert.Equal(t, feed.Price(506700), es[1].Price)
}

func TestL2Levels(t *testing.T) {
	m := bookmux.NewL2Mux(feed.VenueXNYS)
	var events []Event
	sess := New(m, testConfig, WithHandler(func(e Event) { events = append(events, e) }))
	m.Register(sess)
	m.DefineSymbol(feed.SymbolDef{Symbol: 7, Name: "IBM", RoundLot: 100})
	level := func(ts feed.Timestamp, size uint64, reason feed.L2Reason) {
		m.PacketStart(ts)
		m.L2Level(7, feed.SideBuy, 1400000, size, 1, reason, 0)
		m.PacketEnd(ts)
	}
	level(us(0), 300, feed.L2ReasonNew)
	require.NoError(t, sess.Send(Order{Id: 1, Symbol: "IBM", Side: feed.SideBuy, Price: 1400000, Size: 100}))
	level(us(20), 400, feed.L2ReasonChange)
	level(us(30), 250, feed.L2ReasonCancel)
	ahead, behind, ok := sess.QueuePosition(1)
	require.True(t, ok)
	assert.Equal(t, uint64(150), ahead)
	assert.Equal(t, uint64(100), behind)

	level(us(40), 100, feed.L2ReasonExecution)
	level(us(50), 40, feed.L2ReasonExecution)
	sess.Flush()
	require.Equal(t, []EventKind{EventAck, EventFill}, kinds(events))
	assert.Equal(t, uint32(60), events[1].Size)
	assert.Equal(t, uint32(40), events[1].Leaves)
	assert.Equal(t, us(55), events[1].Time)
}

func TestConfigFromSnapshot(t *testing.T) {
	st := config.NewStore(map[string]interface{}{
		"sim": map[string]interface{}{
			"latency":       map[string]interface{}{"ack": "250us", "cancel": 100000},
			"cancel_policy": "proportional",
		},
	})
	cfg, err := ConfigFromSnapshot(st.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, 250*time.Microsecond, cfg.AckLatency)
	assert.Equal(t, 100*time.Microsecond, cfg.CancelLatency)
	assert.Equal(t, DefaultConfig.FillLatency, cfg.FillLatency)
	assert.Equal(t, CancelProportional, cfg.CancelPolicy)

	st.Set("sim.cancel_policy", "fifo")
	_, err = ConfigFromSnapshot(st.Snapshot())
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestEventQueueOrder(t *testing.T) {
	var q eventQueue
	heap.Push(&q, &item{ts: 2, seq: 1})
	heap.Push(&q, &item{ts: 1, seq: 3})
	heap.Push(&q, &item{ts: 1, seq: 2})
	var seqs []uint64
	for q.Len() > 0 {
		seqs = append(seqs, heap.Pop(&q).(*item).seq)
	}
	assert.Equal(t, []uint64{2, 3, 1}, seqs)
}

func TestL2Refresh(t *testing.T) {
	m := bookmux.NewL2Mux(feed.VenueXNYS)
	var events []Event
	sess := New(m, testConfig, WithHandler(func(e Event) { events = append(events, e) }))
	m.Register(sess)
	m.DefineSymbol(feed.SymbolDef{Symbol: 7, Name: "IBM", RoundLot: 100})
	refresh := func(ts feed.Timestamp, size uint64) {
		m.PacketStart(ts)
		m.L2Clear(7, 0)
		m.L2Level(7, feed.SideBuy, 1400000, size, 1, feed.L2ReasonRefresh, 0)
		m.PacketEnd(ts)
	}
	m.PacketStart(us(0))
	m.L2Level(7, feed.SideBuy, 1400000, 300, 2, feed.L2ReasonNew, 0)
	m.PacketEnd(us(0))
	require.NoError(t, sess.Send(Order{Id: 1, Symbol: "IBM", Side: feed.SideBuy, Price: 1400000, Size: 100}))

	refresh(us(20), 300)
	ahead, behind, ok := sess.QueuePosition(1)
	require.True(t, ok)
	assert.Equal(t, uint64(300), ahead)
	assert.Equal(t, uint64(0), behind)

	refresh(us(30), 400)
	ahead, behind, _ = sess.QueuePosition(1)
	assert.Equal(t, uint64(300), ahead)
	assert.Equal(t, uint64(100), behind)

	refresh(us(40), 250)
	ahead, behind, _ = sess.QueuePosition(1)
	assert.Equal(t, uint64(150), ahead)
	assert.Equal(t, uint64(100), behind)
	sess.Flush()
	assert.Equal(t, []EventKind{EventAck}, kinds(events))
}
