package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/config"
	"my/mdbook/datamgr"
	"my/mdbook/decmux"
	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/packet/nasdaq"
	"my/mdbook/sim"
)

const testScenario = `
date: "2016-03-01"
feeds:
  xnas: {protocol: itch50, dst: "233.54.12.1:18001", session: "0000012345"}
events:
  - {at: "09:30:00", feed: xnas, type: symbol, symbol: AAPL, locate: 7}
  - {at: "09:30:00.0001", feed: xnas, type: add, symbol: AAPL, locate: 7, ref: 1, side: B, size: 200, price: "50.67"}
  - {at: "09:30:00.5", feed: xnas, type: add, symbol: AAPL, locate: 7, ref: 2, side: B, size: 100, price: "50.67"}
  - {at: "09:30:01", feed: xnas, type: exec, locate: 7, ref: 1, size: 200, match: 1}
  - {at: "09:30:02", feed: xnas, type: add, symbol: AAPL, locate: 7, ref: 3, side: B, size: 100, price: "50.67"}
  - {at: "09:30:03", feed: xnas, type: exec, locate: 7, ref: 2, size: 100, match: 2}
  - {at: "09:30:04", feed: xnas, type: exec, locate: 7, ref: 3, size: 60, match: 3}
`

const testScript = `
- {at: "09:30:02.5", cancel: 2}
- {at: "09:30:00.0002", id: 1, symbol: AAPL, side: B, price: "50.67", size: 100}
- {at: "09:30:00.0002", id: 2, symbol: AAPL, side: buy, price: "50.66", size: 100, tif: DAY}
`

func writeScenario(t *testing.T) string {
	sc, err := readScenario(strings.NewReader(testScenario))
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "xnas_20160301.pcap")
	f, err := os.Create(name)
	require.NoError(t, err)
	n, err := synthesize(f, sc)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, 7, n)
	return name
}

func TestReadScript(t *testing.T) {
	steps, err := readScript(strings.NewReader(testScript))
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.EqualValues(t, 1, steps[0].order.Id)
	assert.Equal(t, feed.Price(506700), steps[0].order.Price)
	assert.Equal(t, feed.SideBuy, steps[1].order.Side)
	assert.Equal(t, feed.TifDay, steps[1].order.Tif)
	assert.EqualValues(t, 2, steps[2].cancel)
	assert.Equal(t, 9*time.Hour+30*time.Minute+2500*time.Millisecond, steps[2].at)

	_, err = readScript(strings.NewReader(`[{at: "09:30:00", id: 1, symbol: AAPL, side: B, price: "1", size: 1, tif: fok}]`))
	assert.ErrorIs(t, err, errBadStep)
	_, err = readScript(strings.NewReader(`[{at: "09:30:00", symbol: AAPL, side: B, price: "1", size: 1}]`))
	assert.ErrorIs(t, err, errBadStep)
	steps, err = readScript(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestSynthBadEvents(t *testing.T) {
	for _, tc := range []string{
		`{date: "2016-03-01", feeds: {x: {protocol: itch50, dst: "233.54.12.1:18001"}}, events: [{at: "09:30:00", feed: y, type: delete}]}`,
		`{date: "2016-03-01", feeds: {x: {protocol: itch50, dst: "233.54.12.1:18001"}}, events: [{at: "09:30:00", feed: x, type: trade}]}`,
		`{date: "2016-03-01", feeds: {x: {protocol: pitch2, dst: "233.54.12.1:18001"}}, events: [{at: "09:30:00", feed: x, type: symbol, symbol: A}]}`,
		`{date: "2016-03-01", feeds: {x: {protocol: itch50, dst: "233.54.12.1:18001"}}, events: [{at: "09:30:00", feed: x, type: add, symbol: A}]}`,
	} {
		sc, err := readScenario(strings.NewReader(tc))
		require.NoError(t, err)
		_, err = synthesize(&bytes.Buffer{}, sc)
		assert.ErrorIs(t, err, errBadEvent, tc)
	}
}

func TestSynthInspect(t *testing.T) {
	name := writeScenario(t)

	src, err := packet.OpenSource(name)
	require.NoError(t, err)
	defer src.Close()
	var out bytes.Buffer
	n, err := inspect(&out, src, nasdaq.LayerTypeMoldUDP64, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 7, strings.Count(out.String(), "nasdaq.MoldUDP64{"))
	assert.Contains(t, out.String(), "-> 233.54.12.1:18001")
	assert.Contains(t, out.String(), "14:30:04.000000000")

	src2, err := packet.OpenSource(name)
	require.NoError(t, err)
	defer src2.Close()
	n, err = inspect(&bytes.Buffer{}, src2, nasdaq.LayerTypeMoldUDP64, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBacktest(t *testing.T) {
	name := writeScenario(t)
	st := config.NewStore(map[string]interface{}{
		"feeds": map[string]interface{}{
			"xnas": map[string]interface{}{
				"venue":    "XNAS",
				"protocol": "itch50",
				"lines":    []string{"233.54.12.1:18001"},
			},
		},
	})
	dm, err := datamgr.New(st.Snapshot())
	require.NoError(t, err)
	dm.UseFiles([]string{name}, decmux.Latencies{})
	steps, err := readScript(strings.NewReader(testScript))
	require.NoError(t, err)

	var out bytes.Buffer
	sess, err := backtest(context.Background(), dm, feed.VenueXNAS, sim.DefaultConfig, steps, &out)
	require.NoError(t, err)

	// order 1 waits behind 300, so only the execution of the order that
	// joined behind it reaches it
	st1, ok := sess.Order(1)
	require.True(t, ok)
	assert.Equal(t, sim.StatePartiallyFilled, st1.State)
	assert.EqualValues(t, 60, st1.Filled)
	st2, ok := sess.Order(2)
	require.True(t, ok)
	assert.Equal(t, sim.StateCancelled, st2.State)
	assert.Zero(t, sess.Pending())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Ack #1 Acked")
	assert.Contains(t, lines[1], "Ack #2 Acked")
	assert.Contains(t, lines[2], "Cancel #2 Cancelled 100")
	assert.Equal(t, "14:30:04.000050000 Fill #1 PartiallyFilled 60@50.6700 leaves=40", lines[3])

	_, err = backtest(context.Background(), dm, feed.VenueXNYS, sim.DefaultConfig, nil, &out)
	assert.Error(t, err)
}
