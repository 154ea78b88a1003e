package decmux

import (
	"context"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/config"
	"my/mdbook/feed"
	"my/mdbook/packet"
	"my/mdbook/seq"
)

var (
	t0   = time.Date(2016, 3, 1, 14, 30, 0, 0, time.UTC)
	dstA = netip.MustParseAddrPort("233.54.12.1:18001")
	dstB = netip.MustParseAddrPort("224.0.62.2:30001")
)

type fakeDecoder struct {
	payloads [][]byte
	times    []feed.Timestamp
	checks   []feed.Timestamp
}

func (d *fakeDecoder) Decode(payload []byte, t feed.Timestamp) (int, error) {
	d.payloads = append(d.payloads, payload)
	d.times = append(d.times, t)
	return len(payload), nil
}
func (d *fakeDecoder) CheckTimeouts(now feed.Timestamp) { d.checks = append(d.checks, now) }
func (d *fakeDecoder) Streams() []*seq.Stream           { return nil }

type sliceSource struct {
	dgs []packet.Datagram
}

func (s *sliceSource) Next() (packet.Datagram, error) {
	if len(s.dgs) == 0 {
		return packet.Datagram{}, io.EOF
	}
	dg := s.dgs[0]
	s.dgs = s.dgs[1:]
	return dg, nil
}

func dgAt(us int, dst netip.AddrPort, tag byte) packet.Datagram {
	return packet.Datagram{
		Time:    feed.TimestampFromTime(t0.Add(time.Duration(us) * time.Microsecond)),
		Dst:     dst,
		Payload: []byte{tag},
	}
}

func TestRouting(t *testing.T) {
	m := New()
	d := &fakeDecoder{}
	require.NoError(t, m.AddRoute(dstA, d))
	require.NoError(t, m.AddRoute(dstB, d))
	assert.ErrorIs(t, m.AddRoute(dstA, &fakeDecoder{}), ErrDuplicateRoute)
	assert.Len(t, m.Decoders(), 1, "both lines share the decoder")
	assert.ElementsMatch(t, []netip.AddrPort{dstA, dstB}, m.Routes())

	assert.True(t, m.Dispatch(dgAt(0, dstA, 1)))
	assert.True(t, m.Dispatch(dgAt(1, dstB, 2)))
	assert.False(t, m.Dispatch(dgAt(2, netip.MustParseAddrPort("1.2.3.4:5"), 3)))
	assert.Equal(t, [][]byte{{1}, {2}}, d.payloads)
	assert.Equal(t, Stats{Packets: 2, Bytes: 2, Unrouted: 1}, m.Stats())
	assert.Equal(t, dgAt(2, dstA, 0).Time, m.Now())
}

func TestMergeOrder(t *testing.T) {
	a := &sliceSource{dgs: []packet.Datagram{dgAt(0, dstA, 1), dgAt(10, dstA, 2), dgAt(20, dstA, 3), dgAt(15, dstA, 4)}}
	b := &sliceSource{dgs: []packet.Datagram{dgAt(0, dstB, 11), dgAt(4, dstB, 12), dgAt(30, dstB, 13)}}
	c := &sliceSource{}
	mg, err := NewMerger([]Input{
		{Name: "a", Source: a},
		{Name: "b", Source: b, Latency: 5 * time.Microsecond},
		{Name: "c", Source: c},
	})
	require.NoError(t, err)

	var tags []byte
	var inputs []int
	var last feed.Timestamp
	for {
		dg, in, err := mg.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.GreaterOrEqual(t, dg.Time, last)
		last = dg.Time
		tags = append(tags, dg.Payload[0])
		inputs = append(inputs, in)
	}
	// b is shifted by 5us; a's step back to 15 is clamped to 20
	assert.Equal(t, []byte{1, 11, 12, 2, 3, 4, 13}, tags)
	assert.Equal(t, []int{0, 1, 1, 0, 0, 0, 1}, inputs)
	assert.Equal(t, dgAt(35, dstB, 0).Time, last)
}

func TestMergeTieBreak(t *testing.T) {
	a := &sliceSource{dgs: []packet.Datagram{dgAt(5, dstA, 1), dgAt(5, dstA, 2)}}
	b := &sliceSource{dgs: []packet.Datagram{dgAt(5, dstB, 3)}}
	mg, err := NewMerger([]Input{{Name: "b", Source: b}, {Name: "a", Source: a}})
	require.NoError(t, err)
	var tags []byte
	for {
		dg, _, err := mg.Next()
		if err == io.EOF {
			break
		}
		tags = append(tags, dg.Payload[0])
	}
	assert.Equal(t, []byte{3, 1, 2}, tags)
}

func TestTimersFollowCaptureTime(t *testing.T) {
	m := New(WithTimerInterval(10 * time.Microsecond))
	d := &fakeDecoder{}
	require.NoError(t, m.AddRoute(dstA, d))
	var fired []feed.Timestamp
	m.AddTimer(TimerFunc(func(now feed.Timestamp) { fired = append(fired, now) }))

	src := &sliceSource{dgs: []packet.Datagram{dgAt(0, dstA, 1), dgAt(4, dstA, 2), dgAt(12, dstA, 3), dgAt(13, dstA, 4)}}
	mg, err := NewMerger([]Input{{Name: "a", Source: src}})
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background(), mg))

	ts := func(us int) feed.Timestamp { return dgAt(us, dstA, 0).Time }
	// the first datagram is far from the zero start, the last tick is the
	// end-of-input flush
	assert.Equal(t, []feed.Timestamp{ts(0), ts(12), ts(13)}, fired)
	assert.Equal(t, fired, d.checks)
}

func TestRunCancelled(t *testing.T) {
	m := New()
	mg, err := NewMerger([]Input{{Name: "a", Source: &sliceSource{dgs: []packet.Datagram{dgAt(0, dstA, 1)}}}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx, mg), context.Canceled)
}

func writePcap(t *testing.T, name string, dst netip.AddrPort, us ...int) {
	t.Helper()
	f, err := os.Create(name)
	require.NoError(t, err)
	defer f.Close()
	w, err := packet.NewWriter(f)
	require.NoError(t, err)
	for i, u := range us {
		require.NoError(t, w.WriteUDP(t0.Add(time.Duration(u)*time.Microsecond), dst, []byte{byte(i)}))
	}
}

func TestReplayFiles(t *testing.T) {
	dir := t.TempDir()
	fa := filepath.Join(dir, "xnas_20160301.pcap")
	fb := filepath.Join(dir, "edga_20160301.pcap")
	writePcap(t, fa, dstA, 0, 10, 20)
	writePcap(t, fb, dstB, 1, 2, 3)

	da, db := &fakeDecoder{}, &fakeDecoder{}
	m := New()
	require.NoError(t, m.AddRoute(dstA, da))
	require.NoError(t, m.AddRoute(dstB, db))
	lat := Latencies{Overrides: []LatencyOverride{{Match: mustRe(t, `^edga_`), Latency: 15 * time.Microsecond}}}
	require.NoError(t, m.ReplayFiles(context.Background(), []string{fa, fb}, lat))

	ts := func(us int) feed.Timestamp { return feed.TimestampFromTime(t0.Add(time.Duration(us) * time.Microsecond)) }
	assert.Equal(t, []feed.Timestamp{ts(0), ts(10), ts(20)}, da.times)
	assert.Equal(t, []feed.Timestamp{ts(16), ts(17), ts(18)}, db.times)
	assert.EqualValues(t, 6, m.Stats().Packets)

	assert.Error(t, m.ReplayFiles(context.Background(), []string{filepath.Join(dir, "missing.pcap")}, Latencies{}))
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	day := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Mkdir(filepath.Join(root, "20160301"), 0o755))
	for _, name := range []string{
		filepath.Join(root, "itch_20160301.pcap"),
		filepath.Join(root, "itch_20160302.pcap"),
		filepath.Join(root, "itch_20160301.pcap.bak"),
		filepath.Join(root, "20160301", "itch_20160301_b.pcap.lz4"),
		filepath.Join(root, "20160301", "edga_20160301.pcap"),
		filepath.Join(other, "itch_20160301.pcap"),
	} {
		require.NoError(t, os.WriteFile(name, nil, 0o644))
	}

	files, err := FindFiles([]string{root, other, filepath.Join(root, "nope")}, day, `itch.*\.pcap(\.lz4)?`)
	require.NoError(t, err)
	assert.True(t, sort.StringsAreSorted(files))
	assert.ElementsMatch(t, []string{
		filepath.Join(other, "itch_20160301.pcap"),
		filepath.Join(root, "20160301", "itch_20160301_b.pcap.lz4"),
		filepath.Join(root, "itch_20160301.pcap"),
	}, files)

	_, err = FindFiles([]string{root}, day, `(`)
	assert.Error(t, err)

	st := config.NewStore(map[string]interface{}{
		"replay": map[string]interface{}{
			"search_path": []string{root},
			"files": map[string]interface{}{
				"XNAS": `itch.*\.pcap(\.lz4)?`,
				"EDGA": `edga.*\.pcap`,
				"XXXX": `.*`,
				"BATS": `(`,
			},
		},
	})
	byVenue, skipped, err := FilesFromConfig(st.Snapshot(), day)
	require.NoError(t, err)
	assert.Len(t, skipped, 2)
	assert.Len(t, byVenue, 2)
	assert.Len(t, byVenue[feed.VenueXNAS], 2)
	assert.Equal(t, []string{filepath.Join(root, "20160301", "edga_20160301.pcap")}, byVenue[feed.VenueEDGA])
}

func TestLatencies(t *testing.T) {
	st, err := config.Load(strings.NewReader(`
replay:
  latency:
    default: 2us
    overrides:
      - {match: "^edga", latency: 7us}
      - {match: "pcap$", latency: 3000}
`), "yaml")
	require.NoError(t, err)
	l, err := LatenciesFromConfig(st.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, 7*time.Microsecond, l.For("/data/edga_20160301.pcap"), "first match wins")
	assert.Equal(t, 3*time.Microsecond, l.For("/data/itch_20160301.pcap"))
	assert.Equal(t, 2*time.Microsecond, l.For("/data/itch_20160301.pcap.lz4"))

	l, err = LatenciesFromConfig(config.NewStore(nil).Snapshot())
	require.NoError(t, err)
	assert.Zero(t, l.For("x"))
}

func mustRe(t *testing.T, s string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(s)
	require.NoError(t, err)
	return re
}
