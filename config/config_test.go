package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
feeds:
  itch:
    venue: XNAS
    protocol: itch50
    lines: ["233.54.12.1:18001", "233.49.196.1:18001"]
    timeout: 250ms
  edga:
    venue: EDGA
    protocol: pitch2
    global_refs: true
sim:
  latency:
    ack: 5000
    fill: 20us
`

func load(t *testing.T) *Store {
	t.Helper()
	st, err := Load(strings.NewReader(sample), "yaml")
	require.NoError(t, err)
	return st
}

func TestSnapshotGetters(t *testing.T) {
	s := load(t).Snapshot()
	assert.Equal(t, []string{"edga", "itch"}, s.Domain("feeds").Children())

	itch := s.Domain("feeds.itch")
	v, err := itch.String("venue")
	require.NoError(t, err)
	assert.Equal(t, "XNAS", v)
	lines, err := itch.Strings("lines")
	require.NoError(t, err)
	assert.Equal(t, []string{"233.54.12.1:18001", "233.49.196.1:18001"}, lines)
	d, err := itch.Duration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	assert.Equal(t, "feeds.itch", itch.Prefix())

	ack, err := s.Duration("sim.latency.ack")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Microsecond, ack)
	fill, err := s.Domain("sim").Domain("latency").Duration("fill")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Microsecond, fill)

	g, err := s.Domain("feeds.edga").BoolOr("global_refs", false)
	require.NoError(t, err)
	assert.True(t, g)
	g, err = itch.BoolOr("global_refs", false)
	require.NoError(t, err)
	assert.False(t, g)

	_, err = itch.String("interface")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = itch.Int("venue")
	assert.Error(t, err)
}

func TestStoreCopyOnWrite(t *testing.T) {
	st := load(t)
	before := st.Snapshot()
	var got []*Snapshot
	unsubscribe := st.Subscribe(func(s *Snapshot) { got = append(got, s) })

	after := st.Set("sim.latency.ack", "7us")
	ack, err := before.Duration("sim.latency.ack")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Microsecond, ack, "old snapshot is immutable")
	ack, err = after.Duration("sim.latency.ack")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Microsecond, ack)
	assert.Equal(t, before.Version()+1, after.Version())
	require.Len(t, got, 1)
	assert.Same(t, after, got[0])

	unsubscribe()
	st.Update(map[string]interface{}{"sim": map[string]interface{}{"cancel_policy": "proportional"}})
	assert.Len(t, got, 1)
	p, err := st.Snapshot().String("sim.cancel_policy")
	require.NoError(t, err)
	assert.Equal(t, "proportional", p)
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "mdbook.yaml")
	require.NoError(t, os.WriteFile(name, []byte(sample), 0o644))
	t.Setenv("MDBOOK_SIM_LATENCY_ACK", "9us")

	st, err := LoadFile(name)
	require.NoError(t, err)
	ack, err := st.Snapshot().Duration("sim.latency.ack")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Microsecond, ack)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
