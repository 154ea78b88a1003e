package universe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"my/mdbook/config"
	"my/mdbook/feed"
)

const universeYAML = `
- id: 1001
  symbols: {XNAS: AAPL, EDGA: AAPL}
- id: 1002
  symbols: {XNYS: IBM}
`

func TestUniverseRead(t *testing.T) {
	u := New()
	require.NoError(t, u.Read(strings.NewReader(universeYAML)))
	id, ok := u.Instrument(feed.VenueEDGA, "aapl")
	require.True(t, ok)
	assert.EqualValues(t, 1001, id)
	_, ok = u.Instrument(feed.VenueXNYS, "AAPL")
	assert.False(t, ok)
	name, ok := u.Symbol(feed.VenueXNYS, 1002)
	require.True(t, ok)
	assert.Equal(t, "IBM", name)
	assert.Equal(t, []uint64{1001, 1002}, u.Instruments())
	assert.Equal(t, 3, u.Len())

	err := u.Read(strings.NewReader("- id: 1\n  symbols: {NOPE: X}\n"))
	assert.ErrorIs(t, err, feed.ErrUnknownVenue)
}

func TestUniverseFromConfig(t *testing.T) {
	name := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(name, []byte(universeYAML), 0o644))
	st := config.NewStore(map[string]interface{}{
		"universe": map[string]interface{}{
			"file": name,
			"map": map[string]interface{}{
				"xnas": map[string]interface{}{"aapl": 2001, "msft": 2002},
			},
		},
	})
	u, err := FromConfig(st.Snapshot())
	require.NoError(t, err)
	id, ok := u.Instrument(feed.VenueXNAS, "AAPL")
	require.True(t, ok)
	assert.EqualValues(t, 2001, id, "map entries override the file")
	id, ok = u.Instrument(feed.VenueEDGA, "AAPL")
	require.True(t, ok)
	assert.EqualValues(t, 1001, id)
	id, ok = u.Instrument(feed.VenueXNAS, "MSFT")
	require.True(t, ok)
	assert.EqualValues(t, 2002, id)
	_, ok = u.Symbol(feed.VenueXNAS, 1001)
	assert.False(t, ok)

	u, err = FromConfig(config.NewStore(nil).Snapshot())
	require.NoError(t, err)
	assert.Zero(t, u.Len())
}
