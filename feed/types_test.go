package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFromScaled(t *testing.T) {
	cases := []struct {
		num   int64
		scale uint8
		want  Price
	}{
		{5067, 2, 506700},
		{506700, 4, 506700},
		{50670000, 6, 506700},
		{50, 0, 500000},
		{123456789, 8, 12345},
	}
	for _, c := range cases {
		p, err := PriceFromScaled(c.num, c.scale)
		require.NoError(t, err)
		assert.Equal(t, c.want, p, "num=%d scale=%d", c.num, c.scale)
	}
	_, err := PriceFromScaled(1, 11)
	assert.ErrorIs(t, err, ErrPriceScale)
}

func TestParsePrice(t *testing.T) {
	p, err := ParsePrice("50.67")
	require.NoError(t, err)
	assert.Equal(t, Price(506700), p)
	assert.Equal(t, "50.6700", p.String())
	assert.Equal(t, int64(5067), p.ToInt(2))
	assert.Equal(t, int64(50670000), p.ToInt(6))

	_, err = ParsePrice("abc")
	assert.Error(t, err)
}

func TestSideFromByte(t *testing.T) {
	assert.Equal(t, SideBuy, SideFromByte('B'))
	assert.Equal(t, SideSell, SideFromByte('S'))
	assert.Equal(t, SideSell, SideFromByte('A'))
	assert.Equal(t, SideUnknown, SideFromByte('Z'))
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.False(t, SideUnknown.Valid())
}

func TestPriceBetter(t *testing.T) {
	assert.True(t, Price(101).Better(100, SideBuy))
	assert.True(t, Price(99).Better(100, SideSell))
	assert.True(t, Price(100).Through(100, SideSell))
	assert.False(t, Price(101).Through(100, SideSell))
}

func TestVenueFromMIC(t *testing.T) {
	v, err := VenueFromMIC("edga")
	require.NoError(t, err)
	assert.Equal(t, VenueEDGA, v)
	assert.Equal(t, "EDGA", v.String())
	_, err = VenueFromMIC("NOPE")
	assert.ErrorIs(t, err, ErrUnknownVenue)
}
