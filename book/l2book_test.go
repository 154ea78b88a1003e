package book

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"my/mdbook/feed"
)

func TestL2BookReplace(t *testing.T) {
	lb := NewL2Book()

	prev, flags := lb.Replace(feed.SideBuy, 100, 500, 2, 1)
	assert.Equal(t, Top{}, prev)
	assert.Equal(t, FlagLevelAdded, flags)

	_, flags = lb.Replace(feed.SideBuy, 100, 300, 1, 2)
	assert.Equal(t, FlagSizeReduced, flags)
	_, flags = lb.Replace(feed.SideBuy, 100, 400, 2, 3)
	assert.Zero(t, flags)

	lb.Replace(feed.SideBuy, 101, 100, 1, 4)
	lb.Replace(feed.SideBuy, 99, 100, 1, 4)
	lb.Replace(feed.SideSell, 103, 200, 1, 5)
	lb.Replace(feed.SideSell, 102, 200, 1, 5)

	assert.Equal(t, Top{Price: 101, Size: 100, Orders: 1}, lb.BestBid())
	assert.Equal(t, Top{Price: 102, Size: 200, Orders: 1}, lb.BestAsk())
	assert.Equal(t, []Top{{101, 100, 1}, {100, 400, 2}}, lb.Levels(feed.SideBuy, 2))
	assert.Equal(t, uint64(400), lb.LevelAt(feed.SideBuy, 100).Size)

	prev, flags = lb.Replace(feed.SideBuy, 101, 0, 0, 6)
	assert.Equal(t, uint64(100), prev.Size)
	assert.Equal(t, FlagLevelDeleted, flags)
	assert.Equal(t, feed.Price(100), lb.BestBid().Price)

	_, flags = lb.Replace(feed.SideBuy, 77, 0, 0, 7)
	assert.Equal(t, FlagNotFound, flags)
	assert.Equal(t, 2, lb.Len(feed.SideBuy))
}

func TestL2BookCrossed(t *testing.T) {
	lb := NewL2Book()
	lb.Replace(feed.SideBuy, 105, 10, 1, 1)
	lb.Replace(feed.SideBuy, 104, 10, 1, 1)
	lb.Replace(feed.SideBuy, 100, 10, 1, 1)
	lb.Replace(feed.SideSell, 104, 10, 1, 1)
	assert.True(t, lb.Crossed())

	removed := lb.ClearCrossed(feed.SideBuy, 104)
	assert.Len(t, removed, 2)
	assert.False(t, lb.Crossed())
	assert.Nil(t, lb.ClearCrossed(feed.SideBuy, 104))

	lb.Clear()
	assert.True(t, lb.BestBid().IsEmpty(feed.SideBuy))
	assert.True(t, lb.BestAsk().IsEmpty(feed.SideSell))
}
