package orderbook

import (
	"testing"

	"github.com/aetherbook/aetherbook/fixedpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(price, size string) LevelChange { return LevelChange{Price: price, Size: size} }

func TestSetFromSnapshotDropsZeroSizeLevels(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	err := b.SetFromSnapshot(Snapshot{
		LastUpdateID: 100,
		Bids:         []LevelChange{lvl("10.00", "1.0"), lvl("9.00", "0")},
		Asks:         []LevelChange{lvl("11.00", "2.0")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b.LastUpdateID())
	assert.Equal(t, 2, b.TotalLevels())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.EqualValues(t, mustParse(t, "10.00"), bid.Price)
}

func TestSetFromSnapshotMalformedFailsCleanly(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	err := b.SetFromSnapshot(Snapshot{
		LastUpdateID: 1,
		Bids:         []LevelChange{lvl("garbage", "1.0")},
	})
	require.ErrorIs(t, err, ErrMalformedSnapshot)
	assert.Equal(t, uint64(0), b.LastUpdateID())
	assert.Equal(t, 0, b.TotalLevels())
}

// S1, happy sync.
func TestApplyEventHappySync(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{
		LastUpdateID: 100,
		Bids:         []LevelChange{lvl("10.00", "1.0")},
		Asks:         []LevelChange{lvl("11.00", "2.0")},
	}))

	res, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 99, LastUpdateID: 101, Bids: []LevelChange{lvl("10.00", "0.5")}})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	res, err = b.ApplyEvent(DepthEvent{FirstUpdateID: 102, LastUpdateID: 103, Asks: []LevelChange{lvl("11.00", "2.5")}})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	assert.Equal(t, uint64(103), b.LastUpdateID())
	bid, _ := b.BestBid()
	assert.EqualValues(t, mustParse(t, "0.5"), bid.Size)
	ask, _ := b.BestAsk()
	assert.EqualValues(t, mustParse(t, "2.5"), ask.Size)
}

func mustParse(t *testing.T, s string) fixedpoint.Value {
	v, err := fixedpoint.Parse(s, fixedpoint.DefaultScale)
	require.NoError(t, err)
	return v
}

// Invariant 2: stale event is ignored and book is untouched.
func TestApplyEventStaleIsIgnored(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{LastUpdateID: 200}))

	before := b.LastUpdateID()
	res, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 150, LastUpdateID: 190, Bids: []LevelChange{lvl("1.0", "1.0")}})
	require.NoError(t, err)
	assert.Equal(t, Ignored, res)
	assert.Equal(t, before, b.LastUpdateID())
	assert.Equal(t, 0, b.TotalLevels())
}

// Invariant 3: a gap is reported and the book is untouched.
func TestApplyEventGapLeavesBookUnchanged(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{LastUpdateID: 300}))

	res, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 305, LastUpdateID: 310})
	require.NoError(t, err)
	assert.Equal(t, Gap, res)
	assert.Equal(t, uint64(300), b.LastUpdateID())
}

// S2 inputs fed straight to ApplyEvent. Unlike the Synchronizer's backlog
// discard (u <= lastUpdateId), ApplyEvent only ignores u < last_update_id,
// so the event ending exactly at 200 is applied as a no-op.
func TestApplyEventSequentialStaleThenApplied(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{LastUpdateID: 200}))

	res, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 180, LastUpdateID: 190})
	require.NoError(t, err)
	assert.Equal(t, Ignored, res)

	res, err = b.ApplyEvent(DepthEvent{FirstUpdateID: 191, LastUpdateID: 200})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)

	res, err = b.ApplyEvent(DepthEvent{FirstUpdateID: 200, LastUpdateID: 205})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)
	assert.Equal(t, uint64(205), b.LastUpdateID())
}

func TestApplyEventMalformedLeavesBookUnchanged(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{
		LastUpdateID: 10,
		Bids:         []LevelChange{lvl("10.00", "1.0")},
	}))

	_, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 11, LastUpdateID: 12, Bids: []LevelChange{lvl("not-a-price", "1.0")}})
	require.ErrorIs(t, err, ErrMalformedEvent)
	assert.Equal(t, uint64(10), b.LastUpdateID())
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.EqualValues(t, mustParse(t, "1.0"), bid.Size)
}

func TestDeleteLevelOnZeroSize(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{
		LastUpdateID: 1,
		Bids:         []LevelChange{lvl("10.00", "1.0"), lvl("9.00", "1.0")},
	}))
	res, err := b.ApplyEvent(DepthEvent{FirstUpdateID: 2, LastUpdateID: 2, Bids: []LevelChange{lvl("10.00", "0")}})
	require.NoError(t, err)
	assert.Equal(t, Applied, res)
	assert.Equal(t, 1, b.TotalLevels())
	bid, _ := b.BestBid()
	assert.EqualValues(t, mustParse(t, "9.00"), bid.Price)
}

func TestBestBidLessThanBestAsk(t *testing.T) {
	b := New(fixedpoint.DefaultScale)
	require.NoError(t, b.SetFromSnapshot(Snapshot{
		LastUpdateID: 1,
		Bids:         []LevelChange{lvl("10.00", "1.0")},
		Asks:         []LevelChange{lvl("11.00", "1.0")},
	}))
	bid, _ := b.BestBid()
	ask, _ := b.BestAsk()
	assert.Less(t, int64(bid.Price), int64(ask.Price))
}
