package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// pointTrack has a single-base record at chr1:1 through chr1:n.
func pointTrack(t *testing.T, n int) *SeekableIterator {
	fs := make([]Feature, n)
	for i := range fs {
		fs[i] = feat(t, "chr1", int64(i+1), int64(i+1))
	}
	return NewSeekableIterator("points", newSliceReader(fs...))
}

func nextSites(t *testing.T, it Iterator, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rl, err := it.Next()
		require.NoError(t, err)
		out = append(out, rl.Location.String())
	}
	return out
}

func siteStrings(t *testing.T, it Iterator) []string {
	t.Helper()
	var out []string
	for _, l := range drain(t, it) {
		out = append(out, l.String())
	}
	return out
}

func TestFlashbackRoundTrip(t *testing.T) {
	fb := NewFlashbackIterator(pointTrack(t, 10), 5)
	nextSites(t, fb, 10)
	assert.Equal(t, "chr1:10", fb.Position().String())

	target := loc(t, "chr1:6")
	require.True(t, fb.CanFlashBackTo(target))
	require.NoError(t, fb.FlashBackTo(target))
	assert.Equal(t, "chr1:5", fb.Position().String())
	assert.Equal(t, "chr1:6", fb.PeekNextLocation().String())

	assert.Equal(t, []string{"chr1:6", "chr1:7", "chr1:8", "chr1:9", "chr1:10"}, siteStrings(t, fb))
}

func TestFlashbackWindowBoundsRewind(t *testing.T) {
	fb := NewFlashbackIterator(pointTrack(t, 10), 5)
	nextSites(t, fb, 10)

	assert.False(t, fb.CanFlashBackTo(loc(t, "chr1:5")))
	assert.False(t, fb.CanRewindToStart())

	err := fb.FlashBackTo(loc(t, "chr1:2"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Equal(t, "chr1:10", fb.Position().String(), "failed flashback leaves the iterator untouched")
}

func TestFlashbackRewindToStart(t *testing.T) {
	fb := NewFlashbackIterator(pointTrack(t, 10), 16)
	first := siteStrings(t, fb)
	require.Len(t, first, 10)

	require.True(t, fb.CanRewindToStart())
	require.NoError(t, fb.RewindToStart())
	assert.Nil(t, fb.Position())
	assert.Equal(t, first, siteStrings(t, fb))
}

func TestFlashbackRefusesToCrossASeek(t *testing.T) {
	fb := NewFlashbackIterator(pointTrack(t, 10), 8)
	nextSites(t, fb, 3)

	rl, err := fb.SeekForward(loc(t, "chr1:6"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:6"}, names(rl))

	assert.False(t, fb.CanFlashBackTo(loc(t, "chr1:2")), "records 4 and 5 were skipped unseen")
	assert.False(t, fb.CanRewindToStart())

	require.True(t, fb.CanFlashBackTo(loc(t, "chr1:6")))
	require.NoError(t, fb.FlashBackTo(loc(t, "chr1:6")))
	assert.Equal(t, "chr1:3", fb.Position().String())
	assert.Equal(t, []string{"chr1:6", "chr1:7"}, nextSites(t, fb, 2))
}

func TestFlashbackSeekForwardWhileReplaying(t *testing.T) {
	fb := NewFlashbackIterator(pointTrack(t, 10), 8)
	nextSites(t, fb, 5)
	require.NoError(t, fb.FlashBackTo(loc(t, "chr1:2")))
	assert.Equal(t, "chr1:1", fb.Position().String())

	rl, err := fb.SeekForward(loc(t, "chr1:3-7"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:3", "chr1:4", "chr1:5", "chr1:6", "chr1:7"}, names(rl))
	assert.Equal(t, "chr1:3-7", rl.Location.String())
	assert.Equal(t, "chr1:7", fb.Position().String())

	_, err = fb.SeekForward(loc(t, "chr1:4"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFlashbackSeekWithinReplayDoesNotTouchInner(t *testing.T) {
	inner := pointTrack(t, 10)
	fb := NewFlashbackIterator(inner, 8)
	nextSites(t, fb, 6)
	require.NoError(t, fb.FlashBackTo(loc(t, "chr1:3")))

	rl, err := fb.SeekForward(loc(t, "chr1:4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1:4"}, names(rl))
	assert.Equal(t, "chr1:6", inner.Position().String())

	assert.Equal(t, []string{"chr1:5", "chr1:6", "chr1:7"}, nextSites(t, fb, 3))
}

func TestFlashbackEmptyQueryInsideTarget(t *testing.T) {
	fs := []Feature{feat(t, "chr1", 1, 1), feat(t, "chr1", 200, 200)}
	fb := NewFlashbackIterator(NewSeekableIterator("sparse", newSliceReader(fs...)), 4)
	nextSites(t, fb, 1)

	rl, err := fb.SeekForward(loc(t, "chr1:50-100"))
	require.NoError(t, err)
	assert.Nil(t, rl)
	assert.Equal(t, "chr1:100", fb.Position().String())

	target := loc(t, "chr1:60")
	require.True(t, fb.CanFlashBackTo(target))
	require.NoError(t, fb.FlashBackTo(target))
	assert.Equal(t, "chr1:59", fb.Position().String())

	rl, err = fb.SeekForward(target)
	require.NoError(t, err)
	assert.Nil(t, rl)
}
