package overlay

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robovis/overlay-renderer/pkg/types"
)

func frameAt(id int, ts float64) types.MetadataFrame {
	return types.MetadataFrame{FrameID: id, Timestamp: ts}
}

func TestBufferMatchNearest(t *testing.T) {
	b := NewBuffer(0, 0)
	b.Ingest(frameAt(1, 1000))
	b.Ingest(frameAt(2, 2000))
	b.Ingest(frameAt(3, 3000))

	// First query seeds the clock offset from the oldest frame.
	frame, residual, ok := b.Match(1000)
	require.True(t, ok)
	assert.Equal(t, 1, frame.FrameID)
	assert.Equal(t, 0.0, residual)

	offset, set := b.Offset()
	require.True(t, set)
	assert.Equal(t, 0.0, offset)

	// 1950 is closest to the frame at 2000.
	frame, residual, ok = b.Match(1950)
	require.True(t, ok)
	assert.Equal(t, 2, frame.FrameID)
	assert.Equal(t, 50.0, residual)

	// The match consumed everything up to and including index 1.
	assert.Equal(t, 1, b.Len())
}

func TestBufferMatchToleranceMiss(t *testing.T) {
	b := NewBuffer(0, 120)
	b.Ingest(frameAt(1, 1000))
	b.Ingest(frameAt(2, 2000))

	_, _, ok := b.Match(1000)
	require.True(t, ok)

	// Closest frame is 2000, which is 500ms away: no match, buffer intact.
	_, _, ok = b.Match(1500)
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len())

	// A later, better-timed query still finds it.
	frame, _, ok := b.Match(1990)
	require.True(t, ok)
	assert.Equal(t, 2, frame.FrameID)
}

func TestBufferMatchEmpty(t *testing.T) {
	b := NewBuffer(0, 0)
	_, _, ok := b.Match(500)
	assert.False(t, ok)

	// An empty buffer must not seed the offset.
	_, set := b.Offset()
	assert.False(t, set)
}

func TestBufferOffsetSeededLazily(t *testing.T) {
	b := NewBuffer(0, 0)
	b.Ingest(frameAt(1, 1_700_000_000_000))

	frame, residual, ok := b.Match(40)
	require.True(t, ok)
	assert.Equal(t, 1, frame.FrameID)
	assert.Equal(t, 0.0, residual)

	offset, set := b.Offset()
	require.True(t, set)
	assert.Equal(t, 1_700_000_000_000-40.0, offset)
}

func TestBufferIngestReplacesByFrameID(t *testing.T) {
	b := NewBuffer(0, 0)
	first := frameAt(7, 1000)
	b.Ingest(first)

	updated := frameAt(7, 1500)
	updated.Detections = []types.BoundingBox{{ID: "7-0"}}
	stats := b.Ingest(updated)

	assert.True(t, stats.Replaced)
	assert.Equal(t, 1, b.Len())

	frame, _, ok := b.Match(1500)
	require.True(t, ok)
	assert.Len(t, frame.Detections, 1)
}

func TestBufferIngestKeepsSortedOrder(t *testing.T) {
	b := NewBuffer(0, 0)
	b.Ingest(frameAt(2, 2000))
	b.Ingest(frameAt(1, 1000))
	b.Ingest(frameAt(3, 3000))

	// Seeding against the oldest timestamp proves index 0 is 1000.
	_, residual, ok := b.Match(0)
	require.True(t, ok)
	assert.Equal(t, 0.0, residual)

	offset, _ := b.Offset()
	assert.Equal(t, 1000.0, offset)
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	b := NewBuffer(3, 0)
	b.Ingest(frameAt(1, 1000))
	b.Ingest(frameAt(2, 2000))
	b.Ingest(frameAt(3, 3000))

	stats := b.Ingest(frameAt(4, 4000))
	assert.Equal(t, 1, stats.Evicted)
	assert.Equal(t, 3, b.Len())

	// Frame 1 is gone; the oldest survivor is 2000.
	_, _, ok := b.Match(2000)
	require.True(t, ok)
	offset, _ := b.Offset()
	assert.Equal(t, 0.0, offset)
}

func TestBufferSanitizesBadTimestamps(t *testing.T) {
	cases := []struct {
		name string
		ts   float64
	}{
		{"zero", 0},
		{"nan", math.NaN()},
		{"pos-inf", math.Inf(1)},
		{"neg-inf", math.Inf(-1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer(0, 0)
			b.now = func() time.Time { return time.UnixMilli(5000) }

			stats := b.Ingest(frameAt(1, tc.ts))
			assert.True(t, stats.Sanitized)

			frame, _, ok := b.Match(5000)
			require.True(t, ok)
			assert.Equal(t, 5000.0, frame.Timestamp)
		})
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(0, 0)
	b.Ingest(frameAt(1, 1000))
	_, _, ok := b.Match(1000)
	require.True(t, ok)

	b.Reset()
	assert.Equal(t, 0, b.Len())
	_, set := b.Offset()
	assert.False(t, set)

	// A fresh session re-seeds the offset from its own clocks.
	b.Ingest(frameAt(1, 9000))
	_, residual, ok := b.Match(100)
	require.True(t, ok)
	assert.Equal(t, 0.0, residual)
}
