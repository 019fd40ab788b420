package overlay

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/pkg/types"
)

const (
	// DefaultMaxBuffer bounds memory under sustained feed-rate mismatch.
	DefaultMaxBuffer = 120

	// DefaultToleranceMs is the maximum |adjusted timestamp - presentation
	// time| for a buffered frame to count as a match.
	DefaultToleranceMs = 120.0
)

// Buffer is an ordered store of recently received metadata frames plus the
// matcher that pairs them with video presentation times.
//
// Metadata timestamps and presentation times live on different clock domains
// with no shared epoch. The buffer maintains a single scalar offset estimate
// (metadata timestamp minus presentation time), seeded lazily from the first
// frame seen by Match and reset with the session.
//
// Every public method takes the lock and leaves the buffer fully consistent,
// so ingestion and matching may interleave freely across goroutines.
type Buffer struct {
	mu        sync.Mutex
	frames    []types.MetadataFrame // Sorted ascending by Timestamp
	offset    float64
	offsetSet bool
	maxSize   int
	tolerance float64
	now       func() time.Time
}

// NewBuffer creates a buffer holding at most maxSize frames and matching
// within toleranceMs. Non-positive arguments select the defaults.
func NewBuffer(maxSize int, toleranceMs float64) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBuffer
	}
	if toleranceMs <= 0 {
		toleranceMs = DefaultToleranceMs
	}
	return &Buffer{
		maxSize:   maxSize,
		tolerance: toleranceMs,
		now:       time.Now,
	}
}

// IngestStats reports what Ingest did with a frame.
type IngestStats struct {
	Sanitized bool // Timestamp was missing or non-finite and got replaced
	Replaced  bool // An existing frame with the same id was overwritten
	Evicted   int  // Frames dropped to stay within the size bound
}

// Ingest inserts or replaces a frame, keeping the buffer sorted by timestamp
// and bounded. A missing or non-finite timestamp is replaced with the
// insertion-time clock reading so one malformed message cannot poison
// matching.
func (b *Buffer) Ingest(frame types.MetadataFrame) IngestStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stats IngestStats

	if frame.Timestamp == 0 || math.IsNaN(frame.Timestamp) || math.IsInf(frame.Timestamp, 0) {
		frame.Timestamp = float64(b.now().UnixMilli())
		stats.Sanitized = true
		logger.Debug("Buffer", "Sanitized timestamp for frame %d", frame.FrameID)
	}

	// Last-write-wins for a repeated frame id.
	for i := range b.frames {
		if b.frames[i].FrameID == frame.FrameID {
			b.frames = append(b.frames[:i], b.frames[i+1:]...)
			stats.Replaced = true
			break
		}
	}

	idx := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].Timestamp > frame.Timestamp
	})
	b.frames = append(b.frames, types.MetadataFrame{})
	copy(b.frames[idx+1:], b.frames[idx:])
	b.frames[idx] = frame

	for len(b.frames) > b.maxSize {
		b.frames = b.frames[1:]
		stats.Evicted++
	}

	return stats
}

// Match returns the buffered frame whose offset-adjusted timestamp is
// closest to presentationMs, with the signed residual (adjusted minus query),
// or ok=false when the buffer is empty or the closest frame is outside the
// tolerance window.
//
// A successful match consumes the matched frame and every older frame:
// metadata before a consumed match is unusably stale, and purging it keeps
// one metadata frame from being matched to multiple video frames. A failed
// match leaves the buffer untouched so a later, better-timed query can still
// use it.
func (b *Buffer) Match(presentationMs float64) (types.MetadataFrame, float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return types.MetadataFrame{}, 0, false
	}

	if !b.offsetSet {
		b.offset = b.frames[0].Timestamp - presentationMs
		b.offsetSet = true
		logger.Debug("Buffer", "Clock offset seeded: %.1fms", b.offset)
	}

	best := 0
	bestDelta := math.Abs(b.frames[0].Timestamp - b.offset - presentationMs)
	for i := 1; i < len(b.frames); i++ {
		delta := math.Abs(b.frames[i].Timestamp - b.offset - presentationMs)
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}

	if bestDelta > b.tolerance {
		return types.MetadataFrame{}, 0, false
	}

	frame := b.frames[best]
	residual := frame.Timestamp - b.offset - presentationMs
	b.frames = append([]types.MetadataFrame(nil), b.frames[best+1:]...)
	return frame, residual, true
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Offset returns the current clock-offset estimate and whether one has been
// established.
func (b *Buffer) Offset() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset, b.offsetSet
}

// Reset empties the buffer and unsets the clock offset. Called on
// disconnect, feed resume, and explicit clear requests.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
	b.offset = 0
	b.offsetSet = false
}
