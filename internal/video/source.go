package video

import (
	"sync"
	"time"
)

// Source exposes what the render loop needs from a video feed: intrinsic
// pixel dimensions, the current presentation time in milliseconds, a paused
// signal, and optionally a per-displayed-frame callback.
type Source interface {
	IntrinsicSize() (w, h int)
	PresentationTime() float64
	Paused() bool

	// OnFrame registers cb to fire once per displayed frame with that
	// frame's presentation time. ok is false when the source cannot signal
	// frame boundaries; callers then fall back to refresh-rate scheduling.
	OnFrame(cb func(ptsMs float64)) (cancel func(), ok bool)
}

// ClockSource is a free-running playback clock for simulation and tests.
// It has no frame-boundary signal, so schedulers fall back to refresh ticks.
type ClockSource struct {
	mu       sync.Mutex
	width    int
	height   int
	start    time.Time
	paused   bool
	pausedAt float64
	now      func() time.Time
}

// NewClockSource creates a clock source with the given intrinsic size,
// starting at presentation time zero.
func NewClockSource(width, height int) *ClockSource {
	c := &ClockSource{
		width:  width,
		height: height,
		now:    time.Now,
	}
	c.start = c.now()
	return c
}

// IntrinsicSize returns the configured media dimensions.
func (c *ClockSource) IntrinsicSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SetIntrinsicSize updates the media dimensions.
func (c *ClockSource) SetIntrinsicSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// PresentationTime returns milliseconds of unpaused playback.
func (c *ClockSource) PresentationTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return c.pausedAt
	}
	return float64(c.now().Sub(c.start)) / float64(time.Millisecond)
}

// Paused reports whether playback is paused.
func (c *ClockSource) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetPaused pauses or resumes the clock. Resuming continues from the pause
// point rather than jumping.
func (c *ClockSource) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if paused == c.paused {
		return
	}
	if paused {
		c.pausedAt = float64(c.now().Sub(c.start)) / float64(time.Millisecond)
	} else {
		c.start = c.now().Add(-time.Duration(c.pausedAt * float64(time.Millisecond)))
	}
	c.paused = paused
}

// OnFrame is unsupported for a bare clock.
func (c *ClockSource) OnFrame(func(float64)) (func(), bool) {
	return nil, false
}
