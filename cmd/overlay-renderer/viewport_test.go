package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clockOnly has no frame-boundary signal; markerSource does.
type clockOnly struct {
	mu     sync.Mutex
	paused bool
}

func (c *clockOnly) IntrinsicSize() (int, int) { return 640, 480 }
func (c *clockOnly) PresentationTime() float64 { return 5 }
func (c *clockOnly) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}
func (c *clockOnly) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}
func (c *clockOnly) OnFrame(func(float64)) (func(), bool) { return nil, false }

type markerSource struct {
	mu     sync.Mutex
	paused bool
	cb     func(float64)
}

func (m *markerSource) IntrinsicSize() (int, int) { return 1280, 720 }
func (m *markerSource) PresentationTime() float64 { return 0 }
func (m *markerSource) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}
func (m *markerSource) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}
func (m *markerSource) OnFrame(cb func(float64)) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cb = nil
	}, true
}

func (m *markerSource) fire(pts float64) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb != nil {
		cb(pts)
	}
}

func (m *markerSource) registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb != nil
}

type tickSink struct {
	mu  sync.Mutex
	pts []float64
}

func (t *tickSink) record(pts float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pts = append(t.pts, pts)
}

func (t *tickSink) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pts)
}

func (t *tickSink) last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pts[len(t.pts)-1]
}

func TestSourceMuxTicksClockOnlyDelegate(t *testing.T) {
	mux := newSourceMux(&clockOnly{})
	mux.refresh = time.Millisecond

	sink := &tickSink{}
	cancel, ok := mux.OnFrame(sink.record)
	require.True(t, ok)
	defer cancel()

	require.Eventually(t, func() bool { return sink.count() >= 3 },
		time.Second, time.Millisecond)
	assert.Equal(t, 5.0, sink.last())
}

func TestSourceMuxSwapMovesCallbackToFrameSignal(t *testing.T) {
	mux := newSourceMux(&clockOnly{})
	mux.refresh = time.Millisecond

	sink := &tickSink{}
	cancel, ok := mux.OnFrame(sink.record)
	require.True(t, ok)
	defer cancel()

	track := &markerSource{}
	mux.SetDelegate(track)
	require.True(t, track.registered())

	// The fallback ticker is gone: no ticks arrive without a fired frame.
	// Allow any in-flight tick to land before taking the baseline.
	time.Sleep(5 * time.Millisecond)
	settled := sink.count()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, settled, sink.count())

	track.fire(777)
	require.Equal(t, settled+1, sink.count())
	assert.Equal(t, 777.0, sink.last())
}

func TestSourceMuxSwapBackRestoresTicker(t *testing.T) {
	track := &markerSource{}
	mux := newSourceMux(track)
	mux.refresh = time.Millisecond

	sink := &tickSink{}
	cancel, ok := mux.OnFrame(sink.record)
	require.True(t, ok)
	defer cancel()
	require.True(t, track.registered())

	mux.SetDelegate(&clockOnly{})
	assert.False(t, track.registered())

	require.Eventually(t, func() bool { return sink.count() >= 3 },
		time.Second, time.Millisecond)

	// A fire on the abandoned track no longer reaches the sink.
	track.fire(999)
	assert.NotEqual(t, 999.0, sink.last())
}

func TestSourceMuxCancelDetaches(t *testing.T) {
	track := &markerSource{}
	mux := newSourceMux(track)

	sink := &tickSink{}
	cancel, ok := mux.OnFrame(sink.record)
	require.True(t, ok)

	cancel()
	assert.False(t, track.registered())
	track.fire(1)
	assert.Equal(t, 0, sink.count())
}

func TestSourceMuxCarriesPauseAcrossSwap(t *testing.T) {
	mux := newSourceMux(&clockOnly{})
	mux.SetPaused(true)

	track := &markerSource{}
	mux.SetDelegate(track)
	assert.True(t, mux.Paused())
	assert.True(t, track.Paused())
}
