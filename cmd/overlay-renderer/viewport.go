package main

import (
	"sync"
	"time"

	"github.com/robovis/overlay-renderer/internal/overlay"
	"github.com/robovis/overlay-renderer/internal/video"
)

// configViewport is a viewport whose geometry is set by flags and updated
// over the HTTP API. The render loop polls it every tick.
type configViewport struct {
	mu        sync.RWMutex
	video     overlay.Rect
	container overlay.Rect
	dpr       float64
	mode      overlay.FitMode
}

func newConfigViewport(w, h, dpr float64, mode overlay.FitMode) *configViewport {
	r := overlay.Rect{X: 0, Y: 0, Width: w, Height: h}
	return &configViewport{video: r, container: r, dpr: dpr, mode: mode}
}

func (v *configViewport) VideoRect() overlay.Rect {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.video
}

func (v *configViewport) ContainerRect() overlay.Rect {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.container
}

func (v *configViewport) PixelRatio() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dpr
}

func (v *configViewport) Mode() overlay.FitMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mode
}

// viewportUpdate is a partial viewport change; nil fields keep their value.
type viewportUpdate struct {
	Video     *overlay.Rect `json:"video,omitempty"`
	Container *overlay.Rect `json:"container,omitempty"`
	DPR       *float64      `json:"dpr,omitempty"`
	Fit       *string       `json:"fit,omitempty"`
}

func (v *configViewport) apply(u viewportUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if u.Video != nil {
		v.video = *u.Video
	}
	if u.Container != nil {
		v.container = *u.Container
	}
	if u.DPR != nil && *u.DPR > 0 {
		v.dpr = *u.DPR
	}
	if u.Fit != nil {
		v.mode = overlay.FitMode(*u.Fit)
	}
}

func (v *configViewport) snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return map[string]any{
		"video":     v.video,
		"container": v.container,
		"dpr":       v.dpr,
		"fit":       string(v.mode),
	}
}

// controlSource is a presentation clock that can also be paused.
type controlSource interface {
	video.Source
	SetPaused(bool)
}

// sourceMux swaps the active presentation clock at runtime: a free-running
// clock until a video track arrives, then the track itself. The render loop
// always works through the mux, so the swap needs no loop restart.
//
// A registered frame callback follows the delegate: when the delegate can
// signal frame boundaries the callback rides that signal, otherwise the mux
// ticks it at the refresh interval. SetDelegate rewires the callback so a
// connected track immediately drives frame-aligned ticks.
type sourceMux struct {
	mu       sync.RWMutex
	delegate controlSource
	paused   bool
	refresh  time.Duration

	cb     func(float64)
	unwire func()
}

func newSourceMux(initial controlSource) *sourceMux {
	return &sourceMux{delegate: initial, refresh: video.DefaultRefreshInterval}
}

// SetDelegate swaps the underlying clock, carrying the pause state and any
// registered frame callback over.
func (s *sourceMux) SetDelegate(d controlSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.delegate = d
	d.SetPaused(s.paused)
	s.attachLocked()
}

func (s *sourceMux) current() controlSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delegate
}

func (s *sourceMux) IntrinsicSize() (int, int) {
	return s.current().IntrinsicSize()
}

func (s *sourceMux) PresentationTime() float64 {
	return s.current().PresentationTime()
}

func (s *sourceMux) Paused() bool {
	return s.current().Paused()
}

// OnFrame registers cb against the current delegate and keeps it registered
// across delegate swaps.
func (s *sourceMux) OnFrame(cb func(float64)) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.cb = cb
	s.attachLocked()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.detachLocked()
		s.cb = nil
	}, true
}

// attachLocked wires the registered callback to the current delegate,
// preferring its frame-boundary signal and ticking otherwise.
func (s *sourceMux) attachLocked() {
	if s.cb == nil {
		return
	}
	cb := s.cb

	if cancel, ok := s.delegate.OnFrame(cb); ok {
		s.unwire = cancel
		return
	}

	d := s.delegate
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cb(d.PresentationTime())
			}
		}
	}()
	s.unwire = func() { close(stop) }
}

func (s *sourceMux) detachLocked() {
	if s.unwire != nil {
		s.unwire()
		s.unwire = nil
	}
}

func (s *sourceMux) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	d := s.delegate
	s.mu.Unlock()
	d.SetPaused(paused)
}
