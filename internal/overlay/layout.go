package overlay

import (
	"math"

	"github.com/robovis/overlay-renderer/internal/surface"
)

// DefaultLayoutThreshold suppresses sub-pixel jitter from layout
// measurement; geometry deltas at or below it do not touch the surface.
const DefaultLayoutThreshold = 0.5

// Rect is an on-screen rectangle in CSS pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// LayoutChange reports what Reconcile did to the surface.
type LayoutChange int

const (
	LayoutUnchanged LayoutChange = iota
	LayoutMoved                  // Position-only update
	LayoutResized                // Pixel buffer reallocated, transform reset
)

// Synchronizer keeps the drawing surface pixel-aligned with the displayed
// video rectangle.
//
// Resizing the surface resets its paint transform, so reapplying geometry
// unconditionally would flicker on every tick. Reconcile therefore applies
// changes only past the threshold, or when the pixel-density factor moves.
type Synchronizer struct {
	surface   *surface.Surface
	threshold float64

	valid   bool
	lastX   float64
	lastY   float64
	lastW   float64
	lastH   float64
	lastDPR float64
}

// NewSynchronizer creates a synchronizer driving the given surface.
// A non-positive threshold selects the default.
func NewSynchronizer(s *surface.Surface, threshold float64) *Synchronizer {
	if threshold <= 0 {
		threshold = DefaultLayoutThreshold
	}
	return &Synchronizer{surface: s, threshold: threshold}
}

// Reconcile computes the surface geometry for the current video element and
// container rectangles and applies it to the surface if it changed beyond
// the threshold or the pixel-density factor changed.
func (ls *Synchronizer) Reconcile(video, container Rect, intrinsicW, intrinsicH int, mode FitMode, dpr float64) LayoutChange {
	if dpr <= 0 {
		dpr = 1
	}

	disp := Displayed(float64(intrinsicW), float64(intrinsicH), video.Width, video.Height, mode)
	x := video.X - container.X + disp.OffsetX
	y := video.Y - container.Y + disp.OffsetY
	w := disp.Width
	h := disp.Height

	sizeChanged := !ls.valid ||
		math.Abs(w-ls.lastW) > ls.threshold ||
		math.Abs(h-ls.lastH) > ls.threshold ||
		dpr != ls.lastDPR
	posChanged := !ls.valid ||
		math.Abs(x-ls.lastX) > ls.threshold ||
		math.Abs(y-ls.lastY) > ls.threshold

	if !sizeChanged && !posChanged {
		return LayoutUnchanged
	}

	if sizeChanged {
		ls.surface.Resize(int(math.Round(w*dpr)), int(math.Round(h*dpr)))
		ls.surface.SetScale(dpr)
	}
	ls.surface.Place(x, y)

	ls.valid = true
	ls.lastX, ls.lastY = x, y
	ls.lastW, ls.lastH = w, h
	ls.lastDPR = dpr

	if sizeChanged {
		return LayoutResized
	}
	return LayoutMoved
}

// Invalidate forces the next Reconcile to reapply geometry unconditionally.
func (ls *Synchronizer) Invalidate() {
	ls.valid = false
}
