package overlay

import (
	"github.com/robovis/overlay-renderer/pkg/types"
)

// FitMode is the rule governing how intrinsically-sized video is scaled,
// cropped and centered inside its on-screen element.
type FitMode string

const (
	FitContain   FitMode = "contain"
	FitCover     FitMode = "cover"
	FitFill      FitMode = "fill"
	FitNone      FitMode = "none"
	FitScaleDown FitMode = "scale-down"
)

// DisplayedRect is the actually-displayed video rectangle in element-local
// pixels. Offsets can be negative when the video overflows the element.
type DisplayedRect struct {
	Width   float64
	Height  float64
	OffsetX float64
	OffsetY float64
}

// PixelRect is a rectangle in drawing-surface pixels.
type PixelRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Displayed computes the displayed video rectangle for the given intrinsic
// media dimensions, element dimensions and fit mode.
//
// An unknown mode falls back to contain. Zero or unknown intrinsic
// dimensions fall back to the element size with zero offset.
func Displayed(intrinsicW, intrinsicH, elementW, elementH float64, mode FitMode) DisplayedRect {
	if intrinsicW <= 0 || intrinsicH <= 0 {
		return DisplayedRect{Width: elementW, Height: elementH}
	}

	widthRatio := elementW / intrinsicW
	heightRatio := elementH / intrinsicH

	var scale float64
	switch mode {
	case FitFill:
		return DisplayedRect{Width: elementW, Height: elementH}
	case FitCover:
		scale = widthRatio
		if heightRatio > scale {
			scale = heightRatio
		}
	case FitNone:
		scale = 1
	case FitScaleDown:
		scale = widthRatio
		if heightRatio < scale {
			scale = heightRatio
		}
		if scale > 1 {
			scale = 1
		}
	default: // contain, and anything unrecognized
		scale = widthRatio
		if heightRatio < scale {
			scale = heightRatio
		}
	}

	w := intrinsicW * scale
	h := intrinsicH * scale
	return DisplayedRect{
		Width:   w,
		Height:  h,
		OffsetX: (elementW - w) / 2,
		OffsetY: (elementH - h) / 2,
	}
}

// ToPixelBox maps a normalized detection box onto a canvas of the given
// pixel dimensions, clamped to the visible surface. ok is false when the
// clamped box has no visible area.
func ToPixelBox(box types.NormRect, canvasW, canvasH float64) (PixelRect, bool) {
	x1 := clamp(box.X*canvasW, 0, canvasW)
	y1 := clamp(box.Y*canvasH, 0, canvasH)
	x2 := clamp((box.X+box.Width)*canvasW, 0, canvasW)
	y2 := clamp((box.Y+box.Height)*canvasH, 0, canvasH)

	if x2-x1 <= 0 || y2-y1 <= 0 {
		return PixelRect{}, false
	}
	return PixelRect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
