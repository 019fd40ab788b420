package overlay

import "image/color"

// palette cycles by class label for stable per-class colors.
var palette = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 255},    // Green
	{R: 255, G: 200, B: 0, A: 255},  // Amber
	{R: 0, G: 200, B: 255, A: 255},  // Cyan
	{R: 255, G: 80, B: 200, A: 255}, // Magenta
	{R: 120, G: 120, B: 255, A: 255},
	{R: 255, G: 120, B: 60, A: 255},
	{R: 180, G: 255, B: 80, A: 255},
	{R: 255, G: 255, B: 255, A: 255},
}

// interpolatedColor styles boxes synthesized by the tracker rather than
// direct model outputs.
var interpolatedColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}

var labelBackground = color.RGBA{R: 0, G: 0, B: 0, A: 200}

// ColorForLabel returns the palette color for a class label.
func ColorForLabel(label int, interpolated bool) color.RGBA {
	if interpolated {
		return interpolatedColor
	}
	if label < 0 {
		label = -label
	}
	return palette[label%len(palette)]
}
