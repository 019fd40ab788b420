package surface

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Surface is the overlay drawing target: an RGBA pixel buffer with an
// on-screen placement and a device-pixel-ratio transform.
//
// The drawing API takes CSS-pixel coordinates and applies the transform
// internally. A Surface is exclusively owned by one render loop for the
// lifetime of a session and carries no locking of its own.
type Surface struct {
	img   *image.RGBA
	scale float64
	posX  float64
	posY  float64
}

var labelFace = basicfont.Face7x13

// New creates a surface with an empty 0x0 pixel buffer. The render loop's
// layout pass sizes it before the first draw.
func New() *Surface {
	return &Surface{
		img:   image.NewRGBA(image.Rect(0, 0, 0, 0)),
		scale: 1,
	}
}

// Resize reallocates the pixel buffer. This resets the paint transform to
// identity, mirroring canvas semantics; callers reapply the scale afterward.
func (s *Surface) Resize(pxW, pxH int) {
	if pxW < 0 {
		pxW = 0
	}
	if pxH < 0 {
		pxH = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	s.scale = 1
}

// SetScale sets the CSS-to-device pixel transform.
func (s *Surface) SetScale(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	s.scale = scale
}

// Scale returns the current transform scale.
func (s *Surface) Scale() float64 {
	return s.scale
}

// Place updates the surface's on-screen position relative to its container.
func (s *Surface) Place(x, y float64) {
	s.posX = x
	s.posY = y
}

// Position returns the surface's on-screen position.
func (s *Surface) Position() (x, y float64) {
	return s.posX, s.posY
}

// PixelSize returns the pixel buffer dimensions.
func (s *Surface) PixelSize() (w, h int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Size returns the drawable dimensions in CSS pixels.
func (s *Surface) Size() (w, h float64) {
	pw, ph := s.PixelSize()
	return float64(pw) / s.scale, float64(ph) / s.scale
}

// Clear blanks the whole surface to transparent.
func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// FillRect fills a CSS-pixel rectangle.
func (s *Surface) FillRect(x, y, w, h float64, col color.RGBA) {
	r := s.deviceRect(x, y, w, h)
	draw.Draw(s.img, r.Intersect(s.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

// StrokeRect outlines a CSS-pixel rectangle with the given line width.
func (s *Surface) StrokeRect(x, y, w, h float64, col color.RGBA, lineWidth float64) {
	if lineWidth <= 0 {
		lineWidth = 1
	}
	s.FillRect(x, y, w, lineWidth, col)
	s.FillRect(x, y+h-lineWidth, w, lineWidth, col)
	s.FillRect(x, y, lineWidth, h, col)
	s.FillRect(x+w-lineWidth, y, lineWidth, h, col)
}

// LabelHeight returns the height in CSS pixels a DrawLabel call occupies.
func (s *Surface) LabelHeight() float64 {
	return float64(labelFace.Height+4) / s.scale
}

// MeasureLabel returns the width in CSS pixels a DrawLabel call occupies.
func (s *Surface) MeasureLabel(text string) float64 {
	return float64(font.MeasureString(labelFace, text).Ceil()+4) / s.scale
}

// DrawLabel paints text on a filled background with its top-left corner at
// the given CSS-pixel position.
func (s *Surface) DrawLabel(text string, x, y float64, fg, bg color.RGBA) {
	px := int(x * s.scale)
	py := int(y * s.scale)
	w := font.MeasureString(labelFace, text).Ceil() + 4
	h := labelFace.Height + 4

	bgRect := image.Rect(px, py, px+w, py+h)
	draw.Draw(s.img, bgRect.Intersect(s.img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(fg),
		Face: labelFace,
		Dot:  fixed.P(px+2, py+2+labelFace.Ascent),
	}
	d.DrawString(text)
}

// Snapshot returns a copy of the current pixel buffer for encoding off the
// render loop's ownership path.
func (s *Surface) Snapshot() *image.RGBA {
	b := s.img.Bounds()
	out := image.NewRGBA(b)
	copy(out.Pix, s.img.Pix)
	return out
}

// EncodeJPEG composites the surface over an opaque black backdrop and
// encodes it for the preview stream.
func (s *Surface) EncodeJPEG(quality int) ([]byte, error) {
	b := s.img.Bounds()
	frame := image.NewRGBA(b)
	draw.Draw(frame, b, image.Black, image.Point{}, draw.Src)
	draw.Draw(frame, b, s.img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Surface) deviceRect(x, y, w, h float64) image.Rectangle {
	x1 := int(x * s.scale)
	y1 := int(y * s.scale)
	x2 := int((x + w) * s.scale)
	y2 := int((y + h) * s.scale)
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return image.Rect(x1, y1, x2, y2)
}
