package surface

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.RGBA{R: 255, A: 255}

func TestSurfaceResizeResetsScale(t *testing.T) {
	s := New()
	s.SetScale(2)
	s.Resize(200, 100)

	assert.Equal(t, 1.0, s.Scale())
	pw, ph := s.PixelSize()
	assert.Equal(t, 200, pw)
	assert.Equal(t, 100, ph)
}

func TestSurfaceSizeInCSSPixels(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	s.SetScale(2)

	w, h := s.Size()
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 50.0, h)
}

func TestSurfaceFillAndClear(t *testing.T) {
	s := New()
	s.Resize(100, 100)

	s.FillRect(10, 10, 20, 20, red)
	assert.Equal(t, red, s.Snapshot().RGBAAt(15, 15))

	s.Clear()
	assert.Equal(t, uint8(0), s.Snapshot().RGBAAt(15, 15).A)
}

func TestSurfaceScaleAppliesToDrawing(t *testing.T) {
	s := New()
	s.Resize(200, 200)
	s.SetScale(2)

	// CSS rect 10..30 lands on device pixels 20..60.
	s.FillRect(10, 10, 20, 20, red)
	snap := s.Snapshot()
	assert.Equal(t, red, snap.RGBAAt(30, 30))
	assert.Equal(t, uint8(0), snap.RGBAAt(10, 10).A)
}

func TestSurfaceStrokeLeavesInteriorEmpty(t *testing.T) {
	s := New()
	s.Resize(100, 100)

	s.StrokeRect(10, 10, 40, 40, red, 2)
	snap := s.Snapshot()
	assert.NotEqual(t, uint8(0), snap.RGBAAt(30, 11).A) // Top edge
	assert.NotEqual(t, uint8(0), snap.RGBAAt(30, 48).A) // Bottom edge
	assert.NotEqual(t, uint8(0), snap.RGBAAt(11, 30).A) // Left edge
	assert.NotEqual(t, uint8(0), snap.RGBAAt(48, 30).A) // Right edge
	assert.Equal(t, uint8(0), snap.RGBAAt(30, 30).A)    // Interior
}

func TestSurfaceDrawLabel(t *testing.T) {
	s := New()
	s.Resize(200, 50)

	bg := color.RGBA{A: 200}
	s.DrawLabel("person 0.97", 5, 5, red, bg)

	// The background box must cover the measured area.
	w := s.MeasureLabel("person 0.97")
	require.Greater(t, w, 0.0)
	snap := s.Snapshot()
	assert.NotEqual(t, uint8(0), snap.RGBAAt(6, 6).A)
}

func TestSurfaceSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Resize(50, 50)
	s.FillRect(0, 0, 50, 50, red)

	snap := s.Snapshot()
	s.Clear()
	assert.Equal(t, red, snap.RGBAAt(25, 25))
}

func TestSurfaceEncodeJPEG(t *testing.T) {
	s := New()
	s.Resize(64, 64)
	s.FillRect(0, 0, 64, 64, red)

	data, err := s.EncodeJPEG(75)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xD8}), "expected JPEG magic bytes")
}

func TestSurfaceZeroSizeDrawsAreNoOps(t *testing.T) {
	s := New()
	// Never resized: 0x0 buffer, drawing must not panic.
	s.FillRect(10, 10, 20, 20, red)
	s.StrokeRect(10, 10, 20, 20, red, 2)
	s.DrawLabel("x", 0, 0, red, red)
	s.Clear()

	w, h := s.Size()
	assert.Equal(t, 0.0, w)
	assert.Equal(t, 0.0, h)
}
