package preview

import (
	"bytes"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	return img
}

func TestBroadcasterDeliversJPEGFrames(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)
	require.True(t, b.Active())

	b.Publish(testFrame())

	select {
	case data := <-ch:
		assert.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xD8}), "expected JPEG magic bytes")
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestBroadcasterIdleSkipsEncoding(t *testing.T) {
	b := NewBroadcaster()
	assert.False(t, b.Active())

	// No subscribers: publish must be a cheap no-op.
	b.Publish(testFrame())
	b.Publish(image.NewRGBA(image.Rect(0, 0, 0, 0)))
}

func TestBroadcasterSlowClientSkipsFrames(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	// Channel buffers 2; further publishes drop rather than block.
	for i := 0; i < 5; i++ {
		b.Publish(testFrame())
	}
	assert.Len(t, ch, 2)
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe()

	b.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.False(t, b.Active())

	// Unsubscribing twice is safe.
	b.Unsubscribe(id)
}

func TestBroadcasterCloseDisconnectsAll(t *testing.T) {
	b := NewBroadcaster()
	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Close()
	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)
	assert.False(t, b.Active())
}
