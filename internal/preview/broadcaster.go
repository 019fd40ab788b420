package preview

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"

	"github.com/robovis/overlay-renderer/internal/logger"
)

const jpegQuality = 75

// Broadcaster fans composited overlay frames out to MJPEG clients. Frames
// are encoded once per publish and skipped entirely while nobody watches.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[int]chan []byte)}
}

// Subscribe adds a client and returns a channel for receiving JPEG frames.
func (b *Broadcaster) Subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	b.clients[id] = ch

	logger.Debug("Preview", "Client #%d subscribed (total clients: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		logger.Debug("Preview", "Client #%d unsubscribed (remaining clients: %d)", id, len(b.clients))
	}
}

// Active reports whether any client is subscribed; publishers use it to
// skip snapshot and encode work while idle.
func (b *Broadcaster) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients) > 0
}

// Publish composites the overlay snapshot over a black backdrop, encodes it
// once, and fans it out. Slow clients skip frames rather than block.
func (b *Broadcaster) Publish(img *image.RGBA) {
	if !b.Active() {
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}

	frame := image.NewRGBA(bounds)
	draw.Draw(frame, bounds, image.Black, image.Point{}, draw.Src)
	draw.Draw(frame, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		logger.Warn("Preview", "JPEG encode failed: %v", err)
		return
	}
	data := buf.Bytes()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// Close disconnects all clients.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}
