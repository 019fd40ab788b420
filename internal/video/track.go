package video

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"github.com/robovis/overlay-renderer/internal/logger"
)

const (
	videoClockRate = 90000

	// DefaultStallTimeout is how long without an RTP packet before the
	// source reports itself paused and freezes presentation time.
	DefaultStallTimeout = 500 * time.Millisecond
)

// TrackSource derives a presentation clock from the RTP timestamps of a
// remote video track. The first packet anchors RTP time to the wall clock;
// a backward timestamp jump (seek, loop) re-anchors. Frame boundaries are
// taken from the RTP marker bit, which gives the render loop its preferred
// one-callback-per-displayed-frame signal.
type TrackSource struct {
	mu     sync.Mutex
	width  int
	height int

	initialized bool
	lastRTP     uint32
	extRTP      int64
	baseRTP     int64
	lastPTS     float64
	lastPacket  time.Time

	paused       bool
	stallTimeout time.Duration
	frameCB      func(float64)
	now          func() time.Time
}

// NewTrackSource creates a track source with the given intrinsic dimensions.
// A non-positive stallTimeout selects the default.
func NewTrackSource(width, height int, stallTimeout time.Duration) *TrackSource {
	if stallTimeout <= 0 {
		stallTimeout = DefaultStallTimeout
	}
	return &TrackSource{
		width:        width,
		height:       height,
		stallTimeout: stallTimeout,
		now:          time.Now,
	}
}

// Consume reads RTP packets from the remote track until it ends. Run on its
// own goroutine per track.
func (t *TrackSource) Consume(track *webrtc.TrackRemote) {
	logger.Info("Video", "Consuming track %s (%s)", track.ID(), track.Codec().MimeType)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("Video", "Track read ended: %v", err)
			}
			return
		}
		t.Push(pkt)
	}
}

// Push feeds one RTP packet into the clock.
func (t *TrackSource) Push(pkt *rtp.Packet) {
	t.mu.Lock()

	if !t.initialized {
		t.extRTP = int64(pkt.Timestamp)
		t.baseRTP = t.extRTP
		t.lastRTP = pkt.Timestamp
		t.initialized = true
	} else {
		t.extRTP += int64(int32(pkt.Timestamp - t.lastRTP))
		t.lastRTP = pkt.Timestamp
		if t.extRTP < t.baseRTP {
			// Timestamps went backwards (loop or restart), re-anchor
			logger.Debug("Video", "RTP timestamp jumped backwards, re-anchoring clock")
			t.baseRTP = t.extRTP
		}
	}

	t.lastPTS = float64(t.extRTP-t.baseRTP) * 1000 / videoClockRate
	t.lastPacket = t.now()

	cb := t.frameCB
	pts := t.lastPTS
	marker := pkt.Marker
	t.mu.Unlock()

	if marker && cb != nil {
		cb(pts)
	}
}

// IntrinsicSize returns the track's pixel dimensions.
func (t *TrackSource) IntrinsicSize() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// SetIntrinsicSize updates the pixel dimensions (known only after decode or
// signaling for some tracks).
func (t *TrackSource) SetIntrinsicSize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width = width
	t.height = height
}

// PresentationTime extrapolates the last RTP-derived time by the wall clock,
// frozen while the feed is stalled or paused.
func (t *TrackSource) PresentationTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return 0
	}
	elapsed := t.now().Sub(t.lastPacket)
	if t.paused || elapsed > t.stallTimeout {
		return t.lastPTS
	}
	return t.lastPTS + float64(elapsed)/float64(time.Millisecond)
}

// Paused reports an explicit pause, a stalled feed, or a feed that has not
// produced a packet yet.
func (t *TrackSource) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused || !t.initialized {
		return true
	}
	return t.now().Sub(t.lastPacket) > t.stallTimeout
}

// SetPaused sets the explicit pause flag.
func (t *TrackSource) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
}

// OnFrame registers the per-frame callback, fired on RTP marker packets.
func (t *TrackSource) OnFrame(cb func(ptsMs float64)) (func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameCB = cb
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.frameCB = nil
	}, true
}
