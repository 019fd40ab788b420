package overlay

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/internal/surface"
	"github.com/robovis/overlay-renderer/internal/video"
	"github.com/robovis/overlay-renderer/pkg/types"
)

// Viewport describes where the video element sits on screen. The render
// loop polls it every tick because drawing coordinates depend on it.
type Viewport interface {
	VideoRect() Rect
	ContainerRect() Rect
	PixelRatio() float64
	Mode() FitMode
}

// LoopConfig wires a render loop's collaborators.
type LoopConfig struct {
	Source   video.Source
	Viewport Viewport
	Buffer   *Buffer
	Smoother *Smoother
	Surface  *surface.Surface
	Metrics  *metrics.Metrics

	// ResolveLabel turns an integer class label into display text when the
	// frame carries no pre-resolved text. Optional.
	ResolveLabel func(int) string

	// Publish receives a snapshot of the painted surface after each tick.
	// Optional; used by the preview stream.
	Publish func(*image.RGBA)

	// PublishActive reports whether anyone is consuming published
	// snapshots; while it returns false the per-tick pixel copy is
	// skipped entirely. Optional.
	PublishActive func() bool

	// OnDrawRate reports the draw-rate metric once per second. Optional.
	OnDrawRate func(fps int)

	// RefreshInterval is the fallback tick rate when the source has no
	// per-frame signal. Zero selects the scheduler default.
	RefreshInterval time.Duration
}

// Loop is the per-frame driver: on each drawing opportunity it reconciles
// layout, matches metadata against the current presentation time, applies
// the smoothing decision and paints.
//
// The loop exclusively owns its surface while running. State machine is
// STOPPED <-> RUNNING only; metadata arrival and pause toggles never change
// it, they only change the smoothing decision.
type Loop struct {
	cfg    LoopConfig
	sched  *video.Scheduler
	layout *Synchronizer

	mu      sync.Mutex
	running bool

	pendingClear atomic.Bool
	drawRate     atomic.Int64

	// Tick-goroutine state
	tickCount  int
	rateWindow time.Time
}

// NewLoop creates a render loop. Surface, Buffer and Smoother must be set;
// the loop takes ownership of the surface until Stop.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		cfg:    cfg,
		layout: NewSynchronizer(cfg.Surface, DefaultLayoutThreshold),
	}
	l.sched = video.NewScheduler(cfg.Source, cfg.RefreshInterval)
	return l
}

// Start attaches the loop to the frame scheduler. Idempotent.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.rateWindow = time.Now()
	l.tickCount = 0
	l.sched.Start(l.tick)
	l.running = true
	logger.Info("Renderer", "Render loop started")
}

// Stop detaches the loop, cancelling the one outstanding scheduled
// opportunity. Idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.sched.Stop()
	l.running = false
	logger.Info("Renderer", "Render loop stopped")
}

// Running reports the loop state.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// RequestClear is the external clear/reset signal: it synchronously empties
// the buffer and the held-frame memory, resets the clock-offset estimate,
// and blanks the surface on the loop's next owned tick.
func (l *Loop) RequestClear() {
	l.cfg.Buffer.Reset()
	l.cfg.Smoother.Reset()
	l.pendingClear.Store(true)
	logger.Debug("Renderer", "Clear requested")
}

// DrawRate returns the most recent once-per-second draw-rate reading.
func (l *Loop) DrawRate() int {
	return int(l.drawRate.Load())
}

// tick is one drawing opportunity. It runs on the scheduler's goroutine,
// the only place the surface is touched while the loop is running.
func (l *Loop) tick(ptsMs float64) {
	m := l.cfg.Metrics

	// Layout first: drawing coordinates depend on it.
	iw, ih := l.cfg.Source.IntrinsicSize()
	change := l.layout.Reconcile(
		l.cfg.Viewport.VideoRect(),
		l.cfg.Viewport.ContainerRect(),
		iw, ih,
		l.cfg.Viewport.Mode(),
		l.cfg.Viewport.PixelRatio(),
	)
	if m != nil {
		switch change {
		case LayoutResized:
			m.SurfaceResizes.Add(1)
		case LayoutMoved:
			m.SurfaceRepositions.Add(1)
		}
	}

	if l.pendingClear.Swap(false) {
		l.cfg.Surface.Clear()
	}

	var matched *types.MetadataFrame
	if frame, _, ok := l.cfg.Buffer.Match(ptsMs); ok {
		matched = &frame
		if m != nil {
			m.MatchHits.Add(1)
		}
	} else if m != nil {
		m.MatchMisses.Add(1)
	}
	if m != nil {
		m.BufferDepth.Store(uint64(l.cfg.Buffer.Len()))
	}

	action, frame := l.cfg.Smoother.Decide(l.cfg.Source.Paused(), matched, ptsMs)

	l.cfg.Surface.Clear()
	switch action {
	case ActionDraw:
		l.paint(frame)
		if m != nil {
			m.FramesDrawn.Add(1)
		}
	case ActionHold:
		l.paint(frame)
		if m != nil {
			m.FramesHeld.Add(1)
		}
	case ActionClear:
		if m != nil {
			m.FramesCleared.Add(1)
		}
	}

	if l.cfg.Publish != nil && (l.cfg.PublishActive == nil || l.cfg.PublishActive()) {
		l.cfg.Publish(l.cfg.Surface.Snapshot())
	}

	l.tickCount++
	if elapsed := time.Since(l.rateWindow); elapsed >= time.Second {
		rate := int(float64(l.tickCount) / elapsed.Seconds())
		l.drawRate.Store(int64(rate))
		if m != nil {
			m.DrawRate.Store(uint64(rate))
		}
		if l.cfg.OnDrawRate != nil {
			l.cfg.OnDrawRate(rate)
		}
		l.tickCount = 0
		l.rateWindow = time.Now()
	}
}

// paint draws every detection of a metadata frame onto the surface.
func (l *Loop) paint(frame *types.MetadataFrame) {
	s := l.cfg.Surface
	cssW, cssH := s.Size()
	if cssW <= 0 || cssH <= 0 {
		return
	}

	for _, det := range frame.Detections {
		r, ok := ToPixelBox(det.Box, cssW, cssH)
		if !ok {
			continue
		}

		col := ColorForLabel(det.Label, det.Interpolated)
		s.StrokeRect(r.X, r.Y, r.Width, r.Height, col, 2)

		text := l.labelText(det)
		labelY := r.Y - s.LabelHeight() - 2
		if labelY < 0 {
			// Not enough room above the box, anchor below instead
			labelY = r.Y + r.Height + 2
		}
		s.DrawLabel(text, r.X, labelY, col, labelBackground)

		if m := l.cfg.Metrics; m != nil {
			if det.Interpolated {
				m.InterpolatedDrawn.Add(1)
			} else {
				m.DetectionsDrawn.Add(1)
			}
		}
	}
}

func (l *Loop) labelText(det types.BoundingBox) string {
	name := det.LabelText
	if name == "" {
		if l.cfg.ResolveLabel != nil {
			name = l.cfg.ResolveLabel(det.Label)
		} else {
			name = fmt.Sprintf("class %d", det.Label)
		}
	}

	text := fmt.Sprintf("%s %.2f", name, det.Confidence)
	if det.Distance != nil {
		text = fmt.Sprintf("%s %.1fm", text, *det.Distance)
	}
	return text
}
