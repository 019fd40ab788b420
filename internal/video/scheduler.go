package video

import (
	"sync"
	"time"

	"github.com/robovis/overlay-renderer/internal/logger"
)

// DefaultRefreshInterval is the fallback tick rate when the source cannot
// signal frame boundaries (one display refresh at 60 Hz).
const DefaultRefreshInterval = time.Second / 60

// Scheduler delivers one callback per drawable frame. It prefers the
// source's per-frame signal and silently falls back to a refresh-rate
// ticker when that capability is unavailable.
//
// Start and Stop are idempotent; Stop cancels exactly the one outstanding
// scheduled callback chain so a restart never leaves a second loop running.
type Scheduler struct {
	mu      sync.Mutex
	src     Source
	refresh time.Duration
	running bool
	cancel  func()
}

// NewScheduler creates a scheduler for the given source. A non-positive
// refresh interval selects the default.
func NewScheduler(src Source, refresh time.Duration) *Scheduler {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	return &Scheduler{src: src, refresh: refresh}
}

// Start begins delivering ticks to fn. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(fn func(ptsMs float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	if cancel, ok := s.src.OnFrame(fn); ok {
		s.cancel = cancel
		s.running = true
		logger.Debug("Scheduler", "Using per-frame callbacks")
		return
	}

	// Fallback: one tick per display refresh
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn(s.src.PresentationTime())
			}
		}
	}()
	s.cancel = func() { close(stop) }
	s.running = true
	logger.Debug("Scheduler", "Per-frame callbacks unavailable, ticking every %v", s.refresh)
}

// Stop cancels the outstanding callback chain. Calling Stop on a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

// Running reports whether the scheduler is delivering ticks.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
