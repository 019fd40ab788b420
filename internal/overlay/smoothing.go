package overlay

import (
	"sync"

	"github.com/robovis/overlay-renderer/pkg/types"
)

// DefaultHoldMs is how long the previously rendered frame may be redrawn to
// mask a metadata gap before the surface is cleared.
const DefaultHoldMs = 150.0

// Action is the smoothing policy's per-tick decision.
type Action int

const (
	ActionClear Action = iota
	ActionDraw
	ActionHold
)

func (a Action) String() string {
	switch a {
	case ActionDraw:
		return "draw"
	case ActionHold:
		return "hold"
	default:
		return "clear"
	}
}

// Smoother decides, per render tick, whether to draw a freshly matched
// frame, hold the previously rendered one, or clear the surface.
type Smoother struct {
	mu     sync.Mutex
	holdMs float64
	held   *types.MetadataFrame
	heldAt float64
}

// NewSmoother creates a smoother with the given hold window in
// milliseconds. A non-positive value selects the default.
func NewSmoother(holdMs float64) *Smoother {
	if holdMs <= 0 {
		holdMs = DefaultHoldMs
	}
	return &Smoother{holdMs: holdMs}
}

// Decide applies the policy for one tick. matched is nil when the matcher
// reported no frame within tolerance. The returned frame accompanies
// ActionDraw and ActionHold and is nil for ActionClear.
func (s *Smoother) Decide(paused bool, matched *types.MetadataFrame, presentationMs float64) (Action, *types.MetadataFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if paused {
		s.held = nil
		return ActionClear, nil
	}

	if matched != nil {
		s.held = matched
		s.heldAt = presentationMs
		return ActionDraw, matched
	}

	if s.held != nil && presentationMs-s.heldAt <= s.holdMs {
		return ActionHold, s.held
	}

	s.held = nil
	return ActionClear, nil
}

// Reset drops the held-frame memory. Called on clear/reset signals.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = nil
	s.heldAt = 0
}
