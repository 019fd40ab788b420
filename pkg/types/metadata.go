package types

// NormRect is a rectangle normalized to [0,1] relative to the intrinsic
// media dimensions. (X, Y) is the top-left corner.
type NormRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point3 is a camera-space position in meters.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BoundingBox is one detected object in one metadata frame.
type BoundingBox struct {
	ID         string   `json:"id,omitempty"`
	Label      int      `json:"label"`
	LabelText  string   `json:"label_text,omitempty"`
	Confidence float64  `json:"confidence"`
	Box        NormRect `json:"box"`
	Distance   *float64 `json:"distance,omitempty"`
	Position   *Point3  `json:"position,omitempty"`

	// Interpolated marks a box synthesized by the tracker rather than a
	// direct model output. Used for styling only, never for matching.
	Interpolated bool `json:"interpolated,omitempty"`
}

// MetadataFrame is one message from the detection feed.
//
// Timestamp is sender-side milliseconds, monotonic within the feed but on a
// different clock domain than video presentation time. FrameID is unique per
// frame but not assumed contiguous or in arrival order.
type MetadataFrame struct {
	Timestamp  float64       `json:"timestamp"`
	FrameID    int           `json:"frame_id"`
	Detections []BoundingBox `json:"detections"`

	// FPS is the analyzer's self-reported rate, sent every 30th frame.
	// Informational only.
	FPS *float64 `json:"fps,omitempty"`
}
