package session

import (
	"encoding/json"
	"fmt"

	"github.com/robovis/overlay-renderer/pkg/types"
)

// wireFrame mirrors the analyzer's JSON metadata message. Pointer fields
// distinguish absent values from zero values.
type wireFrame struct {
	Timestamp  *float64            `json:"timestamp"`
	FrameID    *int                `json:"frame_id"`
	Detections []types.BoundingBox `json:"detections"`
	FPS        *float64            `json:"fps"`
}

// DecodeFrame parses one metadata message.
//
// A message without a frame id is unusable for replacement semantics and is
// rejected; the caller drops it with a diagnostic. A missing or malformed
// timestamp is passed through as zero for the buffer to sanitize at
// insertion time. Detections without an id get one synthesized from the
// frame id and their index, so color assignment and styling stay stable
// within the frame.
func DecodeFrame(data []byte) (types.MetadataFrame, error) {
	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.MetadataFrame{}, fmt.Errorf("malformed metadata message: %w", err)
	}
	if wire.FrameID == nil {
		return types.MetadataFrame{}, fmt.Errorf("metadata message missing frame_id")
	}

	frame := types.MetadataFrame{
		FrameID:    *wire.FrameID,
		Detections: wire.Detections,
		FPS:        wire.FPS,
	}
	if wire.Timestamp != nil {
		frame.Timestamp = *wire.Timestamp
	}

	for i := range frame.Detections {
		if frame.Detections[i].ID == "" {
			frame.Detections[i].ID = fmt.Sprintf("%d-%d", frame.FrameID, i)
		}
	}

	return frame, nil
}
