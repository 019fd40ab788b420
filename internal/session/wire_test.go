package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	data := []byte(`{
		"timestamp": 1234.5,
		"frame_id": 42,
		"detections": [
			{
				"label": 16,
				"confidence": 0.91,
				"box": {"x": 0.1, "y": 0.2, "width": 0.3, "height": 0.4},
				"distance": 2.5,
				"position": {"x": 0.5, "y": -0.1, "z": 2.4}
			}
		]
	}`)

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, 42, frame.FrameID)
	assert.Equal(t, 1234.5, frame.Timestamp)
	require.Len(t, frame.Detections, 1)

	det := frame.Detections[0]
	assert.Equal(t, 16, det.Label)
	assert.Equal(t, 0.91, det.Confidence)
	assert.Equal(t, 0.1, det.Box.X)
	require.NotNil(t, det.Distance)
	assert.Equal(t, 2.5, *det.Distance)
	require.NotNil(t, det.Position)
	assert.Equal(t, 2.4, det.Position.Z)
}

func TestDecodeFrameSynthesizesDetectionIDs(t *testing.T) {
	data := []byte(`{"timestamp": 1, "frame_id": 7, "detections": [
		{"label": 0, "confidence": 0.5, "box": {"x": 0, "y": 0, "width": 1, "height": 1}},
		{"id": "tracked-3", "label": 1, "confidence": 0.5, "box": {"x": 0, "y": 0, "width": 1, "height": 1}}
	]}`)

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, "7-0", frame.Detections[0].ID)
	assert.Equal(t, "tracked-3", frame.Detections[1].ID)
}

func TestDecodeFrameMissingFrameID(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"timestamp": 1234.5, "detections": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_id")
}

func TestDecodeFrameMalformedJSON(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"frame_id": `))
	assert.Error(t, err)
}

func TestDecodeFrameMissingTimestampPassesZero(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"frame_id": 1, "detections": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, frame.Timestamp)
}

func TestDecodeFrameFPSField(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"frame_id": 30, "timestamp": 5, "detections": [], "fps": 14.7}`))
	require.NoError(t, err)
	require.NotNil(t, frame.FPS)
	assert.Equal(t, 14.7, *frame.FPS)

	frame, err = DecodeFrame([]byte(`{"frame_id": 31, "timestamp": 6, "detections": []}`))
	require.NoError(t, err)
	assert.Nil(t, frame.FPS)
}
