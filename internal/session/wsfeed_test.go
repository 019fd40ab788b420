package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/pkg/types"
)

func TestFeedDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"timestamp": 100, "frame_id": 1, "detections": []}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"timestamp": 200, "frame_id": 2, "detections": []}`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	m := metrics.New()

	frames := make(chan types.MetadataFrame, 4)
	feed := NewFeed(url, m, func(f types.MetadataFrame) { frames <- f })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	var got []types.MetadataFrame
	for len(got) < 2 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", len(got))
		}
	}

	assert.Equal(t, 1, got[0].FrameID)
	assert.Equal(t, 2, got[1].FrameID)

	// The malformed message was dropped, not delivered.
	require.Equal(t, uint64(1), m.MetadataDropped.Load())
}
