package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/pkg/types"
)

const (
	feedPingInterval   = 20 * time.Second
	feedReadLimit      = 1 << 20
	feedReconnectDelay = 2 * time.Second
)

// Feed reads metadata frames from a WebSocket endpoint instead of a WebRTC
// data channel (the analyzer exposes both). Indefinite silence from the
// feed is normal and is never treated as an error.
type Feed struct {
	url     string
	onFrame func(types.MetadataFrame)
	metrics *metrics.Metrics
}

// NewFeed creates a feed that delivers every decoded frame to onFrame.
func NewFeed(url string, m *metrics.Metrics, onFrame func(types.MetadataFrame)) *Feed {
	return &Feed{url: url, onFrame: onFrame, metrics: m}
}

// Run connects and reads until ctx is cancelled, reconnecting after
// connection loss. Run on its own goroutine.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.connectAndRead(ctx); err != nil {
			logger.Warn("Feed", "Connection to %s lost: %v", f.url, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(feedReconnectDelay):
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(feedReadLimit)
	logger.Info("Feed", "Connected to metadata feed %s", f.url)

	// Keep-alive pings; the read loop itself may be silent indefinitely.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(feedPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			if f.metrics != nil {
				f.metrics.MetadataDropped.Add(1)
			}
			logger.Warn("Feed", "Dropping metadata message: %v", err)
			continue
		}
		if f.onFrame != nil {
			f.onFrame(frame)
		}
	}
}
