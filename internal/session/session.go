package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/internal/video"
	"github.com/robovis/overlay-renderer/pkg/types"
)

// metaChannelLabel is the data channel the remote analyzer opens for
// detection metadata.
const metaChannelLabel = "meta"

// Session is one connected video+metadata peer. The counters are written on
// the data-channel goroutine and read during teardown.
type Session struct {
	id     string
	pc     *webrtc.PeerConnection
	source *video.TrackSource

	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Source returns the session's presentation clock, nil until a video track
// has arrived.
func (s *Session) Source() *video.TrackSource { return s.source }

// Server answers WebRTC offers and routes each peer's metadata channel and
// video track into the overlay engine.
type Server struct {
	sessions    map[string]*Session
	sessionsMu  sync.RWMutex
	config      webrtc.Configuration
	api         *webrtc.API
	maxSessions int
	metrics     *metrics.Metrics

	// OnMetadata receives every decoded metadata frame.
	OnMetadata func(types.MetadataFrame)
	// OnTrack fires when a session's video track arrives.
	OnTrack func(*video.TrackSource)
	// OnDisconnect fires after a session is torn down; the overlay core
	// treats it as its clear/reset signal.
	OnDisconnect func(sessionID string)
}

// NewServer creates a session server. maxSessions bounds concurrent peers.
func NewServer(stunServers []string, maxSessions int, m *metrics.Metrics) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		logger.Error("Session", "Failed to register codecs: %v", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithMediaEngine(mediaEngine),
	)

	return &Server{
		sessions:    make(map[string]*Session),
		config:      webrtc.Configuration{ICEServers: iceServers},
		api:         api,
		maxSessions: maxSessions,
		metrics:     m,
	}
}

// HandleOffer answers a WebRTC offer and registers the resulting session.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}

	s.sessionsMu.RLock()
	numSessions := len(s.sessions)
	s.sessionsMu.RUnlock()
	if numSessions >= s.maxSessions {
		return nil, fmt.Errorf("maximum sessions reached (%d)", s.maxSessions)
	}

	pc, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	sess := &Session{
		id:     uuid.NewString(),
		pc:     pc,
		source: video.NewTrackSource(0, 0, 0),
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != metaChannelLabel {
			logger.Debug("Session", "Ignoring data channel %q for session %s", dc.Label(), sess.id)
			return
		}
		logger.Info("Session", "Metadata channel open for session %s", sess.id)
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			s.handleMetadata(sess, msg.Data)
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		logger.Info("Session", "Video track for session %s: %s", sess.id, track.Codec().MimeType)
		if s.OnTrack != nil {
			s.OnTrack(sess.source)
		}
		go sess.source.Consume(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("Session", "Session %s connection state: %s", sess.id, state.String())
		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("Session", "Session %s connection lost (%s), removing...", sess.id, state.String())
			s.RemoveSession(sess.id)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	if s.metrics != nil {
		s.metrics.TotalSessions.Add(1)
		s.metrics.ActiveSessions.Store(uint64(s.Count()))
	}
	logger.Info("Session", "Session %s connected", sess.id)

	localDesc := pc.LocalDescription()
	if localDesc == nil {
		return nil, fmt.Errorf("no local description available")
	}
	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}
	return answerJSON, nil
}

// handleMetadata decodes one message from a session's metadata channel.
// Malformed messages are dropped with a diagnostic, never propagated.
func (s *Server) handleMetadata(sess *Session, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		sess.framesDropped.Add(1)
		if s.metrics != nil {
			s.metrics.MetadataDropped.Add(1)
		}
		logger.Warn("Session", "Dropping metadata message from %s: %v", sess.id, err)
		return
	}
	sess.framesReceived.Add(1)
	if s.OnMetadata != nil {
		s.OnMetadata(frame)
	}
}

// RemoveSession tears a session down by id. Safe to call twice.
func (s *Server) RemoveSession(sessionID string) {
	s.sessionsMu.Lock()
	sess, exists := s.sessions[sessionID]
	if exists {
		delete(s.sessions, sessionID)
	}
	s.sessionsMu.Unlock()
	if !exists {
		return
	}

	sess.pc.Close()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Store(uint64(s.Count()))
	}
	logger.Info("Session", "Session %s removed (frames: %d received, %d dropped)",
		sessionID, sess.framesReceived.Load(), sess.framesDropped.Load())

	if s.OnDisconnect != nil {
		s.OnDisconnect(sessionID)
	}
}

// Count returns the number of active sessions.
func (s *Server) Count() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// Close tears down all sessions.
func (s *Server) Close() error {
	s.sessionsMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionsMu.RUnlock()

	for _, id := range ids {
		s.RemoveSession(id)
	}
	return nil
}
