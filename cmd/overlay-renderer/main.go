package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/robovis/overlay-renderer/internal/labels"
	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/internal/metarec"
	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/internal/overlay"
	"github.com/robovis/overlay-renderer/internal/preview"
	"github.com/robovis/overlay-renderer/internal/session"
	"github.com/robovis/overlay-renderer/internal/surface"
	"github.com/robovis/overlay-renderer/internal/video"
	"github.com/robovis/overlay-renderer/pkg/types"
)

var (
	// Command-line flags
	httpAddr    = flag.String("http", ":8081", "HTTP server address")
	metricsAddr = flag.String("metrics", ":9090", "Metrics server address")
	pprofAddr   = flag.String("pprof", ":6060", "pprof server address")
	recordPath  = flag.String("record-path", "./recordings", "Metadata recording output path")
	maxSessions = flag.Int("max-sessions", 10, "Maximum WebRTC sessions")
	stunServers = flag.String("stun", "stun:stun.l.google.com:19302", "STUN server URLs (comma-separated)")
	feedURL     = flag.String("feed", "", "Optional WebSocket metadata feed URL")
	videoW      = flag.Float64("video-width", 1280, "Video element width (CSS px)")
	videoH      = flag.Float64("video-height", 720, "Video element height (CSS px)")
	pixelRatio  = flag.Float64("dpr", 1.0, "Device pixel ratio")
	fitMode     = flag.String("fit", "contain", "Video fit mode (contain, cover, fill, none, scale-down)")
	toleranceMs = flag.Float64("tolerance-ms", overlay.DefaultToleranceMs, "Metadata match tolerance (ms)")
	holdMs      = flag.Float64("hold-ms", overlay.DefaultHoldMs, "Stale overlay hold window (ms)")
	bufferSize  = flag.Int("buffer-size", overlay.DefaultMaxBuffer, "Metadata buffer capacity")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

// Engine ties the session server, the metadata buffer and the render loop
// together behind the HTTP surface.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics     *metrics.Metrics
	source      *sourceMux
	viewport    *configViewport
	buffer      *overlay.Buffer
	loop        *overlay.Loop
	sessions    *session.Server
	recorder    *metarec.Recorder
	broadcaster *preview.Broadcaster
	httpServer  *http.Server

	// Last fps figure the analyzer reported, as float64 bits
	analyzerFPS atomic.Uint64
}

func main() {
	// .env is optional, flags and environment win
	_ = godotenv.Load()
	flag.Parse()

	level, err := logger.ParseLevel(envOr("LOG_LEVEL", *logLevel))
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Overlay renderer starting...")
	logger.Info("Main", "Log level: %s", level)

	if err := os.MkdirAll(*recordPath, 0755); err != nil {
		log.Fatalf("Failed to create recordings directory: %v", err)
	}

	eng, err := NewEngine()
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	if err := eng.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Engine stopped")
}

// NewEngine wires all components.
func NewEngine() (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()

	source := newSourceMux(video.NewClockSource(int(*videoW), int(*videoH)))
	viewport := newConfigViewport(*videoW, *videoH, *pixelRatio, overlay.FitMode(*fitMode))

	buf := overlay.NewBuffer(*bufferSize, *toleranceMs)
	smoother := overlay.NewSmoother(*holdMs)
	surf := surface.New()
	broadcaster := preview.NewBroadcaster()
	rec := metarec.NewRecorder(*recordPath)

	loop := overlay.NewLoop(overlay.LoopConfig{
		Source:        source,
		Viewport:      viewport,
		Buffer:        buf,
		Smoother:      smoother,
		Surface:       surf,
		Metrics:       m,
		ResolveLabel:  labels.Resolve,
		Publish:       broadcaster.Publish,
		PublishActive: broadcaster.Active,
	})

	sessions := session.NewServer(strings.Split(*stunServers, ","), *maxSessions, m)

	eng := &Engine{
		ctx:         ctx,
		cancel:      cancel,
		metrics:     m,
		source:      source,
		viewport:    viewport,
		buffer:      buf,
		loop:        loop,
		sessions:    sessions,
		recorder:    rec,
		broadcaster: broadcaster,
	}

	sessions.OnMetadata = eng.ingest
	sessions.OnTrack = func(src *video.TrackSource) {
		logger.Info("Main", "Switching presentation clock to incoming video track")
		source.SetDelegate(src)
	}
	sessions.OnDisconnect = func(id string) {
		logger.Info("Main", "Session %s gone, clearing overlay state", id)
		source.SetDelegate(video.NewClockSource(int(*videoW), int(*videoH)))
		loop.RequestClear()
	}

	mux := http.NewServeMux()
	eng.setupRoutes(mux)
	eng.httpServer = &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	return eng, nil
}

// ingest routes one decoded metadata frame into the buffer and, when active,
// the recorder.
func (e *Engine) ingest(frame types.MetadataFrame) {
	stats := e.buffer.Ingest(frame)

	if frame.FPS != nil {
		e.analyzerFPS.Store(math.Float64bits(*frame.FPS))
	}

	e.metrics.MetadataIngested.Add(1)
	if stats.Replaced {
		e.metrics.MetadataReplaced.Add(1)
	}
	if stats.Evicted > 0 {
		e.metrics.MetadataEvicted.Add(uint64(stats.Evicted))
	}
	e.metrics.BufferDepth.Store(uint64(e.buffer.Len()))

	if e.recorder.SendFrame(frame) {
		e.metrics.RecordedFrames.Add(1)
	}
	if e.recorder.IsRecording() {
		e.metrics.RecordingActive.Store(1)
	} else {
		e.metrics.RecordingActive.Store(0)
	}
}

// Start brings up the servers and the render loop.
func (e *Engine) Start() error {
	log.Printf("Starting overlay renderer...")
	log.Printf("  HTTP server: %s", *httpAddr)
	log.Printf("  Metrics server: %s", *metricsAddr)
	log.Printf("  pprof server: %s", *pprofAddr)
	log.Printf("  Recording path: %s", *recordPath)

	go func() {
		log.Printf("Starting pprof server on %s", *pprofAddr)
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting metrics server on %s", *metricsAddr)
		if err := e.metrics.StartServer(*metricsAddr); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting HTTP server on %s", *httpAddr)
		if err := e.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	if url := envOr("METADATA_FEED_URL", *feedURL); url != "" {
		feed := session.NewFeed(url, e.metrics, e.ingest)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			feed.Run(e.ctx)
		}()
	}

	e.loop.Start()

	log.Println("Engine started successfully")
	return nil
}

// setupRoutes sets up HTTP routes.
func (e *Engine) setupRoutes(mux *http.ServeMux) {
	// CORS middleware
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}

	// WebRTC signaling
	mux.HandleFunc("/offer", corsMiddleware(e.handleOffer))

	// Renderer control
	mux.HandleFunc("/api/renderer/start", corsMiddleware(e.handleRendererStart))
	mux.HandleFunc("/api/renderer/stop", corsMiddleware(e.handleRendererStop))
	mux.HandleFunc("/api/renderer/clear", corsMiddleware(e.handleRendererClear))
	mux.HandleFunc("/api/viewport", corsMiddleware(e.handleViewport))
	mux.HandleFunc("/api/pause", corsMiddleware(e.handlePause))

	// Preview stream, status and recording control
	previewSrv := preview.NewServer(e.broadcaster, e.recorder, e.statusPayload, preview.DefaultStatusInterval)
	previewHandler := previewSrv.Handler()
	mux.Handle("/stream", previewHandler)
	mux.Handle("/api/status", previewHandler)
	mux.Handle("/api/status/stream", previewHandler)
	mux.Handle("/api/recording/start", previewHandler)
	mux.Handle("/api/recording/stop", previewHandler)
	mux.Handle("/api/recording/status", previewHandler)

	// Health check
	mux.HandleFunc("/health", e.handleHealth)
}

func (e *Engine) statusPayload() map[string]any {
	offset, offsetSet := e.buffer.Offset()
	payload := map[string]any{
		"running":      e.loop.Running(),
		"paused":       e.source.Paused(),
		"draw_fps":     e.loop.DrawRate(),
		"buffer_depth": e.buffer.Len(),
		"sessions":     e.sessions.Count(),
		"recording":    e.recorder.GetStatus(),
	}
	if offsetSet {
		payload["clock_offset_ms"] = offset
	}
	if fps := math.Float64frombits(e.analyzerFPS.Load()); fps > 0 {
		payload["analyzer_fps"] = fps
	}
	return payload
}

// handleOffer handles a WebRTC offer.
func (e *Engine) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	offerJSON, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	answerJSON, err := e.sessions.HandleOffer(offerJSON)
	if err != nil {
		log.Printf("[HTTP] WebRTC offer error: %v", err)
		http.Error(w, fmt.Sprintf("Failed to handle offer: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(answerJSON)
}

func (e *Engine) handleRendererStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e.loop.Start()
	json.NewEncoder(w).Encode(map[string]any{"running": e.loop.Running()})
}

func (e *Engine) handleRendererStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e.loop.Stop()
	json.NewEncoder(w).Encode(map[string]any{"running": e.loop.Running()})
}

func (e *Engine) handleRendererClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e.loop.RequestClear()
	json.NewEncoder(w).Encode(map[string]any{"cleared": true})
}

// handleViewport repositions or resizes the video element geometry the
// renderer tracks.
func (e *Engine) handleViewport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		json.NewEncoder(w).Encode(e.viewport.snapshot())
	case "POST":
		var update viewportUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid viewport data", http.StatusBadRequest)
			return
		}
		e.viewport.apply(update)
		json.NewEncoder(w).Encode(e.viewport.snapshot())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (e *Engine) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid pause data", http.StatusBadRequest)
		return
	}
	e.source.SetPaused(body.Paused)
	json.NewEncoder(w).Encode(map[string]any{"paused": e.source.Paused()})
}

// handleHealth handles the health check.
func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"sessions":  e.sessions.Count(),
		"running":   e.loop.Running(),
		"recording": e.recorder.IsRecording(),
	})
}

// Shutdown gracefully stops the engine.
func (e *Engine) Shutdown() error {
	e.cancel()
	e.loop.Stop()
	e.wg.Wait()

	e.recorder.Close()
	e.sessions.Close()
	e.broadcaster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.httpServer.Shutdown(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
