package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Render loop counters
	FramesDrawn   atomic.Uint64
	FramesHeld    atomic.Uint64
	FramesCleared atomic.Uint64
	DrawRate      atomic.Uint64 // Draws per second, updated once per second

	// Matcher counters
	MetadataIngested atomic.Uint64
	MetadataReplaced atomic.Uint64
	MetadataEvicted  atomic.Uint64
	MetadataDropped  atomic.Uint64 // Malformed messages dropped at decode
	MatchHits        atomic.Uint64
	MatchMisses      atomic.Uint64
	BufferDepth      atomic.Uint64

	// Detection counters, split by origin
	DetectionsDrawn   atomic.Uint64
	InterpolatedDrawn atomic.Uint64

	// Layout counters
	SurfaceResizes     atomic.Uint64
	SurfaceRepositions atomic.Uint64

	// Session tracking
	ActiveSessions atomic.Uint64
	TotalSessions  atomic.Uint64

	// Recorder state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordedFrames  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"overlay_frames_drawn_total", "Total render ticks that drew a freshly matched frame", m.FramesDrawn.Load},
		{"overlay_frames_held_total", "Total render ticks that redrew the held frame", m.FramesHeld.Load},
		{"overlay_frames_cleared_total", "Total render ticks that cleared the surface", m.FramesCleared.Load},
		{"overlay_draw_fps", "Overlay draws per second", m.DrawRate.Load},
		{"overlay_metadata_ingested_total", "Total metadata frames ingested into the buffer", m.MetadataIngested.Load},
		{"overlay_metadata_replaced_total", "Total metadata frames replaced in place by frame id", m.MetadataReplaced.Load},
		{"overlay_metadata_evicted_total", "Total metadata frames evicted from the full buffer", m.MetadataEvicted.Load},
		{"overlay_metadata_dropped_total", "Total malformed metadata messages dropped at decode", m.MetadataDropped.Load},
		{"overlay_match_hits_total", "Total successful buffer matches", m.MatchHits.Load},
		{"overlay_match_misses_total", "Total buffer queries outside tolerance", m.MatchMisses.Load},
		{"overlay_buffer_depth", "Current number of buffered metadata frames", m.BufferDepth.Load},
		{"overlay_detections_drawn_total", "Total detector boxes painted", m.DetectionsDrawn.Load},
		{"overlay_interpolated_drawn_total", "Total interpolated boxes painted", m.InterpolatedDrawn.Load},
		{"overlay_surface_resizes_total", "Total drawing surface pixel buffer resizes", m.SurfaceResizes.Load},
		{"overlay_surface_repositions_total", "Total position-only surface updates", m.SurfaceRepositions.Load},
		{"overlay_active_sessions", "Number of active metadata sessions", m.ActiveSessions.Load},
		{"overlay_total_sessions", "Total metadata sessions accepted", m.TotalSessions.Load},
		{"overlay_recording_active", "Metadata recording active (0=inactive, 1=active)", m.RecordingActive.Load},
		{"overlay_recorded_frames_total", "Total metadata frames written to the recording", m.RecordedFrames.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
