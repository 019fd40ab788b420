// metasim serves a synthetic detection metadata feed over WebSocket for
// exercising the overlay renderer without a live analyzer. Boxes orbit the
// frame, and delivery is jittered and occasionally reordered the way a real
// network feed is.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/pkg/types"
)

var (
	addr        = flag.String("addr", ":8090", "Listen address")
	fps         = flag.Float64("fps", 15, "Metadata frames per second")
	numBoxes    = flag.Int("boxes", 3, "Number of synthetic detections per frame")
	jitterMs    = flag.Int("jitter-ms", 40, "Max random delivery delay (ms)")
	reorderRate = flag.Float64("reorder", 0.1, "Probability of swapping adjacent frames")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, true)

	http.HandleFunc("/meta", handleFeed)

	logger.Info("Metasim", "Serving synthetic metadata on ws://%s/meta (%.0f fps, %d boxes)",
		*addr, *fps, *numBoxes)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Metasim", "Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	logger.Info("Metasim", "Client %s connected", conn.RemoteAddr())

	gen := newGenerator(*numBoxes)
	interval := time.Duration(float64(time.Second) / *fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending *types.MetadataFrame

	for range ticker.C {
		frame := gen.next()

		// Hold a frame back occasionally so the consumer sees reordering.
		if pending == nil && rand.Float64() < *reorderRate {
			pending = &frame
			continue
		}

		if *jitterMs > 0 {
			time.Sleep(time.Duration(rand.Intn(*jitterMs)) * time.Millisecond)
		}

		if err := conn.WriteJSON(frame); err != nil {
			logger.Info("Metasim", "Client %s gone: %v", conn.RemoteAddr(), err)
			return
		}
		if pending != nil {
			if err := conn.WriteJSON(*pending); err != nil {
				return
			}
			pending = nil
		}
	}
}

// generator produces frames with boxes orbiting the normalized square.
type generator struct {
	boxes   int
	frameID int
	start   time.Time
}

func newGenerator(boxes int) *generator {
	return &generator{boxes: boxes, start: time.Now()}
}

func (g *generator) next() types.MetadataFrame {
	g.frameID++
	t := time.Since(g.start).Seconds()

	dets := make([]types.BoundingBox, 0, g.boxes)
	for i := 0; i < g.boxes; i++ {
		phase := t*0.5 + float64(i)*2*math.Pi/float64(g.boxes)
		cx := 0.5 + 0.3*math.Cos(phase)
		cy := 0.5 + 0.3*math.Sin(phase)
		dist := 1.5 + math.Abs(math.Sin(phase))*3

		dets = append(dets, types.BoundingBox{
			Label:      i % 80,
			Confidence: 0.6 + 0.35*rand.Float64(),
			Box: types.NormRect{
				X:      cx - 0.08,
				Y:      cy - 0.1,
				Width:  0.16,
				Height: 0.2,
			},
			Distance: &dist,
			Position: &types.Point3{
				X: (cx - 0.5) * dist,
				Y: (cy - 0.5) * dist,
				Z: dist,
			},
		})
	}

	frame := types.MetadataFrame{
		Timestamp:  float64(time.Now().UnixMilli()),
		FrameID:    g.frameID,
		Detections: dets,
	}
	if g.frameID%30 == 0 {
		f := *fps
		frame.FPS = &f
	}
	return frame
}
