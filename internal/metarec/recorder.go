// Package metarec records received metadata frames to JSON Lines files for
// offline replay and analysis.
package metarec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robovis/overlay-renderer/internal/logger"
	"github.com/robovis/overlay-renderer/pkg/types"
)

// Recorder appends metadata frames to a timestamped .jsonl file.
type Recorder struct {
	mu           sync.RWMutex
	file         *os.File
	writer       *bufio.Writer
	filename     string
	basePath     string
	recording    bool
	frameCount   uint64
	bytesWritten uint64
	startTime    time.Time
	frameChan    chan types.MetadataFrame
	wg           sync.WaitGroup
}

// NewRecorder creates a recorder writing under basePath.
func NewRecorder(basePath string) *Recorder {
	return &Recorder{
		basePath:  basePath,
		frameChan: make(chan types.MetadataFrame, 120),
	}
}

// Start begins recording to a new file.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("metadata_%s.jsonl", timestamp)
	file, err := os.Create(filepath.Join(r.basePath, filename))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	r.file = file
	r.writer = bufio.NewWriter(file)
	r.filename = filename
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = 0
	r.startTime = time.Now()

	r.wg.Add(1)
	go r.writeFrames()

	logger.Info("Recorder", "Recording metadata to %s", filename)
	return nil
}

// Stop ends the recording and flushes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		if err := r.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush file: %w", err)
		}
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		r.file = nil
		r.writer = nil
	}
	return nil
}

// SendFrame queues a frame for recording (non-blocking). Returns false when
// not recording or the queue is full.
func (r *Recorder) SendFrame(frame types.MetadataFrame) bool {
	r.mu.RLock()
	recording := r.recording
	r.mu.RUnlock()
	if !recording {
		return false
	}

	select {
	case r.frameChan <- frame:
		return true
	default:
		return false
	}
}

// writeFrames drains the queue onto disk.
func (r *Recorder) writeFrames() {
	defer r.wg.Done()

	for {
		r.mu.RLock()
		recording := r.recording
		r.mu.RUnlock()

		if !recording {
			for len(r.frameChan) > 0 {
				r.writeFrame(<-r.frameChan)
			}
			return
		}

		select {
		case frame := <-r.frameChan:
			r.writeFrame(frame)
		case <-time.After(100 * time.Millisecond):
			// Check recording state periodically
		}
	}
}

func (r *Recorder) writeFrame(frame types.MetadataFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return
	}

	line, err := json.Marshal(frame)
	if err != nil {
		logger.Warn("Recorder", "Failed to encode frame %d: %v", frame.FrameID, err)
		return
	}
	line = append(line, '\n')

	n, err := r.writer.Write(line)
	if err != nil {
		logger.Warn("Recorder", "Write error: %v", err)
		return
	}
	r.bytesWritten += uint64(n)
	r.frameCount++
}

// IsRecording returns true while a recording is active.
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Status holds the current recording state.
type Status struct {
	Recording    bool          `json:"recording"`
	Filename     string        `json:"filename"`
	FrameCount   uint64        `json:"frame_count"`
	BytesWritten uint64        `json:"bytes_written"`
	Duration     time.Duration `json:"duration_ms"`
	StartTime    time.Time     `json:"start_time"`
}

// GetStatus returns the current recording status.
func (r *Recorder) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}
	return Status{
		Recording:    r.recording,
		Filename:     r.filename,
		FrameCount:   r.frameCount,
		BytesWritten: r.bytesWritten,
		Duration:     duration,
		StartTime:    r.startTime,
	}
}

// Close stops an active recording.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}
