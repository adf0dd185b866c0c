package practice

import (
	"fmt"
	"sync"

	"github.com/ayusman/taiji/internal/coach"
	"github.com/ayusman/taiji/internal/detector"
)

// Boundary selects which recorded frames are sent for classification.
type Boundary string

const (
	// BoundaryPose sends every frame recorded during the pose.
	BoundaryPose Boundary = "pose"
	// BoundaryWindow sends only the trailing window, roughly one repetition.
	BoundaryWindow Boundary = "window"
)

// ParseBoundary validates a boundary name.
func ParseBoundary(s string) (Boundary, error) {
	switch b := Boundary(s); b {
	case BoundaryPose, BoundaryWindow:
		return b, nil
	case "":
		return BoundaryPose, nil
	}
	return "", fmt.Errorf("unknown segment boundary %q", s)
}

// Recorder buffers live normalized landmarks for the current pose.
type Recorder struct {
	boundary Boundary
	windowMs int64

	mu      sync.Mutex
	samples []coach.Sample
}

// NewRecorder creates a recorder.
func NewRecorder(boundary Boundary, windowMs int64) *Recorder {
	if boundary == "" {
		boundary = BoundaryPose
	}
	return &Recorder{boundary: boundary, windowMs: windowMs}
}

// Add appends a frame. Frames without a pose are ignored.
func (r *Recorder) Add(f *detector.Frame) {
	if f == nil || f.Normalized == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, coach.Sample{TimestampMs: f.TimestampMs, Landmarks: f.Normalized.Clone()})
	if r.boundary == BoundaryWindow && r.windowMs > 0 {
		r.trimLocked()
	}
}

// trimLocked drops frames older than the window, measured from the newest.
func (r *Recorder) trimLocked() {
	newest := r.samples[len(r.samples)-1].TimestampMs
	cut := 0
	for cut < len(r.samples) && newest-r.samples[cut].TimestampMs > r.windowMs {
		cut++
	}
	if cut > 0 {
		r.samples = append(r.samples[:0:0], r.samples[cut:]...)
	}
}

// Len returns the number of buffered frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Take returns the buffered segment and clears the buffer.
func (r *Recorder) Take() []coach.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.samples
	r.samples = nil
	return out
}

// Clear drops the buffer.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}
