package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	queue      []*Frame
	pose       *Frame
	fn         func(timestampMs int64) *Frame
	err        error
	timestamps []int64
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose returned by Detect when nothing is queued. Passing
// nil arrays simulates an empty scene.
func (m *MockDetector) SetPose(normalized, world *Landmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = &Frame{Normalized: normalized, World: world}
}

// SetFunc makes Detect derive its result from the frame timestamp. It takes
// precedence over SetPose but not over queued frames.
func (m *MockDetector) SetFunc(fn func(timestampMs int64) *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// Enqueue appends results consumed one per Detect call. A nil entry means no
// person in that frame.
func (m *MockDetector) Enqueue(frames ...*Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timestamps = append(m.timestamps, timestampMs)
	if m.err != nil {
		return nil, m.err
	}

	var src *Frame
	switch {
	case len(m.queue) > 0:
		src = m.queue[0]
		m.queue = m.queue[1:]
	case m.fn != nil:
		src = m.fn(timestampMs)
	default:
		src = m.pose
	}

	out := &Frame{TimestampMs: timestampMs}
	if src != nil {
		out.Normalized = src.Normalized.Clone()
		out.World = src.World.Clone()
	}
	return out, nil
}

// Calls returns the number of Detect invocations.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

// Timestamps returns the timestamps passed to Detect, in call order.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
