package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by a non-looping MockCamera once every frame
// has been read.
var ErrEndOfStream = errors.New("mock camera: end of stream")

// MockCamera plays back pre-recorded frames for testing. Timestamps are
// synthetic: read n is stamped n frame intervals after Open.
type MockCamera struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	loop    bool
	fps     int
	running bool
	next    int
	reads   int
}

// NewMockCamera creates a mock that plays frames in order, wrapping around
// when loop is set.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop, fps: DefaultFPS}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.next, c.reads = 0, 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.running:
		return nil, ErrCameraNotOpen
	case len(c.frames) == 0:
		return nil, ErrEndOfStream
	case c.next == len(c.frames) && !c.loop:
		return nil, ErrEndOfStream
	case c.next == len(c.frames):
		c.next = 0
	}

	mat := c.frames[c.next].Clone()
	ts := int64(c.reads) * 1000 / int64(c.fps)
	c.next++
	c.reads++
	return &Frame{Mat: &mat, TimestampMs: ts, Width: mat.Cols(), Height: mat.Rows()}, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	c.fps = fps
	c.mu.Unlock()
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns the number of frames handed out since Open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
