// Package capture provides webcam and video file capture using GoCV (OpenCV).
package capture

import (
	"errors"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Frame is a captured image with its capture timestamp.
type Frame struct {
	Mat *gocv.Mat
	// TimestampMs is the media position for files, or the milliseconds since
	// Open for live devices.
	TimestampMs int64
	Width       int
	Height      int
}

// Close releases the underlying Mat.
func (f *Frame) Close() {
	if f != nil && f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must Close it.
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config selects the capture device and requested format.
type Config struct {
	DeviceID int
	FPS      int
	Width    int
	Height   int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config   Config
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openedAt time.Time
	lastTs   int64
}

// NewCamera creates a new Camera for the configured device.
func NewCamera(config Config) Camera {
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	if config.Width <= 0 || config.Height <= 0 {
		config.Width, config.Height = DefaultWidth, DefaultHeight
	}
	return &cameraImpl{
		config: config,
		fps:    config.FPS,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.openedAt = time.Now()
	c.lastTs = -1

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera. Timestamps never go
// backwards; a frame read within the same millisecond as its predecessor
// repeats the timestamp, which callers use to skip stale frames.
func (c *cameraImpl) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	ts := time.Since(c.openedAt).Milliseconds()
	if ts < c.lastTs {
		ts = c.lastTs
	}
	c.lastTs = ts

	return &Frame{Mat: &mat, TimestampMs: ts, Width: mat.Cols(), Height: mat.Rows()}, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
