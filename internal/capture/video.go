package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSeekFailed is returned when a seek completes without a decodable frame.
var ErrSeekFailed = errors.New("video seek failed")

// VideoInfo is the metadata of a video file.
type VideoInfo struct {
	// DurationMs is 0 when the container does not report a usable duration.
	DurationMs float64
	Width      int
	Height     int
	FPS        float64
}

// VideoSource is a seekable video used as the expert reference. A single
// source serves one seek at a time.
type VideoSource interface {
	Info() VideoInfo
	// SeekRead positions the video at positionMs and decodes the frame
	// there. It returns ctx.Err() if ctx ends first; the abandoned decode
	// finishes in the background and its frame is discarded.
	SeekRead(ctx context.Context, positionMs float64) (*Frame, error)
	Close() error
}

type videoFile struct {
	path    string
	capture *gocv.VideoCapture
	info    VideoInfo
	// mu serializes access to capture, including abandoned seeks.
	mu sync.Mutex
}

// OpenVideoFile opens path and reads its metadata.
func OpenVideoFile(path string) (VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: not readable", path)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	frames := capture.Get(gocv.VideoCaptureFrameCount)
	info := VideoInfo{
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    fps,
	}
	if duration := frames / fps * 1000; fps > 0 && frames > 0 && !math.IsInf(duration, 0) && !math.IsNaN(duration) {
		info.DurationMs = duration
	}

	return &videoFile{path: path, capture: capture, info: info}, nil
}

func (v *videoFile) Info() VideoInfo {
	return v.info
}

type seekResult struct {
	frame *Frame
	err   error
}

func (v *videoFile) SeekRead(ctx context.Context, positionMs float64) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan seekResult, 1)
	go func() {
		v.mu.Lock()
		defer v.mu.Unlock()

		if v.capture == nil {
			done <- seekResult{err: errors.New("video closed")}
			return
		}

		v.capture.Set(gocv.VideoCapturePosMsec, positionMs)
		mat := gocv.NewMat()
		if ok := v.capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			done <- seekResult{err: fmt.Errorf("%w at %.0fms", ErrSeekFailed, positionMs)}
			return
		}

		// POS_MSEC now points past the decoded frame; the frame itself sits
		// one frame interval earlier.
		ts := positionMs
		if pos := v.capture.Get(gocv.VideoCapturePosMsec); pos > 0 && v.info.FPS > 0 {
			ts = math.Max(0, pos-1000/v.info.FPS)
		}
		done <- seekResult{frame: &Frame{
			Mat:         &mat,
			TimestampMs: int64(math.Round(ts)),
			Width:       mat.Cols(),
			Height:      mat.Rows(),
		}}
	}()

	select {
	case res := <-done:
		return res.frame, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.frame != nil {
				res.frame.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (v *videoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.capture = nil
	return err
}

// MockVideo is a VideoSource for tests. Every seek yields a small blank
// frame stamped with the requested position unless the position is listed
// in Fail or Stall.
type MockVideo struct {
	info VideoInfo

	mu    sync.Mutex
	fail  map[int64]bool
	stall map[int64]bool
	seeks []float64
}

// NewMockVideo creates a mock with the given metadata.
func NewMockVideo(info VideoInfo) *MockVideo {
	return &MockVideo{info: info, fail: map[int64]bool{}, stall: map[int64]bool{}}
}

// Fail makes seeks to positionMs (rounded) return ErrSeekFailed.
func (m *MockVideo) Fail(positionMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[int64(math.Round(positionMs))] = true
}

// Stall makes seeks to positionMs (rounded) block until ctx ends.
func (m *MockVideo) Stall(positionMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stall[int64(math.Round(positionMs))] = true
}

// Seeks returns every requested position in call order.
func (m *MockVideo) Seeks() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seeks...)
}

func (m *MockVideo) Info() VideoInfo {
	return m.info
}

func (m *MockVideo) SeekRead(ctx context.Context, positionMs float64) (*Frame, error) {
	key := int64(math.Round(positionMs))
	m.mu.Lock()
	m.seeks = append(m.seeks, positionMs)
	fail, stall := m.fail[key], m.stall[key]
	m.mu.Unlock()

	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, fmt.Errorf("%w at %.0fms", ErrSeekFailed, positionMs)
	}

	mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	return &Frame{Mat: &mat, TimestampMs: key, Width: m.info.Width, Height: m.info.Height}, nil
}

func (m *MockVideo) Close() error {
	return nil
}
