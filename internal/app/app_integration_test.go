package app

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/coach"
	"github.com/ayusman/taiji/internal/config"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/frameloop"
	"github.com/ayusman/taiji/internal/logging"
	"github.com/ayusman/taiji/internal/retarget"
	"github.com/ayusman/taiji/internal/sequence"
)

const frameTick = time.Second / 30

// tickers hands out a fresh manual clock for every loop started.
type tickers struct {
	ch chan *frameloop.ManualTicker
}

func newTickers() *tickers {
	return &tickers{ch: make(chan *frameloop.ManualTicker, 8)}
}

func (k *tickers) option() frameloop.Option {
	return frameloop.WithTicker(func(time.Duration) frameloop.Ticker {
		t := frameloop.NewManualTicker(time.Unix(0, 0))
		k.ch <- t
		return t
	})
}

func (k *tickers) next(t *testing.T) *frameloop.ManualTicker {
	t.Helper()
	select {
	case tk := <-k.ch:
		return tk
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
		return nil
	}
}

type fakeSurface struct {
	mu       sync.Mutex
	frames   int
	lastSize image.Point
}

func (s *fakeSurface) Size() image.Point { return image.Pt(640, 360) }

func (s *fakeSurface) Present(canvas *gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.lastSize = image.Pt(canvas.Cols(), canvas.Rows())
}

func (s *fakeSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(_ context.Context, csvData []byte) ([]coach.Verdict, error) {
	if len(csvData) == 0 {
		return nil, coach.ErrEmptyCSV
	}
	return []coach.Verdict{{PoseName: "G01", SpeechText: "great form"}}, nil
}

type fakeGenerator struct{}

func (fakeGenerator) GenerateJSON(_ context.Context, _ string, out any) error {
	return errors.New("offline")
}

type harness struct {
	app     *App
	det     *detector.MockDetector
	camera  *capture.MockCamera
	surface *fakeSurface
	frames  *tickers
	timers  *tickers
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	mat := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	settings := config.Default()
	settings.Camera.LockPath = filepath.Join(t.TempDir(), "camera.lock")
	settings.Gesture.Enabled = false
	settings.Retarget.VideosDir = "videos"
	if mutate != nil {
		mutate(&settings)
	}

	h := &harness{
		det:     detector.NewMockDetector(),
		camera:  capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		surface: &fakeSurface{},
		frames:  newTickers(),
		timers:  newTickers(),
	}
	tpose := detector.TPoseFrame(0)
	h.det.SetPose(tpose.Normalized, tpose.World)

	video := capture.NewMockVideo(capture.VideoInfo{DurationMs: 1000, Width: 640, Height: 360, FPS: 30})
	a, err := New(Config{
		Settings:   &settings,
		Camera:     h.camera,
		Detector:   h.det,
		OpenVideo:  func(string) (capture.VideoSource, error) { return video, nil },
		Classifier: fakeClassifier{},
		Generator:  fakeGenerator{},
		Surface:    h.surface,
		Logger:     logging.NewNop(),
		FrameLoop:  []frameloop.Option{h.frames.option()},
		TimerLoop:  []frameloop.Option{h.timers.option()},
	})
	require.NoError(t, err)
	h.app = a
	t.Cleanup(func() { a.Close() })
	return h
}

func (h *harness) calibrate(t *testing.T) *calibration.Profile {
	t.Helper()
	type result struct {
		p   *calibration.Profile
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := h.app.Calibrate(context.Background(), nil)
		done <- result{p, err}
	}()

	ticker := h.frames.next(t)
	for i := 0; i < 90; i++ {
		require.True(t, ticker.Advance(frameTick), "calibration stopped at tick %d", i+1)
	}
	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.p
	case <-time.After(5 * time.Second):
		t.Fatal("calibration did not finish")
		return nil
	}
}

func TestApp_RequiresInit(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.app.Calibrate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestApp_CameraLockIsExclusive(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "camera.lock")
	first := newHarness(t, func(c *config.Config) { c.Camera.LockPath = lockPath })
	second := newHarness(t, func(c *config.Config) { c.Camera.LockPath = lockPath })

	require.NoError(t, first.app.Init())
	assert.ErrorIs(t, second.app.Init(), capture.ErrCameraBusy)
	assert.False(t, second.camera.IsOpen())
}

func TestApp_PracticeLockedUntilCalibrated(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.app.Init())

	_, err := h.app.StartPractice("1")
	assert.ErrorIs(t, err, calibration.ErrNotCalibrated)

	_, err = h.app.StartPractice("missing")
	assert.ErrorIs(t, err, sequence.ErrNotFound)
}

func TestApp_CalibrationDropsExpertCache(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.app.Init())

	require.NoError(t, h.app.Session().Put(retarget.SegmentKey("1.S1"), map[string]int{"frames": 1}))
	profile := h.calibrate(t)
	assert.Greater(t, profile.Camera.FX, 0.0)
	assert.Equal(t, ViewIdle, h.app.View())
	assert.False(t, h.app.Session().Has(retarget.SegmentKey("1.S1")))
}

func TestApp_PracticePipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	h := newHarness(t, nil)
	require.NoError(t, h.app.Init())
	h.calibrate(t)

	state, err := h.app.StartPractice("1")
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, "1", state.SequenceID)

	frames := h.frames.next(t)
	h.timers.next(t)
	assert.Equal(t, ViewPractice, h.app.View())

	require.Eventually(t, func() bool {
		return h.app.Practice().State().PoseReady
	}, 5*time.Second, 10*time.Millisecond)

	state, err = h.app.Practice().Play()
	require.NoError(t, err)
	require.True(t, state.Playing)

	for i := 0; i < 5; i++ {
		require.True(t, frames.Advance(frameTick))
	}

	out := h.app.LastOutput()
	assert.GreaterOrEqual(t, out.ExpertIndex, 0)
	assert.Len(t, out.Live, detector.NumLandmarks)
	assert.NotEmpty(t, out.Expert)
	assert.Greater(t, h.app.Practice().Stats().Summary().Frames, 0)
	assert.Greater(t, h.app.Practice().State().Recorded, 0)
	assert.Greater(t, h.surface.count(), 0)
	assert.GreaterOrEqual(t, h.camera.Reads(), 5)
	h.surface.mu.Lock()
	assert.Equal(t, image.Pt(640, 360), h.surface.lastSize)
	h.surface.mu.Unlock()

	h.app.StopPractice()
	assert.Equal(t, ViewIdle, h.app.View())
	assert.False(t, h.app.Practice().Playing())
	assert.False(t, frames.Advance(frameTick), "practice loop should have stopped")

	require.NoError(t, h.app.Close())
	assert.True(t, h.det.Closed())
	assert.False(t, h.camera.IsOpen())
}
