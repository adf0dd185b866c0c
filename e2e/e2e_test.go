package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/config"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/frameloop"
	"github.com/ayusman/taiji/internal/logging"
	"github.com/ayusman/taiji/internal/server"
)

const frameTick = time.Second / 30

type tickers chan *frameloop.ManualTicker

func (k tickers) option() frameloop.Option {
	return frameloop.WithTicker(func(time.Duration) frameloop.Ticker {
		t := frameloop.NewManualTicker(time.Unix(0, 0))
		k <- t
		return t
	})
}

func (k tickers) next(t *testing.T) *frameloop.ManualTicker {
	t.Helper()
	select {
	case tk := <-k:
		return tk
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
		return nil
	}
}

type env struct {
	ts     *httptest.Server
	app    *app.App
	hub    *server.StreamHub
	frames tickers
	timers tickers
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mat := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	settings := config.Default()
	settings.Camera.LockPath = filepath.Join(t.TempDir(), "camera.lock")
	settings.Gesture.Enabled = false
	settings.Retarget.VideosDir = "videos"

	det := detector.NewMockDetector()
	tpose := detector.TPoseFrame(0)
	det.SetPose(tpose.Normalized, tpose.World)

	e := &env{
		hub:    server.NewStreamHub(640, 360, logging.NewNop()),
		frames: make(tickers, 8),
		timers: make(tickers, 8),
	}
	a, err := app.New(app.Config{
		Settings: &settings,
		Camera:   capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		Detector: det,
		OpenVideo: func(string) (capture.VideoSource, error) {
			return capture.NewMockVideo(capture.VideoInfo{DurationMs: 1000, Width: 640, Height: 360, FPS: 30}), nil
		},
		Surface:   e.hub,
		Logger:    logging.NewNop(),
		FrameLoop: []frameloop.Option{e.frames.option()},
		TimerLoop: []frameloop.Option{e.timers.option()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Init())
	e.app = a

	e.ts = httptest.NewServer(server.New(server.Config{App: a, Stream: e.hub, Logger: logging.NewNop()}))
	t.Cleanup(e.ts.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type practiceState struct {
	Active     bool   `json:"active"`
	SequenceID string `json:"sequence_id"`
	Playing    bool   `json:"playing"`
	PoseReady  bool   `json:"pose_ready"`
	Recorded   int    `json:"recorded"`
}

func TestE2E_CalibrateRetargetPractice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	e := newEnv(t)

	t.Run("LockedBeforeCalibration", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/api/practice/start", `{"sequence_id": "1"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Calibrate", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/api/calibration", "")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		ticker := e.frames.next(t)
		for i := 0; i < 90; i++ {
			require.True(t, ticker.Advance(frameTick), "calibration stopped at tick %d", i+1)
		}

		require.Eventually(t, func() bool {
			resp, err := e.ts.Client().Get(e.ts.URL + "/api/calibration")
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			var status struct {
				Calibrated bool `json:"calibrated"`
				Running    bool `json:"running"`
			}
			if json.NewDecoder(resp.Body).Decode(&status) != nil {
				return false
			}
			return status.Calibrated && !status.Running
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("RetargetSegment", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/api/segments/1.S1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		seg := decode[struct {
			Segment string `json:"segment"`
			Frames  int    `json:"frames"`
		}](t, resp)
		assert.Equal(t, "1.S1", seg.Segment)
		assert.Greater(t, seg.Frames, 0)

		resp = e.do(t, http.MethodGet, "/api/segments/1.S1?full=false", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Practice", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/api/practice/start", `{"sequence_id": "1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[practiceState](t, resp).Active)

		frames := e.frames.next(t)
		e.timers.next(t)

		require.Eventually(t, func() bool {
			return e.app.Practice().State().PoseReady
		}, 5*time.Second, 10*time.Millisecond)

		resp = e.do(t, http.MethodPost, "/api/practice/play", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, decode[practiceState](t, resp).Playing)

		for i := 0; i < 5; i++ {
			require.True(t, frames.Advance(frameTick))
		}

		resp = e.do(t, http.MethodGet, "/api/practice/stats", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		stats := decode[map[string]any](t, resp)
		assert.NotZero(t, stats["frames"])

		resp = e.do(t, http.MethodGet, "/api/practice/report.png", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		var png bytes.Buffer
		_, err := png.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))

		resp = e.do(t, http.MethodPost, "/api/practice/stop", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[practiceState](t, resp).Playing)
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/api/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		health := decode[map[string]any](t, resp)
		assert.Equal(t, string(app.ViewIdle), health["view"])
	})
}
