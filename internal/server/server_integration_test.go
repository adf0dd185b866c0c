package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/config"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/logging"
	"github.com/ayusman/taiji/internal/session"
)

func newTestApp(t *testing.T, hub *StreamHub) *app.App {
	t.Helper()
	mat := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	settings := config.Default()
	settings.Camera.LockPath = filepath.Join(t.TempDir(), "camera.lock")
	settings.Gesture.Enabled = false

	cfg := app.Config{
		Settings: &settings,
		Camera:   capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		Detector: detector.NewMockDetector(),
		Logger:   logging.NewNop(),
	}
	if hub != nil {
		cfg.Surface = hub
	}
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_HealthCheck(t *testing.T) {
	a := newTestApp(t, nil)
	ts := httptest.NewServer(New(Config{App: a, Logger: logging.NewNop()}))
	defer ts.Close()

	var health struct {
		Status  string `json:"status"`
		Uptime  string `json:"uptime"`
		Session string `json:"session"`
		View    string `json:"view"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, a.Session().ID(), health.Session)
	assert.Equal(t, string(app.ViewIdle), health.View)
}

func TestAPI_CalibrationUnlocksSequences(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	a := newTestApp(t, nil)
	ts := httptest.NewServer(New(Config{App: a, Logger: logging.NewNop()}))
	defer ts.Close()

	type sequenceList struct {
		Calibrated bool `json:"calibrated"`
		Sequences  []struct {
			ID     string `json:"id"`
			Locked bool   `json:"isLocked"`
		} `json:"sequences"`
	}

	// 1. Everything starts locked
	var listed sequenceList
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/sequences", &listed))
	assert.False(t, listed.Calibrated)
	require.NotEmpty(t, listed.Sequences)
	for _, s := range listed.Sequences {
		assert.True(t, s.Locked, s.ID)
	}

	// 2. Practice is refused
	body := bytes.NewBufferString(`{"sequence_id": "1"}`)
	resp, err := ts.Client().Post(ts.URL+"/api/practice/start", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 3. Watch events while a profile is stored
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/events"), nil)
	require.NoError(t, err)
	defer conn.Close()

	profile := calibration.NewProfile(detector.TPoseFrame(0), 1280, 720, 60)
	stop := make(chan struct{})
	saved := make(chan struct{})
	go func() {
		defer close(saved)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				calibration.Save(a.Session(), profile)
			}
		}
	}()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e session.Event
	err = conn.ReadJSON(&e)
	close(stop)
	<-saved
	require.NoError(t, err)
	assert.Equal(t, session.TopicCalibrationUpdated, e.Topic)

	// 4. Calibration is reported and sequences unlock
	var status struct {
		Calibrated bool `json:"calibrated"`
		Running    bool `json:"running"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/calibration", &status))
	assert.True(t, status.Calibrated)
	assert.False(t, status.Running)

	require.Equal(t, http.StatusOK, getJSON(t, ts, "/api/sequences", &listed))
	assert.True(t, listed.Calibrated)
	assert.Equal(t, "1", listed.Sequences[0].ID)
	assert.False(t, listed.Sequences[0].Locked)

	// 5. Clearing locks them again
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/calibration", nil)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, calibration.IsCalibrated(a.Session()))
}

func TestAPI_PracticeSocket(t *testing.T) {
	a := newTestApp(t, nil)
	ts := httptest.NewServer(NewPracticeSocket(a, time.Hour, logging.NewNop()))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap practiceSnapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.False(t, snap.State.Active)
	assert.Equal(t, -1, snap.Output.ExpertIndex)

	tests := []struct {
		command string
		wantErr bool
	}{
		{`{"action": "play"}`, true},
		{`{"action": "dance"}`, true},
		{`not json`, true},
		{`{"action": "expert", "show": false}`, false},
	}
	for _, tt := range tests {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.command)))
		var reply practiceSnapshot
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, tt.wantErr, reply.Error != "", "%s: %q", tt.command, reply.Error)
	}
	assert.False(t, a.Practice().State().ShowExpert)
}

func TestAPI_RenderedStream(t *testing.T) {
	hub := NewStreamHub(320, 180, logging.NewNop())
	a := newTestApp(t, hub)
	ts := httptest.NewServer(New(Config{App: a, Stream: hub, Logger: logging.NewNop()}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, 5*time.Second, 10*time.Millisecond)
}
