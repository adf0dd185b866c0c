package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/session"
)

// startGrace is how long POST waits for an immediate failure before
// answering 202.
const startGrace = 100 * time.Millisecond

// Calibrator runs one T-pose capture to completion.
type Calibrator interface {
	Calibrate(ctx context.Context, onTick func(int)) (*calibration.Profile, error)
}

// CalibrationHandler handles /api/calibration.
type CalibrationHandler struct {
	session    *session.Session
	engine     *calibration.Engine
	calibrator Calibrator
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	lastErr string
}

// NewCalibrationHandler creates a handler. engine may be nil when only the
// stored profile is served.
func NewCalibrationHandler(s *session.Session, engine *calibration.Engine, c Calibrator, logger *slog.Logger) *CalibrationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalibrationHandler{session: s, engine: engine, calibrator: c, logger: logger}
}

type calibrationResponse struct {
	Calibrated bool                 `json:"calibrated"`
	Running    bool                 `json:"running"`
	Status     *calibration.Status  `json:"status,omitempty"`
	Profile    *calibration.Profile `json:"profile,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// ServeHTTP routes GET, POST and DELETE.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if subpath(r, "/api/calibration") != "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPost:
		h.start(w)
	case http.MethodDelete:
		h.clear(w)
	default:
		methodNotAllowed(w)
	}
}

func (h *CalibrationHandler) snapshot() calibrationResponse {
	h.mu.Lock()
	resp := calibrationResponse{Running: h.cancel != nil, LastError: h.lastErr}
	h.mu.Unlock()

	if h.engine != nil {
		st := h.engine.Status()
		resp.Status = &st
	}
	profile, err := calibration.Load(h.session)
	if err == nil {
		resp.Calibrated = true
		resp.Profile = profile
	} else if !errors.Is(err, calibration.ErrNotCalibrated) {
		h.logger.Warn("calibration profile unreadable", "error", err)
	}
	return resp
}

// get handles GET /api/calibration.
func (h *CalibrationHandler) get(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// start handles POST /api/calibration. The capture runs in the background;
// progress is polled with GET or followed on the event socket.
func (h *CalibrationHandler) start(w http.ResponseWriter) {
	if h.calibrator == nil {
		writeError(w, http.StatusServiceUnavailable, "Calibration is not available")
		return
	}
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		writeFailure(w, calibration.ErrRunning)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.lastErr = ""
	h.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := h.calibrator.Calibrate(ctx, nil)
		h.mu.Lock()
		h.cancel = nil
		if err != nil && ctx.Err() == nil {
			h.lastErr = err.Error()
		}
		h.mu.Unlock()
		cancel()
		if err != nil && ctx.Err() == nil {
			h.logger.Error("calibration failed", "error", err)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.snapshot())
	case <-time.After(startGrace):
		writeJSON(w, http.StatusAccepted, h.snapshot())
	}
}

// clear handles DELETE /api/calibration. A running capture is cancelled.
func (h *CalibrationHandler) clear(w http.ResponseWriter) {
	h.Cancel()
	if err := calibration.Clear(h.session); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear calibration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel stops a running capture, if any.
func (h *CalibrationHandler) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
