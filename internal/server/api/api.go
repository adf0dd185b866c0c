// Package api provides the HTTP API handlers for taiji.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/practice"
	"github.com/ayusman/taiji/internal/retarget"
	"github.com/ayusman/taiji/internal/sequence"
)

// maxBodyBytes bounds request bodies; analysis uploads carry whole pose
// buffers.
const maxBodyBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps a domain error to its status code.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sequence.ErrNotFound), errors.Is(err, retarget.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, calibration.ErrNotCalibrated),
		errors.Is(err, calibration.ErrRunning),
		errors.Is(err, retarget.ErrStaleCalibration),
		errors.Is(err, practice.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, capture.ErrCameraNotOpen), errors.Is(err, capture.ErrCameraBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, retarget.ErrNoFrames), errors.Is(err, retarget.ErrDurationUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// subpath returns the path below prefix without surrounding slashes.
func subpath(r *http.Request, prefix string) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
