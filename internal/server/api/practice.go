package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/practice"
	"github.com/ayusman/taiji/internal/report"
)

// PracticeApp is the part of the application the practice endpoints drive.
type PracticeApp interface {
	StartPractice(seqID string) (practice.State, error)
	StopPractice()
	Practice() *practice.Controller
	LastOutput() align.Output
}

// PracticeHandler handles /api/practice/*.
type PracticeHandler struct {
	app    PracticeApp
	logger *slog.Logger
}

// NewPracticeHandler creates a practice handler.
func NewPracticeHandler(app PracticeApp, logger *slog.Logger) *PracticeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PracticeHandler{app: app, logger: logger}
}

type startRequest struct {
	SequenceID string `json:"sequence_id"`
}

type expertRequest struct {
	Show *bool `json:"show"`
}

// ServeHTTP routes the practice commands and views.
func (h *PracticeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := subpath(r, "/api/practice")
	switch action {
	case "state", "stats", "report.png", "frame":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
	case "start", "stop", "play", "pause", "toggle", "skip", "restart", "expert":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}

	c := h.app.Practice()
	switch action {
	case "state":
		writeJSON(w, http.StatusOK, c.State())
	case "stats":
		writeJSON(w, http.StatusOK, c.Stats().Summary())
	case "frame":
		writeJSON(w, http.StatusOK, h.app.LastOutput())
	case "report.png":
		h.report(w, r, c.Stats())
	case "start":
		h.start(w, r)
	case "stop":
		h.app.StopPractice()
		writeJSON(w, http.StatusOK, c.State())
	case "play":
		h.respond(w, c.Play)
	case "pause":
		h.respond(w, c.Pause)
	case "toggle":
		h.respond(w, c.Toggle)
	case "skip":
		h.respond(w, c.Skip)
	case "restart":
		h.respond(w, func() (practice.State, error) {
			if err := c.Restart(); err != nil {
				return practice.State{}, err
			}
			return c.State(), nil
		})
	case "expert":
		var req expertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Show == nil {
			writeError(w, http.StatusBadRequest, "show is required")
			return
		}
		writeJSON(w, http.StatusOK, c.SetShowExpert(*req.Show))
	}
}

func (h *PracticeHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SequenceID == "" {
		writeError(w, http.StatusBadRequest, "sequence_id is required")
		return
	}
	state, err := h.app.StartPractice(req.SequenceID)
	if err != nil {
		h.logger.Info("practice start rejected", "sequence", req.SequenceID, "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *PracticeHandler) respond(w http.ResponseWriter, fn func() (practice.State, error)) {
	state, err := fn()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// report handles GET /api/practice/report.png. ?chart=joints selects the
// per-joint chart; width and height are in points.
func (h *PracticeHandler) report(w http.ResponseWriter, r *http.Request, stats *practice.Stats) {
	q := r.URL.Query()
	width := vg.Points(parsePositive(q.Get("width")))
	height := vg.Points(parsePositive(q.Get("height")))

	render := report.Timeline
	if q.Get("chart") == "joints" {
		render = report.Joints
	}

	var buf bytes.Buffer
	if err := render(&buf, stats, width, height); err != nil {
		if errors.Is(err, report.ErrNoData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("report render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func parsePositive(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > 4000 {
		return 0
	}
	return v
}
