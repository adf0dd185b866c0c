package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayusman/taiji/internal/coach"
	"github.com/ayusman/taiji/internal/detector"
)

// Coach analyzes pose buffers and summarizes runs.
type Coach interface {
	Analyze(ctx context.Context, expectedPose string, samples []coach.Sample, previous string) coach.Result
	Summarize(ctx context.Context, items []string) coach.Summary
}

// CoachHandler serves /api/analysis and /api/summary. Service failures are
// reported in the body's error field with status 200, like any other
// coaching result.
type CoachHandler struct {
	coach Coach
}

// NewCoachHandler creates a coaching handler.
func NewCoachHandler(c Coach) *CoachHandler {
	return &CoachHandler{coach: c}
}

type landmarkFrame struct {
	Landmarks   *detector.Landmarks `json:"landmarks"`
	TimestampMs int64               `json:"timestamp"`
}

type analysisRequest struct {
	ExpectedPose string          `json:"expectedPose"`
	Frames       []landmarkFrame `json:"landmarkData"`
	Previous     string          `json:"previousFeedback"`
}

type summaryRequest struct {
	Feedback []string `json:"feedback"`
}

// ServeHTTP handles POST /api/analysis and POST /api/summary.
func (h *CoachHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/analysis":
		h.analyze(w, r)
	case "/api/summary":
		h.summarize(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *CoachHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ExpectedPose) == "" {
		writeError(w, http.StatusBadRequest, "expectedPose is required")
		return
	}
	samples := make([]coach.Sample, 0, len(req.Frames))
	for _, f := range req.Frames {
		samples = append(samples, coach.Sample{TimestampMs: f.TimestampMs, Landmarks: f.Landmarks})
	}
	writeJSON(w, http.StatusOK, h.coach.Analyze(r.Context(), req.ExpectedPose, samples, req.Previous))
}

func (h *CoachHandler) summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.coach.Summarize(r.Context(), req.Feedback))
}
