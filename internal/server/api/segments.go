package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ayusman/taiji/internal/retarget"
	"github.com/ayusman/taiji/internal/sequence"
	"github.com/ayusman/taiji/internal/session"
)

// Retargeter rebuilds the expert sequence of one segment.
type Retargeter interface {
	Retarget(ctx context.Context, segment, videoPath string, progress retarget.Progress) (*retarget.Sequence, error)
}

// SegmentHandler serves retargeted expert sequences by segment key
// ("<sequence>.S<n>").
type SegmentHandler struct {
	session    *session.Session
	retargeter Retargeter
	videosDir  string
	logger     *slog.Logger
}

// NewSegmentHandler creates a segment handler.
func NewSegmentHandler(s *session.Session, rt Retargeter, videosDir string, logger *slog.Logger) *SegmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentHandler{session: s, retargeter: rt, videosDir: videosDir, logger: logger}
}

type segmentResponse struct {
	Segment    string             `json:"segment"`
	Frames     int                `json:"frames"`
	DurationMs int64              `json:"duration_ms"`
	Stats      retarget.Stats     `json:"stats"`
	Sequence   *retarget.Sequence `json:"sequence,omitempty"`
}

func toSegmentResponse(segment string, seq *retarget.Sequence, full bool) segmentResponse {
	resp := segmentResponse{
		Segment:    segment,
		Frames:     seq.Len(),
		DurationMs: seq.DurationMs(),
		Stats:      seq.Stats,
	}
	if full {
		resp.Sequence = seq
	}
	return resp
}

// ServeHTTP handles GET and POST /api/segments/{key}. GET returns the cached
// sequence (?full=false omits the frames); POST retargets it again.
func (h *SegmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := subpath(r, "/api/segments")
	seqID, idx, err := sequence.ParseSegmentKey(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		seq, err := retarget.Load(h.session, key)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSegmentResponse(key, seq, r.URL.Query().Get("full") != "false"))
	case http.MethodPost:
		h.retarget(w, r, key, seqID, idx)
	default:
		methodNotAllowed(w)
	}
}

func (h *SegmentHandler) retarget(w http.ResponseWriter, r *http.Request, key, seqID string, idx int) {
	if h.retargeter == nil {
		writeError(w, http.StatusServiceUnavailable, "Retargeting is not available")
		return
	}
	seq, err := sequence.Get(seqID, true)
	if err != nil {
		writeFailure(w, err)
		return
	}
	pose, err := seq.Pose(idx)
	if err != nil {
		writeFailure(w, err)
		return
	}

	path := sequence.VideoPath(h.videosDir, pose, idx)
	out, err := h.retargeter.Retarget(r.Context(), key, path, nil)
	if err != nil {
		h.logger.Warn("retarget request failed", "segment", key, "video", path, "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSegmentResponse(key, out, false))
}
