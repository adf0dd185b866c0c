package api

import (
	"net/http"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/sequence"
	"github.com/ayusman/taiji/internal/session"
)

// SequenceHandler serves the practice catalog. Sequences are reported
// locked until the session is calibrated.
type SequenceHandler struct {
	session *session.Session
}

// NewSequenceHandler creates a catalog handler.
func NewSequenceHandler(s *session.Session) *SequenceHandler {
	return &SequenceHandler{session: s}
}

type listSequencesResponse struct {
	Calibrated bool                `json:"calibrated"`
	Sequences  []sequence.Sequence `json:"sequences"`
}

// ServeHTTP handles GET /api/sequences and GET /api/sequences/{id}.
func (h *SequenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	calibrated := calibration.IsCalibrated(h.session)

	id := subpath(r, "/api/sequences")
	if id == "" {
		writeJSON(w, http.StatusOK, listSequencesResponse{
			Calibrated: calibrated,
			Sequences:  sequence.All(calibrated),
		})
		return
	}

	seq, err := sequence.Get(id, calibrated)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}
