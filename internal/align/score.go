package align

import (
	"math"

	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Threshold defaults.
const (
	MinThresholdPx       = 32.0
	ThresholdWidthFactor = 0.015
)

// DefaultThreshold returns the alignment distance for a canvas canvasW
// pixels wide.
func DefaultThreshold(canvasW int) float64 {
	return math.Max(MinThresholdPx, math.Round(ThresholdWidthFactor*float64(canvasW)))
}

// JointScore is the result for one tracked joint.
type JointScore struct {
	Index   int  `json:"index"`
	Aligned bool `json:"aligned"`
	// HasExpert is false when there was nothing to compare against.
	HasExpert bool `json:"has_expert"`
	// Distance in canvas pixels, 0 without expert data.
	Distance float64 `json:"distance"`
}

// Result is the per-frame alignment of the tracked joints that had a live
// position.
type Result struct {
	Joints []JointScore `json:"joints"`
}

// Joint returns the score for landmark i.
func (r Result) Joint(i int) (JointScore, bool) {
	for _, j := range r.Joints {
		if j.Index == i {
			return j, true
		}
	}
	return JointScore{}, false
}

// Aligned reports whether landmark i was scored and aligned.
func (r Result) Aligned(i int) bool {
	j, ok := r.Joint(i)
	return ok && j.Aligned
}

// Misaligned reports whether landmark i was scored and found out of place.
// Unscored landmarks are not misaligned.
func (r Result) Misaligned(i int) bool {
	j, ok := r.Joint(i)
	return ok && !j.Aligned
}

// Warn reports whether bone b should be drawn in the warning colour: both
// ends misaligned.
func (r Result) Warn(b skeleton.Bone) bool {
	return r.Misaligned(b.From) && r.Misaligned(b.To)
}

// Ratio returns the fraction of scored joints that are aligned, or -1 if no
// joint was scored.
func (r Result) Ratio() float64 {
	if len(r.Joints) == 0 {
		return -1
	}
	n := 0
	for _, j := range r.Joints {
		if j.Aligned {
			n++
		}
	}
	return float64(n) / float64(len(r.Joints))
}

// Score compares live canvas points with expert canvas points for every
// tracked joint. expert may be nil. With mirror set the expert lookup uses
// the opposite side of the body, matching a horizontally mirrored display.
func Score(live, expert []Point2, thresholdPx float64, mirror bool) Result {
	res := Result{Joints: make([]JointScore, 0, len(skeleton.TrackedJoints))}
	for _, i := range skeleton.TrackedJoints {
		if i >= len(live) || !live[i].Valid {
			continue
		}
		js := JointScore{Index: i, Aligned: true}

		ei := i
		if mirror {
			ei = skeleton.Mirror(i)
		}
		if ei < len(expert) && expert[ei].Valid && isFinite(expert[ei]) {
			js.HasExpert = true
			js.Distance = math.Hypot(live[i].U-expert[ei].U, live[i].V-expert[ei].V)
			js.Aligned = js.Distance <= thresholdPx
		}
		res.Joints = append(res.Joints, js)
	}
	return res
}

func isFinite(p Point2) bool {
	return !math.IsNaN(p.U) && !math.IsNaN(p.V) && !math.IsInf(p.U, 0) && !math.IsInf(p.V, 0)
}

// Frame is the input of one alignment step.
type Frame struct {
	Live *detector.Frame
	// VideoWidth and VideoHeight are the native live video dimensions.
	VideoWidth  int
	VideoHeight int
	// CanvasWidth and CanvasHeight are the display dimensions.
	CanvasWidth  int
	CanvasHeight int
	// PlaybackMs is the expert video's current playback position.
	PlaybackMs int64
}

// Output is the result of one alignment step.
type Output struct {
	Live   []Point2 `json:"live"`
	Expert []Point2 `json:"expert,omitempty"`
	// ExpertIndex is the selected expert frame, -1 if none.
	ExpertIndex int     `json:"expert_index"`
	Threshold   float64 `json:"threshold"`
	Result      Result  `json:"result"`
}
