package calibration

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Horizontal reports whether the segment from a to b is within tolDeg of
// the horizontal plane: its vertical component may not exceed sin(tolDeg)
// of its length. Degenerate segments are never horizontal.
func Horizontal(a, b r3.Vec, tolDeg float64) bool {
	v := r3.Sub(b, a)
	l := r3.Norm(v)
	if l <= 1e-6 {
		return false
	}
	return math.Abs(v.Y)/l <= math.Sin(tolDeg*math.Pi/180)
}

// ArmStatus reports which arm segments are horizontal. Each elbow dot shows
// its upper arm and each wrist dot its forearm.
type ArmStatus struct {
	LeftUpper  bool `json:"left_upper"`
	LeftFore   bool `json:"left_fore"`
	RightUpper bool `json:"right_upper"`
	RightFore  bool `json:"right_fore"`
}

// Arms evaluates the four arm segments. A segment with an unavailable
// endpoint is not horizontal.
func Arms(world *detector.Landmarks, tolDeg float64) ArmStatus {
	seg := func(a, b int) bool {
		pa, okA := skeleton.Point(world, a)
		pb, okB := skeleton.Point(world, b)
		return okA && okB && Horizontal(pa, pb, tolDeg)
	}
	return ArmStatus{
		LeftUpper:  seg(detector.LeftShoulder, detector.LeftElbow),
		LeftFore:   seg(detector.LeftElbow, detector.LeftWrist),
		RightUpper: seg(detector.RightShoulder, detector.RightElbow),
		RightFore:  seg(detector.RightElbow, detector.RightWrist),
	}
}

// TPose reports whether all four segments are horizontal.
func (a ArmStatus) TPose() bool {
	return a.LeftUpper && a.LeftFore && a.RightUpper && a.RightFore
}

// Dots maps the elbow and wrist landmarks to their segment status.
func (a ArmStatus) Dots() map[int]bool {
	return map[int]bool{
		detector.LeftElbow:  a.LeftUpper,
		detector.LeftWrist:  a.LeftFore,
		detector.RightElbow: a.RightUpper,
		detector.RightWrist: a.RightFore,
	}
}

// IsTPose is Arms(world, tolDeg).TPose().
func IsTPose(world *detector.Landmarks, tolDeg float64) bool {
	return Arms(world, tolDeg).TPose()
}

// holdSlack absorbs the rounding of integer frame intervals so that exactly
// duration*fps ticks complete the hold.
const holdSlack = time.Millisecond

// Tracker accumulates how long the pose has been held without a break.
type Tracker struct {
	required time.Duration
	held     time.Duration
}

// NewTracker creates a tracker that completes after required of continuous
// hold.
func NewTracker(required time.Duration) *Tracker {
	return &Tracker{required: required}
}

// Observe records one tick. A valid tick adds elapsed; an invalid tick
// resets the hold to zero. It reports whether the hold is complete.
func (t *Tracker) Observe(valid bool, elapsed time.Duration) bool {
	if !valid {
		t.held = 0
		return false
	}
	t.held += elapsed
	return t.Complete()
}

// Complete reports whether the required hold has been reached.
func (t *Tracker) Complete() bool {
	return t.held+holdSlack >= t.required
}

// Held returns the current uninterrupted hold time.
func (t *Tracker) Held() time.Duration {
	return t.held
}

// Remaining returns the whole seconds left, rounded up.
func (t *Tracker) Remaining() int {
	if t.Complete() {
		return 0
	}
	left := t.required - t.held
	return int((left + time.Second - 1) / time.Second)
}
