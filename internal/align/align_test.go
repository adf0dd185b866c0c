package align

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

func TestNewCover(t *testing.T) {
	tests := []struct {
		name                string
		vw, vh, cw, ch      int
		wantS, wantX, wantY float64
	}{
		{"same size", 1280, 720, 1280, 720, 1, 0, 0},
		{"double", 640, 360, 1280, 720, 2, 0, 0},
		{"taller canvas crops width", 1280, 720, 720, 720, 1, 280, 0},
		{"wider canvas crops height", 640, 480, 1280, 720, 2, 0, 120},
		{"degenerate video", 0, 0, 1280, 720, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCover(tt.vw, tt.vh, tt.cw, tt.ch)
			assert.InDelta(t, tt.wantS, c.Scale, 1e-9)
			assert.InDelta(t, tt.wantX, c.OffX, 1e-9)
			assert.InDelta(t, tt.wantY, c.OffY, 1e-9)
		})
	}
}

func TestCover_CentreMapsToCentre(t *testing.T) {
	c := NewCover(1280, 720, 900, 1600)
	p := c.Apply(640, 360)
	assert.InDelta(t, 450, p.U, 1e-9)
	assert.InDelta(t, 800, p.V, 1e-9)
	assert.True(t, p.Valid)
}

func TestProject(t *testing.T) {
	cam := Pinhole{FX: 1000, FY: 1000, CX: 640, CY: 360}

	u, v := Project(r3.Vec{X: 0.5, Y: -0.25, Z: 2}, cam)
	assert.InDelta(t, 890, u, 1e-9)
	assert.InDelta(t, 235, v, 1e-9)

	// Points at or behind the camera use the depth floor.
	u, v = Project(r3.Vec{X: 0.01, Y: 0.01, Z: -3}, cam)
	assert.InDelta(t, 640+1000*0.01/MinDepth, u, 1e-9)
	assert.InDelta(t, 360+1000*0.01/MinDepth, v, 1e-9)
}

func TestProjectFrame_MatchesLivePoints(t *testing.T) {
	// A world pose placed at a known depth projects onto the same pixels as
	// its normalized counterpart.
	const w, h, hfov = 1280, 720, 60.0
	world := detector.TPoseWorld()
	placed := skeleton.Map(world, func(p r3.Vec) r3.Vec { return r3.Add(p, r3.Vec{Z: detector.FixtureDepth}) })
	normalized := detector.NormalizedFromWorld(world, detector.FixtureDepth, w, h, hfov)

	fx := (w / 2) / math.Tan(hfov*math.Pi/360)
	cam := Pinhole{FX: fx, FY: fx, CX: w / 2, CY: h / 2}
	cover := NewCover(w, h, 1920, 1080)

	expert := ProjectFrame(placed, cam, cover)
	live := LivePoints(normalized, w, h, cover)
	for _, i := range skeleton.TrackedJoints {
		require.True(t, expert[i].Valid)
		require.True(t, live[i].Valid)
		assert.InDelta(t, live[i].U, expert[i].U, 1e-6, "joint %d", i)
		assert.InDelta(t, live[i].V, expert[i].V, 1e-6, "joint %d", i)
	}
}

func TestProjectFrame_UnavailablePoints(t *testing.T) {
	world := detector.TPoseWorld()
	world[detector.LeftWrist].Valid = false

	pts := ProjectFrame(world, Pinhole{FX: 1, FY: 1}, Cover{Scale: 1})
	assert.False(t, pts[detector.LeftWrist].Valid)
	assert.True(t, pts[detector.RightWrist].Valid)

	assert.Len(t, ProjectFrame(nil, Pinhole{}, Cover{}), detector.NumLandmarks)
}

func TestClosestIndex(t *testing.T) {
	ts := []int64{0, 66, 133, 200, 266}
	tests := []struct {
		q    int64
		want int
	}{
		{-50, 0},
		{0, 0},
		{30, 0},
		{33, 0}, // tie goes to the earlier entry
		{34, 1},
		{100, 1},
		{101, 2},
		{266, 4},
		{10000, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClosestIndex(ts, tt.q), "q=%d", tt.q)
	}
	assert.Equal(t, -1, ClosestIndex(nil, 5))
	assert.Equal(t, 0, ClosestIndex([]int64{42}, 5))
}

func TestClosestIndex_MinimisesDistance(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.IntN(40)
		ts := make([]int64, n)
		for i := range ts {
			ts[i] = rng.Int64N(5000)
		}
		slices.Sort(ts)
		q := rng.Int64N(6000) - 500

		got := ClosestIndex(ts, q)
		best := int64(math.MaxInt64)
		for _, v := range ts {
			best = min(best, abs(v-q))
		}
		require.Equal(t, best, abs(ts[got]-q), "ts=%v q=%d got=%d", ts, q, got)
		require.Equal(t, got, ClosestIndex(ts, q))
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDefaultThreshold(t *testing.T) {
	assert.Equal(t, 32.0, DefaultThreshold(640))
	assert.Equal(t, 32.0, DefaultThreshold(1280))
	assert.Equal(t, 58.0, DefaultThreshold(3840))
}

func livePointsAt(u, v float64) []Point2 {
	pts := make([]Point2, detector.NumLandmarks)
	for _, i := range skeleton.TrackedJoints {
		pts[i] = Point2{U: u, V: v, Valid: true}
	}
	return pts
}

func TestScore(t *testing.T) {
	t.Run("no expert is aligned", func(t *testing.T) {
		res := Score(livePointsAt(100, 100), nil, 32, true)
		assert.Len(t, res.Joints, len(skeleton.TrackedJoints))
		assert.Equal(t, 1.0, res.Ratio())
		for _, j := range res.Joints {
			assert.False(t, j.HasExpert)
		}
	})

	t.Run("missing live joints are not scored", func(t *testing.T) {
		live := livePointsAt(0, 0)
		live[detector.LeftKnee].Valid = false
		res := Score(live, nil, 32, false)
		_, ok := res.Joint(detector.LeftKnee)
		assert.False(t, ok)
		assert.False(t, res.Aligned(detector.LeftKnee))
	})

	t.Run("mirror swaps sides", func(t *testing.T) {
		live := livePointsAt(0, 0)
		expert := livePointsAt(0, 0)
		// Only the expert's left wrist is far away.
		expert[detector.LeftWrist] = Point2{U: 500, V: 0, Valid: true}

		mirrored := Score(live, expert, 32, true)
		assert.False(t, mirrored.Aligned(detector.RightWrist))
		assert.True(t, mirrored.Aligned(detector.LeftWrist))

		direct := Score(live, expert, 32, false)
		assert.False(t, direct.Aligned(detector.LeftWrist))
		assert.True(t, direct.Aligned(detector.RightWrist))
	})

	t.Run("unavailable expert joint is aligned", func(t *testing.T) {
		live := livePointsAt(0, 0)
		expert := livePointsAt(1000, 1000)
		expert[detector.LeftAnkle].Valid = false
		res := Score(live, expert, 32, false)
		assert.True(t, res.Aligned(detector.LeftAnkle))
		assert.False(t, res.Aligned(detector.RightAnkle))
	})

	t.Run("boundary distance is aligned", func(t *testing.T) {
		live := livePointsAt(0, 0)
		expert := livePointsAt(32, 0)
		res := Score(live, expert, 32, false)
		assert.Equal(t, 1.0, res.Ratio())
	})
}

func TestScore_Warn(t *testing.T) {
	live := livePointsAt(0, 0)
	expert := livePointsAt(0, 0)
	expert[detector.LeftElbow] = Point2{U: 200, Valid: true}
	expert[detector.LeftWrist] = Point2{U: 200, Valid: true}
	expert[detector.LeftShoulder] = Point2{U: 200, Valid: true}
	expert[detector.RightShoulder] = Point2{U: 0, Valid: true}
	res := Score(live, expert, 32, false)

	assert.True(t, res.Warn(skeleton.Bone{From: detector.LeftElbow, To: detector.LeftWrist}))
	assert.True(t, res.Warn(skeleton.Bone{From: detector.LeftShoulder, To: detector.LeftElbow}))
	assert.False(t, res.Warn(skeleton.Bone{From: detector.LeftShoulder, To: detector.RightShoulder}))

	// Wrist to pinky: the pinky is never scored.
	assert.True(t, res.Misaligned(detector.LeftWrist))
	assert.False(t, res.Misaligned(detector.LeftPinky))
	assert.False(t, res.Warn(skeleton.Bone{From: detector.LeftWrist, To: detector.LeftPinky}))

	// A tracked joint with no live position is not scored either.
	live[detector.LeftElbow] = Point2{}
	res = Score(live, expert, 32, false)
	assert.False(t, res.Misaligned(detector.LeftElbow))
	assert.False(t, res.Warn(skeleton.Bone{From: detector.LeftElbow, To: detector.LeftWrist}))
}

func TestScore_ThresholdMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for iter := 0; iter < 200; iter++ {
		live := make([]Point2, detector.NumLandmarks)
		expert := make([]Point2, detector.NumLandmarks)
		for i := range live {
			live[i] = Point2{U: rng.Float64() * 1280, V: rng.Float64() * 720, Valid: rng.IntN(10) > 0}
			expert[i] = Point2{U: rng.Float64() * 1280, V: rng.Float64() * 720, Valid: rng.IntN(10) > 0}
		}
		lo := rng.Float64() * 300
		hi := lo + rng.Float64()*300

		small := Score(live, expert, lo, true)
		large := Score(live, expert, hi, true)
		for _, j := range small.Joints {
			if j.Aligned {
				require.True(t, large.Aligned(j.Index), "joint %d lost alignment at larger threshold", j.Index)
			}
		}
	}
}

func TestAligner_Step(t *testing.T) {
	const w, h = 1280, 720
	fx := (w / 2) / math.Tan(math.Pi/6)
	cam := Pinhole{FX: fx, FY: fx, CX: w / 2, CY: h / 2}

	a := NewAligner(cam, Options{Mirror: false})
	live := detector.TPoseFrame(0)

	out := a.Step(Frame{Live: live, VideoWidth: w, VideoHeight: h, CanvasWidth: w, CanvasHeight: h})
	assert.Equal(t, -1, out.ExpertIndex)
	assert.Equal(t, 1.0, out.Result.Ratio())
	assert.Equal(t, 32.0, out.Threshold)

	placed := skeleton.Map(detector.TPoseWorld(), func(p r3.Vec) r3.Vec { return r3.Add(p, r3.Vec{Z: detector.FixtureDepth}) })
	standing := skeleton.Map(detector.StandingWorld(), func(p r3.Vec) r3.Vec { return r3.Add(p, r3.Vec{Z: detector.FixtureDepth}) })
	require.NoError(t, a.SetSequence([]int64{0, 1000}, []*detector.Landmarks{placed, standing}))
	assert.Equal(t, 2, a.Len())

	out = a.Step(Frame{Live: live, VideoWidth: w, VideoHeight: h, CanvasWidth: w, CanvasHeight: h, PlaybackMs: 100})
	assert.Equal(t, 0, out.ExpertIndex)
	assert.Equal(t, 1.0, out.Result.Ratio())

	out = a.Step(Frame{Live: live, VideoWidth: w, VideoHeight: h, CanvasWidth: w, CanvasHeight: h, PlaybackMs: 900})
	assert.Equal(t, 1, out.ExpertIndex)
	assert.False(t, out.Result.Aligned(detector.LeftWrist))
	assert.True(t, out.Result.Aligned(detector.LeftHip))

	assert.ErrorIs(t, a.SetSequence([]int64{0}, nil), ErrLengthMismatch)
}

func TestAligner_NoLiveFrame(t *testing.T) {
	a := NewAligner(Pinhole{FX: 1, FY: 1}, Options{ThresholdPx: 10})
	out := a.Step(Frame{CanvasWidth: 640, CanvasHeight: 480})
	assert.Empty(t, out.Result.Joints)
	assert.Equal(t, -1.0, out.Result.Ratio())
	assert.Equal(t, 10.0, out.Threshold)
}
