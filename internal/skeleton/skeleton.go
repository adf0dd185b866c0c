// Package skeleton holds the body topology shared by calibration, retargeting
// and live alignment, plus the small amount of 3D vector math they need.
package skeleton

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/detector"
)

// Bone is a pair of landmark indices drawn as one connector.
type Bone struct {
	From int
	To   int
}

// Connections are the limb and torso connectors drawn on overlays.
var Connections = []Bone{
	{detector.LeftShoulder, detector.LeftElbow},
	{detector.LeftElbow, detector.LeftWrist},
	{detector.RightShoulder, detector.RightElbow},
	{detector.RightElbow, detector.RightWrist},
	{detector.LeftShoulder, detector.LeftHip},
	{detector.RightShoulder, detector.RightHip},
	{detector.LeftHip, detector.LeftKnee},
	{detector.LeftKnee, detector.LeftAnkle},
	{detector.RightHip, detector.RightKnee},
	{detector.RightKnee, detector.RightAnkle},
	{detector.LeftShoulder, detector.RightShoulder},
	{detector.LeftHip, detector.RightHip},
}

// TrackedJoints are the joints scored during practice.
var TrackedJoints = []int{
	detector.LeftWrist, detector.RightWrist,
	detector.LeftElbow, detector.RightElbow,
	detector.LeftShoulder, detector.RightShoulder,
	detector.LeftHip, detector.RightHip,
	detector.LeftKnee, detector.RightKnee,
	detector.LeftAnkle, detector.RightAnkle,
}

var mirrorPairs = [][2]int{
	{detector.LeftShoulder, detector.RightShoulder},
	{detector.LeftElbow, detector.RightElbow},
	{detector.LeftWrist, detector.RightWrist},
	{detector.LeftHip, detector.RightHip},
	{detector.LeftKnee, detector.RightKnee},
	{detector.LeftAnkle, detector.RightAnkle},
}

// Mirror returns the landmark on the opposite side of the body for the
// tracked limb joints, and i itself for everything else.
func Mirror(i int) int {
	for _, p := range mirrorPairs {
		switch i {
		case p[0]:
			return p[1]
		case p[1]:
			return p[0]
		}
	}
	return i
}

// Vec converts a landmark to a vector.
func Vec(l detector.Landmark) r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// Point returns landmark i of l as a vector, if available.
func Point(l *detector.Landmarks, i int) (r3.Vec, bool) {
	p, ok := l.At(i)
	if !ok {
		return r3.Vec{}, false
	}
	return Vec(p), true
}

// Distance returns the Euclidean distance between landmarks a and b, or 0
// when either is unavailable.
func Distance(l *detector.Landmarks, a, b int) float64 {
	pa, okA := Point(l, a)
	pb, okB := Point(l, b)
	if !okA || !okB {
		return 0
	}
	return r3.Norm(r3.Sub(pb, pa))
}

// Midpoint returns the midpoint of landmarks a and b.
func Midpoint(l *detector.Landmarks, a, b int) (r3.Vec, bool) {
	pa, okA := Point(l, a)
	pb, okB := Point(l, b)
	if !okA || !okB {
		return r3.Vec{}, false
	}
	return r3.Scale(0.5, r3.Add(pa, pb)), true
}

// Pelvis returns the hip midpoint.
func Pelvis(l *detector.Landmarks) (r3.Vec, bool) {
	return Midpoint(l, detector.LeftHip, detector.RightHip)
}

// ShoulderWidth returns the left-to-right shoulder distance, 0 if unknown.
func ShoulderWidth(l *detector.Landmarks) float64 {
	return Distance(l, detector.LeftShoulder, detector.RightShoulder)
}

// ShoulderVector returns right shoulder minus left shoulder.
func ShoulderVector(l *detector.Landmarks) (r3.Vec, bool) {
	ls, okL := Point(l, detector.LeftShoulder)
	rs, okR := Point(l, detector.RightShoulder)
	if !okL || !okR {
		return r3.Vec{}, false
	}
	return r3.Sub(rs, ls), true
}

// Yaw returns the heading of the shoulder line in the horizontal (x, z)
// plane, atan2(z, x) of ShoulderVector.
func Yaw(l *detector.Landmarks) (float64, bool) {
	v, ok := ShoulderVector(l)
	if !ok {
		return 0, false
	}
	return math.Atan2(v.Z, v.X), true
}

// Map applies fn to every available landmark of l and returns the result.
// Unavailable points stay unavailable.
func Map(l *detector.Landmarks, fn func(r3.Vec) r3.Vec) *detector.Landmarks {
	if l == nil {
		return nil
	}
	out := *l
	for i := range out {
		if !out[i].Valid {
			continue
		}
		v := fn(Vec(out[i]))
		out[i].X, out[i].Y, out[i].Z = v.X, v.Y, v.Z
	}
	return &out
}
