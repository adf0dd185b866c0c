package skeleton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/detector"
)

func TestMirror(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{detector.LeftShoulder, detector.RightShoulder},
		{detector.RightShoulder, detector.LeftShoulder},
		{detector.LeftElbow, detector.RightElbow},
		{detector.RightWrist, detector.LeftWrist},
		{detector.LeftHip, detector.RightHip},
		{detector.RightKnee, detector.LeftKnee},
		{detector.LeftAnkle, detector.RightAnkle},
		{detector.Nose, detector.Nose},
		{detector.LeftHeel, detector.LeftHeel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mirror(tt.in), "Mirror(%d)", tt.in)
	}

	for _, j := range TrackedJoints {
		assert.Equal(t, j, Mirror(Mirror(j)), "mirror should be an involution for %d", j)
	}
}

func TestTopology(t *testing.T) {
	assert.Len(t, Connections, 12)
	assert.Len(t, TrackedJoints, 12)
}

func TestMeasurements(t *testing.T) {
	l := detector.TPoseWorld()

	assert.InDelta(t, detector.FixtureShoulderWidth, ShoulderWidth(l), 1e-9)
	assert.InDelta(t, detector.FixtureUpperArm, Distance(l, detector.LeftShoulder, detector.LeftElbow), 1e-9)

	pelvis, ok := Pelvis(l)
	require.True(t, ok)
	assert.InDelta(t, 0, r3.Norm(pelvis), 1e-9)

	yaw, ok := Yaw(l)
	require.True(t, ok)
	assert.InDelta(t, math.Pi, math.Abs(yaw), 1e-9, "right-minus-left points along -x for a camera-facing subject")

	l[detector.LeftShoulder] = detector.Landmark{}
	assert.Zero(t, ShoulderWidth(l))
	_, ok = Yaw(l)
	assert.False(t, ok)
}

func TestMapKeepsUnavailable(t *testing.T) {
	l := detector.TPoseWorld()
	l[detector.Nose] = detector.Landmark{}

	shifted := Map(l, func(v r3.Vec) r3.Vec { return r3.Add(v, r3.Vec{Z: 2}) })

	_, ok := shifted.At(detector.Nose)
	assert.False(t, ok)
	got, ok := shifted.At(detector.LeftWrist)
	require.True(t, ok)
	assert.InDelta(t, l[detector.LeftWrist].Z+2, got.Z, 1e-12)
	assert.InDelta(t, 0, l[detector.LeftWrist].Z, 1e-12, "input must not be modified")
}
