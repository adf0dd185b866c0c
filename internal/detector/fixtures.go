package detector

import "math"

// Fixture geometry, in metres. World poses are pelvis-centred with y pointing
// down and the subject's left side on +x, as the landmarker reports them for a
// person facing the camera.
const (
	FixtureShoulderWidth = 0.36
	FixtureHipWidth      = 0.26
	FixtureUpperArm      = 0.30
	FixtureForearm       = 0.25
	FixtureThigh         = 0.45
	FixtureShank         = 0.42
	FixtureDepth         = 2.4
	fixtureShoulderY     = -0.50
)

// TPoseWorld returns world landmarks for a person facing the camera with both
// arms extended horizontally.
func TPoseWorld() *Landmarks {
	l := baseWorld()
	half := FixtureShoulderWidth / 2
	for _, side := range []struct {
		sign                float64
		elbow, wrist, pinky int
		index, thumb        int
	}{
		{1, LeftElbow, LeftWrist, LeftPinky, LeftIndex, LeftThumb},
		{-1, RightElbow, RightWrist, RightPinky, RightIndex, RightThumb},
	} {
		elbowX := side.sign * (half + FixtureUpperArm)
		wristX := side.sign * (half + FixtureUpperArm + FixtureForearm)
		l[side.elbow] = point(elbowX, fixtureShoulderY, 0)
		l[side.wrist] = point(wristX, fixtureShoulderY, 0)
		l[side.pinky] = point(wristX+side.sign*0.08, fixtureShoulderY+0.01, 0)
		l[side.index] = point(wristX+side.sign*0.09, fixtureShoulderY, 0)
		l[side.thumb] = point(wristX+side.sign*0.05, fixtureShoulderY-0.03, 0)
	}
	return l
}

// StandingWorld returns world landmarks for a relaxed standing pose with the
// arms hanging down.
func StandingWorld() *Landmarks {
	l := baseWorld()
	half := FixtureShoulderWidth / 2
	for _, side := range []struct {
		sign                float64
		elbow, wrist, pinky int
		index, thumb        int
	}{
		{1, LeftElbow, LeftWrist, LeftPinky, LeftIndex, LeftThumb},
		{-1, RightElbow, RightWrist, RightPinky, RightIndex, RightThumb},
	} {
		x := side.sign * (half + 0.02)
		l[side.elbow] = point(x, fixtureShoulderY+FixtureUpperArm, 0)
		l[side.wrist] = point(x, fixtureShoulderY+FixtureUpperArm+FixtureForearm, 0)
		l[side.pinky] = point(x, fixtureShoulderY+FixtureUpperArm+FixtureForearm+0.08, 0)
		l[side.index] = point(x, fixtureShoulderY+FixtureUpperArm+FixtureForearm+0.09, 0)
		l[side.thumb] = point(x-side.sign*0.02, fixtureShoulderY+FixtureUpperArm+FixtureForearm+0.05, 0)
	}
	return l
}

func baseWorld() *Landmarks {
	var l Landmarks
	half := FixtureShoulderWidth / 2
	hip := FixtureHipWidth / 2

	l[Nose] = point(0, -0.72, -0.08)
	l[LeftEyeInner] = point(0.02, -0.76, -0.07)
	l[LeftEye] = point(0.035, -0.76, -0.07)
	l[LeftEyeOuter] = point(0.05, -0.76, -0.07)
	l[RightEyeInner] = point(-0.02, -0.76, -0.07)
	l[RightEye] = point(-0.035, -0.76, -0.07)
	l[RightEyeOuter] = point(-0.05, -0.76, -0.07)
	l[LeftEar] = point(0.08, -0.74, 0)
	l[RightEar] = point(-0.08, -0.74, 0)
	l[MouthLeft] = point(0.025, -0.68, -0.07)
	l[MouthRight] = point(-0.025, -0.68, -0.07)
	l[LeftShoulder] = point(half, fixtureShoulderY, 0)
	l[RightShoulder] = point(-half, fixtureShoulderY, 0)
	l[LeftHip] = point(hip, 0, 0)
	l[RightHip] = point(-hip, 0, 0)
	l[LeftKnee] = point(hip, FixtureThigh, 0)
	l[RightKnee] = point(-hip, FixtureThigh, 0)
	l[LeftAnkle] = point(hip, FixtureThigh+FixtureShank, 0)
	l[RightAnkle] = point(-hip, FixtureThigh+FixtureShank, 0)
	l[LeftHeel] = point(hip, FixtureThigh+FixtureShank+0.04, 0.04)
	l[RightHeel] = point(-hip, FixtureThigh+FixtureShank+0.04, 0.04)
	l[LeftFootIndex] = point(hip, FixtureThigh+FixtureShank+0.06, -0.12)
	l[RightFootIndex] = point(-hip, FixtureThigh+FixtureShank+0.06, -0.12)
	return &l
}

// NormalizedFromWorld projects a world pose standing depthM metres from a
// pinhole camera with the given horizontal field of view into normalized
// image coordinates, the way the landmarker would report the same person.
func NormalizedFromWorld(world *Landmarks, depthM float64, width, height int, hfovDeg float64) *Landmarks {
	if world == nil {
		return nil
	}
	fx := (float64(width) / 2) / math.Tan(hfovDeg*math.Pi/360)
	cx, cy := float64(width)/2, float64(height)/2
	var out Landmarks
	for i, p := range world {
		if !p.Valid {
			continue
		}
		z := depthM + p.Z
		out[i] = Landmark{
			X:          (fx*p.X/z + cx) / float64(width),
			Y:          (fx*p.Y/z + cy) / float64(height),
			Z:          p.Z,
			Visibility: p.Visibility,
			Valid:      true,
		}
	}
	return &out
}

// TPoseFrame returns a complete T-pose detection for a 1280x720 camera with a
// 60 degree horizontal field of view.
func TPoseFrame(timestampMs int64) *Frame {
	world := TPoseWorld()
	return &Frame{
		Normalized:  NormalizedFromWorld(world, FixtureDepth, 1280, 720, 60),
		World:       world,
		TimestampMs: timestampMs,
	}
}

// StandingFrame is TPoseFrame with the arms down.
func StandingFrame(timestampMs int64) *Frame {
	world := StandingWorld()
	return &Frame{
		Normalized:  NormalizedFromWorld(world, FixtureDepth, 1280, 720, 60),
		World:       world,
		TimestampMs: timestampMs,
	}
}

func point(x, y, z float64) Landmark {
	return Landmark{X: x, Y: y, Z: z, Visibility: 0.99, Valid: true}
}
