// Package detector provides the pose landmark source used by calibration,
// expert retargeting and live practice.
package detector

import (
	"encoding/json"
	"fmt"
)

// Pose landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Names lists the landmark names in index order. The classification service
// expects CSV columns in exactly this order.
var Names = [NumLandmarks]string{
	"NOSE", "LEFT_EYE_INNER", "LEFT_EYE", "LEFT_EYE_OUTER",
	"RIGHT_EYE_INNER", "RIGHT_EYE", "RIGHT_EYE_OUTER",
	"LEFT_EAR", "RIGHT_EAR", "MOUTH_LEFT", "MOUTH_RIGHT",
	"LEFT_SHOULDER", "RIGHT_SHOULDER", "LEFT_ELBOW", "RIGHT_ELBOW",
	"LEFT_WRIST", "RIGHT_WRIST", "LEFT_PINKY", "RIGHT_PINKY",
	"LEFT_INDEX", "RIGHT_INDEX", "LEFT_THUMB", "RIGHT_THUMB",
	"LEFT_HIP", "RIGHT_HIP", "LEFT_KNEE", "RIGHT_KNEE",
	"LEFT_ANKLE", "RIGHT_ANKLE", "LEFT_HEEL", "RIGHT_HEEL",
	"LEFT_FOOT_INDEX", "RIGHT_FOOT_INDEX",
}

// Landmark is a single pose point. Units depend on the array it lives in:
// normalized image space for Frame.Normalized, metres for Frame.World.
// Valid is false when the detector did not report the point or its
// visibility fell below the configured floor.
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
	Valid      bool
}

// Landmarks is a full 33-point pose.
type Landmarks [NumLandmarks]Landmark

// At returns landmark i and whether it is usable.
func (l *Landmarks) At(i int) (Landmark, bool) {
	if l == nil || i < 0 || i >= NumLandmarks {
		return Landmark{}, false
	}
	p := l[i]
	return p, p.Valid
}

// Clone returns a copy of l.
func (l *Landmarks) Clone() *Landmarks {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

type jsonPoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// MarshalJSON encodes the pose as a 33-element array; unavailable points are
// written as null so they survive a round trip as unavailable, not zero.
func (l Landmarks) MarshalJSON() ([]byte, error) {
	out := make([]*jsonPoint, NumLandmarks)
	for i, p := range l {
		if !p.Valid {
			continue
		}
		jp := &jsonPoint{X: p.X, Y: p.Y, Z: p.Z}
		if p.Visibility != 0 {
			v := p.Visibility
			jp.Visibility = &v
		}
		out[i] = jp
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array written by MarshalJSON or by the pose
// service. Arrays of any length other than 33 are rejected.
func (l *Landmarks) UnmarshalJSON(data []byte) error {
	var raw []*jsonPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != NumLandmarks {
		return fmt.Errorf("landmarks: got %d points, want %d", len(raw), NumLandmarks)
	}
	for i, p := range raw {
		if p == nil {
			l[i] = Landmark{}
			continue
		}
		vis := 1.0
		if p.Visibility != nil {
			vis = *p.Visibility
		}
		l[i] = Landmark{X: p.X, Y: p.Y, Z: p.Z, Visibility: vis, Valid: true}
	}
	return nil
}

// Frame is one detection result. Either array may be nil when no person was
// found.
type Frame struct {
	Normalized  *Landmarks `json:"normalized,omitempty"`
	World       *Landmarks `json:"world,omitempty"`
	TimestampMs int64      `json:"timestamp_ms"`
}

// HasPose reports whether the frame carries both landmark arrays.
func (f *Frame) HasPose() bool {
	return f != nil && f.Normalized != nil && f.World != nil
}

// applyVisibilityFloor marks points below minVisibility as unavailable.
func (l *Landmarks) applyVisibilityFloor(minVisibility float64) {
	if l == nil || minVisibility <= 0 {
		return
	}
	for i := range l {
		if l[i].Valid && l[i].Visibility < minVisibility {
			l[i].Valid = false
		}
	}
}
