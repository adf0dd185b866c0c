// Package calibration derives body proportions and a pinhole camera model
// from a held T-pose.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/session"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Key is the session key holding the current profile.
const Key = "calibration.v1"

// ErrNotCalibrated is returned when no profile exists for the session.
var ErrNotCalibrated = errors.New("calibration required")

// Fallback segment lengths in metres, used when a landmark needed for a
// measurement is unavailable.
const (
	DefaultShoulderWidth = 0.35
	DefaultHipWidth      = 0.25
	DefaultUpperArm      = 0.30
	DefaultForearm       = 0.25
	DefaultThigh         = 0.45
	DefaultShank         = 0.42
)

// Depth estimate bounds and fallback, in metres.
const (
	MinDepth     = 0.6
	MaxDepth     = 5.0
	DefaultDepth = 2.4
	// DefaultHFOV is the assumed horizontal field of view in degrees.
	DefaultHFOV = 60.0
)

// Proportions are the user's body segment lengths in metres.
type Proportions struct {
	ShoulderWidth float64 `json:"SHOULDER_WIDTH"`
	HipWidth      float64 `json:"HIP_WIDTH"`
	LeftUpperArm  float64 `json:"LEFT_UPPER_ARM"`
	LeftForearm   float64 `json:"LEFT_FOREARM"`
	RightUpperArm float64 `json:"RIGHT_UPPER_ARM"`
	RightForearm  float64 `json:"RIGHT_FOREARM"`
	LeftThigh     float64 `json:"LEFT_THIGH"`
	LeftShank     float64 `json:"LEFT_SHANK"`
	RightThigh    float64 `json:"RIGHT_THIGH"`
	RightShank    float64 `json:"RIGHT_SHANK"`
}

type segment struct {
	name     string
	from, to int
	fallback float64
	field    func(*Proportions) *float64
}

var segments = []segment{
	{"shoulder_width", detector.LeftShoulder, detector.RightShoulder, DefaultShoulderWidth, func(p *Proportions) *float64 { return &p.ShoulderWidth }},
	{"hip_width", detector.LeftHip, detector.RightHip, DefaultHipWidth, func(p *Proportions) *float64 { return &p.HipWidth }},
	{"left_upper_arm", detector.LeftShoulder, detector.LeftElbow, DefaultUpperArm, func(p *Proportions) *float64 { return &p.LeftUpperArm }},
	{"left_forearm", detector.LeftElbow, detector.LeftWrist, DefaultForearm, func(p *Proportions) *float64 { return &p.LeftForearm }},
	{"right_upper_arm", detector.RightShoulder, detector.RightElbow, DefaultUpperArm, func(p *Proportions) *float64 { return &p.RightUpperArm }},
	{"right_forearm", detector.RightElbow, detector.RightWrist, DefaultForearm, func(p *Proportions) *float64 { return &p.RightForearm }},
	{"left_thigh", detector.LeftHip, detector.LeftKnee, DefaultThigh, func(p *Proportions) *float64 { return &p.LeftThigh }},
	{"left_shank", detector.LeftKnee, detector.LeftAnkle, DefaultShank, func(p *Proportions) *float64 { return &p.LeftShank }},
	{"right_thigh", detector.RightHip, detector.RightKnee, DefaultThigh, func(p *Proportions) *float64 { return &p.RightThigh }},
	{"right_shank", detector.RightKnee, detector.RightAnkle, DefaultShank, func(p *Proportions) *float64 { return &p.RightShank }},
}

// ComputeProportions measures segment lengths from world landmarks. Any
// segment that cannot be measured takes its fallback length, so every value
// of the result is positive.
func ComputeProportions(world *detector.Landmarks) Proportions {
	var p Proportions
	for _, s := range segments {
		d := skeleton.Distance(world, s.from, s.to)
		if !(d > 0) || math.IsInf(d, 0) {
			d = s.fallback
		}
		*s.field(&p) = d
	}
	return p
}

// Values returns the proportions keyed by segment name.
func (p Proportions) Values() map[string]float64 {
	out := make(map[string]float64, len(segments))
	for _, s := range segments {
		out[s.name] = *s.field(&p)
	}
	return out
}

// Camera is the pinhole model estimated at calibration time.
type Camera struct {
	align.Pinhole
	EstimatedDepthM float64 `json:"estimatedZ_m"`
}

// EstimateCamera derives intrinsics for a width x height video with the
// given horizontal field of view, and the subject's distance from the
// apparent pixel width of a shoulder line shoulderWidthM metres long.
func EstimateCamera(normalized *detector.Landmarks, shoulderWidthM float64, width, height int, hfovDeg float64) Camera {
	if hfovDeg <= 0 || hfovDeg >= 180 {
		hfovDeg = DefaultHFOV
	}
	w, h := float64(width), float64(height)
	fx := (w / 2) / math.Tan(hfovDeg*math.Pi/360)
	cam := Camera{Pinhole: align.Pinhole{FX: fx, FY: fx, CX: w / 2, CY: h / 2}}

	swPx := shoulderPixels(normalized, w, h)
	depth := DefaultDepth
	if swPx > 1 && fx > 0 && !math.IsInf(fx, 0) && !math.IsNaN(fx) {
		depth = fx * shoulderWidthM / swPx
	}
	cam.EstimatedDepthM = math.Max(MinDepth, math.Min(MaxDepth, depth))
	return cam
}

// shoulderPixels returns the horizontal shoulder span in pixels, falling
// back to the full 2D distance when the span is exactly zero.
func shoulderPixels(normalized *detector.Landmarks, w, h float64) float64 {
	l, okL := normalized.At(detector.LeftShoulder)
	r, okR := normalized.At(detector.RightShoulder)
	if !okL || !okR {
		return 0
	}
	dx := (r.X - l.X) * w
	dy := (r.Y - l.Y) * h
	if span := math.Abs(dx); span != 0 {
		return span
	}
	return math.Hypot(dx, dy)
}

// Profile is a complete calibration result.
type Profile struct {
	Proportions  Proportions `json:"proportions"`
	Camera       Camera      `json:"camera"`
	VideoWidth   int         `json:"video_width,omitempty"`
	VideoHeight  int         `json:"video_height,omitempty"`
	CalibratedAt time.Time   `json:"calibrated_at"`
}

// NewProfile builds a profile from one T-pose detection on a width x height
// video.
func NewProfile(frame *detector.Frame, width, height int, hfovDeg float64) *Profile {
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	props := ComputeProportions(frame.World)
	return &Profile{
		Proportions:  props,
		Camera:       EstimateCamera(frame.Normalized, props.ShoulderWidth, width, height, hfovDeg),
		VideoWidth:   width,
		VideoHeight:  height,
		CalibratedAt: time.Now().UTC(),
	}
}

// Save replaces the session profile and notifies subscribers.
func Save(s *session.Session, p *Profile) error {
	if err := s.Put(Key, p); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	s.Publish(session.Event{Topic: session.TopicCalibrationUpdated, Key: Key})
	return nil
}

// Load returns the session profile or ErrNotCalibrated.
func Load(s *session.Session) (*Profile, error) {
	var p Profile
	if err := s.Get(Key, &p); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotCalibrated
		}
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	return &p, nil
}

// IsCalibrated reports whether the session holds a profile.
func IsCalibrated(s *session.Session) bool {
	return s.Has(Key)
}

// Clear removes the session profile and notifies subscribers.
func Clear(s *session.Session) error {
	if err := s.Delete(Key); err != nil {
		return fmt.Errorf("clear calibration: %w", err)
	}
	s.Publish(session.Event{Topic: session.TopicCalibrationUpdated, Key: Key})
	return nil
}
