package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNotStarted is returned by Detect before the detector has been started.
var ErrNotStarted = errors.New("detector not started")

// Detector defines the interface for pose landmark sources.
type Detector interface {
	// Detect analyzes a video frame captured at timestampMs and returns the
	// detected pose. A frame without a person is returned with nil landmark
	// arrays and a nil error. Callers must pass non-decreasing timestamps.
	Detect(frame *gocv.Mat, timestampMs int64) (*Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// Python is the interpreter used for the pose service. Empty means a
	// virtualenv interpreter if one is found, otherwise python3.
	Python string

	// Script is the pose service path. Empty searches the usual locations.
	Script string

	MinDetectionConfidence float64
	MinPresenceConfidence  float64
	MinTrackingConfidence  float64

	// MinVisibility is the floor below which a landmark is reported as
	// unavailable (0 keeps every point the service returns).
	MinVisibility float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: 0.5,
		MinPresenceConfidence:  0.5,
		MinTrackingConfidence:  0.5,
		MinVisibility:          0.5,
	}
}
