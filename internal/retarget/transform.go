// Package retarget re-expresses an expert demonstration in the user's
// coordinate frame: pelvis-centred, yaw-aligned on the first frame, scaled
// to the user's shoulder width and placed at the user's depth.
package retarget

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Target is the user body and placement the expert is mapped onto.
type Target struct {
	ShoulderWidth float64
	Depth         float64
}

// TargetFor extracts the target from a calibration profile, substituting
// defaults for missing values.
func TargetFor(p *calibration.Profile) Target {
	t := Target{ShoulderWidth: calibration.DefaultShoulderWidth, Depth: calibration.DefaultDepth}
	if p == nil {
		return t
	}
	if sw := p.Proportions.ShoulderWidth; sw > 0 {
		t.ShoulderWidth = sw
	}
	if z := p.Camera.EstimatedDepthM; z > 0 {
		t.Depth = z
	}
	return t
}

var yAxis = r3.Vec{Y: 1}

// Transform retargets frames onto target. Every frame is centred on its own
// pelvis; the yaw and scale are measured once on the first frame and applied
// to all. Frames must have an available pelvis.
func Transform(frames []Frame, target Target) []Frame {
	if len(frames) == 0 {
		return nil
	}

	centre := func(l *detector.Landmarks) *detector.Landmarks {
		pelvis, _ := skeleton.Pelvis(l)
		return skeleton.Map(l, func(p r3.Vec) r3.Vec { return r3.Sub(p, pelvis) })
	}

	centred0 := centre(frames[0].World)
	yaw0, _ := skeleton.Yaw(centred0)
	rot := r3.NewRotation(yaw0, yAxis)

	expertSW := skeleton.ShoulderWidth(skeleton.Map(centred0, rot.Rotate))
	if expertSW == 0 {
		expertSW = 1
	}
	scale := target.ShoulderWidth / expertSW
	offset := r3.Vec{Z: target.Depth}

	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = f
		out[i].World = skeleton.Map(centre(f.World), func(p r3.Vec) r3.Vec {
			return r3.Add(r3.Scale(scale, rot.Rotate(p)), offset)
		})
	}
	return out
}
