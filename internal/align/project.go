// Package align reprojects retargeted expert poses into screen space and
// scores live joints against them.
package align

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/skeleton"
)

// MinDepth is the depth floor used when projecting points that sit at or
// behind the camera plane.
const MinDepth = 0.05

// Pinhole holds camera intrinsics in native video pixels.
type Pinhole struct {
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
}

// Valid reports whether the intrinsics can be used for projection.
func (p Pinhole) Valid() bool {
	return p.FX > 0 && p.FY > 0 && !math.IsInf(p.FX, 0) && !math.IsInf(p.FY, 0)
}

// Point2 is a canvas pixel position. Valid is false when the source point
// was unavailable.
type Point2 struct {
	U     float64 `json:"u"`
	V     float64 `json:"v"`
	Valid bool    `json:"valid"`
}

// Cover maps native video pixels onto a canvas of a different aspect ratio
// by scaling to fill and cropping the overflow equally on both sides.
type Cover struct {
	Scale float64
	OffX  float64
	OffY  float64
}

// NewCover computes the aspect-fill transform from a videoW x videoH source
// to a canvasW x canvasH canvas. Degenerate sizes yield the identity.
func NewCover(videoW, videoH, canvasW, canvasH int) Cover {
	if videoW <= 0 || videoH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Cover{Scale: 1}
	}
	vw, vh := float64(videoW), float64(videoH)
	cw, ch := float64(canvasW), float64(canvasH)
	s := math.Max(cw/vw, ch/vh)
	return Cover{
		Scale: s,
		OffX:  (s*vw - cw) / 2,
		OffY:  (s*vh - ch) / 2,
	}
}

// Apply maps a native pixel to canvas pixels.
func (c Cover) Apply(u, v float64) Point2 {
	return Point2{U: u*c.Scale - c.OffX, V: v*c.Scale - c.OffY, Valid: true}
}

// Project maps a world point in metres to native video pixels.
func Project(p r3.Vec, cam Pinhole) (u, v float64) {
	z := math.Max(p.Z, MinDepth)
	return cam.FX*(p.X/z) + cam.CX, cam.FY*(p.Y/z) + cam.CY
}

// ProjectFrame projects every available world landmark to canvas pixels.
func ProjectFrame(world *detector.Landmarks, cam Pinhole, cover Cover) []Point2 {
	out := make([]Point2, detector.NumLandmarks)
	if world == nil {
		return out
	}
	for i := range out {
		p, ok := skeleton.Point(world, i)
		if !ok {
			continue
		}
		u, v := Project(p, cam)
		if math.IsNaN(u) || math.IsNaN(v) || math.IsInf(u, 0) || math.IsInf(v, 0) {
			continue
		}
		out[i] = cover.Apply(u, v)
	}
	return out
}

// LivePoints maps normalized landmarks to canvas pixels through the native
// video size and the cover transform.
func LivePoints(normalized *detector.Landmarks, videoW, videoH int, cover Cover) []Point2 {
	out := make([]Point2, detector.NumLandmarks)
	if normalized == nil {
		return out
	}
	for i := range out {
		p, ok := normalized.At(i)
		if !ok {
			continue
		}
		out[i] = cover.Apply(p.X*float64(videoW), p.Y*float64(videoH))
	}
	return out
}
