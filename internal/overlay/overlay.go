// Package overlay renders camera frames with skeleton guidance for the
// calibration and practice views.
package overlay

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Overlay colours.
var (
	Green       = color.RGBA{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff}
	Red         = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	Neutral     = color.RGBA{R: 200, G: 200, B: 200, A: 0xff}
	Guide       = color.RGBA{R: 0x80, G: 0xff, B: 0x80, A: 0xff}
	ExpertLine  = color.RGBA{R: 180, G: 180, B: 180, A: 0xff}
	ExpertJoint = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	Yellow      = color.RGBA{R: 0xea, G: 0xb3, B: 0x08, A: 0xff}
	White       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Surface receives rendered canvases. Size is polled once per frame so the
// canvas follows the display when it is resized; a zero size means "use the
// native frame size".
type Surface interface {
	Size() image.Point
	Present(canvas *gocv.Mat)
}

// Canvas returns a size-sized aspect-fill crop of src together with the
// cover transform used to produce it. The caller owns the returned Mat.
func Canvas(src gocv.Mat, size image.Point) (gocv.Mat, align.Cover) {
	vw, vh := src.Cols(), src.Rows()
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(vw, vh)
	}
	cover := align.NewCover(vw, vh, size.X, size.Y)
	if vw == size.X && vh == size.Y {
		return src.Clone(), cover
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	sw := int(math.Ceil(float64(vw) * cover.Scale))
	sh := int(math.Ceil(float64(vh) * cover.Scale))
	gocv.Resize(src, &scaled, image.Pt(sw, sh), 0, 0, gocv.InterpolationLinear)

	x0, y0 := int(math.Round(cover.OffX)), int(math.Round(cover.OffY))
	rect := image.Rect(x0, y0, x0+size.X, y0+size.Y).Intersect(image.Rect(0, 0, sw, sh))
	region := scaled.Region(rect)
	defer region.Close()
	return region.Clone(), cover
}

// Mirror flips img horizontally in place.
func Mirror(img *gocv.Mat) {
	flipped := gocv.NewMat()
	gocv.Flip(*img, &flipped, 1)
	flipped.CopyTo(img)
	flipped.Close()
}

// scale returns the width-relative unit used for line and dot sizes.
func scale(img *gocv.Mat) int {
	return max(1, int(math.Round(float64(img.Cols())/640)))
}

func pt(p align.Point2) image.Point {
	return image.Pt(int(math.Round(p.U)), int(math.Round(p.V)))
}

func dot(img *gocv.Mat, p align.Point2, radius int, fill color.RGBA, ring int) {
	c := pt(p)
	gocv.Circle(img, c, radius, fill, -1)
	if ring > 0 {
		gocv.Circle(img, c, radius, White, ring)
	}
}

func bones(img *gocv.Mat, pts []align.Point2, thickness int, colorOf func(skeleton.Bone) color.RGBA) {
	for _, b := range skeleton.Connections {
		if b.From >= len(pts) || b.To >= len(pts) {
			continue
		}
		a, z := pts[b.From], pts[b.To]
		if !a.Valid || !z.Valid {
			continue
		}
		gocv.Line(img, pt(a), pt(z), colorOf(b), thickness)
	}
}

// DrawCalibration draws the guidance skeleton and one dot per joint in
// dots, green when that joint's segment is horizontal.
func DrawCalibration(img *gocv.Mat, pts []align.Point2, dots map[int]bool) {
	u := scale(img)
	bones(img, pts, 2, func(skeleton.Bone) color.RGBA { return Guide })
	for i, ok := range dots {
		if i >= len(pts) || !pts[i].Valid {
			continue
		}
		fill := Red
		if ok {
			fill = Green
		}
		dot(img, pts[i], max(8, u*3), fill, 4)
	}
}

// DrawExpert draws the reprojected expert skeleton in gray.
func DrawExpert(img *gocv.Mat, pts []align.Point2) {
	u := scale(img)
	bones(img, pts, max(2, u*2), func(skeleton.Bone) color.RGBA { return ExpertLine })
	for _, i := range skeleton.TrackedJoints {
		if i < len(pts) && pts[i].Valid {
			dot(img, pts[i], max(3, u*2), ExpertJoint, 1)
		}
	}
}

// DrawPractice draws the live skeleton coloured by res. Bones are red only
// when both ends are misaligned; joints are green when aligned.
func DrawPractice(img *gocv.Mat, live []align.Point2, res align.Result) {
	u := scale(img)
	bones(img, live, max(8, u*2), func(b skeleton.Bone) color.RGBA {
		if res.Warn(b) {
			return Red
		}
		return Neutral
	})
	for _, j := range res.Joints {
		fill := Red
		if j.Aligned {
			fill = Green
		}
		dot(img, live[j.Index], max(12, u*3), fill, 6)
	}
}

// DrawHotspot outlines the gesture hotspot. rect is in display coordinates,
// so call it after Mirror.
func DrawHotspot(img *gocv.Mat, rect image.Rectangle, ready bool) {
	c := Yellow
	if ready {
		c = Green
	}
	gocv.Rectangle(img, rect, c, 2)
}

// DrawLabel writes text in the top-left corner. Call it after Mirror.
func DrawLabel(img *gocv.Mat, text string) {
	u := float64(scale(img))
	gocv.PutText(img, text, image.Pt(int(16*u), int(40*u)), gocv.FontHersheySimplex, u, White, max(1, int(2*u)))
}
