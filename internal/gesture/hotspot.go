// Package gesture provides the hands-free play/pause control: a joint held
// in a screen-corner hotspot toggles playback.
package gesture

import (
	"fmt"
	"image"

	"github.com/ayusman/taiji/internal/align"
)

// Corner identifies a screen corner as the viewer sees it.
type Corner string

const (
	TopRight    Corner = "top-right"
	TopLeft     Corner = "top-left"
	BottomRight Corner = "bottom-right"
	BottomLeft  Corner = "bottom-left"
)

// ParseCorner validates a corner name.
func ParseCorner(s string) (Corner, error) {
	switch c := Corner(s); c {
	case TopRight, TopLeft, BottomRight, BottomLeft:
		return c, nil
	}
	return "", fmt.Errorf("unknown corner %q", s)
}

// Hotspot is a corner region sized as a fraction of the canvas.
type Hotspot struct {
	Corner    Corner  // Corner in viewer space
	MarginPct float64 // Region size as a fraction of width and height
	Mirror    bool    // Display is horizontally mirrored
}

// Contains reports whether canvas point p falls inside the hotspot on a
// width x height canvas. With Mirror set the point is first flipped into
// viewer space, so a joint that appears top-right on screen matches
// TopRight whatever side of the unmirrored image it sits on.
func (h Hotspot) Contains(p align.Point2, width, height int) bool {
	if !p.Valid {
		return false
	}
	w, ht := float64(width), float64(height)
	u := p.U
	if h.Mirror {
		u = w - u
	}
	mx, my := w*h.MarginPct, ht*h.MarginPct

	switch h.Corner {
	case TopRight:
		return u >= w-mx && p.V <= my
	case TopLeft:
		return u <= mx && p.V <= my
	case BottomRight:
		return u >= w-mx && p.V >= ht-my
	case BottomLeft:
		return u <= mx && p.V >= ht-my
	}
	return false
}

// Rect returns the hotspot region in viewer space, for drawing on the
// mirrored display.
func (h Hotspot) Rect(width, height int) image.Rectangle {
	mx := int(float64(width) * h.MarginPct)
	my := int(float64(height) * h.MarginPct)
	switch h.Corner {
	case TopLeft:
		return image.Rect(0, 0, mx, my)
	case BottomRight:
		return image.Rect(width-mx, height-my, width, height)
	case BottomLeft:
		return image.Rect(0, height-my, mx, height)
	default:
		return image.Rect(width-mx, 0, width, my)
	}
}
