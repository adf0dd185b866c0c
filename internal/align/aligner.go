package align

import (
	"errors"
	"sync"

	"github.com/ayusman/taiji/internal/detector"
)

// ErrLengthMismatch is returned when timestamps and frames differ in length.
var ErrLengthMismatch = errors.New("align: timestamps and frames differ in length")

// Options configures an Aligner.
type Options struct {
	// ThresholdPx overrides the resolution-adaptive threshold when > 0.
	ThresholdPx float64
	Mirror      bool
}

// Aligner scores live frames against one retargeted expert sequence. The
// sequence can be swapped atomically while frames are being scored.
type Aligner struct {
	opts Options

	mu         sync.RWMutex
	cam        Pinhole
	timestamps []int64
	frames     []*detector.Landmarks
}

// NewAligner creates an aligner with no expert data.
func NewAligner(cam Pinhole, opts Options) *Aligner {
	return &Aligner{cam: cam, opts: opts}
}

// SetCamera replaces the camera intrinsics.
func (a *Aligner) SetCamera(cam Pinhole) {
	a.mu.Lock()
	a.cam = cam
	a.mu.Unlock()
}

// SetSequence replaces the expert sequence. Passing empty slices clears it.
func (a *Aligner) SetSequence(timestamps []int64, frames []*detector.Landmarks) error {
	if len(timestamps) != len(frames) {
		return ErrLengthMismatch
	}
	a.mu.Lock()
	a.timestamps = timestamps
	a.frames = frames
	a.mu.Unlock()
	return nil
}

// Len returns the number of expert frames.
func (a *Aligner) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.frames)
}

// Step aligns one live frame. Without expert data, or without usable
// intrinsics, every live joint counts as aligned.
func (a *Aligner) Step(f Frame) Output {
	a.mu.RLock()
	cam, timestamps, frames := a.cam, a.timestamps, a.frames
	a.mu.RUnlock()

	cover := NewCover(f.VideoWidth, f.VideoHeight, f.CanvasWidth, f.CanvasHeight)
	threshold := a.opts.ThresholdPx
	if threshold <= 0 {
		threshold = DefaultThreshold(f.CanvasWidth)
	}

	out := Output{ExpertIndex: -1, Threshold: threshold}
	if f.Live != nil {
		out.Live = LivePoints(f.Live.Normalized, f.VideoWidth, f.VideoHeight, cover)
	} else {
		out.Live = make([]Point2, detector.NumLandmarks)
	}

	if len(frames) > 0 && cam.Valid() {
		idx := ClosestIndex(timestamps, f.PlaybackMs)
		out.ExpertIndex = idx
		out.Expert = ProjectFrame(frames[idx], cam, cover)
	}

	out.Result = Score(out.Live, out.Expert, threshold, a.opts.Mirror)
	return out
}
