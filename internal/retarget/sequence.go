package retarget

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/session"
)

// Session keys.
const (
	KeyPrefix = "expert_transformed."
	LatestKey = "expert_transformed.v1"
)

// ErrNotFound is returned by Load when a segment has not been retargeted.
var ErrNotFound = errors.New("retargeted sequence not found")

// SegmentKey returns the session key of a segment's sequence.
func SegmentKey(segment string) string {
	return KeyPrefix + segment + ".v1"
}

// Frame is one expert pose.
type Frame struct {
	TimestampMs int64               `json:"timestamp_ms"`
	World       *detector.Landmarks `json:"world"`
	Normalized  *detector.Landmarks `json:"norm,omitempty"`
}

// Stats summarises a retargeting run.
type Stats struct {
	Samples    int `json:"samples"`
	Detected   int `json:"detected"`
	SeekFailed int `json:"seek_failed"`
	NoPose     int `json:"no_pose"`
}

// Sequence is a retargeted expert demonstration. Timestamps are strictly
// increasing. CalibratedAt identifies the calibration profile it was
// scaled to.
type Sequence struct {
	Segment      string    `json:"segment,omitempty"`
	Source       string    `json:"source,omitempty"`
	Frames       []Frame   `json:"frames"`
	Stats        Stats     `json:"stats"`
	CalibratedAt time.Time `json:"calibrated_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Frames)
}

// Timestamps returns the frame timestamps in order.
func (s *Sequence) Timestamps() []int64 {
	if s.Len() == 0 {
		return nil
	}
	out := make([]int64, s.Len())
	for i, f := range s.Frames {
		out[i] = f.TimestampMs
	}
	return out
}

// Worlds returns the frame world landmarks in order.
func (s *Sequence) Worlds() []*detector.Landmarks {
	if s.Len() == 0 {
		return nil
	}
	out := make([]*detector.Landmarks, s.Len())
	for i, f := range s.Frames {
		out[i] = f.World
	}
	return out
}

// DurationMs returns the timestamp of the last frame.
func (s *Sequence) DurationMs() int64 {
	if s.Len() == 0 {
		return 0
	}
	return s.Frames[len(s.Frames)-1].TimestampMs
}

// Load returns the cached sequence for segment.
func Load(s *session.Session, segment string) (*Sequence, error) {
	var seq Sequence
	if err := s.Get(SegmentKey(segment), &seq); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load sequence %s: %w", segment, err)
	}
	return &seq, nil
}

// save stores seq under its segment key and the latest key in one write and
// announces it.
func save(s *session.Session, seq *Sequence) error {
	key := SegmentKey(seq.Segment)
	if err := s.PutAll(map[string]any{key: seq, LatestKey: seq}); err != nil {
		return fmt.Errorf("save sequence %s: %w", seq.Segment, err)
	}
	s.Publish(session.Event{Topic: session.TopicExpertUpdated, Key: key, Count: seq.Len()})
	return nil
}

// Reset drops every cached sequence so the next Ensure recomputes.
func Reset(s *session.Session) (int64, error) {
	n, err := s.DeletePrefix(KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("reset sequences: %w", err)
	}
	return n, nil
}
