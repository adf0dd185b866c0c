// Package sequence holds the practice catalog: the Tai Chi sequences, their
// poses and the expert demonstration clip for each pose.
package sequence

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned for unknown sequence ids or pose indices.
var ErrNotFound = errors.New("sequence not found")

// Difficulty levels.
const (
	Beginner     = "Beginner"
	Intermediate = "Intermediate"
	Advanced     = "Advanced"
)

// Pose is one timed step of a sequence.
type Pose struct {
	Name        string `json:"name"`
	GestureID   string `json:"gestureId"` // Classifier label, e.g. "G01"
	Duration    int    `json:"duration"`  // Seconds
	Video       string `json:"videoUrl"`  // Expert clip, relative to the videos directory
	Description string `json:"examplePoseData"`
}

// Sequence is an ordered list of poses.
type Sequence struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	XP          int    `json:"xp"`
	Locked      bool   `json:"isLocked"`
	Thumbnail   string `json:"thumbnailVideoUrl,omitempty"`
	Poses       []Pose `json:"poses"`
}

var catalog = []Sequence{
	{
		ID:          "1",
		Name:        "First Steps",
		Description: "A gentle introduction to the core principles and movements of Tai Chi.",
		Difficulty:  Beginner,
		XP:          100,
		Thumbnail:   "S1.mp4",
		Poses: []Pose{
			{Name: "Beginning position (Wuji)", GestureID: "G01", Duration: 15, Video: "wuji.mp4",
				Description: "The system will analyze your stance and posture."},
			{Name: "Open and close lotus flower", GestureID: "G03", Duration: 20, Video: "lotus.mp4",
				Description: "The system will analyze your arm movement and coordination."},
			{Name: "Tree posture (Taiji)", GestureID: "G02", Duration: 15, Video: "tree.mp4",
				Description: "The system will analyze your balance and stability."},
		},
	},
	{
		ID:          "2",
		Name:        "Flowing River",
		Description: "Connect movements into a continuous, flowing sequence, enhancing coordination.",
		Difficulty:  Intermediate,
		XP:          250,
		Thumbnail:   "S2.mp4",
		Poses: []Pose{
			{Name: "Part the wild horse’s mane", GestureID: "G08", Duration: 20,
				Description: "The system will analyze your weight shifting and arm coordination."},
		},
	},
	{
		ID:          "3",
		Name:        "Mountain and Sky",
		Description: "Master advanced forms that challenge your balance, strength, and focus.",
		Difficulty:  Advanced,
		XP:          500,
		Thumbnail:   "S3.mp4",
		Poses: []Pose{
			{Name: "Golden rooster stands on one leg", GestureID: "G09", Duration: 20,
				Description: "The system will focus on your balance and stability on one leg."},
		},
	},
}

// All returns a copy of the catalog. With calibrated false every sequence is
// reported locked.
func All(calibrated bool) []Sequence {
	out := make([]Sequence, len(catalog))
	for i, s := range catalog {
		out[i] = s.clone()
		out[i].Locked = s.Locked || !calibrated
	}
	return out
}

// Get returns a copy of one sequence.
func Get(id string, calibrated bool) (Sequence, error) {
	for _, s := range catalog {
		if s.ID == id {
			c := s.clone()
			c.Locked = s.Locked || !calibrated
			return c, nil
		}
	}
	return Sequence{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func (s Sequence) clone() Sequence {
	s.Poses = append([]Pose(nil), s.Poses...)
	return s
}

// Pose returns the pose at index i.
func (s Sequence) Pose(i int) (Pose, error) {
	if i < 0 || i >= len(s.Poses) {
		return Pose{}, fmt.Errorf("%w: sequence %s has no pose %d", ErrNotFound, s.ID, i)
	}
	return s.Poses[i], nil
}

// TotalDuration is the sum of all pose durations in seconds.
func (s Sequence) TotalDuration() int {
	total := 0
	for _, p := range s.Poses {
		total += p.Duration
	}
	return total
}

// Progress returns the completed fraction of the sequence given the current
// pose index and the seconds left in that pose.
func (s Sequence) Progress(index, remaining int) float64 {
	total := s.TotalDuration()
	if total == 0 || index < 0 || index >= len(s.Poses) {
		return 0
	}
	done := 0
	for _, p := range s.Poses[:index] {
		done += p.Duration
	}
	done += s.Poses[index].Duration - remaining
	return float64(done) / float64(total)
}

// SegmentKey names the retargeting cache entry for a pose: the sequence id
// and the 1-based pose number, e.g. "1.S2".
func SegmentKey(seqID string, index int) string {
	return fmt.Sprintf("%s.S%d", seqID, index+1)
}

// ParseSegmentKey splits a SegmentKey back into sequence id and pose index.
func ParseSegmentKey(key string) (string, int, error) {
	id, num, ok := strings.Cut(key, ".S")
	if !ok || id == "" {
		return "", 0, fmt.Errorf("malformed segment key %q", key)
	}
	var n int
	if _, err := fmt.Sscanf(num, "%d", &n); err != nil || n < 1 || fmt.Sprint(n) != num {
		return "", 0, fmt.Errorf("malformed segment key %q", key)
	}
	return id, n - 1, nil
}

// VideoPath resolves the expert clip for a pose. Poses without their own clip
// fall back to S<n>.mp4.
func VideoPath(videosDir string, p Pose, index int) string {
	name := p.Video
	if name == "" {
		name = fmt.Sprintf("S%d.mp4", index+1)
	}
	return path.Join(videosDir, name)
}
