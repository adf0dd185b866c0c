package sequence

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAll_LockedUntilCalibrated(t *testing.T) {
	for _, s := range All(false) {
		if !s.Locked {
			t.Errorf("sequence %s unlocked without calibration", s.ID)
		}
	}
	for _, s := range All(true) {
		if s.Locked {
			t.Errorf("sequence %s locked after calibration", s.ID)
		}
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All(true)
	a[0].Poses[0].Name = "changed"
	if All(true)[0].Poses[0].Name == "changed" {
		t.Error("All() exposed the shared catalog")
	}
}

func TestGet(t *testing.T) {
	s, err := Get("1", true)
	if err != nil {
		t.Fatalf("Get(1) error = %v", err)
	}
	got := []string{}
	for _, p := range s.Poses {
		got = append(got, p.GestureID)
	}
	if diff := cmp.Diff([]string{"G01", "G03", "G02"}, got); diff != "" {
		t.Errorf("gesture ids mismatch (-want +got):\n%s", diff)
	}
	if s.TotalDuration() != 50 {
		t.Errorf("TotalDuration() = %d, want 50", s.TotalDuration())
	}

	if _, err := Get("9", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(9) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Pose(3); !errors.Is(err, ErrNotFound) {
		t.Errorf("Pose(3) error = %v, want ErrNotFound", err)
	}
}

func TestProgress(t *testing.T) {
	s, _ := Get("1", true)
	tests := []struct {
		index, remaining int
		want             float64
	}{
		{0, 15, 0},
		{0, 5, 0.2},
		{1, 20, 0.3},
		{2, 0, 1},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := s.Progress(tt.index, tt.remaining); got != tt.want {
			t.Errorf("Progress(%d, %d) = %v, want %v", tt.index, tt.remaining, got, tt.want)
		}
	}
}

func TestSegmentKey(t *testing.T) {
	key := SegmentKey("3", 0)
	if key != "3.S1" {
		t.Fatalf("SegmentKey = %q", key)
	}
	id, idx, err := ParseSegmentKey(key)
	if err != nil || id != "3" || idx != 0 {
		t.Errorf("ParseSegmentKey(%q) = %q, %d, %v", key, id, idx, err)
	}
	for _, bad := range []string{"3", "S1", ".S1", "3.S0", "3.Sx", "3.S01"} {
		if _, _, err := ParseSegmentKey(bad); err == nil {
			t.Errorf("ParseSegmentKey(%q) should fail", bad)
		}
	}
}

func TestVideoPath(t *testing.T) {
	s, _ := Get("1", true)
	if got := VideoPath("videos", s.Poses[1], 1); got != "videos/lotus.mp4" {
		t.Errorf("VideoPath = %q", got)
	}
	r, _ := Get("2", true)
	if got := VideoPath("videos", r.Poses[0], 0); got != "videos/S1.mp4" {
		t.Errorf("VideoPath fallback = %q", got)
	}
}
