package practice

import (
	"testing"

	"github.com/ayusman/taiji/internal/detector"
)

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		in      string
		want    Boundary
		wantErr bool
	}{
		{"pose", BoundaryPose, false},
		{"window", BoundaryWindow, false},
		{"", BoundaryPose, false},
		{"rep", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBoundary(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBoundary(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRecorder_PoseKeepsEverything(t *testing.T) {
	r := NewRecorder(BoundaryPose, 1000)
	for ts := int64(0); ts <= 5000; ts += 500 {
		r.Add(detector.StandingFrame(ts))
	}
	r.Add(&detector.Frame{TimestampMs: 6000})
	r.Add(nil)

	got := r.Take()
	if len(got) != 11 {
		t.Fatalf("Take() returned %d samples, want 11", len(got))
	}
	if r.Len() != 0 {
		t.Error("Take() should clear the buffer")
	}
}

func TestRecorder_WindowTrims(t *testing.T) {
	r := NewRecorder(BoundaryWindow, 1000)
	for ts := int64(0); ts <= 5000; ts += 500 {
		r.Add(detector.StandingFrame(ts))
	}
	got := r.Take()
	if len(got) != 3 {
		t.Fatalf("window kept %d samples, want 3", len(got))
	}
	if got[0].TimestampMs != 4000 || got[2].TimestampMs != 5000 {
		t.Errorf("window = [%d..%d], want [4000..5000]", got[0].TimestampMs, got[2].TimestampMs)
	}
}

func TestRecorder_ClonesLandmarks(t *testing.T) {
	r := NewRecorder(BoundaryPose, 0)
	f := detector.StandingFrame(0)
	r.Add(f)
	f.Normalized[0].X = 42
	if r.Take()[0].Landmarks[0].X == 42 {
		t.Error("recorder aliased the caller's landmarks")
	}
}
