package report

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/practice"
)

func filledStats() *practice.Stats {
	s := practice.NewStats()
	for i := 0; i < 30; i++ {
		s.Record(int64(i*33), align.Result{Joints: []align.JointScore{
			{Index: detector.LeftWrist, HasExpert: true, Aligned: i%2 == 0},
			{Index: detector.RightKnee, HasExpert: true, Aligned: true},
		}})
	}
	return s
}

func TestTimeline(t *testing.T) {
	var buf bytes.Buffer
	if err := Timeline(&buf, filledStats(), 0, 0); err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		t.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width <= cfg.Height {
		t.Errorf("expected a landscape chart, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestJoints(t *testing.T) {
	var buf bytes.Buffer
	if err := Joints(&buf, filledStats(), 0, 0); err != nil {
		t.Fatalf("Joints() error = %v", err)
	}
	if _, err := png.DecodeConfig(&buf); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
}

func TestNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := Timeline(&buf, practice.NewStats(), 0, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("Timeline() error = %v, want ErrNoData", err)
	}
	if err := Joints(&buf, practice.NewStats(), 0, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("Joints() error = %v, want ErrNoData", err)
	}
	if buf.Len() != 0 {
		t.Error("wrote output without data")
	}
}
