package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Calibration.DurationSeconds != 3 {
		t.Errorf("DurationSeconds = %v, want 3", cfg.Calibration.DurationSeconds)
	}
	if cfg.Gesture.Joint != 16 || cfg.Gesture.HoldFrames != 6 {
		t.Errorf("gesture defaults = %+v", cfg.Gesture)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taiji.toml")
	content := `
[calibration]
duration_seconds = 5
tolerance_degrees = 10

[gesture]
corner = "Bottom-Left"

[practice]
segment_boundary = "window"
window_ms = 4000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !exists || resolved != path {
		t.Errorf("Load() resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Calibration.DurationSeconds != 5 {
		t.Errorf("DurationSeconds = %v, want 5", cfg.Calibration.DurationSeconds)
	}
	if cfg.Gesture.Corner != "bottom-left" {
		t.Errorf("Corner = %q, want bottom-left", cfg.Gesture.Corner)
	}
	if cfg.Practice.SegmentBoundary != "window" || cfg.Practice.WindowMs != 4000 {
		t.Errorf("Practice = %+v", cfg.Practice)
	}
	// untouched sections keep defaults
	if cfg.Retarget.FrameRateHz != 15 {
		t.Errorf("FrameRateHz = %v, want 15", cfg.Retarget.FrameRateHz)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if exists {
		t.Error("exists = true for missing file")
	}
	if cfg.Server.Bind != defaultBind {
		t.Errorf("Bind = %q, want %q", cfg.Server.Bind, defaultBind)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TAIJI_COACH_API_KEY", "  coach-key ")
	t.Setenv("TAIJI_TTS_API_KEY", "tts-key")
	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Coach.APIKey != "coach-key" {
		t.Errorf("Coach.APIKey = %q", cfg.Coach.APIKey)
	}
	if cfg.TTS.APIKey != "tts-key" {
		t.Errorf("TTS.APIKey = %q", cfg.TTS.APIKey)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad corner", func(c *Config) { c.Gesture.Corner = "middle" }, "gesture.corner"},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }, "camera.fps"},
		{"tolerance too wide", func(c *Config) { c.Calibration.ToleranceDegrees = 60 }, "tolerance_degrees"},
		{"window without size", func(c *Config) {
			c.Practice.SegmentBoundary = "window"
			c.Practice.WindowMs = 0
		}, "practice.window_ms"},
		{"unknown boundary", func(c *Config) { c.Practice.SegmentBoundary = "rep" }, "segment_boundary"},
		{"negative threshold", func(c *Config) { c.Alignment.ThresholdPx = -1 }, "threshold_px"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(string(out), "segment_boundary") {
		t.Errorf("encoded config missing practice section:\n%s", out)
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample() error = %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("Load(sample) error = %v", err)
	}
}
