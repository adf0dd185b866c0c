// Package config loads taiji settings from TOML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP bind and UI settings.
type Server struct {
	Bind         string `toml:"bind"`
	StaticDir    string `toml:"static_dir"`
	CanvasWidth  int    `toml:"canvas_width"`
	CanvasHeight int    `toml:"canvas_height"`
}

// Camera describes the webcam used for live capture.
type Camera struct {
	DeviceID int    `toml:"device_id"`
	FPS      int    `toml:"fps"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	LockPath string `toml:"lock_path"`
}

// Detector configures the pose landmark subprocess.
type Detector struct {
	Python                 string  `toml:"python"`
	Script                 string  `toml:"script"`
	MinDetectionConfidence float64 `toml:"min_detection_confidence"`
	MinPresenceConfidence  float64 `toml:"min_presence_confidence"`
	MinTrackingConfidence  float64 `toml:"min_tracking_confidence"`
	// MinVisibility below which a landmark is treated as unavailable.
	MinVisibility float64 `toml:"min_visibility"`
}

// Calibration holds T-pose capture settings.
type Calibration struct {
	DurationSeconds      float64 `toml:"duration_seconds"`
	ToleranceDegrees     float64 `toml:"tolerance_degrees"`
	HorizontalFOVDegrees float64 `toml:"horizontal_fov_degrees"`
}

// Retarget holds expert video sampling settings.
type Retarget struct {
	FrameRateHz   float64 `toml:"frame_rate_hz"`
	SeekTimeoutMs int     `toml:"seek_timeout_ms"`
	VideosDir     string  `toml:"videos_dir"`
}

// Alignment holds live scoring settings. ThresholdPx of 0 selects the
// resolution-adaptive default.
type Alignment struct {
	ThresholdPx float64 `toml:"threshold_px"`
	Mirror      bool    `toml:"mirror"`
}

// Gesture configures the corner hotspot play/pause toggle.
type Gesture struct {
	Enabled    bool    `toml:"enabled"`
	Joint      int     `toml:"joint"`
	Corner     string  `toml:"corner"`
	MarginPct  float64 `toml:"margin_pct"`
	HoldFrames int     `toml:"hold_frames"`
	CooldownMs int     `toml:"cooldown_ms"`
}

// Practice configures how landmark buffers are cut for classification.
type Practice struct {
	// SegmentBoundary is "pose" (whole pose duration) or "window".
	SegmentBoundary string `toml:"segment_boundary"`
	WindowMs        int    `toml:"window_ms"`
}

// Session configures the session state database. An empty path keeps state
// in memory for the lifetime of the process.
type Session struct {
	Database string `toml:"database"`
}

// Classifier is the remote pose classification endpoint.
type Classifier struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Coach is the generative feedback service.
type Coach struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS is the text-to-speech service.
type TTS struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	VoiceID string `toml:"voice_id"`
	Model   string `toml:"model"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for taiji.
type Config struct {
	Server      Server      `toml:"server"`
	Camera      Camera      `toml:"camera"`
	Detector    Detector    `toml:"detector"`
	Calibration Calibration `toml:"calibration"`
	Retarget    Retarget    `toml:"retarget"`
	Alignment   Alignment   `toml:"alignment"`
	Gesture     Gesture     `toml:"gesture"`
	Practice    Practice    `toml:"practice"`
	Session     Session     `toml:"session"`
	Classifier  Classifier  `toml:"classifier"`
	Coach       Coach       `toml:"coach"`
	TTS         TTS         `toml:"tts"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/taiji/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("taiji.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("TAIJI_COACH_API_KEY"); ok {
		c.Coach.APIKey = v
	}
	if v, ok := os.LookupEnv("TAIJI_TTS_API_KEY"); ok {
		c.TTS.APIKey = v
	}
	if v, ok := os.LookupEnv("TAIJI_TTS_VOICE_ID"); ok {
		c.TTS.VoiceID = v
	}
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SeekTimeout returns the per-sample seek timeout.
func (r Retarget) SeekTimeout() time.Duration {
	return time.Duration(r.SeekTimeoutMs) * time.Millisecond
}

// Cooldown returns the minimum interval between gesture toggles.
func (g Gesture) Cooldown() time.Duration {
	return time.Duration(g.CooldownMs) * time.Millisecond
}

// Timeout returns the classifier request timeout.
func (c Classifier) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the generative request timeout.
func (c Coach) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FrameInterval returns the camera tick interval.
func (c Camera) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / defaultCameraFPS
	}
	return time.Second / time.Duration(c.FPS)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
