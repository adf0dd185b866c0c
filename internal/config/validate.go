package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateCalibration(); err != nil {
		return err
	}
	if err := c.validateRetarget(); err != nil {
		return err
	}
	if err := c.validateGesture(); err != nil {
		return err
	}
	if err := c.validatePractice(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.CanvasWidth <= 0 || c.Server.CanvasHeight <= 0 {
		return errors.New("server.canvas_width and server.canvas_height must be positive")
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be positive")
	}
	return nil
}

func (c *Config) validateCalibration() error {
	if c.Calibration.DurationSeconds < minCalibrationSeconds {
		return fmt.Errorf("calibration.duration_seconds must be at least %.1f", minCalibrationSeconds)
	}
	if c.Calibration.ToleranceDegrees <= 0 || c.Calibration.ToleranceDegrees > maxToleranceDegrees {
		return fmt.Errorf("calibration.tolerance_degrees must be in (0, %.0f]", maxToleranceDegrees)
	}
	if c.Calibration.HorizontalFOVDegrees <= 0 || c.Calibration.HorizontalFOVDegrees >= 180 {
		return errors.New("calibration.horizontal_fov_degrees must be in (0, 180)")
	}
	return nil
}

func (c *Config) validateRetarget() error {
	if c.Retarget.FrameRateHz <= 0 {
		return errors.New("retarget.frame_rate_hz must be positive")
	}
	if c.Retarget.SeekTimeoutMs <= 0 {
		return errors.New("retarget.seek_timeout_ms must be positive")
	}
	if c.Alignment.ThresholdPx < 0 {
		return errors.New("alignment.threshold_px must not be negative")
	}
	return nil
}

func (c *Config) validateGesture() error {
	switch c.Gesture.Corner {
	case "top-left", "top-right", "bottom-left", "bottom-right":
	default:
		return fmt.Errorf("gesture.corner: unsupported value %q", c.Gesture.Corner)
	}
	if c.Gesture.Joint < 0 || c.Gesture.Joint > 32 {
		return fmt.Errorf("gesture.joint must be a landmark index in [0, 32], got %d", c.Gesture.Joint)
	}
	if c.Gesture.MarginPct <= 0 || c.Gesture.MarginPct >= 0.5 {
		return errors.New("gesture.margin_pct must be in (0, 0.5)")
	}
	if c.Gesture.HoldFrames <= 0 {
		return errors.New("gesture.hold_frames must be positive")
	}
	if c.Gesture.CooldownMs < 0 {
		return errors.New("gesture.cooldown_ms must not be negative")
	}
	return nil
}

func (c *Config) validatePractice() error {
	switch c.Practice.SegmentBoundary {
	case segmentBoundaryPose:
	case segmentBoundaryWindow:
		if c.Practice.WindowMs <= 0 {
			return errors.New("practice.window_ms must be positive when segment_boundary is \"window\"")
		}
	default:
		return fmt.Errorf("practice.segment_boundary: unsupported value %q", c.Practice.SegmentBoundary)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
