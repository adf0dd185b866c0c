package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.StaticDir, err = expandPath(strings.TrimSpace(c.Server.StaticDir)); err != nil {
		return fmt.Errorf("server.static_dir: %w", err)
	}
	if c.Camera.LockPath, err = expandPath(strings.TrimSpace(c.Camera.LockPath)); err != nil {
		return fmt.Errorf("camera.lock_path: %w", err)
	}
	if c.Retarget.VideosDir, err = expandPath(strings.TrimSpace(c.Retarget.VideosDir)); err != nil {
		return fmt.Errorf("retarget.videos_dir: %w", err)
	}
	if db := strings.TrimSpace(c.Session.Database); db != "" && db != ":memory:" {
		if c.Session.Database, err = expandPath(db); err != nil {
			return fmt.Errorf("session.database: %w", err)
		}
	}
	c.Detector.Python = strings.TrimSpace(c.Detector.Python)
	c.Detector.Script = strings.TrimSpace(c.Detector.Script)
	c.Gesture.Corner = strings.ToLower(strings.TrimSpace(c.Gesture.Corner))
	c.Practice.SegmentBoundary = strings.ToLower(strings.TrimSpace(c.Practice.SegmentBoundary))
	if c.Practice.SegmentBoundary == "" {
		c.Practice.SegmentBoundary = segmentBoundaryPose
	}
	c.Classifier.URL = strings.TrimSpace(c.Classifier.URL)
	c.Coach.APIKey = strings.TrimSpace(c.Coach.APIKey)
	c.Coach.BaseURL = strings.TrimRight(strings.TrimSpace(c.Coach.BaseURL), "/")
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	c.TTS.VoiceID = strings.TrimSpace(c.TTS.VoiceID)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
