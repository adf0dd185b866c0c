package config

const (
	defaultBind                 = "127.0.0.1:8080"
	defaultStaticDir            = "web"
	defaultCanvasWidth          = 1280
	defaultCanvasHeight         = 720
	defaultCameraDevice         = 0
	defaultCameraFPS            = 30
	defaultCameraWidth          = 1280
	defaultCameraHeight         = 720
	defaultCameraLockPath       = "~/.local/state/taiji/camera.lock"
	defaultDetectorScript       = "scripts/pose_service.py"
	defaultDetectorConfidence   = 0.5
	defaultMinVisibility        = 0.5
	defaultCalibrationSeconds   = 3.0
	defaultToleranceDegrees     = 15.0
	defaultHorizontalFOVDegrees = 60.0
	defaultRetargetFrameRateHz  = 15.0
	defaultSeekTimeoutMs        = 2000
	defaultVideosDir            = "web"
	defaultMirror               = true
	defaultGestureJoint         = 16
	defaultGestureCorner        = "top-right"
	defaultGestureMargin        = 0.12
	defaultGestureHoldFrames    = 6
	defaultGestureCooldownMs    = 2000
	defaultSegmentBoundary      = "pose"
	defaultSegmentWindowMs      = 8000
	defaultClassifierURL        = "https://vec-api-9cvw.onrender.com/predict-csv"
	defaultClassifierTimeout    = 60
	defaultCoachBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultCoachModel           = "gemini-2.0-flash"
	defaultCoachTimeoutSeconds  = 45
	defaultTTSBaseURL           = "https://api.elevenlabs.io/v1"
	defaultTTSVoiceID           = "JBFqnCBsd6RMkjVDRZzb"
	defaultTTSModel             = "eleven_multilingual_v2"
	defaultLogFormat            = "auto"
	defaultLogLevel             = "info"
	minCalibrationSeconds       = 0.5
	maxToleranceDegrees         = 45.0
	segmentBoundaryPose         = "pose"
	segmentBoundaryWindow       = "window"
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:         defaultBind,
			StaticDir:    defaultStaticDir,
			CanvasWidth:  defaultCanvasWidth,
			CanvasHeight: defaultCanvasHeight,
		},
		Camera: Camera{
			DeviceID: defaultCameraDevice,
			FPS:      defaultCameraFPS,
			Width:    defaultCameraWidth,
			Height:   defaultCameraHeight,
			LockPath: defaultCameraLockPath,
		},
		Detector: Detector{
			Script:                 defaultDetectorScript,
			MinDetectionConfidence: defaultDetectorConfidence,
			MinPresenceConfidence:  defaultDetectorConfidence,
			MinTrackingConfidence:  defaultDetectorConfidence,
			MinVisibility:          defaultMinVisibility,
		},
		Calibration: Calibration{
			DurationSeconds:      defaultCalibrationSeconds,
			ToleranceDegrees:     defaultToleranceDegrees,
			HorizontalFOVDegrees: defaultHorizontalFOVDegrees,
		},
		Retarget: Retarget{
			FrameRateHz:   defaultRetargetFrameRateHz,
			SeekTimeoutMs: defaultSeekTimeoutMs,
			VideosDir:     defaultVideosDir,
		},
		Alignment: Alignment{
			Mirror: defaultMirror,
		},
		Gesture: Gesture{
			Enabled:    true,
			Joint:      defaultGestureJoint,
			Corner:     defaultGestureCorner,
			MarginPct:  defaultGestureMargin,
			HoldFrames: defaultGestureHoldFrames,
			CooldownMs: defaultGestureCooldownMs,
		},
		Practice: Practice{
			SegmentBoundary: defaultSegmentBoundary,
			WindowMs:        defaultSegmentWindowMs,
		},
		Classifier: Classifier{
			URL:            defaultClassifierURL,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Coach: Coach{
			BaseURL:        defaultCoachBaseURL,
			Model:          defaultCoachModel,
			TimeoutSeconds: defaultCoachTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL: defaultTTSBaseURL,
			VoiceID: defaultTTSVoiceID,
			Model:   defaultTTSModel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
