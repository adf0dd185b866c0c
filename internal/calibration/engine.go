package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/frameloop"
	"github.com/ayusman/taiji/internal/overlay"
	"github.com/ayusman/taiji/internal/session"
)

// ErrRunning is returned when a calibration is already in progress.
var ErrRunning = errors.New("calibration already running")

// Options control one calibration run. Zero values take the defaults.
type Options struct {
	// Duration the T-pose must be held without a break. Default 3s.
	Duration time.Duration
	// ToleranceDeg is the allowed deviation of each arm segment from
	// horizontal. Default 15.
	ToleranceDeg float64
	// HFOVDeg is the assumed horizontal field of view. Default 60.
	HFOVDeg float64
	// OnTick receives the whole seconds of hold remaining whenever that
	// number changes.
	OnTick func(secondsRemaining int)
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = 3 * time.Second
	}
	if o.ToleranceDeg <= 0 {
		o.ToleranceDeg = 15
	}
	if o.HFOVDeg <= 0 {
		o.HFOVDeg = DefaultHFOV
	}
	return o
}

// Config wires an Engine to its collaborators.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Session  *session.Session
	// Surface receives the guidance overlay; nil disables rendering.
	Surface overlay.Surface
	// Mirror flips the rendered canvas horizontally.
	Mirror bool
	Logger *slog.Logger
	// LoopOptions are passed to the frame loop, mainly to inject a clock.
	LoopOptions []frameloop.Option
}

// Status is a snapshot of the engine.
type Status struct {
	Running   bool      `json:"running"`
	Remaining int       `json:"remaining"`
	Arms      ArmStatus `json:"arms"`
	PoseFound bool      `json:"pose_found"`
}

// Engine runs the T-pose capture loop.
type Engine struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewEngine creates a calibration engine.
func NewEngine(config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config: config,
		logger: logger.With("component", "calibration"),
	}
}

// Status returns the current progress.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Run watches the camera until a T-pose has been held for the configured
// duration, then saves and returns the profile. Frames without a person or
// with missing arm landmarks simply reset the hold; there is no timeout.
// Run returns when ctx is cancelled or the camera fails.
func (e *Engine) Run(ctx context.Context, opts Options) (*Profile, error) {
	opts = opts.withDefaults()

	e.mu.Lock()
	if e.status.Running {
		e.mu.Unlock()
		return nil, ErrRunning
	}
	e.status = Status{Running: true, Remaining: int(opts.Duration.Round(time.Second) / time.Second)}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.mu.Unlock()
	}()

	cam := e.config.Camera
	if !cam.IsOpen() {
		return nil, capture.ErrCameraNotOpen
	}
	fps := cam.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	e.logger.Info("calibration started",
		"hold", opts.Duration,
		"tolerance_deg", opts.ToleranceDeg,
		"hfov_deg", opts.HFOVDeg,
		"fps", fps,
	)

	tracker := NewTracker(opts.Duration)
	lastRemaining := -1
	var profile *Profile

	loop := frameloop.New(time.Second/time.Duration(fps), e.config.LoopOptions...)
	err := loop.Run(ctx, func(ctx context.Context, tick frameloop.Tick) (bool, error) {
		frame, err := cam.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return false, err
			}
			e.logger.Debug("frame read failed", "error", err)
			tracker.Observe(false, tick.Elapsed)
			e.report(tracker, ArmStatus{}, false, opts.OnTick, &lastRemaining)
			return false, nil
		}
		defer frame.Close()

		det, err := e.config.Detector.Detect(frame.Mat, frame.TimestampMs)
		if err != nil {
			if errors.Is(err, detector.ErrNotStarted) {
				return false, err
			}
			e.logger.Warn("detection failed", "error", err)
			det = nil
		}

		var arms ArmStatus
		found := det.HasPose()
		if found {
			arms = Arms(det.World, opts.ToleranceDeg)
		}
		e.render(frame, det, arms, tracker.Remaining())

		complete := tracker.Observe(found && arms.TPose(), tick.Elapsed)
		e.report(tracker, arms, found, opts.OnTick, &lastRemaining)
		if !complete {
			return false, nil
		}

		profile = NewProfile(det, frame.Width, frame.Height, opts.HFOVDeg)
		if err := Save(e.config.Session, profile); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			e.logger.Info("calibration cancelled")
		}
		return nil, fmt.Errorf("calibration: %w", err)
	}

	e.logger.Info("calibration complete",
		"shoulder_width_m", profile.Proportions.ShoulderWidth,
		"depth_m", profile.Camera.EstimatedDepthM,
		"fx", profile.Camera.FX,
	)
	return profile, nil
}

func (e *Engine) report(t *Tracker, arms ArmStatus, found bool, onTick func(int), last *int) {
	remaining := t.Remaining()

	e.mu.Lock()
	e.status.Remaining = remaining
	e.status.Arms = arms
	e.status.PoseFound = found
	e.mu.Unlock()

	if remaining != *last {
		*last = remaining
		if onTick != nil {
			onTick(remaining)
		}
	}
}

func (e *Engine) render(frame *capture.Frame, det *detector.Frame, arms ArmStatus, remaining int) {
	surface := e.config.Surface
	if surface == nil || frame.Mat == nil {
		return
	}

	canvas, cover := overlay.Canvas(*frame.Mat, surface.Size())
	defer canvas.Close()

	if det != nil && det.Normalized != nil {
		pts := align.LivePoints(det.Normalized, frame.Width, frame.Height, cover)
		var dots map[int]bool
		if det.World != nil {
			dots = arms.Dots()
		}
		overlay.DrawCalibration(&canvas, pts, dots)
	}
	if e.config.Mirror {
		overlay.Mirror(&canvas)
	}
	overlay.DrawLabel(&canvas, fmt.Sprintf("Hold the T-pose: %ds", remaining))
	surface.Present(&canvas)
}
