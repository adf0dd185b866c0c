// Package app is the composition root: it owns the camera, the landmark
// detector and the engines, and runs whichever live view is active.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/coach"
	"github.com/ayusman/taiji/internal/config"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/frameloop"
	"github.com/ayusman/taiji/internal/gesture"
	"github.com/ayusman/taiji/internal/overlay"
	"github.com/ayusman/taiji/internal/practice"
	"github.com/ayusman/taiji/internal/retarget"
	"github.com/ayusman/taiji/internal/sequence"
	"github.com/ayusman/taiji/internal/session"
	"github.com/ayusman/taiji/internal/store"
)

// ErrNotInitialized is returned by live views before Init succeeds. It
// matches capture.ErrCameraNotOpen.
var ErrNotInitialized = fmt.Errorf("app: live capture not initialized: %w", capture.ErrCameraNotOpen)

// View names the live loop currently owning the camera.
type View string

// Live views.
const (
	ViewIdle        View = "idle"
	ViewCalibration View = "calibration"
	ViewPractice    View = "practice"
)

// Config holds the application dependencies. Nil collaborators are built
// from Settings.
type Config struct {
	Settings *config.Config
	// Store is opened from Settings.Session.Database when nil and closed by
	// Close.
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	// OpenVideo opens expert videos; nil uses capture.OpenVideoFile.
	OpenVideo func(path string) (capture.VideoSource, error)
	// Coaching services; nil selects the HTTP clients.
	Classifier coach.Classifier
	Generator  coach.Generator
	Speaker    coach.Speaker
	// Surface receives rendered canvases; nil disables rendering.
	Surface overlay.Surface
	Logger  *slog.Logger
	// FrameLoop and TimerLoop configure the per-frame and once-a-second
	// loops, mainly to inject clocks.
	FrameLoop []frameloop.Option
	TimerLoop []frameloop.Option
}

type starter interface {
	Start() error
}

// App wires detection, calibration, retargeting and practice together.
type App struct {
	settings  config.Config
	logger    *slog.Logger
	store     *store.Store
	ownsStore bool
	session   *session.Session
	camera    capture.Camera
	detector  detector.Detector
	surface   overlay.Surface
	frameOpts []frameloop.Option
	timerOpts []frameloop.Option

	calibration *calibration.Engine
	retarget    *retarget.Engine
	coach       *coach.Coach
	practice    *practice.Controller
	aligner     *align.Aligner
	toggle      *gesture.Toggle

	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error

	mu              sync.Mutex
	initialized     bool
	detectorStarted bool
	lock            *capture.Lock
	view            View
	viewCancel      context.CancelFunc
	viewDone        chan struct{}
	last            align.Output
}

// New builds the application. Hardware is not touched until Init.
func New(cfg Config) (*App, error) {
	settings := config.Default()
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		settings:  settings,
		logger:    logger.With("component", "app"),
		store:     cfg.Store,
		camera:    cfg.Camera,
		detector:  cfg.Detector,
		surface:   cfg.Surface,
		frameOpts: cfg.FrameLoop,
		timerOpts: cfg.TimerLoop,
		view:      ViewIdle,
		last:      align.Output{ExpertIndex: -1},
	}

	if a.store == nil {
		st, err := store.New(settings.Session.Database)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		a.store = st
		a.ownsStore = true
	}
	a.session = session.New(a.store, logger)

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Config{
			DeviceID: settings.Camera.DeviceID,
			FPS:      settings.Camera.FPS,
			Width:    settings.Camera.Width,
			Height:   settings.Camera.Height,
		})
	}
	if a.detector == nil {
		mp, err := detector.NewMediaPipeDetector(detector.Config{
			Python:                 settings.Detector.Python,
			Script:                 settings.Detector.Script,
			MinDetectionConfidence: settings.Detector.MinDetectionConfidence,
			MinPresenceConfidence:  settings.Detector.MinPresenceConfidence,
			MinTrackingConfidence:  settings.Detector.MinTrackingConfidence,
			MinVisibility:          settings.Detector.MinVisibility,
		}, logger)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("create detector: %w", err)
		}
		a.detector = mp
	}

	a.calibration = calibration.NewEngine(calibration.Config{
		Camera:      a.camera,
		Detector:    a.detector,
		Session:     a.session,
		Surface:     a.surface,
		Mirror:      settings.Alignment.Mirror,
		Logger:      logger,
		LoopOptions: a.frameOpts,
	})
	a.retarget = retarget.NewEngine(retarget.Config{
		Detector:    a.detector,
		Session:     a.session,
		Open:        cfg.OpenVideo,
		FrameRateHz: settings.Retarget.FrameRateHz,
		SeekTimeout: settings.Retarget.SeekTimeout(),
		Logger:      logger,
	})
	a.coach = newCoach(cfg, settings, logger)

	boundary, err := practice.ParseBoundary(settings.Practice.SegmentBoundary)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.practice = practice.NewController(practice.Config{
		Session:    a.session,
		Feedback:   a.store.Feedback(),
		Retargeter: a.retarget,
		Coach:      a.coach,
		VideosDir:  settings.Retarget.VideosDir,
		Boundary:   boundary,
		WindowMs:   int64(settings.Practice.WindowMs),
		Logger:     logger,
	})

	a.aligner = align.NewAligner(align.Pinhole{}, align.Options{
		ThresholdPx: settings.Alignment.ThresholdPx,
		Mirror:      settings.Alignment.Mirror,
	})
	a.loadCamera()

	if settings.Gesture.Enabled {
		corner, err := gesture.ParseCorner(settings.Gesture.Corner)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		a.toggle = gesture.NewToggle(gesture.Config{
			Joint: settings.Gesture.Joint,
			Hotspot: gesture.Hotspot{
				Corner:    corner,
				MarginPct: settings.Gesture.MarginPct,
				Mirror:    settings.Alignment.Mirror,
			},
			HoldFrames: settings.Gesture.HoldFrames,
			Cooldown:   settings.Gesture.Cooldown(),
		})
		a.toggle.OnFire = a.gestureToggle
	}

	a.unsubscribe = a.session.Subscribe(session.TopicCalibrationUpdated, a.calibrationChanged)
	return a, nil
}

func newCoach(cfg Config, settings config.Config, logger *slog.Logger) *coach.Coach {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = coach.NewHTTPClassifier(settings.Classifier.URL, settings.Classifier.Timeout())
	}
	generator := cfg.Generator
	if generator == nil {
		generator = coach.NewGeminiClient(coach.GeminiConfig{
			APIKey:  settings.Coach.APIKey,
			BaseURL: settings.Coach.BaseURL,
			Model:   settings.Coach.Model,
			Timeout: settings.Coach.Timeout(),
		})
	}
	speaker := cfg.Speaker
	if speaker == nil {
		speaker = coach.NewElevenLabs(coach.TTSConfig{
			APIKey:  settings.TTS.APIKey,
			BaseURL: settings.TTS.BaseURL,
			VoiceID: settings.TTS.VoiceID,
			Model:   settings.TTS.Model,
		})
	}
	return coach.New(coach.Config{
		Classifier: classifier,
		Generator:  generator,
		Speaker:    speaker,
		Logger:     logger,
	})
}

// Init claims the camera, starts the detector and opens the camera.
func (a *App) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}

	if path := a.settings.Camera.LockPath; path != "" {
		lock, err := capture.AcquireLock(path)
		if err != nil {
			return err
		}
		a.lock = lock
	}
	if err := a.startDetectorLocked(); err != nil {
		a.releaseLockLocked()
		return err
	}
	if err := a.camera.Open(); err != nil {
		a.releaseLockLocked()
		return fmt.Errorf("open camera: %w", err)
	}

	a.initialized = true
	a.logger.Info("live capture ready", "camera_fps", a.camera.FPS())
	return nil
}

// StartDetector starts the landmark detector without claiming the camera,
// for offline work such as retargeting from the command line.
func (a *App) StartDetector() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startDetectorLocked()
}

func (a *App) startDetectorLocked() error {
	if a.detectorStarted {
		return nil
	}
	if s, ok := a.detector.(starter); ok {
		if err := s.Start(); err != nil {
			return fmt.Errorf("start detector: %w", err)
		}
	}
	a.detectorStarted = true
	return nil
}

func (a *App) releaseLockLocked() {
	if err := a.lock.Release(); err != nil {
		a.logger.Warn("camera lock release failed", "error", err)
	}
	a.lock = nil
}

// Close stops the live view and releases every resource. Later calls
// return the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() { a.closeErr = a.close() })
	return a.closeErr
}

func (a *App) close() error {
	a.stopView()
	a.practice.Close()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}

	var errs []error
	a.mu.Lock()
	if a.initialized {
		if err := a.camera.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close camera: %w", err))
		}
		a.initialized = false
	}
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if a.lock != nil {
		a.releaseLockLocked()
	}
	a.mu.Unlock()

	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("app closed")
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if !a.ownsStore || a.store == nil {
		return nil
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Calibrate stops any live view and runs the T-pose capture until it
// completes or ctx is cancelled. onTick receives the seconds of hold left.
func (a *App) Calibrate(ctx context.Context, onTick func(int)) (*calibration.Profile, error) {
	ctx, release, err := a.claimView(ctx, ViewCalibration)
	if err != nil {
		return nil, err
	}
	defer release()

	return a.calibration.Run(ctx, calibration.Options{
		Duration:     time.Duration(a.settings.Calibration.DurationSeconds * float64(time.Second)),
		ToleranceDeg: a.settings.Calibration.ToleranceDegrees,
		HFOVDeg:      a.settings.Calibration.HorizontalFOVDegrees,
		OnTick:       onTick,
	})
}

// StartPractice makes seqID the active sequence and starts the live
// practice loop. Sequences stay locked until the session is calibrated.
func (a *App) StartPractice(seqID string) (practice.State, error) {
	seq, err := sequence.Get(seqID, calibration.IsCalibrated(a.session))
	if err != nil {
		return practice.State{}, err
	}
	if seq.Locked {
		return practice.State{}, calibration.ErrNotCalibrated
	}
	if !a.isInitialized() {
		return practice.State{}, ErrNotInitialized
	}
	a.loadCamera()
	if err := a.practice.Start(seq); err != nil {
		return a.practice.State(), err
	}
	if a.toggle != nil {
		a.toggle.Reset()
	}

	a.stopView()
	a.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.view, a.viewCancel, a.viewDone = ViewPractice, cancel, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		if err := a.runPractice(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("practice loop stopped", "error", err)
		}
		a.clearView(done)
	}()
	return a.practice.State(), nil
}

// StopPractice ends the live practice loop. The run state is kept.
func (a *App) StopPractice() {
	a.mu.Lock()
	practicing := a.view == ViewPractice
	a.mu.Unlock()
	if practicing {
		a.stopView()
	}
	if a.practice.Playing() {
		if _, err := a.practice.Pause(); err != nil {
			a.logger.Debug("pause on stop failed", "error", err)
		}
	}
}

func (a *App) claimView(ctx context.Context, view View) (context.Context, func(), error) {
	if !a.isInitialized() {
		return nil, nil, ErrNotInitialized
	}
	a.stopView()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.mu.Lock()
	a.view, a.viewCancel, a.viewDone = view, cancel, done
	a.mu.Unlock()

	release := func() {
		cancel()
		close(done)
		a.clearView(done)
	}
	return ctx, release, nil
}

func (a *App) clearView(done chan struct{}) {
	a.mu.Lock()
	if a.viewDone == done {
		a.view, a.viewCancel, a.viewDone = ViewIdle, nil, nil
	}
	a.mu.Unlock()
}

func (a *App) stopView() {
	a.mu.Lock()
	cancel, done := a.viewCancel, a.viewDone
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (a *App) isInitialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// loadCamera points the aligner at the calibrated intrinsics, or clears
// them when the session is not calibrated.
func (a *App) loadCamera() {
	profile, err := calibration.Load(a.session)
	if err != nil {
		if !errors.Is(err, calibration.ErrNotCalibrated) {
			a.logger.Warn("calibration unreadable", "error", err)
		}
		a.aligner.SetCamera(align.Pinhole{})
		return
	}
	a.aligner.SetCamera(profile.Camera.Pinhole)
}

// calibrationChanged refreshes the intrinsics and drops expert sequences
// retargeted onto the previous body proportions.
func (a *App) calibrationChanged(session.Event) {
	a.loadCamera()
	n, err := retarget.Reset(a.session)
	if err != nil {
		a.logger.Warn("expert cache reset failed", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("expert cache cleared after calibration change", "sequences", n)
	}
}

func (a *App) gestureToggle() {
	state, err := a.practice.Toggle()
	if err != nil {
		a.logger.Debug("gesture toggle ignored", "error", err)
		return
	}
	a.logger.Info("gesture toggled playback", "playing", state.Playing, "queued", state.Queued)
}

// View returns the live view owning the camera.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// LastOutput returns the most recent alignment step of the practice loop.
func (a *App) LastOutput() align.Output {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Settings returns the effective configuration.
func (a *App) Settings() config.Config { return a.settings }

// Session returns the session state.
func (a *App) Session() *session.Session { return a.session }

// Store returns the session database.
func (a *App) Store() *store.Store { return a.store }

// Calibration returns the calibration engine.
func (a *App) Calibration() *calibration.Engine { return a.calibration }

// Retarget returns the retargeting engine.
func (a *App) Retarget() *retarget.Engine { return a.retarget }

// Coach returns the coaching service chain.
func (a *App) Coach() *coach.Coach { return a.coach }

// Practice returns the practice controller.
func (a *App) Practice() *practice.Controller { return a.practice }

// Toggle returns the gesture toggle, nil when gestures are disabled.
func (a *App) Toggle() *gesture.Toggle { return a.toggle }
