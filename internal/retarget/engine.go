package retarget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/session"
	"github.com/ayusman/taiji/internal/skeleton"
)

// Errors.
var (
	ErrNotCalibrated       = calibration.ErrNotCalibrated
	ErrDurationUnavailable = errors.New("video duration unavailable")
	ErrNoFrames            = errors.New("no landmarks detected in expert video; verify the clip shows a full person and is bright enough")
	ErrSeekTimeout         = errors.New("video seek timeout")
	// ErrStaleCalibration is returned when the calibration was replaced
	// while a run was sampling; the result is discarded.
	ErrStaleCalibration = errors.New("calibration changed during retarget")
)

// Defaults.
const (
	DefaultFrameRateHz = 15.0
	DefaultSeekTimeout = 2 * time.Second
)

// lastFrameGuardMs keeps the final sample just inside the clip.
const lastFrameGuardMs = 0.1

// Config wires an Engine.
type Config struct {
	Detector detector.Detector
	Session  *session.Session
	// Open opens an expert video. Defaults to capture.OpenVideoFile.
	Open        func(path string) (capture.VideoSource, error)
	FrameRateHz float64
	SeekTimeout time.Duration
	Logger      *slog.Logger
}

// Progress is called after every sample with the number of samples taken
// and the total planned.
type Progress func(done, total int)

// Engine extracts and retargets expert sequences. Runs are serialized: the
// video source is read one seek at a time.
type Engine struct {
	config Config
	logger *slog.Logger
	mu     sync.Mutex
}

// NewEngine creates a retargeting engine.
func NewEngine(config Config) *Engine {
	if config.Open == nil {
		config.Open = capture.OpenVideoFile
	}
	if config.FrameRateHz <= 0 {
		config.FrameRateHz = DefaultFrameRateHz
	}
	if config.SeekTimeout <= 0 {
		config.SeekTimeout = DefaultSeekTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: config, logger: logger.With("component", "retarget")}
}

// Ensure returns the cached sequence for segment, retargeting videoPath
// first if there is none. The boolean reports a cache hit.
func (e *Engine) Ensure(ctx context.Context, segment, videoPath string, progress Progress) (*Sequence, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, err := calibration.Load(e.config.Session)
	if err != nil {
		return nil, false, err
	}
	seq, err := Load(e.config.Session, segment)
	switch {
	case err == nil && seq.CalibratedAt.Equal(profile.CalibratedAt):
		return seq, true, nil
	case err == nil:
		e.logger.Info("cached sequence predates calibration, recomputing", "segment", segment)
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}
	seq, err = e.retarget(ctx, segment, videoPath, progress)
	return seq, false, err
}

// Retarget samples videoPath, retargets the detected poses onto the
// session's calibration and replaces the cached sequence for segment.
func (e *Engine) Retarget(ctx context.Context, segment, videoPath string, progress Progress) (*Sequence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retarget(ctx, segment, videoPath, progress)
}

func (e *Engine) retarget(ctx context.Context, segment, videoPath string, progress Progress) (*Sequence, error) {
	profile, err := calibration.Load(e.config.Session)
	if err != nil {
		return nil, err
	}
	target := TargetFor(profile)

	src, err := e.config.Open(videoPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := src.Info()
	if !(info.DurationMs > 0) || math.IsInf(info.DurationMs, 0) {
		return nil, fmt.Errorf("%s: %w", videoPath, ErrDurationUnavailable)
	}
	if info.Width == 0 || info.Height == 0 {
		e.logger.Warn("expert video reports no dimensions; detection may fail", "video", videoPath)
	}

	logger := e.logger.With("segment", segment, "video", videoPath)
	logger.Info("retarget started",
		"duration_ms", info.DurationMs,
		"frame_rate_hz", e.config.FrameRateHz,
		"shoulder_width_m", target.ShoulderWidth,
		"depth_m", target.Depth,
	)
	started := time.Now()

	frames, stats, err := e.sample(ctx, src, info.DurationMs, logger, progress)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		logger.Warn("no expert frames detected", "samples", stats.Samples, "seek_failed", stats.SeekFailed)
		return nil, fmt.Errorf("%s: %w", videoPath, ErrNoFrames)
	}

	seq := &Sequence{
		Segment:      segment,
		Source:       videoPath,
		Frames:       Transform(frames, target),
		Stats:        stats,
		CalibratedAt: profile.CalibratedAt,
		CreatedAt:    time.Now().UTC(),
	}
	if current, err := calibration.Load(e.config.Session); err != nil || !current.CalibratedAt.Equal(profile.CalibratedAt) {
		logger.Warn("calibration replaced during retarget, discarding result")
		return nil, fmt.Errorf("%s: %w", segment, ErrStaleCalibration)
	}
	if err := save(e.config.Session, seq); err != nil {
		return nil, err
	}

	logger.Info("retarget complete",
		"frames", seq.Len(),
		"samples", stats.Samples,
		"seek_failed", stats.SeekFailed,
		"no_pose", stats.NoPose,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return seq, nil
}

// sample seeks through the clip at the configured rate, one seek at a time,
// and collects every detected pose. Failed or timed-out seeks skip the
// sample.
func (e *Engine) sample(ctx context.Context, src capture.VideoSource, durationMs float64, logger *slog.Logger, progress Progress) ([]Frame, Stats, error) {
	rate := e.config.FrameRateHz
	total := int(math.Floor(durationMs*rate/1000)) + 1
	logEvery := max(1, int(math.Round(rate)))

	var (
		frames []Frame
		stats  Stats
	)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		t := float64(i) * 1000 / rate
		target := math.Min(t, durationMs-lastFrameGuardMs)
		stats.Samples++

		frame, err := e.seek(ctx, src, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			stats.SeekFailed++
			logger.Warn("seek failed, skipping sample", "position_ms", target, "error", err)
			e.report(progress, i+1, total)
			continue
		}

		det, err := e.config.Detector.Detect(frame.Mat, frame.TimestampMs)
		ts := frame.TimestampMs
		frame.Close()
		if err != nil {
			if errors.Is(err, detector.ErrNotStarted) {
				return nil, stats, err
			}
			logger.Warn("detection failed", "position_ms", target, "error", err)
		}

		_, hasPelvis := skeleton.Pelvis(detWorld(det))
		switch {
		case det == nil || det.World == nil || !hasPelvis:
			stats.NoPose++
			if i%logEvery == 0 {
				logger.Debug("no landmarks", "position_ms", target)
			}
		case len(frames) > 0 && ts <= frames[len(frames)-1].TimestampMs:
			logger.Debug("duplicate timestamp, skipping", "timestamp_ms", ts)
		default:
			frames = append(frames, Frame{TimestampMs: ts, World: det.World, Normalized: det.Normalized})
			stats.Detected++
		}
		e.report(progress, i+1, total)
	}
	return frames, stats, nil
}

func (e *Engine) seek(ctx context.Context, src capture.VideoSource, positionMs float64) (*capture.Frame, error) {
	seekCtx, cancel := context.WithTimeout(ctx, e.config.SeekTimeout)
	defer cancel()

	frame, err := src.SeekRead(seekCtx, positionMs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrSeekTimeout, e.config.SeekTimeout)
		}
		return nil, err
	}
	return frame, nil
}

func (e *Engine) report(progress Progress, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}

func detWorld(f *detector.Frame) *detector.Landmarks {
	if f == nil {
		return nil
	}
	return f.World
}
