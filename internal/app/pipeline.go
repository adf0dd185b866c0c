package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/capture"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/frameloop"
	"github.com/ayusman/taiji/internal/overlay"
	"github.com/ayusman/taiji/internal/practice"
	"github.com/ayusman/taiji/internal/retarget"
)

// pipeline is the per-frame state of the practice loop.
type pipeline struct {
	lastTs  int64
	expert  *retarget.Sequence
	gapLogs time.Time
}

// runPractice drives the practice view until ctx is cancelled or the camera
// fails. Each frame:
//  1. read the camera, skipping a frame whose timestamp has not advanced
//  2. detect the pose and hand it to the recorder
//  3. swap the expert sequence when the current pose changes
//  4. align against the expert frame at the playback position
//  5. feed the gesture toggle and the run statistics
//  6. render the overlay
//
// A second loop advances the pose timer once per second.
func (a *App) runPractice(ctx context.Context) error {
	fps := a.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	timerDone := make(chan struct{})
	go func() {
		defer close(timerDone)
		timer := frameloop.New(time.Second, a.timerOpts...)
		_ = timer.Run(ctx, func(context.Context, frameloop.Tick) (bool, error) {
			a.practice.Tick()
			return false, nil
		})
	}()
	defer func() { <-timerDone }()

	a.logger.Info("practice loop started", "fps", fps)
	p := &pipeline{lastTs: -1}
	loop := frameloop.New(time.Second/time.Duration(fps), a.frameOpts...)
	err := loop.Run(ctx, func(ctx context.Context, tick frameloop.Tick) (bool, error) {
		return false, a.practiceStep(p, tick)
	})
	a.aligner.SetSequence(nil, nil)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("practice: %w", err)
	}
	a.logger.Info("practice loop stopped")
	return nil
}

func (a *App) practiceStep(p *pipeline, tick frameloop.Tick) error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		if errors.Is(err, capture.ErrCameraNotOpen) {
			return err
		}
		a.logger.Debug("frame read failed", "error", err)
		return nil
	}
	defer frame.Close()

	if frame.TimestampMs == p.lastTs {
		return nil
	}
	p.lastTs = frame.TimestampMs

	det, err := a.detector.Detect(frame.Mat, frame.TimestampMs)
	if err != nil {
		if errors.Is(err, detector.ErrNotStarted) {
			return err
		}
		a.logger.Warn("detection failed", "error", err)
		det = nil
	}
	found := det.HasPose()
	if found {
		a.practice.Observe(det)
	} else if tick.At.Sub(p.gapLogs) >= time.Second {
		p.gapLogs = tick.At
		a.logger.Debug("no person in frame", "ts_ms", frame.TimestampMs)
	}

	expert, positionMs, drawExpert := a.practice.Playback()
	if expert != p.expert {
		p.expert = expert
		if err := a.aligner.SetSequence(expert.Timestamps(), expert.Worlds()); err != nil {
			a.logger.Warn("expert sequence rejected", "error", err)
		}
	}

	size := a.canvasSize(frame)
	out := a.aligner.Step(align.Frame{
		Live:         det,
		VideoWidth:   frame.Width,
		VideoHeight:  frame.Height,
		CanvasWidth:  size.X,
		CanvasHeight: size.Y,
		PlaybackMs:   positionMs,
	})

	if found && a.toggle != nil {
		a.toggle.ObserveFrame(out.Live, size.X, size.Y, tick.At)
	}
	if found && out.Expert != nil && a.practice.Playing() {
		a.practice.Stats().Record(frame.TimestampMs, out.Result)
	}

	a.mu.Lock()
	a.last = out
	a.mu.Unlock()

	a.render(frame, size, found, out, drawExpert)
	return nil
}

// canvasSize is the surface size, or the native frame size when there is
// no surface or it has no size yet.
func (a *App) canvasSize(frame *capture.Frame) image.Point {
	if a.surface != nil {
		if s := a.surface.Size(); s.X > 0 && s.Y > 0 {
			return s
		}
	}
	return frame.Size()
}

func (a *App) render(frame *capture.Frame, size image.Point, found bool, out align.Output, drawExpert bool) {
	if a.surface == nil || frame.Mat == nil {
		return
	}
	canvas, _ := overlay.Canvas(*frame.Mat, size)
	defer canvas.Close()

	if drawExpert && out.Expert != nil {
		overlay.DrawExpert(&canvas, out.Expert)
	}
	if found {
		overlay.DrawPractice(&canvas, out.Live, out.Result)
	}
	if a.settings.Alignment.Mirror {
		overlay.Mirror(&canvas)
	}
	if a.toggle != nil {
		overlay.DrawHotspot(&canvas, a.toggle.Config().Hotspot.Rect(size.X, size.Y), a.toggle.Hold() > 0)
	}
	overlay.DrawLabel(&canvas, practiceLabel(a.practice.State()))
	a.surface.Present(&canvas)
}

func practiceLabel(s practice.State) string {
	switch {
	case !s.Active:
		return "Choose a sequence"
	case s.Complete:
		return "Sequence complete"
	case s.Finished:
		return "Analyzing your practice..."
	case s.PrepareError != "":
		return "Expert unavailable"
	case s.Preparing:
		if s.PrepareTotal > 0 {
			return fmt.Sprintf("Preparing expert %d/%d", s.PrepareDone, s.PrepareTotal)
		}
		return "Preparing expert"
	case !s.Playing:
		return fmt.Sprintf("%s (paused)", s.PoseName)
	default:
		return fmt.Sprintf("%s %ds", s.PoseName, s.Remaining)
	}
}
