// Package practice drives a practice run: the pose timer, play and pause
// gating on expert readiness, the landmark recorder and the per-pose
// coaching log.
package practice

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/taiji/internal/coach"
	"github.com/ayusman/taiji/internal/detector"
	"github.com/ayusman/taiji/internal/retarget"
	"github.com/ayusman/taiji/internal/sequence"
	"github.com/ayusman/taiji/internal/session"
	"github.com/ayusman/taiji/internal/store"
)

// ErrNotStarted is returned when no sequence is active.
var ErrNotStarted = errors.New("practice: no active sequence")

// defaultPoseSeconds is used for a sequence without poses.
const defaultPoseSeconds = 10

// Retargeter prepares the expert sequence of a pose.
type Retargeter interface {
	Ensure(ctx context.Context, segment, videoPath string, progress retarget.Progress) (*retarget.Sequence, bool, error)
}

// Coach analyzes a recorded pose and summarizes a run.
type Coach interface {
	Analyze(ctx context.Context, expectedPose string, samples []coach.Sample, previous string) coach.Result
	Summarize(ctx context.Context, items []string) coach.Summary
}

// Config wires a Controller.
type Config struct {
	Session    *session.Session
	Feedback   *store.FeedbackRepository
	Retargeter Retargeter
	Coach      Coach
	VideosDir  string
	Boundary   Boundary
	WindowMs   int64
	Clock      *Clock
	Logger     *slog.Logger
}

// State is a snapshot of the run.
type State struct {
	Active       bool           `json:"active"`
	RunID        string         `json:"run_id,omitempty"`
	SequenceID   string         `json:"sequence_id,omitempty"`
	SequenceName string         `json:"sequence_name,omitempty"`
	PoseIndex    int            `json:"pose_index"`
	PoseCount    int            `json:"pose_count"`
	PoseName     string         `json:"pose_name,omitempty"`
	Remaining    int            `json:"remaining"`
	Progress     float64        `json:"progress"`
	Playing      bool           `json:"playing"`
	PoseReady    bool           `json:"pose_ready"`
	Preparing    bool           `json:"preparing"`
	PrepareDone  int            `json:"prepare_done,omitempty"`
	PrepareTotal int            `json:"prepare_total,omitempty"`
	PrepareError string         `json:"prepare_error,omitempty"`
	Queued       bool           `json:"queued"`
	ShowExpert   bool           `json:"show_expert"`
	ExpertFrames int            `json:"expert_frames"`
	Recorded     int            `json:"recorded"`
	Finished     bool           `json:"finished"`
	Complete     bool           `json:"complete"`
	XP           int            `json:"xp,omitempty"`
	Feedback     []coach.Result `json:"feedback"`
	Summary      *coach.Summary `json:"summary,omitempty"`
}

// Controller owns one practice run at a time.
type Controller struct {
	cfg      Config
	recorder *Recorder
	clock    *Clock
	stats    *Stats
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	active     bool
	seq        sequence.Sequence
	runID      string
	gen        int
	index      int
	remaining  int
	playing    bool
	poseReady  bool
	preparing  bool
	prepCancel context.CancelFunc
	prepDone   int
	prepTotal  int
	prepErr    string
	queued     bool
	showExpert bool
	finished   bool
	complete   bool
	expert     *retarget.Sequence
	feedback   []coach.Result
	summary    *coach.Summary
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewClock(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		recorder:   NewRecorder(cfg.Boundary, cfg.WindowMs),
		clock:      clock,
		stats:      NewStats(),
		logger:     logger.With("component", "practice"),
		ctx:        ctx,
		cancel:     cancel,
		showExpert: true,
	}
}

// Start makes seq the active sequence at its first pose and begins
// preparing the expert overlay. A running sequence is abandoned.
func (c *Controller) Start(seq sequence.Sequence) error {
	c.mu.Lock()
	c.seq = seq
	c.active = true
	err := c.resetLocked()
	state := c.stateLocked()
	c.mu.Unlock()

	c.logger.Info("practice started", "sequence", seq.ID, "run_id", state.RunID, "poses", len(seq.Poses))
	c.notify(session.TopicPracticeUpdated, state)
	return err
}

// Restart rewinds the active sequence, drops the cached expert sequences
// and the feedback log, and prepares the first pose again.
func (c *Controller) Restart() error {
	if !c.isActive() {
		return ErrNotStarted
	}
	c.dropExpertCache()

	c.mu.Lock()
	err := c.resetLocked()
	state := c.stateLocked()
	c.mu.Unlock()

	c.notify(session.TopicPracticeUpdated, state)
	return err
}

func (c *Controller) dropExpertCache() {
	if c.cfg.Session == nil {
		return
	}
	if n, err := retarget.Reset(c.cfg.Session); err != nil {
		c.logger.Warn("clear expert cache", "error", err)
	} else {
		c.logger.Debug("expert cache cleared", "entries", n)
	}
}

func (c *Controller) resetLocked() error {
	c.gen++
	c.cancelPrepareLocked()
	oldRun := c.runID

	c.index = 0
	c.remaining = c.poseDurationLocked(0)
	c.playing = false
	c.queued = false
	c.finished = false
	c.complete = false
	c.poseReady = false
	c.expert = nil
	c.feedback = nil
	c.summary = nil
	c.recorder.Clear()
	c.stats.Reset()
	c.clock.Reset()
	c.clock.SetDuration(0)

	var err error
	c.runID = uuid.NewString()
	if repo := c.cfg.Feedback; repo != nil {
		if oldRun != "" {
			if derr := repo.DeleteRun(oldRun); derr != nil {
				c.logger.Warn("delete previous run", "run_id", oldRun, "error", derr)
			}
		}
		err = repo.CreateRun(&store.PracticeRun{ID: c.runID, SequenceID: c.seq.ID, PoseCount: len(c.seq.Poses)})
	}
	if len(c.seq.Poses) > 0 {
		c.prepareLocked()
	}
	return err
}

func (c *Controller) poseDurationLocked(i int) int {
	if i < 0 || i >= len(c.seq.Poses) {
		return defaultPoseSeconds
	}
	return c.seq.Poses[i].Duration
}

func (c *Controller) cancelPrepareLocked() {
	if c.prepCancel != nil {
		c.prepCancel()
		c.prepCancel = nil
	}
	c.preparing = false
	c.prepDone, c.prepTotal = 0, 0
	c.prepErr = ""
}

// prepareLocked retargets the current pose's expert clip in the background.
func (c *Controller) prepareLocked() {
	c.cancelPrepareLocked()
	if c.cfg.Retargeter == nil {
		c.prepErr = "retargeting unavailable"
		return
	}
	gen, idx := c.gen, c.index
	pose := c.seq.Poses[idx]
	segment := sequence.SegmentKey(c.seq.ID, idx)
	path := sequence.VideoPath(c.cfg.VideosDir, pose, idx)

	ctx, cancel := context.WithCancel(c.ctx)
	c.prepCancel = cancel
	c.preparing = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		progress := func(done, total int) {
			c.mu.Lock()
			if c.gen == gen && c.index == idx {
				c.prepDone, c.prepTotal = done, total
			}
			c.mu.Unlock()
		}
		seq, cached, err := c.cfg.Retargeter.Ensure(ctx, segment, path, progress)
		c.finishPrepare(gen, idx, segment, seq, cached, err)
	}()
}

func (c *Controller) finishPrepare(gen, idx int, segment string, seq *retarget.Sequence, cached bool, err error) {
	c.mu.Lock()
	if c.gen != gen || c.index != idx {
		c.mu.Unlock()
		return
	}
	c.preparing = false
	c.prepCancel = nil
	if err != nil {
		c.prepErr = err.Error()
		c.queued = false
		state := c.stateLocked()
		c.mu.Unlock()
		if !errors.Is(err, context.Canceled) {
			c.logger.Error("expert preparation failed", "segment", segment, "error", err)
		}
		c.notify(session.TopicPracticeUpdated, state)
		return
	}

	c.expert = seq
	c.poseReady = seq.Len() > 0
	c.clock.Reset()
	c.clock.SetDuration(seq.DurationMs())
	started := false
	if c.queued && c.poseReady {
		c.queued = false
		c.startLocked()
		started = true
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.logger.Info("expert ready", "segment", segment, "frames", seq.Len(), "cached", cached, "autoplay", started)
	c.notify(session.TopicPracticeUpdated, state)
	if started {
		c.notify(session.TopicPlaybackToggled, state)
	}
}

// startLocked begins playback, aligning the clock with the first expert
// frame when starting from the top of the clip.
func (c *Controller) startLocked() {
	c.playing = true
	if c.clock.Position() == 0 && c.expert.Len() > 0 {
		c.clock.Seek(c.expert.Frames[0].TimestampMs)
	}
	c.clock.Play()
}

type playMode int

const (
	modeToggle playMode = iota
	modePlay
	modePause
)

// Toggle flips between playing and paused.
func (c *Controller) Toggle() (State, error) { return c.setPlaying(modeToggle) }

// Play starts playback. While the expert overlay is still being prepared
// the request is queued and playback starts once it is ready. Playing a
// finished sequence restarts it.
func (c *Controller) Play() (State, error) { return c.setPlaying(modePlay) }

// Pause stops playback and cancels a queued play.
func (c *Controller) Pause() (State, error) { return c.setPlaying(modePause) }

func (c *Controller) setPlaying(mode playMode) (State, error) {
	if !c.isActive() {
		return State{}, ErrNotStarted
	}

	c.mu.Lock()
	want := mode == modePlay || (mode == modeToggle && !c.playing && !c.queued)
	if c.finished && want {
		c.mu.Unlock()
		c.dropExpertCache()
		c.mu.Lock()
		if err := c.resetLocked(); err != nil {
			c.logger.Warn("create practice run", "error", err)
		}
	}

	switch {
	case want && c.playing:
	case want && !c.poseReady:
		c.queued = true
	case want:
		c.startLocked()
	default:
		c.playing = false
		c.queued = false
		c.clock.Pause()
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.notify(session.TopicPlaybackToggled, state)
	return state, nil
}

// Tick advances the pose timer by one second. It is a no-op unless the
// pose is playing with its expert overlay ready. When the timer runs out
// the recorded pose is sent for analysis and the run advances, pausing
// before the next pose.
func (c *Controller) Tick() {
	c.mu.Lock()
	if !c.active || !c.playing || !c.poseReady {
		c.mu.Unlock()
		return
	}
	if c.remaining <= 1 {
		c.finishPoseLocked()
	} else {
		c.remaining--
	}
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(session.TopicPracticeUpdated, state)
}

// Skip ends the current pose early: its recording is analyzed and the run
// moves on.
func (c *Controller) Skip() (State, error) {
	if !c.isActive() {
		return State{}, ErrNotStarted
	}
	c.mu.Lock()
	if !c.finished {
		c.finishPoseLocked()
	}
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(session.TopicPracticeUpdated, state)
	return state, nil
}

func (c *Controller) finishPoseLocked() {
	idx := c.index
	pose := c.seq.Poses[idx]
	c.analyzeLocked(idx, pose.Name, c.recorder.Take())

	c.playing = false
	c.queued = false
	if idx < len(c.seq.Poses)-1 {
		c.index++
		c.remaining = c.poseDurationLocked(c.index)
		c.poseReady = false
		c.expert = nil
		c.clock.Reset()
		c.clock.SetDuration(0)
		c.prepareLocked()
		return
	}
	c.remaining = 0
	c.finished = true
	c.clock.Pause()
}

func (c *Controller) analyzeLocked(idx int, poseName string, samples []coach.Sample) {
	gen, runID := c.gen, c.runID
	previous := ""
	for i := len(c.feedback) - 1; i >= 0; i-- {
		if !c.feedback[i].Failed() && c.feedback[i].Explanation != "" {
			previous = c.feedback[i].Explanation
			break
		}
	}
	c.logger.Info("analyzing pose", "pose", poseName, "index", idx, "frames", len(samples))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		var res coach.Result
		if c.cfg.Coach == nil {
			res = coach.Result{ExpectedPose: poseName, Error: "coach unavailable"}
		} else {
			res = c.cfg.Coach.Analyze(c.ctx, poseName, samples, previous)
		}
		c.recordFeedback(gen, runID, idx, res)
	}()
}

func (c *Controller) recordFeedback(gen int, runID string, idx int, res coach.Result) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.feedback = append(c.feedback, res)
	if repo := c.cfg.Feedback; repo != nil {
		err := repo.Add(&store.Feedback{
			ID:           uuid.NewString(),
			RunID:        runID,
			PoseIndex:    idx,
			ExpectedPose: res.ExpectedPose,
			DetectedPose: res.DetectedPose,
			SpeechText:   res.SpeechText,
			Explanation:  res.Explanation,
			AudioURI:     res.Speech,
			Error:        res.Error,
		})
		if err != nil {
			c.logger.Warn("store feedback", "run_id", runID, "error", err)
		}
	}

	summarize := !c.complete && len(c.feedback) == len(c.seq.Poses)
	var items []string
	if summarize {
		c.complete = true
		for _, f := range c.feedback {
			items = append(items, f.Text())
		}
		c.wg.Add(1)
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.notify(session.TopicPracticeUpdated, state)
	if summarize {
		c.logger.Info("sequence complete", "sequence", state.SequenceID, "xp", state.XP)
		go c.summarize(gen, runID, items)
	}
}

func (c *Controller) summarize(gen int, runID string, items []string) {
	defer c.wg.Done()
	var s coach.Summary
	if c.cfg.Coach == nil {
		s = coach.Summary{Error: "coach unavailable"}
	} else {
		s = c.cfg.Coach.Summarize(c.ctx, items)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.summary = &s
	if repo := c.cfg.Feedback; repo != nil && s.Text != "" {
		if err := repo.SetSummary(runID, s.Text); err != nil {
			c.logger.Warn("store summary", "run_id", runID, "error", err)
		}
	}
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(session.TopicPracticeUpdated, state)
}

// Observe records a live frame while playing.
func (c *Controller) Observe(f *detector.Frame) {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	if playing && f.HasPose() {
		c.recorder.Add(f)
	}
}

// SetShowExpert turns the expert overlay on or off.
func (c *Controller) SetShowExpert(show bool) State {
	c.mu.Lock()
	c.showExpert = show
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(session.TopicPracticeUpdated, state)
	return state
}

// Playback returns what the live pipeline needs each frame: the expert
// sequence of the current pose (nil until ready), the expert playback
// position and whether the expert skeleton should be drawn.
func (c *Controller) Playback() (expert *retarget.Sequence, positionMs int64, drawExpert bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || !c.poseReady {
		return nil, 0, false
	}
	return c.expert, c.clock.Position(), c.showExpert && c.playing
}

// Playing reports whether the pose timer is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Stats returns the run's alignment accumulator.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// State returns a snapshot of the run.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		Active:       c.active,
		RunID:        c.runID,
		SequenceID:   c.seq.ID,
		SequenceName: c.seq.Name,
		PoseIndex:    c.index,
		PoseCount:    len(c.seq.Poses),
		Remaining:    c.remaining,
		Playing:      c.playing,
		PoseReady:    c.poseReady,
		Preparing:    c.preparing,
		PrepareDone:  c.prepDone,
		PrepareTotal: c.prepTotal,
		PrepareError: c.prepErr,
		Queued:       c.queued,
		ShowExpert:   c.showExpert,
		ExpertFrames: c.expert.Len(),
		Recorded:     c.recorder.Len(),
		Finished:     c.finished,
		Complete:     c.complete,
		Feedback:     append([]coach.Result{}, c.feedback...),
	}
	if c.index < len(c.seq.Poses) {
		s.PoseName = c.seq.Poses[c.index].Name
		s.Progress = c.seq.Progress(c.index, c.remaining)
	}
	if c.complete {
		s.XP = c.seq.XP
	}
	if c.summary != nil {
		sum := *c.summary
		s.Summary = &sum
	}
	return s
}

func (c *Controller) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) notify(topic string, s State) {
	if c.cfg.Session == nil {
		return
	}
	key := s.SequenceID
	if topic == session.TopicPlaybackToggled {
		key = "paused"
		if s.Playing {
			key = "playing"
		}
	}
	c.cfg.Session.Publish(session.Event{Topic: topic, Key: key, Count: s.PoseIndex})
}

// Wait blocks until background preparation, analysis and summary work
// has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background work and waits for it.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
