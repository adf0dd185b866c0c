// Package frameloop runs per-frame work on a fixed tick clock.
//
// A Loop replaces self-rescheduling callbacks: each iteration waits for the
// next tick (the only suspension point), runs one step to completion, and
// stops on context cancellation or when the step reports it is done. A step
// that overruns simply delays the next tick.
package frameloop

import (
	"context"
	"sync"
	"time"
)

// Tick describes one iteration of a loop.
type Tick struct {
	// Seq counts ticks from 1.
	Seq int
	At  time.Time
	// Elapsed is the time since the previous tick. The first tick reports
	// the nominal interval.
	Elapsed time.Duration
}

// StepFunc is called once per tick. Returning done or a non-nil error stops
// the loop.
type StepFunc func(ctx context.Context, tick Tick) (done bool, err error)

// Ticker is the clock driving a Loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Loop runs a StepFunc at a fixed interval.
type Loop struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker
}

// Option configures a Loop.
type Option func(*Loop)

// WithTicker overrides the clock, mainly for tests.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(l *Loop) {
		l.newTicker = fn
	}
}

// New creates a loop that ticks every interval.
func New(interval time.Duration, opts ...Option) *Loop {
	l := &Loop{
		interval:  interval,
		newTicker: newRealTicker,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval returns the nominal tick interval.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Run blocks until ctx is cancelled, step returns done, or step fails. It
// returns ctx.Err() on cancellation and the step error on failure.
func (l *Loop) Run(ctx context.Context, step StepFunc) error {
	ticker := l.newTicker(l.interval)
	defer ticker.Stop()

	var prev time.Time
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at := <-ticker.C():
			seq++
			elapsed := l.interval
			if !prev.IsZero() {
				elapsed = at.Sub(prev)
			}
			prev = at

			done, err := step(ctx, Tick{Seq: seq, At: at, Elapsed: elapsed})
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

type realTicker struct {
	t *time.Ticker
}

func newRealTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualTicker is a Ticker advanced explicitly by tests.
type ManualTicker struct {
	mu       sync.Mutex
	now      time.Time
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewManualTicker creates a ticker whose clock starts at start.
func NewManualTicker(start time.Time) *ManualTicker {
	return &ManualTicker{
		now:     start,
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
}

// Factory returns a constructor usable with WithTicker. The interval is
// ignored; the test decides how far each tick advances.
func (m *ManualTicker) Factory() func(time.Duration) Ticker {
	return func(time.Duration) Ticker { return m }
}

// Advance moves the clock forward by d and delivers one tick. It blocks
// until the loop receives the tick and reports false if the loop has
// stopped.
func (m *ManualTicker) Advance(d time.Duration) bool {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	m.mu.Unlock()

	select {
	case m.ch <- now:
		return true
	case <-m.stopped:
		return false
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Stop marks the ticker stopped, releasing any pending Advance.
func (m *ManualTicker) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}
