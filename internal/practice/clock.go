package practice

import (
	"sync"
	"time"
)

// Clock tracks the expert video's playback position. The clip loops, so the
// position wraps at the duration when one is set.
type Clock struct {
	mu         sync.Mutex
	now        func() time.Time
	durationMs int64
	baseMs     int64 // position when last started or paused
	startedAt  time.Time
	running    bool
}

// NewClock creates a paused clock at 0. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// SetDuration sets the loop length. Zero disables wrapping.
func (c *Clock) SetDuration(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durationMs = ms
}

// Play starts or resumes the clock.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.startedAt = c.now()
	c.running = true
}

// Pause freezes the clock at its current position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.baseMs = c.positionLocked()
	c.running = false
}

// Seek moves to ms, keeping the running state.
func (c *Clock) Seek(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseMs = ms
	if c.running {
		c.startedAt = c.now()
	}
}

// Reset pauses and rewinds to 0.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseMs = 0
	c.running = false
}

// Running reports whether the clock advances.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Position returns the current playback position in milliseconds.
func (c *Clock) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() int64 {
	pos := c.baseMs
	if c.running {
		pos += c.now().Sub(c.startedAt).Milliseconds()
	}
	if c.durationMs > 0 {
		pos %= c.durationMs
	}
	return pos
}
