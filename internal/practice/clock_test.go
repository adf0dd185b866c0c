package practice

import (
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) add(d time.Duration)     { f.t = f.t.Add(d) }

func TestClock(t *testing.T) {
	fn := &fakeNow{t: time.Unix(1000, 0)}
	c := NewClock(fn.now)

	if c.Position() != 0 || c.Running() {
		t.Fatal("new clock should be paused at 0")
	}
	fn.add(time.Second)
	if c.Position() != 0 {
		t.Error("paused clock advanced")
	}

	c.Play()
	fn.add(250 * time.Millisecond)
	if got := c.Position(); got != 250 {
		t.Errorf("Position() = %d, want 250", got)
	}

	c.Pause()
	fn.add(time.Second)
	if got := c.Position(); got != 250 {
		t.Errorf("Position() after pause = %d, want 250", got)
	}

	c.Play()
	c.Seek(900)
	fn.add(50 * time.Millisecond)
	if got := c.Position(); got != 950 {
		t.Errorf("Position() after seek = %d, want 950", got)
	}
}

func TestClock_Loops(t *testing.T) {
	fn := &fakeNow{t: time.Unix(0, 0)}
	c := NewClock(fn.now)
	c.SetDuration(1000)
	c.Play()
	fn.add(2300 * time.Millisecond)
	if got := c.Position(); got != 300 {
		t.Errorf("Position() = %d, want 300", got)
	}
	c.Reset()
	if c.Position() != 0 || c.Running() {
		t.Error("Reset() should pause at 0")
	}
}
