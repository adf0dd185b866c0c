package frameloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoop_StopsWhenStepDone(t *testing.T) {
	tk := NewManualTicker(time.Unix(0, 0))
	loop := New(time.Second/30, WithTicker(tk.Factory()))

	var ticks []Tick
	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(context.Background(), func(_ context.Context, tick Tick) (bool, error) {
			ticks = append(ticks, tick)
			return tick.Seq == 3, nil
		})
	}()

	steps := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for _, d := range steps {
		if !tk.Advance(d) {
			t.Fatal("Advance() = false before loop finished")
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if tk.Advance(time.Millisecond) {
		t.Error("Advance() after loop exit should report false")
	}

	if len(ticks) != 3 {
		t.Fatalf("got %d ticks, want 3", len(ticks))
	}
	if ticks[0].Elapsed != time.Second/30 {
		t.Errorf("first Elapsed = %v, want nominal interval", ticks[0].Elapsed)
	}
	if ticks[1].Elapsed != 20*time.Millisecond || ticks[2].Elapsed != 40*time.Millisecond {
		t.Errorf("Elapsed = %v, %v; want 20ms, 40ms", ticks[1].Elapsed, ticks[2].Elapsed)
	}
}

func TestLoop_Cancel(t *testing.T) {
	tk := NewManualTicker(time.Unix(0, 0))
	loop := New(time.Millisecond, WithTicker(tk.Factory()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx, func(context.Context, Tick) (bool, error) { return false, nil })
	}()

	tk.Advance(time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestLoop_StepError(t *testing.T) {
	tk := NewManualTicker(time.Unix(0, 0))
	loop := New(time.Millisecond, WithTicker(tk.Factory()))
	wantErr := errors.New("camera gone")

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(context.Background(), func(context.Context, Tick) (bool, error) { return false, wantErr })
	}()
	tk.Advance(time.Millisecond)

	if err := <-errCh; !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want %v", err, wantErr)
	}
}

func TestLoop_RealTicker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-clock test in short mode")
	}
	loop := New(5 * time.Millisecond)
	count := 0
	err := loop.Run(context.Background(), func(context.Context, Tick) (bool, error) {
		count++
		return count == 3, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
