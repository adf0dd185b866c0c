// Package tray provides a system tray menu for the taiji coaching app.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle      func()
	onRecalibrate func()
	onOpen        func()
	onQuit        func()
	calibrated    bool
	pose          string
	playing       bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuCalibration *systray.MenuItem
	menuPose        *systray.MenuItem
	menuToggle      *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback for the play/pause menu item.
func (t *Tray) OnToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback for the recalibrate menu item.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnOpen sets the callback for the open-in-browser menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Taiji")
	systray.SetTooltip("Taiji Coach")

	t.mu.Lock()
	t.menuCalibration = systray.AddMenuItem(calibrationTitle(t.calibrated), "Calibration status")
	t.menuCalibration.Disable()
	t.menuPose = systray.AddMenuItem(poseTitle(t.pose), "Current pose")
	t.menuPose.Disable()
	systray.AddSeparator()

	t.menuToggle = systray.AddMenuItem(toggleTitle(t.playing), "Play or pause the expert")
	t.mu.Unlock()
	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Capture a new T-pose")
	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the coaching UI")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Taiji")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.call(func() func() { return t.onToggle })
			case <-menuRecalibrate.ClickedCh:
				t.call(func() func() { return t.onRecalibrate })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call runs the callback selected under the read lock, outside the lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetCalibrated updates the calibration status line.
func (t *Tray) SetCalibrated(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrated = ok
	if t.menuCalibration != nil {
		t.menuCalibration.SetTitle(calibrationTitle(ok))
	}
}

// SetPlayback updates the pose line and the play/pause item.
func (t *Tray) SetPlayback(pose string, playing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pose, t.playing = pose, playing
	if t.menuPose != nil {
		t.menuPose.SetTitle(poseTitle(pose))
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(playing))
	}
}

// IsCalibrated returns the last calibration status shown.
func (t *Tray) IsCalibrated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibrated
}

func calibrationTitle(ok bool) string {
	if ok {
		return "● Calibrated"
	}
	return "○ Not calibrated"
}

func poseTitle(pose string) string {
	if pose == "" {
		return "Pose: none"
	}
	return "Pose: " + pose
}

func toggleTitle(playing bool) string {
	if playing {
		return "Pause"
	}
	return "Play"
}
