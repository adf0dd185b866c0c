package gesture

import (
	"sync"
	"time"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/detector"
)

// Defaults.
const (
	DefaultJoint      = detector.RightWrist
	DefaultCorner     = TopRight
	DefaultMarginPct  = 0.12
	DefaultHoldFrames = 6
	DefaultCooldown   = 2 * time.Second
)

// Config configures a Toggle.
type Config struct {
	Joint      int           // Landmark watched for the gesture
	Hotspot    Hotspot       // Target region
	HoldFrames int           // Consecutive frames required inside the hotspot
	Cooldown   time.Duration // Minimum time between two toggles
}

// DefaultConfig returns the right wrist, top-right corner setup.
func DefaultConfig() Config {
	return Config{
		Joint:      DefaultJoint,
		Hotspot:    Hotspot{Corner: DefaultCorner, MarginPct: DefaultMarginPct, Mirror: true},
		HoldFrames: DefaultHoldFrames,
		Cooldown:   DefaultCooldown,
	}
}

// Toggle counts consecutive frames with the joint in the hotspot and fires
// once the hold is long enough and the cooldown has passed.
type Toggle struct {
	config Config
	OnFire func()

	mu       sync.Mutex
	hold     int
	lastFire time.Time
}

// NewToggle creates a toggle. Zero config values take the defaults.
func NewToggle(config Config) *Toggle {
	def := DefaultConfig()
	if config.HoldFrames <= 0 {
		config.HoldFrames = def.HoldFrames
	}
	if config.Cooldown < 0 {
		config.Cooldown = def.Cooldown
	}
	if config.Hotspot.Corner == "" {
		config.Hotspot.Corner = def.Hotspot.Corner
	}
	if config.Hotspot.MarginPct <= 0 {
		config.Hotspot.MarginPct = def.Hotspot.MarginPct
	}
	return &Toggle{config: config}
}

// Config returns the effective configuration.
func (t *Toggle) Config() Config {
	return t.config
}

// Observe feeds one frame: the joint's canvas position, the canvas size and
// the frame time. It reports whether the toggle fired on this frame.
func (t *Toggle) Observe(p align.Point2, width, height int, now time.Time) bool {
	t.mu.Lock()
	if t.config.Hotspot.Contains(p, width, height) {
		t.hold++
	} else {
		t.hold = 0
	}

	cooled := t.lastFire.IsZero() || now.Sub(t.lastFire) >= t.config.Cooldown
	fired := t.hold >= t.config.HoldFrames && cooled
	if fired {
		t.lastFire = now
		t.hold = 0
	}
	onFire := t.OnFire
	t.mu.Unlock()

	if fired && onFire != nil {
		onFire()
	}
	return fired
}

// ObserveFrame is Observe for the configured joint of a set of canvas
// points.
func (t *Toggle) ObserveFrame(pts []align.Point2, width, height int, now time.Time) bool {
	var p align.Point2
	if j := t.config.Joint; j >= 0 && j < len(pts) {
		p = pts[j]
	}
	return t.Observe(p, width, height, now)
}

// Hold returns the current consecutive-frame count.
func (t *Toggle) Hold() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hold
}

// Reset clears the hold counter and the cooldown.
func (t *Toggle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hold = 0
	t.lastFire = time.Time{}
}
