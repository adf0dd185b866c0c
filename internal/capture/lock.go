package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrCameraBusy is returned when another process owns the camera.
var ErrCameraBusy = errors.New("camera is in use by another process")

// Lock is an exclusive, cross-process claim on the camera device.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the camera lock at path without blocking.
func AcquireLock(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock camera: %w", err)
	}
	if !ok {
		return nil, ErrCameraBusy
	}
	return &Lock{fl: fl}, nil
}

// Release gives up the camera lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
