package server

import (
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
)

// StreamHub is the render surface behind /api/stream. Each presented
// canvas is JPEG-encoded once and fanned out to every connected viewer.
type StreamHub struct {
	logger *slog.Logger

	mu     sync.Mutex
	size   image.Point
	subs   map[chan []byte]struct{}
	latest []byte
}

// NewStreamHub creates a hub rendering at width x height. A zero size keeps
// the camera's native resolution.
func NewStreamHub(width, height int, logger *slog.Logger) *StreamHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHub{
		logger: logger,
		size:   image.Pt(width, height),
		subs:   make(map[chan []byte]struct{}),
	}
}

// Size returns the canvas size viewers are served at.
func (h *StreamHub) Size() image.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Present encodes canvas and hands it to every viewer. Slow viewers miss
// frames rather than stall the render loop.
func (h *StreamHub) Present(canvas *gocv.Mat) {
	if canvas == nil || canvas.Empty() {
		return
	}
	buf, err := gocv.IMEncode(".jpg", *canvas)
	if err != nil {
		h.logger.Debug("frame encode failed", "error", err)
		return
	}
	frame := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = frame
	for ch := range h.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe registers a viewer. The latest frame, if any, is delivered
// first. The returned func unsubscribes.
func (h *StreamHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 2)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.latest != nil {
		ch <- h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Viewers returns the number of connected viewers.
func (h *StreamHub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frames, unsubscribe := h.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-frames:
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
