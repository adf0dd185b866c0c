package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

const serviceScript = "pose_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe pose
// landmarker subprocess. The process is owned explicitly: Start launches it
// and Close stops it.
//
// Wire format per request: 4-byte big-endian payload length, 8-byte
// big-endian service timestamp in milliseconds, then the JPEG payload. The
// service answers with one JSON line:
//
//	{"normalized": [33 points | null], "world": [33 points | null]}
type MediaPipeDetector struct {
	config Config
	script string
	python string
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *bufio.Reader
	started  bool
	lastSent int64
}

// NewMediaPipeDetector resolves the service script and interpreter. The
// Python process is not started until Start is called.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	script := config.Script
	if script == "" {
		script = findMediaPipeScript()
	} else if _, err := os.Stat(script); err != nil {
		script = ""
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MediaPipeDetector{
		config:   config,
		script:   script,
		python:   python,
		logger:   logger.With("component", "detector"),
		lastSent: -1,
	}, nil
}

// Start launches the pose service. Calling Start on a running detector is a
// no-op.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.python, d.script,
		"--min-detection-confidence", formatFloat(d.config.MinDetectionConfidence),
		"--min-presence-confidence", formatFloat(d.config.MinPresenceConfidence),
		"--min-tracking-confidence", formatFloat(d.config.MinTrackingConfidence),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastSent = -1
	d.logger.Info("pose service started", "python", d.python, "script", d.script)

	return nil
}

// Detect analyzes a frame and returns the detected pose.
//
// The landmarker runs in video mode and rejects timestamps that do not
// increase, so the service is fed its own strictly increasing clock derived
// from timestampMs. The returned frame always carries the caller's
// timestamp.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil, ErrNotStarted
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	sent := timestampMs
	if sent <= d.lastSent {
		sent = d.lastSent + 1
	}
	d.lastSent = sent

	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	binary.BigEndian.PutUint64(header[4:], uint64(sent))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	result, err := decodeResponse(line, d.config.MinVisibility)
	if err != nil {
		return nil, err
	}
	result.TimestampMs = timestampMs
	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	d.logger.Info("pose service stopped")

	return err
}

type serviceResponse struct {
	Normalized *Landmarks `json:"normalized"`
	World      *Landmarks `json:"world"`
	Error      string     `json:"error,omitempty"`
}

func decodeResponse(line []byte, minVisibility float64) (*Frame, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pose service: %s", resp.Error)
	}

	frame := &Frame{}
	// Only a pose with both arrays counts as a detection.
	if resp.Normalized != nil && resp.World != nil {
		resp.Normalized.applyVisibilityFloor(minVisibility)
		resp.World.applyVisibilityFloor(minVisibility)
		frame.Normalized = resp.Normalized
		frame.World = resp.World
	}
	return frame, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func findMediaPipeScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".taiji", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".taiji/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
